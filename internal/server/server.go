package server

import (
	"context"
	"net/http"
	"time"

	"github.com/linyinfeng/oranc/pkg/xlog"
)

// Server serves the Nix-cache HTTP surface described by a [Config].
type Server struct {
	cfg *Config
	srv *http.Server
}

// New returns a Server ready to be run with Serve.
func New(cfg *Config) *Server {
	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:              cfg.Listen,
			Handler:           NewRouter(cfg),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Serve runs the HTTP server until ctx is canceled, then shuts it down
// gracefully with a five second deadline.
func (s *Server) Serve(ctx context.Context) error {
	xlog.C(ctx).Infof("starting server on %s", s.cfg.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		xlog.C(ctx).Error("server shutdown failed", "error", err)
		return err
	}
	xlog.C(ctx).Info("server stopped")
	return nil
}
