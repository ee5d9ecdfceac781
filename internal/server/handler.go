package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/linyinfeng/oranc/pkg/errdefs"
	"github.com/linyinfeng/oranc/pkg/ocispec/distribution"
	"github.com/linyinfeng/oranc/pkg/ocispec/distribution/remote"
	"github.com/linyinfeng/oranc/pkg/xlog"
)

const banner = "oranc: OCI Registry As Nix Cache\n"

// NewRouter builds the gin.Engine implementing the Nix-cache HTTP surface
// described by cfg.
func NewRouter(cfg *Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.HandleMethodNotAllowed = true

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, banner)
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.NoMethod(func(c *gin.Context) {
		c.Status(http.StatusMethodNotAllowed)
	})
	router.GET("/*path", newKeyHandler(cfg))

	return router
}

func newKeyHandler(cfg *Config) gin.HandlerFunc {
	client := http.DefaultClient
	return func(c *gin.Context) {
		registryHost, repositoryPath, key, err := SplitPath(c.Param("path"))
		if err != nil {
			c.String(http.StatusNotFound, "not found")
			return
		}

		ctx := c.Request.Context()

		if !cfg.ignoresUpstream(key) {
			if resp, ok := probeUpstreams(ctx, client, cfg.Upstreams, key); ok {
				defer resp.Body.Close()
				copyHeaders(c.Writer.Header(), resp.Header)
				c.Status(http.StatusOK)
				_, _ = io.Copy(c.Writer, resp.Body)
				return
			}
		}

		if err := serveFromRegistry(ctx, cfg, c, registryHost, repositoryPath, key); err != nil {
			writeError(c, err)
		}
	}
}

func serveFromRegistry(ctx context.Context, cfg *Config, c *gin.Context, registryHost, repositoryPath, key string) error {
	repo, err := openRepository(ctx, cfg, registryHost, repositoryPath)
	if err != nil {
		return errdefs.NewE(errdefs.ErrRegistryPermanent, err)
	}

	tag, err := cfg.codec().Encode(key)
	if err != nil {
		return err
	}

	manifestDesc, err := repo.Manifests().StatTagOrDigest(ctx, tag)
	if err != nil {
		return err
	}
	manifestReader, err := repo.Manifests().FetchTagOrDigest(ctx, tag)
	if err != nil {
		return err
	}
	defer manifestReader.Close()

	var manifest imgspecv1.Manifest
	if err := json.NewDecoder(manifestReader).Decode(&manifest); err != nil {
		return fmt.Errorf("server: decoding manifest for key %q: %w", key, err)
	}
	if len(manifest.Layers) == 0 {
		return errdefs.Newf(errdefs.ErrNotFound, "manifest %s has no layers", manifestDesc.Digest)
	}
	layer := manifest.Layers[0]

	blob, err := repo.Blobs().Fetch(ctx, layer)
	if err != nil {
		return err
	}
	defer blob.Close()

	desc := blob.Descriptor()
	c.Header("Content-Type", desc.MediaType)
	if desc.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(desc.Size, 10))
	}
	if desc.Digest != "" {
		c.Header("ETag", `"`+desc.Digest.String()+`"`)
	}
	c.Status(http.StatusOK)
	_, err = io.Copy(c.Writer, blob)
	return err
}

func openRepository(ctx context.Context, cfg *Config, registryHost, repositoryPath string) (distribution.Repository, error) {
	scheme := "https"
	if cfg.NoSSL {
		scheme = "http"
	}
	name := fmt.Sprintf("%s://%s/%s", scheme, registryHost, repositoryPath)

	var opts []remote.Option
	if cfg.AuthProvider != nil {
		client := remote.NewClient()
		client.AuthProvider = cfg.AuthProvider
		opts = append(opts, remote.WithClient(client))
	}
	return remote.NewRepositoryWithContext(ctx, name, opts...)
}

func writeError(c *gin.Context, err error) {
	status := statusForError(err)
	xlog.C(c.Request.Context()).Warnf("request for %q failed: %v", c.Request.URL.Path, err)
	if retryable(status) {
		c.Header("Retry-After", "5")
	}
	c.String(status, "%s\n", errorMessage(status))
}

func errorMessage(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not found"
	case http.StatusServiceUnavailable:
		return "service unavailable"
	default:
		return "bad gateway"
	}
}

func copyHeaders(dst, src http.Header) {
	for _, key := range []string{"Content-Type", "Content-Length", "ETag"} {
		if v := src.Get(key); v != "" {
			dst.Set(key, v)
		}
	}
}
