package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/linyinfeng/oranc/pkg/xlog"
)

// probeUpstreams issues a GET for key against every configured upstream
// base URL in parallel and returns the body of the first 200 response. The
// context of every losing request is canceled once a winner is found so
// that their connections are released promptly. If every upstream answers
// non-200 or errors, probeUpstreams returns (nil, false): the caller falls
// through to the registry path.
func probeUpstreams(ctx context.Context, client *http.Client, upstreams []string, key string) (*http.Response, bool) {
	if len(upstreams) == 0 {
		return nil, false
	}

	type result struct {
		resp   *http.Response
		err    error
		cancel context.CancelFunc
	}

	results := make(chan result, len(upstreams))
	for _, base := range upstreams {
		url := strings.TrimSuffix(base, "/") + "/" + key
		reqCtx, cancel := context.WithCancel(ctx)
		go func(url string, reqCtx context.Context, cancel context.CancelFunc) {
			req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, http.NoBody)
			if err != nil {
				results <- result{err: err, cancel: cancel}
				return
			}
			resp, err := client.Do(req)
			results <- result{resp: resp, err: err, cancel: cancel}
		}(url, reqCtx, cancel)
	}

	var winner *result
	consumed := 0
	for consumed < len(upstreams) {
		r := <-results
		consumed++
		if r.err != nil {
			r.cancel()
			continue
		}
		if r.resp.StatusCode == http.StatusOK {
			winner = &r
			break
		}
		_ = r.resp.Body.Close()
		r.cancel()
	}

	if winner == nil {
		xlog.C(ctx).Debugf("all %d upstream(s) missed key %q", len(upstreams), key)
		return nil, false
	}

	// cancel and drain every still-outstanding loser in the background so
	// their connections are released without blocking the caller.
	remaining := len(upstreams) - consumed
	go func() {
		for j := 0; j < remaining; j++ {
			r := <-results
			r.cancel()
			if r.resp != nil {
				_ = r.resp.Body.Close()
			}
		}
	}()

	return winner.resp, true
}
