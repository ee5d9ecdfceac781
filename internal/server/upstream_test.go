package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeUpstreamsNoUpstreams(t *testing.T) {
	resp, ok := probeUpstreams(context.Background(), http.DefaultClient, nil, "nix-cache-info")
	assert.False(t, ok)
	assert.Nil(t, resp)
}

func TestProbeUpstreamsFirstHitWins(t *testing.T) {
	hit := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	defer hit.Close()

	miss := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer miss.Close()

	resp, ok := probeUpstreams(context.Background(), http.DefaultClient, []string{miss.URL, hit.URL}, "nix-cache-info")
	require.True(t, ok)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProbeUpstreamsAllMiss(t *testing.T) {
	miss := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer miss.Close()

	resp, ok := probeUpstreams(context.Background(), http.DefaultClient, []string{miss.URL, miss.URL}, "nix-cache-info")
	assert.False(t, ok)
	assert.Nil(t, resp)
}
