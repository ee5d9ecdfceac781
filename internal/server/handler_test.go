package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/opencontainers/go-digest"
	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linyinfeng/oranc/internal/tagcodec"
)

func newFakeRegistry(t *testing.T, repoPath string, key string, content []byte) *httptest.Server {
	t.Helper()
	tag, err := tagcodec.Encode(key)
	require.NoError(t, err)

	blobDigest := digest.FromBytes(content)
	manifest := imgspecv1.Manifest{
		MediaType: imgspecv1.MediaTypeImageManifest,
		Config:    imgspecv1.Descriptor{MediaType: "application/vnd.oranc.config.v1+json", Digest: digest.FromBytes([]byte("{}")), Size: 2},
		Layers: []imgspecv1.Descriptor{
			{MediaType: "application/octet-stream", Digest: blobDigest, Size: int64(len(content))},
		},
	}
	manifestBytes, err := json.Marshal(manifest)
	require.NoError(t, err)
	manifestDigest := digest.FromBytes(manifestBytes)

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(fmt.Sprintf("/v2/%s/manifests/%s", repoPath, tag), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", imgspecv1.MediaTypeImageManifest)
		w.Header().Set("Docker-Content-Digest", manifestDigest.String())
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(manifestBytes)))
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write(manifestBytes)
	})
	mux.HandleFunc(fmt.Sprintf("/v2/%s/blobs/%s", repoPath, blobDigest), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Docker-Content-Digest", blobDigest.String())
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
		_, _ = w.Write(content)
	})
	return httptest.NewServer(mux)
}

func hostOf(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Host
}

func TestKeyHandlerServesFromRegistry(t *testing.T) {
	gin.SetMode(gin.TestMode)

	content := []byte("nar file content")
	srv := newFakeRegistry(t, "user/cache", "nix-cache-info", content)
	defer srv.Close()

	cfg := &Config{NoSSL: true}
	router := NewRouter(cfg)

	path := fmt.Sprintf("/%s/user/cache/nix-cache-info", hostOf(t, srv.URL))
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content, w.Body.Bytes())
}

func TestKeyHandlerMissingManifestIs404(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := &Config{NoSSL: true}
	router := NewRouter(cfg)

	path := fmt.Sprintf("/%s/user/cache/nix-cache-info", hostOf(t, srv.URL))
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRootAndHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(&Config{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "oranc")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestPutIsMethodNotAllowed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(&Config{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/ghcr.io/user/cache/nix-cache-info", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
