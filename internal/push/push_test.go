package push_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linyinfeng/oranc/internal/nix"
	"github.com/linyinfeng/oranc/internal/nix/sign"
	"github.com/linyinfeng/oranc/internal/oracle/oracletest"
	"github.com/linyinfeng/oranc/internal/push"
)

// fakeRegistry is an in-memory OCI registry backing the push pipeline's
// tests: a blob store keyed by digest, a manifest store keyed by tag, and
// counters tracking how many times each was actually written to, so tests
// can assert a second push writes nothing.
type fakeRegistry struct {
	mu         sync.Mutex
	blobs      map[digest.Digest][]byte
	manifests  map[string][]byte
	uploads    map[string][]byte
	sessionSeq atomic.Int64

	blobWrites     atomic.Int64
	manifestWrites atomic.Int64
}

func newFakeRegistry(t *testing.T, repoPath string) (*httptest.Server, *fakeRegistry) {
	t.Helper()
	reg := &fakeRegistry{
		blobs:     map[digest.Digest][]byte{},
		manifests: map[string][]byte{},
		uploads:   map[string][]byte{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	uploadsPrefix := fmt.Sprintf("/v2/%s/blobs/uploads/", repoPath)
	mux.HandleFunc(uploadsPrefix, func(w http.ResponseWriter, r *http.Request) {
		session := r.URL.Path[len(uploadsPrefix):]

		// A bare POST to the prefix (no session suffix) starts a new upload.
		if session == "" {
			session = strconv.FormatInt(reg.sessionSeq.Add(1), 10)
			reg.mu.Lock()
			reg.uploads[session] = nil
			reg.mu.Unlock()
			w.Header().Set("Location", fmt.Sprintf("%s%s", uploadsPrefix, session))
			w.WriteHeader(http.StatusAccepted)
			return
		}

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		reg.mu.Lock()
		reg.uploads[session] = append(reg.uploads[session], body...)
		accumulated := append([]byte(nil), reg.uploads[session]...)
		reg.mu.Unlock()

		if r.Method == http.MethodPatch {
			w.Header().Set("Location", fmt.Sprintf("%s%s", uploadsPrefix, session))
			w.WriteHeader(http.StatusAccepted)
			return
		}

		// PUT commit: the final digest is given as a query parameter.
		dgst := digest.Digest(r.URL.Query().Get("digest"))
		reg.mu.Lock()
		reg.blobs[dgst] = accumulated
		reg.mu.Unlock()
		reg.blobWrites.Add(1)
		w.Header().Set("Docker-Content-Digest", dgst.String())
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc(fmt.Sprintf("/v2/%s/blobs/", repoPath), func(w http.ResponseWriter, r *http.Request) {
		dgst := digest.Digest(r.URL.Path[len(fmt.Sprintf("/v2/%s/blobs/", repoPath)):])
		reg.mu.Lock()
		stored, ok := reg.blobs[dgst]
		reg.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Docker-Content-Digest", dgst.String())
		w.Header().Set("Content-Length", strconv.Itoa(len(stored)))
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write(stored)
	})
	mux.HandleFunc(fmt.Sprintf("/v2/%s/manifests/", repoPath), func(w http.ResponseWriter, r *http.Request) {
		tag := r.URL.Path[len(fmt.Sprintf("/v2/%s/manifests/", repoPath)):]

		if r.Method == http.MethodPut {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			dgst := digest.FromBytes(body)
			reg.mu.Lock()
			reg.manifests[tag] = body
			reg.mu.Unlock()
			reg.manifestWrites.Add(1)
			w.Header().Set("Docker-Content-Digest", dgst.String())
			w.WriteHeader(http.StatusCreated)
			return
		}

		reg.mu.Lock()
		stored, ok := reg.manifests[tag]
		reg.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		dgst := digest.FromBytes(stored)
		w.Header().Set("Docker-Content-Digest", dgst.String())
		w.Header().Set("Content-Length", strconv.Itoa(len(stored)))
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write(stored)
	})

	srv := httptest.NewServer(mux)
	return srv, reg
}

func hostOf(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Host
}

func testKeyPair(t *testing.T) sign.KeyPair {
	t.Helper()
	kp, err := newKeyPair("self")
	require.NoError(t, err)
	return kp
}

// newKeyPair builds a sign.KeyPair the same way nix-store --generate-
// binary-cache-key would: a random Ed25519 secret under the given key name.
func newKeyPair(name string) (sign.KeyPair, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return sign.KeyPair{}, err
	}
	secretB64 := base64.StdEncoding.EncodeToString(ed25519.NewKeyFromSeed(seed[:]))
	return sign.KeyPairFromSecretKeyString(name + ":" + secretB64)
}

func newPusher(t *testing.T, registryHost, repoPath string, storeDir string) (*push.Pusher, *oracletest.Oracle) {
	t.Helper()
	o := oracletest.New()
	cfg := &push.Config{
		Registry:   registryHost,
		Repository: repoPath,
		NoSSL:      true,
		StoreDir:   storeDir,
		SigningKey: testKeyPair(t),
		Parallel:   2,
	}
	p, err := push.New(context.Background(), cfg, o)
	require.NoError(t, err)
	return p, o
}

func TestPushUploadsAndIsIdempotent(t *testing.T) {
	repoPath := "user/cache"
	srv, reg := newFakeRegistry(t, repoPath)
	defer srv.Close()

	storeDir := "/nix/store"
	p, o := newPusher(t, hostOf(t, srv.URL), repoPath, storeDir)

	storePath := storeDir + "/00000000000000000000000000000000-hello"
	o.Add(oracletest.Path{
		Info: nix.StorePath{
			Path: storePath,
		},
		Content: []byte("hello, nix store content\n"),
	})

	ctx := context.Background()
	summary, err := p.Push(ctx, []string{storePath})
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Failed())
	assert.Equal(t, int64(1), summary.Uploaded())
	assert.Equal(t, int64(0), summary.Skipped())

	firstBlobWrites := reg.blobWrites.Load()
	firstManifestWrites := reg.manifestWrites.Load()
	assert.Greater(t, firstBlobWrites, int64(0))
	assert.Greater(t, firstManifestWrites, int64(0))

	// A second push of the same path should find every object already
	// published and write nothing new.
	summary2, err := p.Push(ctx, []string{storePath})
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary2.Failed())
	assert.Equal(t, int64(0), summary2.Uploaded())
	assert.Equal(t, int64(1), summary2.Skipped())
	assert.Equal(t, firstBlobWrites, reg.blobWrites.Load())
	assert.Equal(t, firstManifestWrites, reg.manifestWrites.Load())
}

func TestPushExcludedBySigningKeyPattern(t *testing.T) {
	repoPath := "user/cache"
	srv, reg := newFakeRegistry(t, repoPath)
	defer srv.Close()

	storeDir := "/nix/store"
	o := oracletest.New()

	upstreamName := "upstream-cache"
	upstreamKey, err := newKeyPair(upstreamName)
	require.NoError(t, err)

	storePath := storeDir + "/00000000000000000000000000000000-already-cached"
	fingerprint := nix.Fingerprint(storeDir, storePath, nix.Hash{}, 0, nil)
	upstreamSig := upstreamKey.Sign([]byte(fingerprint))

	o.Add(oracletest.Path{
		Info: nix.StorePath{
			Path:       storePath,
			Signatures: []string{upstreamSig.String()},
		},
		Content: []byte("already cached elsewhere\n"),
	})

	excluded := regexp.MustCompile("^" + upstreamName + "$")
	cfg := &push.Config{
		Registry:                  hostOf(t, srv.URL),
		Repository:                repoPath,
		NoSSL:                     true,
		StoreDir:                  storeDir,
		SigningKey:                testKeyPair(t),
		ExcludedSigningKeyPattern: excluded,
	}
	p, err := push.New(context.Background(), cfg, o)
	require.NoError(t, err)

	summary, err := p.Push(context.Background(), []string{storePath})
	require.NoError(t, err)
	assert.True(t, summary.OnlyExcluded())
	assert.Equal(t, int64(0), summary.Uploaded())
	assert.Equal(t, int64(0), summary.Failed())
	assert.Equal(t, int64(0), reg.blobWrites.Load())
	assert.Equal(t, int64(0), reg.manifestWrites.Load())
}

func TestPushInitializePublishesCacheInfo(t *testing.T) {
	repoPath := "user/cache"
	srv, reg := newFakeRegistry(t, repoPath)
	defer srv.Close()

	p, _ := newPusher(t, hostOf(t, srv.URL), repoPath, "/nix/store")

	require.NoError(t, p.Initialize(context.Background(), true, 40))
	assert.Equal(t, int64(1), reg.manifestWrites.Load())

	// Re-initializing with identical parameters should change nothing.
	require.NoError(t, p.Initialize(context.Background(), true, 40))
	assert.Equal(t, int64(1), reg.manifestWrites.Load())
}
