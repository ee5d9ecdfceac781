package remote_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/opencontainers/go-digest"
	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linyinfeng/oranc/pkg/errdefs"
	"github.com/linyinfeng/oranc/pkg/ocispec/authn"
	"github.com/linyinfeng/oranc/pkg/ocispec/cas"
	"github.com/linyinfeng/oranc/pkg/ocispec/distribution/remote"
)

func newTestRepository(t *testing.T, handler http.Handler) (string, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	return srv.URL, srv.Close
}

func TestBlobStatFetchPushDelete(t *testing.T) {
	content := []byte("hello blob content")
	dgst := digest.FromBytes(content)

	blobs := map[digest.Digest][]byte{}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/test/repo/blobs/uploads/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/v2/test/repo/blobs/uploads/session-1")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/v2/test/repo/blobs/uploads/session-1", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if r.Method == http.MethodPatch {
			blobs[dgst] = append(blobs[dgst], body...)
			w.Header().Set("Location", "/v2/test/repo/blobs/uploads/session-1")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		// PUT commit
		blobs[dgst] = append(blobs[dgst], body...)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/v2/test/repo/blobs/"+dgst.String(), func(w http.ResponseWriter, r *http.Request) {
		stored, ok := blobs[dgst]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Docker-Content-Digest", dgst.String())
		w.Header().Set("Content-Length", strconv.Itoa(len(stored)))
		if r.Method == http.MethodDelete {
			delete(blobs, dgst)
			w.WriteHeader(http.StatusAccepted)
			return
		}
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write(stored)
	})
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	url, closeFn := newTestRepository(t, mux)
	defer closeFn()

	ctx := context.Background()
	repo, err := remote.NewRepositoryWithContext(ctx, url+"/test/repo")
	require.NoError(t, err)

	desc := imgspecv1.Descriptor{
		MediaType: "application/octet-stream",
		Digest:    dgst,
		Size:      int64(len(content)),
	}

	require.NoError(t, repo.Blobs().Push(ctx, cas.NewReader(newReader(content), desc)))

	exists, err := repo.Blobs().Exists(ctx, desc)
	require.NoError(t, err)
	assert.True(t, exists)

	stat, err := repo.Blobs().Stat(ctx, dgst.String())
	require.NoError(t, err)
	assert.Equal(t, dgst, stat.Digest)

	rc, err := repo.Blobs().Fetch(ctx, desc)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, content, got)

	require.NoError(t, repo.Blobs().Delete(ctx, desc))
	_, err = repo.Blobs().Stat(ctx, dgst.String())
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestParseChallengeAndScopeIntegration(t *testing.T) {
	challenge := authn.ParseChallenge(`Bearer realm="https://auth.example.io/token",service="registry.example.io"`)
	assert.Equal(t, authn.SchemeBearer, challenge.Scheme)
	assert.Equal(t, "https://auth.example.io/token", challenge.Parameters["realm"])

	scope := authn.RepositoryScope("library/hello-world", authn.ActionPull, authn.ActionPush)
	assert.Equal(t, "repository:library/hello-world:pull,push", scope)
}

func newReader(b []byte) io.Reader {
	return &sliceReader{data: b}
}

type sliceReader struct {
	data []byte
	pos  int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
