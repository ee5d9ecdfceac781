package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linyinfeng/oranc/pkg/errdefs"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"bad tag", errdefs.ErrBadTag, http.StatusNotFound},
		{"not found", errdefs.ErrNotFound, http.StatusNotFound},
		{"upstream not found", errdefs.ErrUpstreamNotFound, http.StatusNotFound},
		{"transient", errdefs.ErrRegistryTransient, http.StatusServiceUnavailable},
		{"permanent", errdefs.ErrRegistryPermanent, http.StatusBadGateway},
		{"digest mismatch", errdefs.ErrDigestMismatch, http.StatusBadGateway},
		{"unauthorized", errdefs.ErrUnauthorized, http.StatusUnauthorized},
		{"unclassified", assertNewErr(), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusForError(tc.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(http.StatusServiceUnavailable))
	assert.False(t, retryable(http.StatusNotFound))
	assert.False(t, retryable(http.StatusBadGateway))
}

func assertNewErr() error {
	return errdefs.Newf(errdefs.ErrUnknown, "boom")
}
