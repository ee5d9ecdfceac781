package server

import (
	"errors"
	"net/http"

	"github.com/linyinfeng/oranc/pkg/errdefs"
)

// statusTable maps a sentinel from the package's error taxonomy to the HTTP
// status the server reports for it. Checked in order with errors.Is, most
// specific first.
var statusTable = []struct {
	sentinel error
	status   int
}{
	{errdefs.ErrBadTag, http.StatusNotFound},
	{errdefs.ErrUpstreamNotFound, http.StatusNotFound},
	{errdefs.ErrNotFound, http.StatusNotFound},
	{errdefs.ErrUnauthorized, http.StatusUnauthorized},
	{errdefs.ErrRegistryTransient, http.StatusServiceUnavailable},
	{errdefs.ErrRegistryPermanent, http.StatusBadGateway},
	{errdefs.ErrDigestMismatch, http.StatusBadGateway},
}

// statusForError maps err to the HTTP status code the server should answer
// with, defaulting to 502 for any registry-side error not otherwise
// classified.
func statusForError(err error) int {
	for _, entry := range statusTable {
		if errors.Is(err, entry.sentinel) {
			return entry.status
		}
	}
	return http.StatusBadGateway
}

// retryable reports whether status warrants a Retry-After header, per the
// transient-upstream-failure case in the error handling design.
func retryable(status int) bool {
	return status == http.StatusServiceUnavailable
}
