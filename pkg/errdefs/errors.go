package errdefs

import "errors"

var (
	// ErrNotFound signals that the requested object doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidParameter signals that the user input is invalid.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrConflict signals that some internal state conflicts with the requested action
	// and can't be performed. A change in state should be able to clear this error.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized is used to signify that the user is not authorized to perform a
	// specific action
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnauthenticated signals a registry 401: the request carried no
	// credentials, or the credentials it carried were rejected. Distinct
	// from ErrUnauthorized, which signals a recognized identity lacking
	// permission for the action.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnavailable signals that the requested action/subsystem is not available.
	ErrUnavailable = errors.New("unavailable")

	// ErrForbidden signals that the requested action cannot be performed under any circumstances.
	// When a ErrForbidden is returned, the caller should never retry the action.
	ErrForbidden = errors.New("forbidden")

	// ErrSystem signals that some internal error occurred.
	// An example of this would be a failed mount request.
	ErrSystem = errors.New("system error")

	// ErrNotImplemented signals that the requested action/feature is not implemented on the system as configured.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnknown signals that the kind of error that occurred is not known.
	ErrUnknown = errors.New("unknown error")

	// ErrCanceled signals that the action was canceled.
	ErrCanceled = errors.New("canceled")

	// ErrDeadlineExceeded signals that the deadline was reached before the action completed.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrDataLoss indicates that data was lost or there is data corruption.
	ErrDataLoss = errors.New("data loss")

	// ErrAlreadyExists signals that resources is already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnsupported indicates that the action was not supported.
	ErrUnsupported = errors.New("unsupported")

	// ErrUnsupportedVersion indicates that target version was not supported.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrKeyTooLong signals that a cache key's tag-codec encoding would exceed
	// the OCI tag grammar's 128 character limit.
	ErrKeyTooLong = errors.New("encoded tag too long")

	// ErrRegistryTransient signals a registry-side error that is safe to retry
	// with backoff (5xx, 429, network errors).
	ErrRegistryTransient = errors.New("transient registry error")

	// ErrRegistryPermanent signals a registry-side 4xx error (other than 429)
	// that will not succeed on retry.
	ErrRegistryPermanent = errors.New("permanent registry error")

	// ErrDigestMismatch signals that a computed content digest did not match
	// the digest returned or expected by the registry.
	ErrDigestMismatch = errors.New("digest mismatch")

	// ErrUpstreamNotFound signals a 404 from a configured upstream cache,
	// prompting fall-through to the registry.
	ErrUpstreamNotFound = errors.New("not found upstream")

	// ErrSignatureMismatch signals that a recomputed narinfo signature differs
	// from a pre-existing one when --already-signed is set.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrOracleMissing signals that the valid-path oracle has no record of a
	// requested store path.
	ErrOracleMissing = errors.New("store path not found in oracle")

	// ErrBadTag signals that a tag could not be decoded by the primary codec
	// or any registered fallback.
	ErrBadTag = errors.New("tag could not be decoded")
)
