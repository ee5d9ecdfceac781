// Package oracle defines the valid-path oracle: the push pipeline's read-only
// view of the local Nix store database. "Opaque" does not mean unimplemented
// here — this package also ships the production SQLite-backed implementation
// (oracle/sqlite) and an in-memory test stub (oracle/oracletest), both
// satisfying the same interface so the pipeline never depends on one
// concretely.
package oracle

import (
	"context"
	"io"

	"github.com/linyinfeng/oranc/internal/nix"
)

// Oracle answers questions about store paths recorded in the local Nix
// database, without ever writing to it. storePath is always the absolute
// path form recorded in nix.StorePath.Path (e.g. "/nix/store/<hash>-<name>"),
// consistently across every method including NarStream.
type Oracle interface {
	// PathInfo returns the recorded hashes, size, references, deriver, CA and
	// signatures for storePath. It returns errdefs.ErrOracleMissing if
	// storePath has no record.
	PathInfo(ctx context.Context, storePath string) (nix.StorePath, error)

	// NarStream returns a lazy, canonical NAR serialization of storePath. The
	// caller must Close the returned reader.
	NarStream(ctx context.Context, storePath string) (io.ReadCloser, error)

	// Closure returns the transitive reference closure of storePath,
	// including storePath itself exactly once.
	Closure(ctx context.Context, storePath string) ([]nix.StorePath, error)

	// IsValid reports whether storePath is a valid, registered path.
	IsValid(ctx context.Context, storePath string) (bool, error)
}
