package push

import (
	"fmt"
	"sync/atomic"
)

// Summary tallies the outcome of a push run.
type Summary struct {
	uploaded atomic.Int64
	skipped  atomic.Int64
	excluded atomic.Int64
	failed   atomic.Int64
}

func (s *Summary) recordUploaded() { s.uploaded.Add(1) }
func (s *Summary) recordSkipped()  { s.skipped.Add(1) }
func (s *Summary) recordExcluded() { s.excluded.Add(1) }
func (s *Summary) recordFailed()   { s.failed.Add(1) }

// Uploaded returns the number of paths for which at least one new blob or
// manifest was actually written by this run.
func (s *Summary) Uploaded() int64 { return s.uploaded.Load() }

// Skipped returns the number of paths whose narinfo and NAR objects were
// already present in the destination repository with matching digests.
func (s *Summary) Skipped() int64 { return s.skipped.Load() }

// Excluded returns the number of paths skipped because they already carry a
// signature from a key matching ExcludedSigningKeyPattern.
func (s *Summary) Excluded() int64 { return s.excluded.Load() }

// Failed returns the number of paths that errored out of the pipeline.
func (s *Summary) Failed() int64 { return s.failed.Load() }

// OnlyExcluded reports whether every requested path was skipped by signing-
// key policy and nothing was uploaded or failed — the condition the CLI
// maps to a dedicated "nothing to push under this policy" exit code.
func (s *Summary) OnlyExcluded() bool {
	return s.Excluded() > 0 && s.Uploaded() == 0 && s.Failed() == 0
}

// String renders the summary as "uploaded=<n> skipped=<n> failed=<n>",
// folding Excluded into Skipped for display purposes.
func (s *Summary) String() string {
	return fmt.Sprintf("uploaded=%d skipped=%d failed=%d", s.Uploaded(), s.Skipped()+s.Excluded(), s.Failed())
}
