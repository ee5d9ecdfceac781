package nix

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"strings"
)

// Hash is a Nix-style algorithm-tagged hash, rendered as "sha256:<base32>".
// oranc only ever produces SHA-256 hashes, matching Nix's own default.
type Hash struct {
	Algorithm string
	Base32    string
}

// HashData computes the SHA-256 Nix-base32 hash of data.
func HashData(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash{Algorithm: "sha256", Base32: EncodeBase32(sum[:])}
}

// String renders the hash in Nix's "algo:base32" form, e.g. used in FileHash
// and NarHash narinfo fields.
func (h Hash) String() string {
	return fmt.Sprintf("%s:%s", h.Algorithm, h.Base32)
}

// ParseHash parses a Nix "algo:base32" hash string, as stored in the store
// database's ValidPaths.hash column.
func ParseHash(s string) (Hash, error) {
	algo, b32, ok := strings.Cut(s, ":")
	if !ok || algo == "" || b32 == "" {
		return Hash{}, fmt.Errorf("nix: invalid hash %q: want \"algo:base32\"", s)
	}
	return Hash{Algorithm: algo, Base32: b32}, nil
}

// StreamHasher accumulates a SHA-256 digest and byte count as data flows
// through it, so a pipeline stage can hash a stream without buffering it.
// It implements io.Writer so it can be used as the sink of an io.TeeReader.
type StreamHasher struct {
	h    hash.Hash
	size int64
}

// NewStreamHasher returns a StreamHasher ready to accumulate a SHA-256
// digest.
func NewStreamHasher() *StreamHasher {
	return &StreamHasher{h: sha256.New()}
}

func (s *StreamHasher) Write(p []byte) (int, error) {
	n, err := s.h.Write(p)
	s.size += int64(n)
	return n, err
}

// Hash returns the Nix-format hash and byte count accumulated so far. Call
// it only once the source stream has been fully consumed.
func (s *StreamHasher) Hash() (Hash, int64) {
	sum := s.h.Sum(nil)
	return Hash{Algorithm: "sha256", Base32: EncodeBase32(sum)}, s.size
}
