package nix

import (
	"fmt"
	"strings"
)

// StorePath is a resolved entry from the local Nix store, as reported by the
// valid-path oracle: a store path together with everything the push pipeline
// needs to build its NAR and narinfo.
type StorePath struct {
	// Path is the absolute store path, e.g. "/nix/store/<hash>-<name>".
	Path string
	// NarHash is the SHA-256 hash of the path's canonical NAR serialization,
	// if already known (the oracle's database caches it; it is recomputed by
	// the push pipeline regardless so that a stale DB entry never ships a
	// mismatched narinfo).
	NarHash Hash
	// NarSize is the byte length of the canonical NAR serialization.
	NarSize int64
	// References are the absolute store paths this path references,
	// including a possible self-reference.
	References []string
	// Deriver is the absolute store path of the derivation that built this
	// path, if known.
	Deriver string
	// CA is the content-addressing field for content-addressed paths.
	CA string
	// Signatures are the "name:base64sig" signatures already recorded for
	// this path.
	Signatures []string
}

// Hash returns the store path's 32-character base-32 hash component, e.g.
// "s66mzxpvicwk07gjbjfw9izjfa7m175w" from
// "/nix/store/s66mzxpvicwk07gjbjfw9izjfa7m175w-firefox-1.0".
func (s StorePath) Hash(storeDir string) (string, error) {
	stripped, err := StripStoreDir(storeDir, s.Path)
	if err != nil {
		return "", err
	}
	idx := strings.IndexByte(stripped, '-')
	if idx <= 0 {
		return "", fmt.Errorf("nix: malformed store path %q", s.Path)
	}
	return stripped[:idx], nil
}

// Name returns the store path's name component (the part after "<hash>-"),
// e.g. "firefox-1.0".
func (s StorePath) Name(storeDir string) (string, error) {
	stripped, err := StripStoreDir(storeDir, s.Path)
	if err != nil {
		return "", err
	}
	idx := strings.IndexByte(stripped, '-')
	if idx <= 0 || idx+1 > len(stripped) {
		return "", fmt.Errorf("nix: malformed store path %q", s.Path)
	}
	return stripped[idx+1:], nil
}

// StripStoreDir removes the "<storeDir>/" prefix from an absolute store
// path, returning an error if the path does not live under storeDir.
func StripStoreDir(storeDir, path string) (string, error) {
	prefix := storeDir + "/"
	if !strings.HasPrefix(path, prefix) {
		return "", fmt.Errorf("nix: path %q is not under store directory %q", path, storeDir)
	}
	return strings.TrimPrefix(path, prefix), nil
}
