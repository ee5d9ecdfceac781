// Package push implements the pipeline that streams Nix store paths into an
// OCI registry: NAR serialization, compression, content hashing, blob
// upload and narinfo/manifest publication.
package push

import (
	"regexp"

	"github.com/linyinfeng/oranc/internal/compression"
	"github.com/linyinfeng/oranc/internal/nix/sign"
	"github.com/linyinfeng/oranc/internal/tagcodec"
	"github.com/linyinfeng/oranc/pkg/ocispec"
	"github.com/linyinfeng/oranc/pkg/ocispec/distribution/remote"
)

// Config holds the options a Pusher is constructed from.
type Config struct {
	// Registry is the OCI registry host, e.g. "registry.example.com".
	Registry string
	// Repository is the repository path within the registry.
	Repository string
	// NoSSL makes the pusher talk plain HTTP to Registry.
	NoSSL bool

	// AuthProvider supplies registry credentials, keyed by host.
	AuthProvider remote.AuthProvider
	// Codec encodes Nix cache keys into OCI reference tags. If nil,
	// tagcodec.New() with no fallbacks is used.
	Codec *tagcodec.Codec

	// StoreDir is the Nix store directory store paths live under. Defaults
	// to "/nix/store".
	StoreDir string
	// Compression selects the layer compression algorithm. Defaults to
	// compression.XZ.
	Compression compression.Algorithm
	// Parallel bounds the number of store paths pushed concurrently.
	// Defaults to 1.
	Parallel int

	// SigningKey signs every narinfo's fingerprint.
	SigningKey sign.KeyPair
	// AlreadySigned allows pushing a path already signed by a key matching
	// ExcludedSigningKeyPattern, verifying the recomputed signature matches
	// the recorded one rather than skipping the path outright.
	AlreadySigned bool
	// ExcludedSigningKeyPattern, when set, marks a path as already handled
	// by another cache if one of its recorded signatures was produced by a
	// matching key name — the path is skipped unless AlreadySigned is set.
	ExcludedSigningKeyPattern *regexp.Regexp

	// LayerMediaType overrides the media type given to layer blobs.
	// Defaults to ocispec.DefaultMediaType.
	LayerMediaType string
	// NoClosure disables closure expansion: only the exact paths passed to
	// Push are pushed, not their references.
	NoClosure bool
}

func (c *Config) codec() *tagcodec.Codec {
	if c.Codec != nil {
		return c.Codec
	}
	return tagcodec.New()
}

func (c *Config) storeDir() string {
	if c.StoreDir != "" {
		return c.StoreDir
	}
	return "/nix/store"
}

func (c *Config) compression() compression.Algorithm {
	if c.Compression != "" {
		return c.Compression
	}
	return compression.XZ
}

func (c *Config) parallel() int {
	if c.Parallel > 0 {
		return c.Parallel
	}
	return 1
}

func (c *Config) layerMediaType() string {
	if c.LayerMediaType != "" {
		return c.LayerMediaType
	}
	return ocispec.DefaultMediaType
}
