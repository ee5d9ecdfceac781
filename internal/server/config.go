package server

import (
	"regexp"

	"github.com/linyinfeng/oranc/internal/tagcodec"
	"github.com/linyinfeng/oranc/pkg/ocispec/distribution/remote"
)

// Config holds the options a [Server] is constructed from.
type Config struct {
	// Listen is the "host:port" address the server binds to.
	Listen string

	// NoSSL makes the server assume "http" rather than "https" for a
	// registry host that does not itself specify a scheme.
	NoSSL bool

	// Upstreams are conventional Nix cache base URLs probed in parallel
	// before falling through to the registry.
	Upstreams []string

	// IgnoreUpstreamPatterns lists regexes matched against the cache key;
	// a match skips the upstream probe entirely and goes straight to the
	// registry (e.g. "nix-cache-info", which upstreams are discouraged).
	IgnoreUpstreamPatterns []*regexp.Regexp

	// AuthProvider supplies registry credentials, keyed by host.
	AuthProvider remote.AuthProvider

	// Codec encodes/decodes Nix cache keys into OCI reference tags. If
	// nil, tagcodec.New() with no fallbacks is used.
	Codec *tagcodec.Codec
}

func (c *Config) codec() *tagcodec.Codec {
	if c.Codec != nil {
		return c.Codec
	}
	return tagcodec.New()
}

func (c *Config) ignoresUpstream(key string) bool {
	for _, pattern := range c.IgnoreUpstreamPatterns {
		if pattern.MatchString(key) {
			return true
		}
	}
	return false
}
