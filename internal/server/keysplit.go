// Package server implements the Nix binary cache HTTP surface backed by an
// OCI registry: it splits an inbound request path into a registry host, a
// repository path, and a Nix cache key, then resolves the key either from a
// configured upstream cache or by translating it into OCI registry calls.
package server

import (
	"fmt"
	"regexp"
	"strings"
)

// keyStartPattern matches the first URL segment that belongs to the Nix
// cache key rather than to the repository path: "nix-cache-info", "nar",
// "realisations", or a "<32-char base32>.narinfo" file name.
var keyStartPattern = regexp.MustCompile(`^(nix-cache-info|nar|realisations|[0-9a-df-np-sv-z]{32}\.narinfo)$`)

// SplitPath parses a request path of the form
// "{registry}/{repository-segments}/{key-segments}" into its three parts.
// The registry is the first segment; the key begins at the first later
// segment matching keyStartPattern and extends to the end of the path.
func SplitPath(path string) (registryHost, repositoryPath, key string, err error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" {
		return "", "", "", fmt.Errorf("server: path %q has no registry segment", path)
	}
	registryHost = segments[0]

	keyStart := -1
	for i := 1; i < len(segments); i++ {
		if keyStartPattern.MatchString(segments[i]) {
			keyStart = i
			break
		}
	}
	if keyStart == -1 {
		return "", "", "", fmt.Errorf("server: path %q has no recognizable cache key segment", path)
	}
	if keyStart == 1 {
		return "", "", "", fmt.Errorf("server: path %q has no repository segment before the key", path)
	}

	repositoryPath = strings.Join(segments[1:keyStart], "/")
	key = strings.Join(segments[keyStart:], "/")
	return registryHost, repositoryPath, key, nil
}
