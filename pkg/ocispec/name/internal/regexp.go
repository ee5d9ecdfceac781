// Package internal holds the anchored grammar regular expressions shared by
// the name package, following the grammar documented in ../doc.go.
package internal

import "regexp"

var (
	// AnchoredDomainRegexp matches a registry domain: a dotted DNS name or a
	// bracketed IPv6 literal, optionally followed by ":<port>".
	AnchoredDomainRegexp = regexp.MustCompile(
		`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?)*` +
			`|\[[a-fA-F0-9:]+\])(?::[0-9]+)?$`,
	)

	// AnchoredRemoteNameRegexp matches a repository path: one or more
	// lowercase alphanumeric path components, separated by "/", each of
	// which may contain "._-" separators between alphanumeric runs.
	AnchoredRemoteNameRegexp = regexp.MustCompile(
		`^[a-z0-9]+(?:(?:[._]|__|[-]+)[a-z0-9]+)*(?:/[a-z0-9]+(?:(?:[._]|__|[-]+)[a-z0-9]+)*)*$`,
	)

	// AnchoredTagRegexp matches a valid tag.
	AnchoredTagRegexp = regexp.MustCompile(`^[\w][\w.-]{0,127}$`)

	// AnchoredDigestRegexp matches a valid "<algorithm>:<hex>" digest.
	AnchoredDigestRegexp = regexp.MustCompile(
		`^[A-Za-z][A-Za-z0-9]*(?:[-_+.][A-Za-z][A-Za-z0-9]*)*:[a-fA-F0-9]{32,}$`,
	)

	// AnchoredIdentifierRegexp matches a bare 64-character hex identifier,
	// rejected as a repository name since it would be ambiguous with an
	// image ID.
	AnchoredIdentifierRegexp = regexp.MustCompile(`^[a-f0-9]{64}$`)
)
