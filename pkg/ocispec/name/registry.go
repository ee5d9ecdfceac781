package name

import "strings"

func init() {
	RegisterScheme("http")
	RegisterScheme("https")
}

type registry struct {
	scheme string
	host   string
}

func (r registry) String() string {
	return r.host
}

// Scheme returns the scheme ("http" or "https") of the registry, or "" if
// it was not given explicitly and could not be guessed from the hostname.
func (r registry) Scheme() string {
	return r.scheme
}

// Hostname returns the hostname (with optional ":<port>") of the registry.
func (r registry) Hostname() string {
	return r.host
}

// WithScheme returns a copy of r with the scheme overwritten.
func (r registry) WithScheme(scheme string) Registry {
	r.scheme = scheme
	return r
}

// SplitScheme splits "<scheme>://<rest>" into its scheme and remainder. If
// name carries no scheme, scheme is returned empty and rest is name unchanged.
func SplitScheme(name string) (scheme string, rest string) {
	if i := strings.Index(name, "://"); i != -1 {
		return name[:i], name[i+3:]
	}
	return "", name
}

// isDockerLegacyDomain reports whether hostname is one of the legacy,
// user-facing aliases for Docker Hub, returning the canonical registry
// hostname it maps to.
func isDockerLegacyDomain(hostname string) (string, bool) {
	switch hostname {
	case DockerIOHostname, DockerIndexHostname:
		return DefaultRegistry, true
	default:
		return "", false
	}
}

// isInsecureLocalHost reports whether hostname is a loopback address or
// "localhost[:port]", for which the http scheme is assumed by default.
func isInsecureLocalHost(hostname string) bool {
	host := hostname
	if i := strings.LastIndex(hostname, ":"); i != -1 {
		host = hostname[:i]
	}
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func newRegistry(name string, _ options) (registry, error) {
	var zero registry

	scheme, host := SplitScheme(name)
	if host == "" {
		host = DefaultRegistry
	}
	if scheme == "" && isInsecureLocalHost(host) {
		scheme = "http"
	}

	reg := registry{scheme: scheme, host: host}
	if err := ValidateRegistry(reg); err != nil {
		return zero, err
	}
	return reg, nil
}
