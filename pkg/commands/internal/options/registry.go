package options

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/linyinfeng/oranc/internal/tagcodec"
	"github.com/linyinfeng/oranc/pkg/errdefs"
	"github.com/linyinfeng/oranc/pkg/ocispec/authn"
	"github.com/linyinfeng/oranc/pkg/ocispec/distribution/remote"
)

// RegistryFlagCategory is the flag category shared by every command talking
// to the destination OCI registry.
const RegistryFlagCategory = "[Registry]"

// NewRegistryOptions returns a new *RegistryOptions with default values.
func NewRegistryOptions() *RegistryOptions {
	return &RegistryOptions{}
}

// RegistryOptions carries the connection details every command that talks to
// the destination registry needs: host, repository, transport, credentials
// and the tag codec's fallback decoder chain.
type RegistryOptions struct {
	// Registry is the OCI registry host, e.g. "registry.example.com".
	Registry string
	// Repository is the repository path within the registry.
	Repository string
	// NoSSL makes the client talk plain HTTP to Registry.
	NoSSL bool
	// Username and Password supply HTTP Basic credentials for the
	// registry's bearer-token exchange.
	Username string
	Password string
	// FallbackEncodings names legacy tag-decoding schemes to accept in
	// addition to the primary codec. Only "base32-dnssec" is recognized.
	FallbackEncodings []string
}

// Flags returns the []cli.Flag related to current options.
func (o *RegistryOptions) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "registry",
			Usage:       "OCI registry host",
			Sources:     cli.EnvVars("ORANC_REGISTRY"),
			Destination: &o.Registry,
			Value:       o.Registry,
			Category:    RegistryFlagCategory,
			Persistent:  true,
		},
		&cli.StringFlag{
			Name:        "repository",
			Usage:       "repository path within the registry",
			Sources:     cli.EnvVars("ORANC_REPOSITORY"),
			Destination: &o.Repository,
			Value:       o.Repository,
			Category:    RegistryFlagCategory,
			Persistent:  true,
		},
		&cli.BoolFlag{
			Name:        "no-ssl",
			Usage:       "talk plain HTTP to the registry",
			Sources:     cli.EnvVars("ORANC_NO_SSL"),
			Destination: &o.NoSSL,
			Value:       o.NoSSL,
			Category:    RegistryFlagCategory,
			Persistent:  true,
		},
		&cli.StringFlag{
			Name:        "username",
			Usage:       "HTTP Basic username for the registry token exchange",
			Sources:     cli.EnvVars("ORANC_USERNAME"),
			Destination: &o.Username,
			Value:       o.Username,
			Category:    RegistryFlagCategory,
			Persistent:  true,
		},
		&cli.StringFlag{
			Name:        "password",
			Usage:       "HTTP Basic password for the registry token exchange",
			Sources:     cli.EnvVars("ORANC_PASSWORD"),
			Destination: &o.Password,
			Value:       o.Password,
			Category:    RegistryFlagCategory,
			Persistent:  true,
		},
		&cli.StringSliceFlag{
			Name:        "fallback-encodings",
			Usage:       `legacy tag decoders to accept in addition to the primary codec, e.g. "base32-dnssec"`,
			Destination: &o.FallbackEncodings,
			Value:       o.FallbackEncodings,
			Category:    RegistryFlagCategory,
			Persistent:  true,
		},
	}
}

// Validate reports a usage error if a mandatory connection field is unset.
func (o *RegistryOptions) Validate() error {
	if o.Registry == "" {
		return errdefs.Newf(errdefs.ErrInvalidParameter, "--registry is required")
	}
	if o.Repository == "" {
		return errdefs.Newf(errdefs.ErrInvalidParameter, "--repository is required")
	}
	return nil
}

// AuthProvider returns a remote.AuthProvider supplying Username/Password to
// every host, or nil if no credentials were configured.
func (o *RegistryOptions) AuthProvider() remote.AuthProvider {
	if o.Username == "" && o.Password == "" {
		return nil
	}
	return func(_ context.Context, _ string) authn.AuthConfig {
		return authn.AuthConfig{Username: o.Username, Password: o.Password}
	}
}

// Codec builds the tag codec named by FallbackEncodings.
func (o *RegistryOptions) Codec() (*tagcodec.Codec, error) {
	var fallbacks []tagcodec.FallbackDecoder
	for _, name := range o.FallbackEncodings {
		switch name {
		case "base32-dnssec":
			fallbacks = append(fallbacks, tagcodec.Base32DNSSECFallback)
		default:
			return nil, errdefs.Newf(errdefs.ErrInvalidParameter, "unknown fallback encoding %q", name)
		}
	}
	return tagcodec.New(fallbacks...), nil
}
