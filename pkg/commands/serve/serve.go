// Package serve wires internal/server into a urfave/cli/v3 command.
package serve

import (
	"context"
	"regexp"

	"github.com/urfave/cli/v3"

	internalserver "github.com/linyinfeng/oranc/internal/server"
	"github.com/linyinfeng/oranc/pkg/commands/internal/options"
)

// FlagCategory is the flag category for serve-specific options.
const FlagCategory = "[Serve]"

// DefaultListen is the default bind address.
const DefaultListen = ":8080"

// New returns a serve Command with default option values.
func New() *Command {
	return &Command{
		Registry: options.NewRegistryOptions(),
		Logging:  options.NewLoggingOptions(),

		Listen: DefaultListen,
	}
}

// Command implements "oranc serve".
type Command struct {
	Registry *options.RegistryOptions
	Logging  *options.LoggingOptions

	Listen          string
	Upstreams       []string
	IgnoreUpstreams []string
}

// ToCLI transforms the command into a *cli.Command.
func (c *Command) ToCLI() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the Nix binary cache HTTP surface backed by one or more registries",
		Flags:  c.Flags(),
		Action: c.Run,
	}
}

// Flags returns the []cli.Flag related to current options.
func (c *Command) Flags() []cli.Flag {
	flags := []cli.Flag{}
	flags = append(flags, c.Registry.Flags()...)
	flags = append(flags, c.Logging.Flags()...)
	flags = append(flags, []cli.Flag{
		&cli.StringFlag{
			Name:        "listen",
			Usage:       `address to bind the HTTP server to, e.g. ":8080"`,
			Sources:     cli.EnvVars("ORANC_LISTEN"),
			Destination: &c.Listen,
			Value:       c.Listen,
			Category:    FlagCategory,
		},
		&cli.StringSliceFlag{
			Name:        "upstream",
			Usage:       "conventional Nix cache base URL to probe before falling through to the registry, may be repeated",
			Destination: &c.Upstreams,
			Value:       c.Upstreams,
			Category:    FlagCategory,
		},
		&cli.StringSliceFlag{
			Name:        "ignore-upstream",
			Usage:       "regexp matched against a cache key; a match skips the upstream probe, may be repeated",
			Destination: &c.IgnoreUpstreams,
			Value:       c.IgnoreUpstreams,
			Category:    FlagCategory,
			Validator: func(patterns []string) error {
				for _, p := range patterns {
					if _, err := regexp.Compile(p); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}...)
	return flags
}

// Run is the "oranc serve" action.
func (c *Command) Run(ctx context.Context, _ *cli.Command) error {
	c.Logging.Apply()

	codec, err := c.Registry.Codec()
	if err != nil {
		return err
	}

	ignorePatterns := make([]*regexp.Regexp, 0, len(c.IgnoreUpstreams))
	for _, p := range c.IgnoreUpstreams {
		ignorePatterns = append(ignorePatterns, regexp.MustCompile(p))
	}

	cfg := &internalserver.Config{
		Listen:                 c.Listen,
		NoSSL:                  c.Registry.NoSSL,
		Upstreams:              c.Upstreams,
		IgnoreUpstreamPatterns: ignorePatterns,
		AuthProvider:           c.Registry.AuthProvider(),
		Codec:                  codec,
	}

	return internalserver.New(cfg).Serve(ctx)
}
