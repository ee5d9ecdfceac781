// Package push wires internal/push into a urfave/cli/v3 command tree.
package push

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"

	"github.com/urfave/cli/v3"

	"github.com/linyinfeng/oranc/internal/compression"
	"github.com/linyinfeng/oranc/internal/nix/sign"
	"github.com/linyinfeng/oranc/internal/oracle/sqlite"
	internalpush "github.com/linyinfeng/oranc/internal/push"
	"github.com/linyinfeng/oranc/pkg/cmd"
	"github.com/linyinfeng/oranc/pkg/cmdhelper"
	"github.com/linyinfeng/oranc/pkg/commands/internal/options"
	"github.com/linyinfeng/oranc/pkg/errdefs"
	"github.com/linyinfeng/oranc/pkg/xlog"
)

// FlagCategory is the flag category for push-specific options.
const FlagCategory = "[Push]"

// DefaultDBPath is the default location of the Nix valid-path database.
const DefaultDBPath = "/nix/var/nix/db/db.sqlite"

// New returns a push Command with default option values.
func New() *Command {
	return &Command{
		Registry: options.NewRegistryOptions(),
		Logging:  options.NewLoggingOptions(),

		DBPath:                    DefaultDBPath,
		StoreDir:                  "/nix/store",
		Compression:               string(compression.XZ),
		Parallel:                  1,
		ExcludedSigningKeyPattern: "",
	}
}

// Command implements "oranc push" and its "initialize" subcommand.
type Command struct {
	Registry *options.RegistryOptions
	Logging  *options.LoggingOptions

	DBPath                    string
	StoreDir                  string
	SigningKey                string
	Compression               string
	Parallel                  int64
	AlreadySigned             bool
	ExcludedSigningKeyPattern string
	AllowImmutableDB          bool
	NoClosure                 bool
	LayerMediaType            string

	// WantMassQuery and Priority configure "push initialize".
	WantMassQuery bool
	Priority      int64
}

// ToCLI transforms the command into a *cli.Command.
func (c *Command) ToCLI() *cli.Command {
	return &cli.Command{
		Name:  "push",
		Usage: "Push Nix store paths into the registry",
		UsageText: `oranc push --registry <host> --repository <path> [path ...]

Store paths are taken from the command's arguments, or read one per line
from standard input if none are given.`,
		Flags:  c.Flags(),
		Before: cli.BeforeFunc(c.validate),
		Action: c.Run,
		Commands: []*cli.Command{
			c.initializeCommand(),
		},
	}
}

// Flags returns the []cli.Flag related to current options.
func (c *Command) Flags() []cli.Flag {
	flags := []cli.Flag{}
	flags = append(flags, c.Registry.Flags()...)
	flags = append(flags, c.Logging.Flags()...)
	flags = append(flags, []cli.Flag{
		&cli.StringFlag{
			Name:        "db-path",
			Usage:       "path to the Nix valid-path database",
			Sources:     cli.EnvVars("ORANC_DB_PATH"),
			Destination: &c.DBPath,
			Value:       c.DBPath,
			Category:    FlagCategory,
		},
		&cli.StringFlag{
			Name:        "store-dir",
			Usage:       "Nix store directory",
			Sources:     cli.EnvVars("ORANC_STORE_DIR"),
			Destination: &c.StoreDir,
			Value:       c.StoreDir,
			Category:    FlagCategory,
		},
		&cli.StringFlag{
			Name:        "signing-key",
			Usage:       `Nix-format signing key, "name:<base64-secret>"`,
			Sources:     cli.EnvVars("ORANC_SIGNING_KEY"),
			Destination: &c.SigningKey,
			Value:       c.SigningKey,
			Category:    FlagCategory,
		},
		&cli.StringFlag{
			Name:        "compression",
			Usage:       `layer compression algorithm, one of ["xz", "zstd", "none"]`,
			Destination: &c.Compression,
			Value:       c.Compression,
			Category:    FlagCategory,
			Validator: func(s string) error {
				switch compression.Algorithm(s) {
				case compression.XZ, compression.Zstd, compression.Identity:
					return nil
				default:
					return fmt.Errorf("invalid compression algorithm %q", s)
				}
			},
		},
		&cli.IntFlag{
			Name:        "parallel",
			Usage:       "number of store paths pushed concurrently",
			Destination: &c.Parallel,
			Value:       c.Parallel,
			Category:    FlagCategory,
		},
		&cli.BoolFlag{
			Name:        "already-signed",
			Usage:       "allow pushing a path already signed by a key matching --excluded-signing-key-pattern",
			Destination: &c.AlreadySigned,
			Value:       c.AlreadySigned,
			Category:    FlagCategory,
		},
		&cli.StringFlag{
			Name:        "excluded-signing-key-pattern",
			Usage:       "skip paths already signed by a key whose name matches this regexp",
			Destination: &c.ExcludedSigningKeyPattern,
			Value:       c.ExcludedSigningKeyPattern,
			Category:    FlagCategory,
			Validator: func(s string) error {
				if s == "" {
					return nil
				}
				_, err := regexp.Compile(s)
				return err
			},
		},
		&cli.BoolFlag{
			Name:        "allow-immutable-db",
			Usage:       "open the valid-path database in immutable mode when the process cannot write to its directory",
			Destination: &c.AllowImmutableDB,
			Value:       c.AllowImmutableDB,
			Category:    FlagCategory,
		},
		&cli.BoolFlag{
			Name:        "no-closure",
			Usage:       "push only the exact paths given, not their reference closure",
			Destination: &c.NoClosure,
			Value:       c.NoClosure,
			Category:    FlagCategory,
		},
		&cli.StringFlag{
			Name:        "layer-media-type",
			Usage:       "media type given to layer blobs",
			Destination: &c.LayerMediaType,
			Value:       c.LayerMediaType,
			Category:    FlagCategory,
		},
	}...)
	return flags
}

func (c *Command) validate(_ context.Context, _ *cli.Command) error {
	return c.Registry.Validate()
}

// Run is the "oranc push" action.
func (c *Command) Run(ctx context.Context, cmd *cli.Command) error {
	c.Logging.Apply()

	pusher, closeOracle, err := c.newPusher(ctx)
	if err != nil {
		return err
	}
	defer closeOracle()

	targets, err := c.targets(cmd)
	if err != nil {
		return err
	}

	summary, err := pusher.Push(ctx, targets)
	if err != nil {
		return err
	}
	cmdhelper.Fprintf(cmd.Writer, "%s\n", summary)

	if summary.OnlyExcluded() {
		return cli.Exit("push skipped: every requested path is excluded by signing-key policy", exitPushSkipped)
	}
	if summary.Failed() > 0 {
		return fmt.Errorf("push: %d path(s) failed", summary.Failed())
	}
	return nil
}

// exitPushSkipped is the exit code for "push skipped due to missing signature policy".
const exitPushSkipped = 4

func (c *Command) targets(cmd *cli.Command) ([]string, error) {
	if cmd.Args().Len() > 0 {
		return cmd.Args().Slice(), nil
	}
	var targets []string
	scanner := bufio.NewScanner(cmd.Reader)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("push: reading store paths from standard input: %w", err)
	}
	return targets, nil
}

func (c *Command) newPusher(ctx context.Context) (*internalpush.Pusher, func(), error) {
	var keyPair sign.KeyPair
	if c.SigningKey != "" {
		kp, err := sign.KeyPairFromSecretKeyString(c.SigningKey)
		if err != nil {
			return nil, nil, errdefs.NewE(errdefs.ErrInvalidParameter, err)
		}
		keyPair = kp
	}

	var excluded *regexp.Regexp
	if c.ExcludedSigningKeyPattern != "" {
		excluded = regexp.MustCompile(c.ExcludedSigningKeyPattern)
	}

	codec, err := c.Registry.Codec()
	if err != nil {
		return nil, nil, err
	}

	var oracle *sqlite.Oracle
	if c.AllowImmutableDB {
		oracle, err = sqlite.OpenImmutable(ctx, c.DBPath, c.StoreDir)
	} else {
		oracle, err = sqlite.Open(ctx, c.DBPath, c.StoreDir)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("push: opening valid-path database %q: %w", c.DBPath, err)
	}
	closeOracle := func() {
		if err := oracle.Close(); err != nil {
			xlog.C(ctx).Warnf("push: closing valid-path database: %v", err)
		}
	}

	cfg := &internalpush.Config{
		Registry:                  c.Registry.Registry,
		Repository:                c.Registry.Repository,
		NoSSL:                     c.Registry.NoSSL,
		AuthProvider:              c.Registry.AuthProvider(),
		Codec:                     codec,
		StoreDir:                  c.StoreDir,
		Compression:               compression.Algorithm(c.Compression),
		Parallel:                  int(c.Parallel),
		SigningKey:                keyPair,
		AlreadySigned:             c.AlreadySigned,
		ExcludedSigningKeyPattern: excluded,
		LayerMediaType:            c.LayerMediaType,
		NoClosure:                 c.NoClosure,
	}

	pusher, err := internalpush.New(ctx, cfg, oracle)
	if err != nil {
		closeOracle()
		return nil, nil, err
	}
	return pusher, closeOracle, nil
}

func (c *Command) initializeCommand() *cli.Command {
	return &cli.Command{
		Name:  "initialize",
		Usage: `Publish the "nix-cache-info" object`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "want-mass-query",
				Destination: &c.WantMassQuery,
				Value:       true,
				Category:    FlagCategory,
			},
			&cli.IntFlag{
				Name:        "priority",
				Destination: &c.Priority,
				Value:       40,
				Category:    FlagCategory,
			},
		},
		Before: cli.BeforeFunc(cmd.ActionFuncChain(cmd.NoArgs(), c.validate)),
		Action: c.runInitialize,
	}
}

func (c *Command) runInitialize(ctx context.Context, _ *cli.Command) error {
	c.Logging.Apply()

	pusher, closeOracle, err := c.newPusher(ctx)
	if err != nil {
		return err
	}
	defer closeOracle()

	return pusher.Initialize(ctx, c.WantMassQuery, int(c.Priority))
}
