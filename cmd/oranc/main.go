// Package main is the entry of the application.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/linyinfeng/oranc/pkg/cmdhelper"
	"github.com/linyinfeng/oranc/pkg/commands"
	"github.com/linyinfeng/oranc/pkg/commands/push"
	"github.com/linyinfeng/oranc/pkg/commands/serve"
	"github.com/linyinfeng/oranc/pkg/errdefs"
)

// Exit codes: 0 on success, non-zero otherwise. 1 is the generic fallback;
// "push" returns its own exit code 4 through cli.Exit.
const (
	exitUsage          = 2
	exitAuthentication = 3
)

func main() {
	app := cli.Command{
		Name:                  "oranc",
		Usage:                 "oranc repurposes an OCI registry as a Nix binary cache",
		Suggest:               true,
		EnableShellCompletion: true,
		HideVersion:           true,
		HideHelpCommand:       true,
		Commands: []*cli.Command{
			commands.NewVersionCommand().ToCLI(),
			push.New().ToCLI(),
			serve.New().ToCLI(),
		},
		ExitErrHandler: func(_ context.Context, c *cli.Command, err error) {
			cli.HandleExitCoder(err)
			if err == nil {
				return
			}
			cmdhelper.Fprintf(c.ErrWriter, "Error: %+v\n", err)
			os.Exit(exitCode(err))
		},
	}
	//nolint:errcheck // already checked in root command ExitErrHandler
	_ = app.Run(context.Background(), os.Args)
}

// exitCode maps an error returned from a command's Action to the process
// exit code documented for "oranc".
func exitCode(err error) int {
	switch {
	case errors.Is(err, errdefs.ErrInvalidParameter):
		return exitUsage
	case errors.Is(err, errdefs.ErrUnauthenticated), errors.Is(err, errdefs.ErrUnauthorized):
		return exitAuthentication
	default:
		return 1
	}
}
