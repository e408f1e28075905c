package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/anchorageoss/tlsn-verifier/cmd"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "tlsn-verifier",
		Usage: "TLS Notary presentation verifier",
		Commands: []*cli.Command{
			cmd.VerifyCommand(),
			cmd.InspectCommand(),
			cmd.CanonicalCommand(),
			cmd.AttestationCommand(),
			cmd.ServeCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		// The output record already explains an invalid presentation
		if !errors.Is(err, cmd.ErrInvalidPresentation) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
