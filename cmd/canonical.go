package cmd

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/anchorageoss/tlsn-verifier/config"
	"github.com/anchorageoss/tlsn-verifier/presentation"
)

// CanonicalCommand creates the canonical command
func CanonicalCommand() *cli.Command {
	return &cli.Command{
		Name:  "canonical",
		Usage: "Print the canonical session header bytes a notary signs",
		Flags: append(inputFlags(),
			&cli.StringFlag{
				Name:  "hash",
				Usage: "Also print the digest under this hash (sha256, sha3-256, blake2b-256)",
			},
		),
		Action: runCanonicalCommand,
	}
}

func runCanonicalCommand(ctx context.Context, cmd *cli.Command) error {
	raw, err := readInput(cmd)
	if err != nil {
		return err
	}
	p, err := presentation.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to decode presentation: %w", err)
	}

	message, err := presentation.CanonicalHeader(p.SessionHeader)
	if err != nil {
		return fmt.Errorf("failed to encode session header: %w", err)
	}

	output := map[string]interface{}{
		"domain":    presentation.HeaderDomain,
		"canonical": hex.EncodeToString(message),
	}
	if name := cmd.String("hash"); name != "" {
		cfg := config.DefaultConfig()
		cfg.Crypto.Hash = name
		suite, err := cfg.Suite()
		if err != nil {
			return err
		}
		output["hash"] = suite.HashName()
		output["digest"] = hex.EncodeToString(suite.Hash(message))
	}
	return printJSON(cmd, output)
}
