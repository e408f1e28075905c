package cmd

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/anchorageoss/tlsn-verifier/config"
)

// ErrInvalidPresentation is returned after printing a failed verification
var ErrInvalidPresentation = errors.New("presentation is not valid")

func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "file",
			Usage: "Path to presentation file (JSON or CBOR)",
		},
		&cli.StringFlag{
			Name:  "base64",
			Usage: "Base64-encoded presentation",
		},
		&cli.BoolFlag{
			Name:  "stdin",
			Usage: "Read presentation from stdin",
		},
	}
}

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to YAML config file",
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Path to dotenv file with TLSN_* variables",
		},
		&cli.StringFlag{
			Name:  "scheme",
			Usage: "Notary signature scheme (p256, secp256k1)",
		},
		&cli.StringFlag{
			Name:  "hash",
			Usage: "Commitment hash (sha256, sha3-256, blake2b-256)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level (debug, info, warn, error)",
		},
	}
}

// readInput returns the raw presentation bytes from exactly one source
func readInput(cmd *cli.Command) ([]byte, error) {
	filePath := cmd.String("file")
	b64 := cmd.String("base64")
	fromStdin := cmd.Bool("stdin")

	sources := 0
	for _, set := range []bool{filePath != "", b64 != "", fromStdin} {
		if set {
			sources++
		}
	}
	if sources == 0 {
		return nil, fmt.Errorf("one of --file, --base64 or --stdin must be provided")
	}
	if sources > 1 {
		return nil, fmt.Errorf("only one of --file, --base64 or --stdin should be provided")
	}

	switch {
	case filePath != "":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read presentation file: %w", err)
		}
		return data, nil
	case b64 != "":
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64: %w", err)
		}
		return data, nil
	default:
		data, err := io.ReadAll(stdin(cmd))
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
}

// loadConfig reads --config and --env-file then applies flag overrides
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"), cmd.String("env-file"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("scheme") {
		cfg.Crypto.Scheme = cmd.String("scheme")
	}
	if cmd.IsSet("hash") {
		cfg.Crypto.Hash = cmd.String("hash")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	return cfg, nil
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func stderr(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

func stdin(cmd *cli.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

func printJSON(cmd *cli.Command, v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(stdout(cmd), string(jsonBytes))
	return nil
}
