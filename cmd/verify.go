package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/anchorageoss/tlsn-verifier/api"
	"github.com/anchorageoss/tlsn-verifier/appdata"
	"github.com/anchorageoss/tlsn-verifier/keys"
	"github.com/anchorageoss/tlsn-verifier/logging"
	"github.com/anchorageoss/tlsn-verifier/verify"
)

// VerifyCommand creates the verify command
func VerifyCommand() *cli.Command {
	flags := append(inputFlags(), configFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:  "notary-key",
			Usage: "Notary public key (hex) used when the presentation has none",
		},
		&cli.StringFlag{
			Name:  "notary-key-file",
			Usage: "File holding the notary public key (hex or PEM)",
		},
		&cli.StringSliceFlag{
			Name:  "trusted-notary",
			Usage: "Accept only these notary keys (hex, repeatable)",
		},
		&cli.BoolFlag{
			Name:  "require-time",
			Usage: "Reject session headers without a time",
		},
		&cli.IntFlag{
			Name:  "max-bytes",
			Usage: "Reject presentations larger than this many bytes (0 = unlimited)",
		},
		&cli.IntFlag{
			Name:  "max-transcript-bytes",
			Usage: "Reject stated transcript lengths above this many bytes per direction",
		},
		&cli.BoolFlag{
			Name:  "attestation",
			Usage: "Check the notary's Nitro attestation document when present",
		},
		&cli.StringFlag{
			Name:  "pcrs",
			Usage: "Expected PCR values for the notary enclave (index:hex,...)",
		},
		&cli.StringSliceFlag{
			Name:  "select",
			Usage: "JSONPath to locate in the received JSON body (repeatable)",
		},
		&cli.StringFlag{
			Name:  "remote",
			Usage: "Verify with a tlsn-verifier server at this URL instead of locally",
		},
		&cli.BoolFlag{
			Name:  "summary",
			Usage: "Print a human readable report to stderr",
		},
	)

	return &cli.Command{
		Name:   "verify",
		Usage:  "Verify a TLS Notary presentation and print the disclosed data",
		Flags:  flags,
		Action: runVerifyCommand,
	}
}

func runVerifyCommand(ctx context.Context, cmd *cli.Command) error {
	raw, err := readInput(cmd)
	if err != nil {
		return err
	}

	if remote := cmd.String("remote"); remote != "" {
		return runRemoteVerify(ctx, cmd, remote, raw)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("notary-key") {
		cfg.Notary.Key = cmd.String("notary-key")
		cfg.Notary.KeyFile = ""
	}
	if cmd.IsSet("notary-key-file") {
		cfg.Notary.KeyFile = cmd.String("notary-key-file")
		cfg.Notary.Key = ""
	}
	if trusted := cmd.StringSlice("trusted-notary"); len(trusted) > 0 {
		cfg.Notary.Trusted = trusted
	}
	if cmd.Bool("require-time") {
		cfg.Policy.RequireSessionTime = true
	}
	if cmd.IsSet("max-bytes") {
		cfg.Policy.MaxPresentationBytes = int(cmd.Int("max-bytes"))
	}
	if cmd.IsSet("max-transcript-bytes") {
		cfg.Policy.MaxTranscriptBytes = int(cmd.Int("max-transcript-bytes"))
	}
	if cmd.Bool("attestation") {
		cfg.Attestation.Enabled = true
	}
	if cmd.IsSet("pcrs") {
		cfg.Attestation.PCRs = cmd.String("pcrs")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	service, err := cfg.NewService(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to create verification service: %w", err)
	}

	result := service.VerifyDetailed(raw)
	formatter := verify.NewFormatter()
	if cmd.Bool("summary") {
		fmt.Fprint(stderr(cmd), formatter.FormatSummary(result))
	}

	output := formatter.FormatOutput(result.Output)
	if exprs := cmd.StringSlice("select"); len(exprs) > 0 && result.Output.Valid {
		selected, err := selectPaths(result.Received, exprs)
		if err != nil {
			logger.Warn("jsonpath selection failed", zap.Error(err))
		}
		output["selected"] = selected
	}

	if err := printJSON(cmd, output); err != nil {
		return err
	}
	if !result.Output.Valid {
		return ErrInvalidPresentation
	}
	return nil
}

func runRemoteVerify(ctx context.Context, cmd *cli.Command, remote string, raw []byte) error {
	if len(cmd.StringSlice("select")) > 0 {
		return errors.New("--select is not supported with --remote")
	}

	client, err := api.NewClient(remote, &http.Client{})
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}
	out, err := client.Verify(ctx, raw)
	if err != nil {
		return fmt.Errorf("remote verification failed: %w", err)
	}

	if err := printJSON(cmd, verify.NewFormatter().FormatOutput(out)); err != nil {
		return err
	}
	if !out.Valid {
		return ErrInvalidPresentation
	}
	return nil
}

// selectPaths locates each JSONPath in the received body. Failed expressions
// map to an empty list so the output shape does not depend on the data.
func selectPaths(received *appdata.Data, exprs []string) (map[string][]appdata.Match, error) {
	selected := make(map[string][]appdata.Match, len(exprs))
	var errs []error
	for _, expr := range exprs {
		matches, err := appdata.Locate(received, expr)
		if err != nil {
			errs = append(errs, err)
			matches = []appdata.Match{}
		}
		selected[expr] = matches
	}
	return selected, errors.Join(errs...)
}

// notaryKeyFromFlags resolves --notary-key or --notary-key-file
func notaryKeyFromFlags(ctx context.Context, cmd *cli.Command) ([]byte, error) {
	switch {
	case cmd.String("notary-key") != "":
		return keys.ParseHexKey(cmd.String("notary-key"))
	case cmd.String("notary-key-file") != "":
		return (&keys.FileKeyProvider{Path: cmd.String("notary-key-file")}).NotaryKey(ctx)
	default:
		return nil, errors.New("either --notary-key or --notary-key-file must be provided")
	}
}
