package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/anchorageoss/tlsn-verifier/attestation"
	"github.com/anchorageoss/tlsn-verifier/verify"
)

// AttestationCommand creates the attestation command
func AttestationCommand() *cli.Command {
	return &cli.Command{
		Name:  "attestation",
		Usage: "Inspect notary enclave attestations",
		Commands: []*cli.Command{
			checkAttestationCommand(),
		},
	}
}

func checkAttestationCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Check that a Nitro attestation document binds a notary key",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "document",
				Usage: "Base64 attestation document",
			},
			&cli.StringFlag{
				Name:  "document-file",
				Usage: "File holding the base64 attestation document",
			},
			&cli.StringFlag{
				Name:  "notary-key",
				Usage: "Notary public key (hex)",
			},
			&cli.StringFlag{
				Name:  "notary-key-file",
				Usage: "File holding the notary public key (hex or PEM)",
			},
			&cli.StringFlag{
				Name:  "pcrs",
				Usage: "Expected PCR values (index:hex,...)",
			},
			&cli.BoolFlag{
				Name:  "skip-timestamp-check",
				Usage: "Accept documents whose certificates have expired",
			},
		},
		Action: runCheckAttestationCommand,
	}
}

func runCheckAttestationCommand(ctx context.Context, cmd *cli.Command) error {
	document, err := readDocument(cmd)
	if err != nil {
		return err
	}
	notaryKey, err := notaryKeyFromFlags(ctx, cmd)
	if err != nil {
		return err
	}
	rules, err := attestation.ParsePCRs(cmd.String("pcrs"))
	if err != nil {
		return fmt.Errorf("invalid --pcrs: %w", err)
	}

	checker := attestation.NewNitroChecker(cmd.Bool("skip-timestamp-check"), rules)
	return checkAttestation(cmd, checker, document, notaryKey)
}

func checkAttestation(cmd *cli.Command, checker *attestation.Checker, document string, notaryKey []byte) error {
	report, err := checker.Check(document, notaryKey)
	if report != nil {
		formatter := verify.NewFormatter()
		fmt.Fprintf(stderr(cmd), "Module ID: %s\n", report.ModuleID)
		fmt.Fprintf(stderr(cmd), "Notary key: %s\n", hex.EncodeToString(notaryKey))
		fmt.Fprint(stderr(cmd), formatter.FormatPCRValues(report.PCRs, "PCR Values", ""))
		if perr := printJSON(cmd, report); perr != nil {
			return perr
		}
	}
	if err != nil {
		return fmt.Errorf("attestation check failed: %w", err)
	}
	return nil
}

func readDocument(cmd *cli.Command) (string, error) {
	document := cmd.String("document")
	path := cmd.String("document-file")
	switch {
	case document != "" && path != "":
		return "", fmt.Errorf("only one of --document or --document-file should be provided")
	case document != "":
		return strings.TrimSpace(document), nil
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read attestation document: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return "", fmt.Errorf("either --document or --document-file must be provided")
	}
}
