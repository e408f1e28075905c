package cmd

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/anchorageoss/tlsn-verifier/presentation"
)

// InspectCommand creates the inspect command
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Decode a presentation without verifying it",
		Flags: append(inputFlags(), &cli.BoolFlag{
			Name:  "json",
			Usage: "Output in JSON format",
		}),
		Action: runInspectCommand,
	}
}

func runInspectCommand(ctx context.Context, cmd *cli.Command) error {
	raw, err := readInput(cmd)
	if err != nil {
		return err
	}
	p, err := presentation.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to decode presentation: %w", err)
	}
	proofHash := presentation.ComputeHash(raw)

	if cmd.Bool("json") {
		return printJSON(cmd, map[string]interface{}{
			"proof_hash":   proofHash,
			"presentation": p,
		})
	}

	w := stdout(cmd)
	header := p.SessionHeader
	fmt.Fprintf(w, "=== TLS Notary Presentation (unverified) ===\n")
	fmt.Fprintf(w, "Proof Hash: %s\n\n", proofHash)

	fmt.Fprintf(w, "Session Header:\n")
	fmt.Fprintf(w, "  Server: %s\n", header.ServerName)
	fmt.Fprintf(w, "  Handshake Hash: %s\n", hex.EncodeToString(header.HandshakeHash))
	fmt.Fprintf(w, "  Time: %d\n", header.Time)

	fmt.Fprintf(w, "\nSignature:\n")
	fmt.Fprintf(w, "  Value: %s\n", hex.EncodeToString(p.Signature.Value))
	if len(p.Signature.PublicKey) > 0 {
		fmt.Fprintf(w, "  Notary Key: %s\n", hex.EncodeToString(p.Signature.PublicKey))
	}
	if p.Signature.Scheme != "" {
		fmt.Fprintf(w, "  Scheme: %s\n", p.Signature.Scheme)
	}
	if p.NotaryAttestation != "" {
		fmt.Fprintf(w, "  Attestation: %d bytes (base64)\n", len(p.NotaryAttestation))
	}

	proof := p.TranscriptProof
	fmt.Fprintf(w, "\nTranscript Proof:\n")
	fmt.Fprintf(w, "  Sent: %d bytes disclosed\n", len(proof.Sent))
	fmt.Fprintf(w, "  Received: %d bytes disclosed\n", len(proof.Received))
	fmt.Fprintf(w, "  Ranges: %d\n", len(proof.Ranges))
	for i, r := range proof.Ranges {
		fmt.Fprintf(w, "    [%d] %s [%d, %d) path=%d\n", i, r.Dir(), r.Start, r.End, len(r.Path))
	}
	return nil
}
