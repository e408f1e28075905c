// Package verify checks TLS Notary presentations end to end.
//
// The pipeline runs five stages and stops at the first failure:
//   - parse: decode the presentation (JSON or CBOR) and check its shape
//   - signature: check the notary signature over the canonical session header
//   - attestation: optionally check a Nitro attestation for the notary key
//   - proof: authenticate every disclosed range against the committed root
//   - assemble: rebuild the transcript and decode the HTTP application data
//
// # Verification Flow
//
//	suite, _ := crypto.NewSuite(crypto.SchemeP256, crypto.HashSHA256)
//	service := verify.NewService(suite, verify.Options{NotaryKey: notaryKey})
//	out := service.Verify(raw)
//	if !out.Valid {
//		log.Printf("rejected: %s", out.Error)
//	}
//
// Verify never returns an error value. Failures are reported in Output.Error and
// classified by the stage sentinels (ErrParse, ErrSignature, ErrAttestation,
// ErrProof) on Result.Err.
//
// # Concurrency
//
// A Service holds only immutable configuration, so one instance may verify any
// number of presentations concurrently.
package verify

import (
	"github.com/anchorageoss/tlsn-verifier/appdata"
	"github.com/anchorageoss/tlsn-verifier/attestation"
	"github.com/anchorageoss/tlsn-verifier/presentation"
	"github.com/anchorageoss/tlsn-verifier/transcript"
)

// Output is the serialized outcome of a verification
type Output struct {
	Valid        bool   `json:"valid"`
	ServerName   string `json:"server_name"`
	Time         uint64 `json:"time"`
	Data         any    `json:"data"`
	ProofHash    string `json:"proof_hash"`
	NotaryPubKey string `json:"notary_pubkey"`
	// RedactedRanges lists the proven received ranges as [start, end) pairs.
	// The name is kept for wire compatibility; the ranges are the disclosed ones.
	RedactedRanges  [][2]int                    `json:"redacted_ranges"`
	DisclosedRanges []transcript.DisclosedRange `json:"disclosed_ranges,omitempty"`
	Error           string                      `json:"error,omitempty"`
}

// Result is the full outcome of a verification including intermediate artifacts
type Result struct {
	Output       *Output
	Presentation *presentation.Presentation
	NotaryKey    []byte
	Disclosure   *transcript.Disclosure
	Transcript   *transcript.Transcript
	Received     *appdata.Data
	Sent         *appdata.Data
	Attestation  *attestation.Report
	Err          error
}
