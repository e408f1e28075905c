// Package attestation checks that a notary signing key was produced inside an
// AWS Nitro enclave.
//
// A presentation may carry a base64 Nitro attestation document. The document must
// validate against the AWS root, its UserData must commit to the notary key (either
// the key itself or its SHA-256 digest), and each configured PCR rule must match.
package attestation

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	nitroverifier "github.com/anchorageoss/awsnitroverifier"
)

var (
	// ErrInvalidDocument is returned when the attestation document does not validate
	ErrInvalidDocument = errors.New("attestation document validation failed")
	// ErrUserDataMismatch is returned when UserData does not commit to the notary key
	ErrUserDataMismatch = errors.New("attestation user data does not match notary key")
	// ErrPCRMismatch is returned when a PCR differs from its rule
	ErrPCRMismatch = errors.New("PCR value mismatch")
)

// DocumentVerifier validates raw (CBOR COSE_Sign1) Nitro attestation documents.
// nitroverifier.Verifier satisfies it.
type DocumentVerifier interface {
	Validate(attestationBytes []byte) (*nitroverifier.ValidationResult, error)
}

var _ DocumentVerifier = nitroverifier.NewVerifier(nitroverifier.AWSNitroVerifierOptions{})

// PCRResult is the outcome of one PCR rule
type PCRResult struct {
	Index    uint   `json:"index"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Valid    bool   `json:"valid"`
}

// Report describes a successfully checked attestation
type Report struct {
	ModuleID   string          `json:"module_id"`
	UserData   string          `json:"user_data"`
	PCRs       map[uint][]byte `json:"-"`
	PCRResults []PCRResult     `json:"pcr_results,omitempty"`
}

// Checker validates notary attestations
type Checker struct {
	verifier DocumentVerifier
	rules    []nitroverifier.PCRRule
}

// NewChecker creates a checker enforcing the given PCR rules
func NewChecker(verifier DocumentVerifier, rules []nitroverifier.PCRRule) *Checker {
	return &Checker{verifier: verifier, rules: rules}
}

// NewNitroChecker creates a checker backed by the AWS Nitro verifier
func NewNitroChecker(skipTimestampCheck bool, rules []nitroverifier.PCRRule) *Checker {
	verifier := nitroverifier.NewVerifier(nitroverifier.AWSNitroVerifierOptions{
		SkipTimestampCheck: skipTimestampCheck,
	})
	return NewChecker(verifier, rules)
}

// Check validates the base64 document and binds it to notaryKey
func (c *Checker) Check(document string, notaryKey []byte) (*Report, error) {
	document = strings.TrimSpace(document)
	if document == "" {
		return nil, errors.New("attestation document is empty")
	}

	raw, err := base64.StdEncoding.DecodeString(document)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode base64: %v", ErrInvalidDocument, err)
	}

	result, err := c.verifier.Validate(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to verify attestation document: %w", err)
	}
	if result == nil || !result.Valid || result.Document == nil {
		var reasons any
		if result != nil {
			reasons = result.Errors
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, reasons)
	}

	doc := result.Document
	if err := VerifyUserData(doc.UserData, notaryKey); err != nil {
		return nil, err
	}

	report := &Report{
		ModuleID: doc.ModuleID,
		UserData: hex.EncodeToString(doc.UserData),
		PCRs:     doc.PCRs,
	}

	var mismatch error
	for _, rule := range c.rules {
		actual := doc.PCRs[rule.Index]
		ok := bytes.Equal(actual, rule.Value)
		report.PCRResults = append(report.PCRResults, PCRResult{
			Index:    rule.Index,
			Expected: hex.EncodeToString(rule.Value),
			Actual:   hex.EncodeToString(actual),
			Valid:    ok,
		})
		if !ok && mismatch == nil {
			mismatch = fmt.Errorf("%w: PCR[%d]", ErrPCRMismatch, rule.Index)
		}
	}
	if mismatch != nil {
		return report, mismatch
	}

	return report, nil
}

// VerifyUserData accepts UserData equal to the key or to its SHA-256 digest
func VerifyUserData(userData, notaryKey []byte) error {
	if len(userData) == 0 {
		return fmt.Errorf("%w: user data is empty", ErrUserDataMismatch)
	}
	if bytes.Equal(userData, notaryKey) {
		return nil
	}
	digest := sha256.Sum256(notaryKey)
	if bytes.Equal(userData, digest[:]) {
		return nil
	}
	return fmt.Errorf("%w: expected %s, got %s",
		ErrUserDataMismatch, hex.EncodeToString(digest[:]), hex.EncodeToString(userData))
}
