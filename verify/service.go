package verify

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/anchorageoss/tlsn-verifier/appdata"
	"github.com/anchorageoss/tlsn-verifier/attestation"
	"github.com/anchorageoss/tlsn-verifier/crypto"
	"github.com/anchorageoss/tlsn-verifier/presentation"
	"github.com/anchorageoss/tlsn-verifier/transcript"
)

var (
	ErrNoNotaryKey       = errors.New("no notary public key available")
	ErrNotaryKeyMismatch = errors.New("embedded notary key does not match the configured key")
	ErrUntrustedNotary   = errors.New("notary key is not trusted")
	ErrSchemeMismatch    = errors.New("signature scheme does not match provider")
	ErrEmptySignature    = errors.New("signature is empty")
	ErrBadSignature      = errors.New("signature does not match session header")
	ErrMissingTime       = errors.New("session time is zero")
	ErrTooLarge          = errors.New("presentation exceeds size limit")
	ErrNoAttestation     = errors.New("notary attestation required but not checked")
)

// Options configures verification policy
type Options struct {
	// NotaryKey is used when the signature does not embed a key
	NotaryKey []byte
	// TrustedNotaries, when non-empty, lists the only acceptable notary keys
	TrustedNotaries [][]byte
	// RequireSessionTime rejects headers without a session time
	RequireSessionTime bool
	// MaxPresentationBytes limits input size; zero means unlimited
	MaxPresentationBytes int
	// MaxTranscriptBytes caps the stated length of each transcript direction;
	// zero means transcript.DefaultMaxLength
	MaxTranscriptBytes int
	// Attestation checks notary attestations when set
	Attestation *attestation.Checker
	// RequireAttestation rejects presentations without a checked attestation
	RequireAttestation bool
	Logger             *zap.Logger
}

// Service verifies presentations
type Service struct {
	provider crypto.Provider
	opts     Options
	logger   *zap.Logger
}

// NewService creates a new verification service
func NewService(provider crypto.Provider, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider: provider,
		opts:     opts,
		logger:   logger,
	}
}

// Verify checks raw presentation bytes and returns the output record
func (s *Service) Verify(raw []byte) *Output {
	return s.VerifyDetailed(raw).Output
}

// VerifyDetailed checks raw presentation bytes and returns every intermediate artifact
func (s *Service) VerifyDetailed(raw []byte) *Result {
	proofHash := presentation.ComputeHash(raw)
	logger := s.logger.With(zap.String("proof_hash", proofHash))

	result, err := s.run(raw)
	if err != nil {
		var se *StageError
		stage := "unknown"
		if errors.As(err, &se) {
			stage = se.Stage.Error()
		}
		logger.Warn("presentation rejected", zap.String("stage", stage), zap.Error(err))

		result.Err = err
		result.Output = &Output{
			Valid:     false,
			ProofHash: proofHash,
			Error:     fmt.Sprintf("verification failed: %v", err),
		}
		return result
	}

	result.Output.ProofHash = proofHash
	logger.Debug("presentation verified",
		zap.String("server_name", result.Output.ServerName),
		zap.Int("ranges", len(result.Disclosure.Ranges)))
	return result
}

func (s *Service) run(raw []byte) (*Result, error) {
	result := &Result{}

	// Step 1: Decode the presentation
	if s.opts.MaxPresentationBytes > 0 && len(raw) > s.opts.MaxPresentationBytes {
		return result, stageError(ErrParse, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(raw), s.opts.MaxPresentationBytes))
	}
	p, err := presentation.Parse(raw)
	if err != nil {
		return result, stageError(ErrParse, err)
	}
	result.Presentation = p

	// Step 2: Check the notary signature over the session header
	notaryKey, err := s.verifySignature(p)
	if err != nil {
		return result, stageError(ErrSignature, err)
	}
	result.NotaryKey = notaryKey

	// Step 3: Check the notary attestation if configured
	report, err := s.verifyAttestation(p, notaryKey)
	if err != nil {
		return result, stageError(ErrAttestation, err)
	}
	result.Attestation = report

	// Step 4: Authenticate disclosed ranges against the committed root
	disclosure, err := transcript.Verify(p.TranscriptProof, p.SessionHeader.HandshakeHash, s.provider,
		transcript.WithMaxLength(s.opts.MaxTranscriptBytes))
	if err != nil {
		return result, stageError(ErrProof, err)
	}
	result.Disclosure = disclosure

	// Step 5: Rebuild the transcript and decode application data
	tr, err := transcript.Reconstruct(disclosure)
	if err != nil {
		return result, stageError(ErrProof, err)
	}
	result.Transcript = tr
	result.Received = appdata.Decode(tr.Received)
	result.Sent = appdata.Decode(tr.Sent)

	result.Output = assemble(p, notaryKey, disclosure, result.Received)
	return result, nil
}

// verifySignature resolves the notary key and checks the header signature
func (s *Service) verifySignature(p *presentation.Presentation) ([]byte, error) {
	header := p.SessionHeader
	sig := p.Signature

	if s.opts.RequireSessionTime && header.Time == 0 {
		return nil, ErrMissingTime
	}
	if len(sig.Value) == 0 {
		return nil, ErrEmptySignature
	}

	if sig.Scheme != "" {
		if namer, ok := s.provider.(crypto.SchemeNamer); ok && !strings.EqualFold(sig.Scheme, namer.Scheme()) {
			return nil, fmt.Errorf("%w: presentation uses %q, verifier uses %q", ErrSchemeMismatch, sig.Scheme, namer.Scheme())
		}
	}

	key, err := s.resolveNotaryKey(sig.PublicKey)
	if err != nil {
		return nil, err
	}

	message, err := presentation.CanonicalHeader(header)
	if err != nil {
		return nil, err
	}
	if !s.provider.Verify(message, sig.Value, key) {
		return nil, ErrBadSignature
	}
	return key, nil
}

func (s *Service) resolveNotaryKey(embedded []byte) ([]byte, error) {
	key := embedded
	switch {
	case len(key) > 0 && len(s.opts.NotaryKey) > 0:
		if !bytes.Equal(key, s.opts.NotaryKey) {
			return nil, ErrNotaryKeyMismatch
		}
	case len(key) == 0:
		key = s.opts.NotaryKey
	}
	if len(key) == 0 {
		return nil, ErrNoNotaryKey
	}

	if len(s.opts.TrustedNotaries) > 0 {
		trusted := false
		for _, k := range s.opts.TrustedNotaries {
			if bytes.Equal(k, key) {
				trusted = true
				break
			}
		}
		if !trusted {
			return nil, fmt.Errorf("%w: %s", ErrUntrustedNotary, hex.EncodeToString(key))
		}
	}
	return key, nil
}

func (s *Service) verifyAttestation(p *presentation.Presentation, notaryKey []byte) (*attestation.Report, error) {
	if p.NotaryAttestation == "" || s.opts.Attestation == nil {
		if s.opts.RequireAttestation {
			return nil, ErrNoAttestation
		}
		return nil, nil
	}
	return s.opts.Attestation.Check(p.NotaryAttestation, notaryKey)
}

// assemble builds the success output from verified artifacts
func assemble(p *presentation.Presentation, notaryKey []byte, d *transcript.Disclosure, received *appdata.Data) *Output {
	out := &Output{
		Valid:           true,
		ServerName:      p.SessionHeader.ServerName,
		Time:            p.SessionHeader.Time,
		NotaryPubKey:    hex.EncodeToString(notaryKey),
		RedactedRanges:  [][2]int{},
		DisclosedRanges: d.Ranges,
	}
	for _, r := range d.In(presentation.Received) {
		out.RedactedRanges = append(out.RedactedRanges, [2]int{r.Start, r.End})
	}
	if received != nil {
		out.Data = received.Value
	}
	return out
}
