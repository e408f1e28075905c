package presentation

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrMissingField is returned when a required member is absent
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidField is returned when a member has an unusable value
	ErrInvalidField = errors.New("invalid field")
)

const (
	maxHostLength  = 253
	maxLabelLength = 63
)

// Validate checks the structural invariants that decoding alone cannot express
func (p *Presentation) Validate() error {
	if p.SessionHeader == nil {
		return fmt.Errorf("%w: session_header", ErrMissingField)
	}
	if p.TranscriptProof == nil {
		return fmt.Errorf("%w: transcript_proof", ErrMissingField)
	}
	if p.Signature == nil || p.Signature.Value == nil {
		return fmt.Errorf("%w: signature", ErrMissingField)
	}

	h := p.SessionHeader
	if err := ValidateServerName(h.ServerName); err != nil {
		return fmt.Errorf("%w: server_name: %v", ErrInvalidField, err)
	}
	if len(h.HandshakeHash) == 0 {
		return fmt.Errorf("%w: handshake_hash is empty", ErrInvalidField)
	}

	if p.TranscriptProof.Ranges == nil {
		return fmt.Errorf("%w: transcript_proof.ranges", ErrMissingField)
	}
	for i, r := range p.TranscriptProof.Ranges {
		if _, err := ParseDirection(r.Direction); err != nil {
			return fmt.Errorf("%w: ranges[%d]: %v", ErrInvalidField, i, err)
		}
	}
	return nil
}

// ValidateServerName checks that name is a syntactically valid host name or IP literal
func ValidateServerName(name string) error {
	if name == "" {
		return errors.New("server name is empty")
	}
	if ip := net.ParseIP(strings.TrimSuffix(strings.TrimPrefix(name, "["), "]")); ip != nil {
		return nil
	}

	ascii, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return fmt.Errorf("invalid host %q: %w", name, err)
	}
	ascii = strings.TrimSuffix(ascii, ".")
	if len(ascii) == 0 || len(ascii) > maxHostLength {
		return fmt.Errorf("host %q has invalid length %d", name, len(ascii))
	}
	for _, label := range strings.Split(ascii, ".") {
		if !validLabel(label) {
			return fmt.Errorf("host %q has an invalid label %q", name, label)
		}
	}
	return nil
}

// validLabel checks letter-digit-hyphen syntax on an ASCII label
func validLabel(label string) bool {
	if len(label) == 0 || len(label) > maxLabelLength {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		default:
			return false
		}
	}
	return true
}
