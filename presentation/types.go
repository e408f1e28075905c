// Package presentation provides types and parsing functions for TLS Notary presentations.
//
// A presentation is the portable artifact a prover hands to a relying party. It binds
// a TLS session to a notary signature and proves selected transcript bytes against the
// commitment the notary signed.
//
// # Presentation Structure
//
// A presentation contains:
//   - SessionHeader: server name, handshake commitment (Merkle root) and session time
//   - TranscriptProof: disclosed bytes plus the ranges and audit paths proving them
//   - NotarySignature: signature over the canonical header encoding, optionally with
//     the notary key and scheme name
//   - NotaryAttestation: optional base64 AWS Nitro attestation for the notary key
//
// # Parsing
//
// Parse accepts JSON or CBOR and detects the format from the first byte:
//
//	p, err := presentation.Parse(raw)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// The content hash identifies the exact input bytes:
//
//	hash := presentation.ComputeHash(raw)
//
// # Canonical Encoding
//
// CanonicalHeader returns the Borsh encoding of the header that the notary signs.
// Any other encoding of the same header fails signature verification.
package presentation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Direction identifies one side of the TLS transcript
type Direction uint8

const (
	Sent Direction = iota
	Received
)

// String returns the wire name of the direction
func (d Direction) String() string {
	switch d {
	case Sent:
		return "sent"
	case Received:
		return "received"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
}

// MarshalJSON encodes the direction by name
func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseDirection(name)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDirection maps a wire name to a Direction. An empty name means Received.
func ParseDirection(name string) (Direction, error) {
	switch strings.ToLower(name) {
	case "", "received", "recv":
		return Received, nil
	case "sent":
		return Sent, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", name)
	}
}

// Presentation is a decoded TLS Notary presentation
type Presentation struct {
	SessionHeader     *SessionHeader   `json:"session_header"`
	TranscriptProof   *TranscriptProof `json:"transcript_proof"`
	Signature         *NotarySignature `json:"signature"`
	NotaryAttestation string           `json:"notary_attestation,omitempty"`
	Version           string           `json:"version,omitempty"`
}

// SessionHeader is the notarized description of a TLS session
type SessionHeader struct {
	ServerName    string `json:"server_name"`
	HandshakeHash Bytes  `json:"handshake_hash"`
	Time          uint64 `json:"time,omitempty"`
}

// TranscriptProof carries the disclosed transcript bytes and their inclusion proofs.
// Sent and Received hold only disclosed bytes, packed in range order.
type TranscriptProof struct {
	Sent        Bytes         `json:"sent,omitempty"`
	Received    Bytes         `json:"received,omitempty"`
	SentLen     *uint64       `json:"sent_len,omitempty"`
	ReceivedLen *uint64       `json:"received_len,omitempty"`
	TreeSize    *uint64       `json:"tree_size,omitempty"`
	Ranges      []ProvenRange `json:"ranges"`
}

// Packed returns the disclosed bytes of one direction
func (t *TranscriptProof) Packed(d Direction) []byte {
	if d == Sent {
		return t.Sent
	}
	return t.Received
}

// StatedLen returns the declared transcript length of one direction,
// falling back to the packed length
func (t *TranscriptProof) StatedLen(d Direction) uint64 {
	if d == Sent {
		if t.SentLen != nil {
			return *t.SentLen
		}
		return uint64(len(t.Sent))
	}
	if t.ReceivedLen != nil {
		return *t.ReceivedLen
	}
	return uint64(len(t.Received))
}

// Leaves returns the number of leaves in the commitment tree
func (t *TranscriptProof) Leaves() uint64 {
	if t.TreeSize != nil {
		return *t.TreeSize
	}
	return uint64(len(t.Ranges))
}

// ProvenRange is one disclosed [Start, End) range and its audit path
type ProvenRange struct {
	Start     uint64  `json:"start"`
	End       uint64  `json:"end"`
	Direction string  `json:"direction,omitempty"`
	LeafIndex *uint64 `json:"leaf_index,omitempty"`
	Blinder   Bytes   `json:"blinder,omitempty"`
	Path      []Bytes `json:"path,omitempty"`
	Empty     bool    `json:"empty,omitempty"`
}

// Dir returns the parsed direction; Validate guarantees it is known
func (r *ProvenRange) Dir() Direction {
	d, _ := ParseDirection(r.Direction)
	return d
}

// Index returns the leaf index, defaulting to the range position
func (r *ProvenRange) Index(position int) uint64 {
	if r.LeafIndex != nil {
		return *r.LeafIndex
	}
	return uint64(position)
}

// AuditPath returns the path as plain byte slices
func (r *ProvenRange) AuditPath() [][]byte {
	out := make([][]byte, len(r.Path))
	for i, p := range r.Path {
		out[i] = p
	}
	return out
}

// NotarySignature is the notary's signature over the canonical session header.
// On the wire it is either a bare byte string or an object.
type NotarySignature struct {
	Value     Bytes  `json:"value"`
	PublicKey Bytes  `json:"public_key,omitempty"`
	Scheme    string `json:"scheme,omitempty"`
}

type plainSignature NotarySignature

// UnmarshalJSON accepts a byte array, a hex string or a signature object
func (s *NotarySignature) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var p plainSignature
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return fmt.Errorf("failed to decode signature object: %w", err)
		}
		if p.Value == nil {
			return errors.New("signature object is missing value")
		}
		*s = NotarySignature(p)
		return nil
	}

	var value Bytes
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}
	*s = NotarySignature{Value: value}
	return nil
}

// MarshalJSON writes the bare form when no key or scheme is attached
func (s NotarySignature) MarshalJSON() ([]byte, error) {
	if s.PublicKey == nil && s.Scheme == "" {
		return json.Marshal(s.Value)
	}
	return json.Marshal(plainSignature(s))
}

// UnmarshalCBOR accepts a byte string or a signature map
func (s *NotarySignature) UnmarshalCBOR(data []byte) error {
	var value []byte
	if err := cbor.Unmarshal(data, &value); err == nil {
		*s = NotarySignature{Value: value}
		return nil
	}

	var p plainSignature
	if err := cborDecMode.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}
	if p.Value == nil {
		return errors.New("signature object is missing value")
	}
	*s = NotarySignature(p)
	return nil
}

// MarshalCBOR mirrors MarshalJSON
func (s NotarySignature) MarshalCBOR() ([]byte, error) {
	if s.PublicKey == nil && s.Scheme == "" {
		return cbor.Marshal([]byte(s.Value))
	}
	return cbor.Marshal(plainSignature(s))
}
