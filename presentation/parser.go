package presentation

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// ErrEmptyInput is returned for zero-length input
var ErrEmptyInput = errors.New("empty input")

var cborDecMode = mustDecMode()

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("invalid CBOR decode options: %v", err))
	}
	return dm
}

// IsCBOR reports whether data starts with a CBOR map header
func IsCBOR(data []byte) bool {
	return len(data) > 0 && data[0] >= 0xa0 && data[0] <= 0xbf
}

// Parse decodes a presentation from JSON or CBOR
func Parse(data []byte) (*Presentation, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyInput
	}
	if IsCBOR(data) {
		return ParseCBOR(data)
	}
	return ParseJSON(data)
}

// ParseJSON decodes a JSON presentation after checking it against the wire schema
func ParseJSON(data []byte) (*Presentation, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	var p Presentation
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode presentation: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after presentation")
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseCBOR decodes a CBOR presentation
func ParseCBOR(data []byte) (*Presentation, error) {
	var p Presentation
	if err := cborDecMode.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR presentation: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseFile reads and decodes a presentation file, returning the raw bytes too
func ParseFile(filePath string) (*Presentation, []byte, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	p, err := Parse(raw)
	if err != nil {
		return nil, raw, err
	}
	return p, raw, nil
}

// ParseBase64 decodes a base64 wrapped presentation, returning the raw bytes too
func ParseBase64(b64 string) (*Presentation, []byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	p, err := Parse(raw)
	if err != nil {
		return nil, raw, err
	}
	return p, raw, nil
}

// EncodeJSON serializes a presentation as JSON
func EncodeJSON(p *Presentation) ([]byte, error) {
	return json.Marshal(p)
}

// EncodeCBOR serializes a presentation as CBOR
func EncodeCBOR(p *Presentation) ([]byte, error) {
	return cbor.Marshal(p)
}
