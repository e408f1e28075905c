package presentation

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Bytes is a byte string that reads from JSON as an integer array or a hex string
// and writes as an integer array. CBOR uses native byte strings.
type Bytes []byte

// MarshalJSON encodes the bytes as an array of integers
func (b Bytes) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.Grow(len(b)*4 + 2)
	buf.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(int(v)))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an integer array or a hex string with optional 0x prefix
func (b *Bytes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*b = nil
		return nil
	}

	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		decoded, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
		if err != nil {
			return fmt.Errorf("invalid hex byte string: %w", err)
		}
		*b = decoded
		return nil
	}

	var ints []int
	if err := json.Unmarshal(trimmed, &ints); err != nil {
		return fmt.Errorf("expected byte array or hex string: %w", err)
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte value %d at position %d out of range", v, i)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// Hex returns the lowercase hex encoding
func (b Bytes) Hex() string {
	return hex.EncodeToString(b)
}
