package wasm

import (
	"context"

	"github.com/anchorageoss/tlsn-verifier/keys"
)

// MemoryKeyProvider holds a notary key handed over from JavaScript
type MemoryKeyProvider struct {
	keyHex string
}

// NewMemoryKeyProvider creates a provider for a hex encoded key
func NewMemoryKeyProvider(keyHex string) *MemoryKeyProvider {
	return &MemoryKeyProvider{keyHex: keyHex}
}

// NotaryKey implements keys.Provider
func (m *MemoryKeyProvider) NotaryKey(ctx context.Context) ([]byte, error) {
	return keys.ParseHexKey(m.keyHex)
}
