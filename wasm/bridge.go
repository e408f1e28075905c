// Package wasm adapts the verifier for browsers. The js/wasm entry point
// lives in cmd/wasm; the code here that does not touch syscall/js builds on
// every platform so it can be tested natively.
package wasm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anchorageoss/tlsn-verifier/crypto"
	"github.com/anchorageoss/tlsn-verifier/keys"
	"github.com/anchorageoss/tlsn-verifier/verify"
)

// Options mirrors the optional JavaScript settings object
type Options struct {
	Scheme string `json:"scheme"`
	Hash   string `json:"hash"`
}

// Verify checks a presentation and returns the output record as JSON.
// notaryKeyHex may be empty when the presentation embeds its key.
func Verify(ctx context.Context, raw []byte, notaryKeyHex string, opts Options) (string, error) {
	if opts.Scheme == "" {
		opts.Scheme = string(crypto.SchemeP256)
	}
	if opts.Hash == "" {
		opts.Hash = string(crypto.HashSHA256)
	}
	suite, err := crypto.NewSuite(crypto.Scheme(opts.Scheme), crypto.HashAlgorithm(opts.Hash))
	if err != nil {
		return "", err
	}

	var verifyOpts verify.Options
	if notaryKeyHex != "" {
		var provider keys.Provider = NewMemoryKeyProvider(notaryKeyHex)
		key, err := provider.NotaryKey(ctx)
		if err != nil {
			return "", fmt.Errorf("invalid notary key: %w", err)
		}
		verifyOpts.NotaryKey = key
	}

	out := verify.NewService(suite, verifyOpts).Verify(raw)
	encoded, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to marshal output: %w", err)
	}
	return string(encoded), nil
}
