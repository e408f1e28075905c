package crypto

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secp256k1ecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// SignSecp256k1 signs a 32-byte digest and returns a 65-byte compact recoverable signature
func SignSecp256k1(priv *secp256k1.PrivateKey, digest []byte) ([]byte, error) {
	if priv == nil {
		return nil, errors.New("private key is nil")
	}
	if len(digest) != 32 {
		return nil, fmt.Errorf("expected 32-byte digest, got %d", len(digest))
	}
	return secp256k1ecdsa.SignCompact(priv, digest, false), nil
}

// VerifySecp256k1 verifies a secp256k1 signature over a 32-byte digest
func VerifySecp256k1(publicKey, digest, signature []byte) bool {
	if len(digest) != 32 {
		return false
	}
	pub, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}

	switch len(signature) {
	case 65:
		// RecoverCompact checks the signature while recovering the signer key.
		recovered, _, err := secp256k1ecdsa.RecoverCompact(signature, digest)
		if err != nil {
			return false
		}
		return recovered.IsEqual(pub)
	case 64:
		var r, s secp256k1.ModNScalar
		if overflow := r.SetByteSlice(signature[:32]); overflow {
			return false
		}
		if overflow := s.SetByteSlice(signature[32:]); overflow {
			return false
		}
		return secp256k1ecdsa.NewSignature(&r, &s).Verify(digest, pub)
	default:
		sig, err := secp256k1ecdsa.ParseDERSignature(signature)
		if err != nil {
			return false
		}
		return sig.Verify(digest, pub)
	}
}
