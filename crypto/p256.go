package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
)

// ECDSASignature represents an ECDSA signature for ASN.1 encoding
type ECDSASignature struct {
	R, S *big.Int
}

// SignP256 signs a digest with a P-256 key and returns a DER signature
func SignP256(privateKey *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	if privateKey == nil {
		return nil, errors.New("private key is nil")
	}

	r, s, err := ecdsa.Sign(rand.Reader, privateKey, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign with ECDSA: %w", err)
	}

	return MarshalECDSASignatureDER(r, s)
}

// MarshalECDSASignatureDER converts ECDSA signature components to DER format
func MarshalECDSASignatureDER(r, s *big.Int) ([]byte, error) {
	return asn1.Marshal(ECDSASignature{R: r, S: s})
}

// VerifyP256 verifies a P-256 signature over digest
func VerifyP256(publicKey, digest, signature []byte) bool {
	pub, err := ParseP256PublicKey(publicKey)
	if err != nil {
		return false
	}

	// r || s, 64 bytes total
	if len(signature) == 64 {
		r := new(big.Int).SetBytes(signature[:32])
		s := new(big.Int).SetBytes(signature[32:])
		return ecdsa.Verify(pub, digest, r, s)
	}

	return ecdsa.VerifyASN1(pub, digest, signature)
}

// ParseP256PublicKey parses an uncompressed or compressed SEC1 P-256 public key
func ParseP256PublicKey(data []byte) (*ecdsa.PublicKey, error) {
	curve := elliptic.P256()

	switch {
	case len(data) == 65 && data[0] == 0x04:
		x := new(big.Int).SetBytes(data[1:33])
		y := new(big.Int).SetBytes(data[33:])
		if !curve.IsOnCurve(x, y) {
			return nil, errors.New("public key is not on the P256 curve")
		}
		return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
	case len(data) == 33 && (data[0] == 0x02 || data[0] == 0x03):
		x, y := elliptic.UnmarshalCompressed(curve, data)
		if x == nil {
			return nil, errors.New("invalid compressed P256 public key")
		}
		return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
	default:
		return nil, fmt.Errorf("expected 65-byte uncompressed or 33-byte compressed P256 key, got %d bytes", len(data))
	}
}

// MarshalP256PublicKey encodes a P-256 public key in uncompressed SEC1 form
func MarshalP256PublicKey(pub *ecdsa.PublicKey) []byte {
	out := make([]byte, 65)
	out[0] = 0x04
	pub.X.FillBytes(out[1:33])
	pub.Y.FillBytes(out[33:])
	return out
}
