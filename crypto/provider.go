// Package crypto provides the signature schemes and hash functions used to check
// notary commitments.
//
// A Provider couples one signature scheme with one hash function. The verification
// pipeline never calls a primitive directly, so a different scheme or hash can be
// plugged in without touching the pipeline.
//
// # Schemes
//
//   - p256: ECDSA over NIST P-256. Signatures are 64-byte r||s or ASN.1 DER.
//     Public keys are SEC1 uncompressed (65 bytes) or compressed (33 bytes).
//   - secp256k1: ECDSA over secp256k1. Signatures are 65-byte compact recoverable,
//     64-byte r||s or DER. Public keys are SEC1 encoded.
//
// # Hashes
//
//   - sha256
//   - sha3-256
//   - blake2b-256
//
// The signed message is hashed with the suite hash and the digest is what the
// scheme signs:
//
//	suite, err := crypto.NewSuite(crypto.SchemeP256, crypto.HashSHA256)
//	if err != nil {
//		log.Fatal(err)
//	}
//	ok := suite.Verify(message, signature, publicKey)
package crypto

import (
	"fmt"
	"strings"
)

// Provider verifies signatures and hashes data for the verification pipeline
type Provider interface {
	Verify(message, signature, publicKey []byte) bool
	Hash(data []byte) []byte
}

// SchemeNamer is implemented by providers that can report their signature scheme
type SchemeNamer interface {
	Scheme() string
}

// Scheme names a signature scheme
type Scheme string

const (
	SchemeP256      Scheme = "p256"
	SchemeSecp256k1 Scheme = "secp256k1"
)

// Suite is a Provider built from a named scheme and hash algorithm
type Suite struct {
	scheme Scheme
	hash   HashAlgorithm
}

// NewSuite creates a Suite, rejecting unknown scheme or hash names
func NewSuite(scheme Scheme, hash HashAlgorithm) (*Suite, error) {
	scheme = Scheme(strings.ToLower(string(scheme)))
	switch scheme {
	case SchemeP256, SchemeSecp256k1:
	default:
		return nil, fmt.Errorf("unsupported signature scheme: %q", scheme)
	}

	hash = HashAlgorithm(strings.ToLower(string(hash)))
	if _, err := hash.Sum(nil); err != nil {
		return nil, err
	}

	return &Suite{scheme: scheme, hash: hash}, nil
}

// DefaultSuite returns the P-256 / SHA-256 suite
func DefaultSuite() *Suite {
	return &Suite{scheme: SchemeP256, hash: HashSHA256}
}

// Scheme returns the signature scheme name
func (s *Suite) Scheme() string {
	return string(s.scheme)
}

// HashName returns the hash algorithm name
func (s *Suite) HashName() string {
	return string(s.hash)
}

// Hash digests data with the suite hash
func (s *Suite) Hash(data []byte) []byte {
	sum, _ := s.hash.Sum(data)
	return sum
}

// Verify checks signature over message for publicKey
func (s *Suite) Verify(message, signature, publicKey []byte) bool {
	digest := s.Hash(message)
	switch s.scheme {
	case SchemeP256:
		return VerifyP256(publicKey, digest, signature)
	case SchemeSecp256k1:
		return VerifySecp256k1(publicKey, digest, signature)
	default:
		return false
	}
}
