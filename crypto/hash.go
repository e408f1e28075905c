package crypto

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// HashAlgorithm names a 32-byte hash function
type HashAlgorithm string

const (
	HashSHA256     HashAlgorithm = "sha256"
	HashSHA3_256   HashAlgorithm = "sha3-256"
	HashBLAKE2b256 HashAlgorithm = "blake2b-256"
)

// Sum hashes data, failing for unknown algorithms
func (a HashAlgorithm) Sum(data []byte) ([]byte, error) {
	switch a {
	case HashSHA256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	case HashSHA3_256:
		sum := sha3.Sum256(data)
		return sum[:], nil
	case HashBLAKE2b256:
		sum := blake2b.Sum256(data)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", string(a))
	}
}

// SHA256 hashes data with SHA-256
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
