package presentation

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeHash computes the SHA256 hash of the serialized presentation bytes
func ComputeHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
