package merkle

import (
	"fmt"
	"math/bits"
)

// Root and InclusionProof build trees and audit paths for the presentation
// builder used in tests; verification goes through VerifyInclusion.

// Root computes the root of a tree over already hashed leaves.
// An empty tree hashes to H("").
func Root(h Hasher, leaves [][]byte) []byte {
	switch len(leaves) {
	case 0:
		return h.Hash(nil)
	case 1:
		return leaves[0]
	}
	k := split(uint64(len(leaves)))
	return NodeHash(h, Root(h, leaves[:k]), Root(h, leaves[k:]))
}

// InclusionProof builds the audit path for the leaf at index
func InclusionProof(h Hasher, index uint64, leaves [][]byte) ([][]byte, error) {
	if index >= uint64(len(leaves)) {
		return nil, fmt.Errorf("%w: index %d, size %d", ErrIndexOutOfRange, index, len(leaves))
	}
	return path(h, index, leaves), nil
}

func path(h Hasher, m uint64, leaves [][]byte) [][]byte {
	n := uint64(len(leaves))
	if n <= 1 {
		return nil
	}
	k := split(n)
	if m < k {
		return append(path(h, m, leaves[:k]), Root(h, leaves[k:]))
	}
	return append(path(h, m-k, leaves[k:]), Root(h, leaves[:k]))
}

// split returns the largest power of two strictly below n (n > 1)
func split(n uint64) uint64 {
	return uint64(1) << (bits.Len64(n-1) - 1)
}
