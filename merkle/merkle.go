// Package merkle adapts a pluggable hash function to RFC 6962 tree hashing and
// verifies inclusion proofs with github.com/transparency-dev/merkle.
//
// Leaves and interior nodes are domain separated:
//
//	leaf = H(0x00 || preimage)
//	node = H(0x01 || left || right)
//
// VerifyInclusion recomputes the root a leaf commits to, given its index, the
// tree size and the audit path, and compares it with the expected root in
// constant time.
package merkle

import (
	"crypto/subtle"
	"errors"
	"fmt"

	tdmerkle "github.com/transparency-dev/merkle"
	"github.com/transparency-dev/merkle/proof"
)

const (
	leafPrefix = 0x00
	nodePrefix = 0x01
)

var (
	// ErrIndexOutOfRange is returned when a leaf index is not below the tree size.
	ErrIndexOutOfRange = errors.New("leaf index out of range")
	// ErrInvalidProof is returned when an audit path cannot be evaluated at all.
	ErrInvalidProof = errors.New("invalid audit path")
	// ErrRootMismatch is returned when the recomputed root differs from the expected one.
	ErrRootMismatch = errors.New("root mismatch")
)

// Hasher computes the digest used for leaves and nodes
type Hasher interface {
	Hash(data []byte) []byte
}

// TreeHasher is a tdmerkle.LogHasher over an arbitrary Hasher
type TreeHasher struct {
	h    Hasher
	size int
}

var _ tdmerkle.LogHasher = (*TreeHasher)(nil)

// NewTreeHasher wraps h; the digest size is taken from the hash of the empty string
func NewTreeHasher(h Hasher) *TreeHasher {
	return &TreeHasher{h: h, size: len(h.Hash(nil))}
}

// EmptyRoot returns the root of a tree with no leaves
func (t *TreeHasher) EmptyRoot() []byte {
	return t.h.Hash(nil)
}

// HashLeaf hashes a leaf preimage
func (t *TreeHasher) HashLeaf(leaf []byte) []byte {
	buf := make([]byte, 0, len(leaf)+1)
	buf = append(buf, leafPrefix)
	buf = append(buf, leaf...)
	return t.h.Hash(buf)
}

// HashChildren hashes two child digests into their parent
func (t *TreeHasher) HashChildren(left, right []byte) []byte {
	buf := make([]byte, 0, len(left)+len(right)+1)
	buf = append(buf, nodePrefix)
	buf = append(buf, left...)
	buf = append(buf, right...)
	return t.h.Hash(buf)
}

// Size returns the digest length in bytes
func (t *TreeHasher) Size() int {
	return t.size
}

// LeafHash hashes a leaf preimage
func LeafHash(h Hasher, preimage []byte) []byte {
	return NewTreeHasher(h).HashLeaf(preimage)
}

// NodeHash hashes two child digests into their parent
func NodeHash(h Hasher, left, right []byte) []byte {
	return NewTreeHasher(h).HashChildren(left, right)
}

// RootFromInclusionProof recomputes the tree root from a leaf hash and its audit path
func RootFromInclusionProof(h Hasher, index, size uint64, leafHash []byte, path [][]byte) ([]byte, error) {
	if index >= size {
		return nil, fmt.Errorf("%w: index %d, size %d", ErrIndexOutOfRange, index, size)
	}
	root, err := proof.RootFromInclusionProof(NewTreeHasher(h), index, size, leafHash, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	return root, nil
}

// VerifyInclusion checks that leafHash sits at index in a tree of the given size with root
func VerifyInclusion(h Hasher, index, size uint64, leafHash []byte, path [][]byte, root []byte) error {
	computed, err := RootFromInclusionProof(h, index, size, leafHash, path)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(computed, root) != 1 {
		return ErrRootMismatch
	}
	return nil
}
