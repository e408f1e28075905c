// Package transcript verifies transcript inclusion proofs and rebuilds the partially
// disclosed transcript they prove.
//
// Every disclosed range is a leaf in the notary's commitment tree. Verify recomputes
// each leaf from the disclosed bytes, walks its audit path and compares the result
// with the committed root, stopping at the first range that does not check out.
// Reconstruct places the proven bytes into full-length buffers with a presence
// bitmap, so redacted bytes are never confused with real ones.
package transcript

import (
	"errors"
	"fmt"

	"github.com/anchorageoss/tlsn-verifier/merkle"
	"github.com/anchorageoss/tlsn-verifier/presentation"
)

var (
	ErrInvalidRange   = errors.New("range start is after its end")
	ErrEmptyRange     = errors.New("zero-length range not declared empty")
	ErrOutOfBounds    = errors.New("range exceeds transcript length")
	ErrOverlap        = errors.New("range overlaps or precedes the previous range")
	ErrLengthMismatch = errors.New("disclosed bytes do not match range lengths")
	ErrLeafIndex      = errors.New("invalid leaf index")
	ErrDuplicateLeaf  = errors.New("leaf index used twice")
	ErrRootMismatch   = errors.New("range does not authenticate against the committed root")
	ErrTooLong        = errors.New("stated transcript length exceeds limit")
)

// DefaultMaxLength bounds the stated length of each direction unless WithMaxLength overrides it
const DefaultMaxLength = 16 << 20

type verifyConfig struct {
	maxLength int
}

// VerifyOption tunes Verify
type VerifyOption func(*verifyConfig)

// WithMaxLength caps the stated length of each direction; n <= 0 keeps the default
func WithMaxLength(n int) VerifyOption {
	return func(c *verifyConfig) {
		if n > 0 {
			c.maxLength = n
		}
	}
}

// RangeError reports which range of a proof failed
type RangeError struct {
	Index int
	Err   error
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range %d: %v", e.Index, e.Err)
}

func (e *RangeError) Unwrap() error {
	return e.Err
}

// DisclosedRange is one authenticated range and its bytes
type DisclosedRange struct {
	Direction presentation.Direction `json:"direction"`
	Start     int                    `json:"start"`
	End       int                    `json:"end"`
	Data      []byte                 `json:"-"`
}

// Len returns the number of bytes in the range
func (r DisclosedRange) Len() int {
	return r.End - r.Start
}

// Disclosure is the verified content of a transcript proof
type Disclosure struct {
	SentLen     int
	ReceivedLen int
	Ranges      []DisclosedRange
}

// In returns the ranges of one direction in proof order
func (d *Disclosure) In(dir presentation.Direction) []DisclosedRange {
	var out []DisclosedRange
	for _, r := range d.Ranges {
		if r.Direction == dir {
			out = append(out, r)
		}
	}
	return out
}

var directions = []presentation.Direction{presentation.Sent, presentation.Received}

type cursor struct {
	stated  uint64
	packed  []byte
	offset  uint64
	lastEnd uint64
}

// Verify checks every range of proof against root and returns the disclosed ranges.
// Stated lengths are not covered by the commitment, so they are bounded before
// anything is sized from them.
func Verify(proof *presentation.TranscriptProof, root []byte, h merkle.Hasher, opts ...VerifyOption) (*Disclosure, error) {
	if proof == nil {
		return nil, errors.New("transcript proof is nil")
	}
	cfg := verifyConfig{maxLength: DefaultMaxLength}
	for _, opt := range opts {
		opt(&cfg)
	}

	cursors := map[presentation.Direction]*cursor{}
	for _, dir := range directions {
		c := &cursor{stated: proof.StatedLen(dir), packed: proof.Packed(dir)}
		if c.stated > uint64(cfg.maxLength) {
			return nil, fmt.Errorf("%w: %s length %d, limit %d", ErrTooLong, dir, c.stated, cfg.maxLength)
		}
		if uint64(len(c.packed)) > c.stated {
			return nil, fmt.Errorf("%w: %d %s bytes disclosed but transcript length is %d",
				ErrLengthMismatch, len(c.packed), dir, c.stated)
		}
		cursors[dir] = c
	}

	disclosure := &Disclosure{
		SentLen:     int(cursors[presentation.Sent].stated),
		ReceivedLen: int(cursors[presentation.Received].stated),
		Ranges:      make([]DisclosedRange, 0, len(proof.Ranges)),
	}

	size := proof.Leaves()
	seen := make(map[uint64]struct{}, len(proof.Ranges))

	for i := range proof.Ranges {
		r := &proof.Ranges[i]
		dir := r.Dir()
		c := cursors[dir]

		data, err := checkRange(r, i, c, size, seen)
		if err != nil {
			return nil, &RangeError{Index: i, Err: err}
		}

		preimage, err := LeafPreimage(dir, r.Start, r.End, r.Blinder, data)
		if err != nil {
			return nil, &RangeError{Index: i, Err: err}
		}
		leafHash := merkle.LeafHash(h, preimage)
		if err := merkle.VerifyInclusion(h, r.Index(i), size, leafHash, r.AuditPath(), root); err != nil {
			if errors.Is(err, merkle.ErrRootMismatch) {
				err = ErrRootMismatch
			}
			return nil, &RangeError{Index: i, Err: err}
		}

		disclosure.Ranges = append(disclosure.Ranges, DisclosedRange{
			Direction: dir,
			Start:     int(r.Start),
			End:       int(r.End),
			Data:      data,
		})
	}

	for _, dir := range directions {
		c := cursors[dir]
		if c.offset != uint64(len(c.packed)) {
			return nil, fmt.Errorf("%w: %d %s bytes disclosed but ranges cover %d",
				ErrLengthMismatch, len(c.packed), dir, c.offset)
		}
	}

	return disclosure, nil
}

// checkRange applies the structural rules to one range and slices its bytes
func checkRange(r *presentation.ProvenRange, position int, c *cursor, size uint64, seen map[uint64]struct{}) ([]byte, error) {
	if r.Start > r.End {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, r.Start, r.End)
	}
	length := r.End - r.Start
	if length == 0 && !r.Empty {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrEmptyRange, r.Start, r.End)
	}
	if length > 0 && r.Empty {
		return nil, fmt.Errorf("%w: [%d, %d) declared empty", ErrInvalidRange, r.Start, r.End)
	}
	if r.End > c.stated {
		return nil, fmt.Errorf("%w: end %d, length %d", ErrOutOfBounds, r.End, c.stated)
	}
	if r.Start < c.lastEnd {
		return nil, fmt.Errorf("%w: start %d, previous end %d", ErrOverlap, r.Start, c.lastEnd)
	}

	index := r.Index(position)
	if index >= size {
		return nil, fmt.Errorf("%w: %d not below tree size %d", ErrLeafIndex, index, size)
	}
	if _, dup := seen[index]; dup {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateLeaf, index)
	}

	if c.offset+length > uint64(len(c.packed)) {
		return nil, fmt.Errorf("%w: range needs %d bytes, %d left",
			ErrLengthMismatch, length, uint64(len(c.packed))-c.offset)
	}

	data := c.packed[c.offset : c.offset+length]
	c.offset += length
	c.lastEnd = r.End
	seen[index] = struct{}{}
	return data, nil
}
