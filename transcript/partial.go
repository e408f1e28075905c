package transcript

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/anchorageoss/tlsn-verifier/presentation"
)

// Partial is a transcript of known length in which only some bytes are disclosed.
// Undisclosed positions hold zero in the buffer but are never reported as data.
type Partial struct {
	data    []byte
	present *bitset.BitSet
}

// Segment is a maximal run of disclosed bytes
type Segment struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Data  []byte `json:"-"`
}

// NewPartial creates a fully redacted transcript of the given length
func NewPartial(length int) *Partial {
	return &Partial{
		data:    make([]byte, length),
		present: bitset.New(uint(length)),
	}
}

// Disclose marks data as present at offset start
func (p *Partial) Disclose(start int, data []byte) error {
	if start < 0 || start+len(data) > len(p.data) {
		return fmt.Errorf("%w: [%d, %d) beyond length %d", ErrOutOfBounds, start, start+len(data), len(p.data))
	}
	copy(p.data[start:], data)
	for i := range data {
		p.present.Set(uint(start + i))
	}
	return nil
}

// Len returns the full transcript length, disclosed or not
func (p *Partial) Len() int {
	return len(p.data)
}

// At returns the byte at i and whether it was disclosed
func (p *Partial) At(i int) (byte, bool) {
	if i < 0 || i >= len(p.data) || !p.present.Test(uint(i)) {
		return 0, false
	}
	return p.data[i], true
}

// DisclosedCount returns the number of disclosed bytes
func (p *Partial) DisclosedCount() int {
	return int(p.present.Count())
}

// Complete reports whether every byte is disclosed
func (p *Partial) Complete() bool {
	return p.DisclosedCount() == len(p.data)
}

// Bytes returns a copy of the transcript if it is complete
func (p *Partial) Bytes() ([]byte, bool) {
	if !p.Complete() {
		return nil, false
	}
	return append([]byte(nil), p.data...), true
}

// Segments returns the disclosed runs in order
func (p *Partial) Segments() []Segment {
	var out []Segment
	length := uint(len(p.data))
	for pos := uint(0); pos < length; {
		start, ok := p.present.NextSet(pos)
		if !ok || start >= length {
			break
		}
		end, ok := p.present.NextClear(start)
		if !ok || end > length {
			end = length
		}
		out = append(out, Segment{
			Start: int(start),
			End:   int(end),
			Data:  append([]byte(nil), p.data[start:end]...),
		})
		pos = end
	}
	return out
}

// Redacted returns the undisclosed runs in order
func (p *Partial) Redacted() [][2]int {
	var out [][2]int
	prev := 0
	for _, s := range p.Segments() {
		if s.Start > prev {
			out = append(out, [2]int{prev, s.Start})
		}
		prev = s.End
	}
	if prev < len(p.data) {
		out = append(out, [2]int{prev, len(p.data)})
	}
	return out
}

// Transcript is the reconstructed sent and received data of a session
type Transcript struct {
	Sent     *Partial
	Received *Partial
}

// Side returns the partial transcript of one direction
func (t *Transcript) Side(d presentation.Direction) *Partial {
	if d == presentation.Sent {
		return t.Sent
	}
	return t.Received
}

// Reconstruct lays the disclosed ranges into full-length transcripts
func Reconstruct(d *Disclosure) (*Transcript, error) {
	if d.SentLen < 0 || d.ReceivedLen < 0 {
		return nil, fmt.Errorf("%w: negative transcript length", ErrOutOfBounds)
	}
	t := &Transcript{
		Sent:     NewPartial(d.SentLen),
		Received: NewPartial(d.ReceivedLen),
	}
	for i, r := range d.Ranges {
		if len(r.Data) != r.Len() {
			return nil, &RangeError{Index: i, Err: ErrLengthMismatch}
		}
		if err := t.Side(r.Direction).Disclose(r.Start, r.Data); err != nil {
			return nil, &RangeError{Index: i, Err: err}
		}
	}
	return t, nil
}
