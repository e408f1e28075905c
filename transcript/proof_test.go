package transcript_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorageoss/tlsn-verifier/crypto"
	"github.com/anchorageoss/tlsn-verifier/presentation"
	"github.com/anchorageoss/tlsn-verifier/presentation/presentationtest"
	"github.com/anchorageoss/tlsn-verifier/transcript"
)

const (
	request  = "GET /balance HTTP/1.1\r\nHost: api.example.com\r\nAuthorization: Bearer secret\r\n\r\n"
	response = "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\n\r\n{\"balance\":100,\"owner\":\"alice\"}"
)

func newNotary(t *testing.T) *presentationtest.P256Notary {
	n, err := presentationtest.NewP256Notary(crypto.HashSHA256)
	require.NoError(t, err)
	return n
}

func build(t *testing.T, b *presentationtest.Builder) *presentation.Presentation {
	p, err := b.Build()
	require.NoError(t, err)
	return p
}

func TestVerifyFullDisclosure(t *testing.T) {
	n := newNotary(t)
	p := build(t, presentationtest.NewBuilder(n).Transcript([]byte(request), []byte(response)).RevealAll())

	d, err := transcript.Verify(p.TranscriptProof, p.SessionHeader.HandshakeHash, n.Suite())
	require.NoError(t, err)
	require.Len(t, d.Ranges, 2)
	assert.Equal(t, len(request), d.SentLen)
	assert.Equal(t, len(response), d.ReceivedLen)
	assert.Equal(t, []byte(request), d.In(presentation.Sent)[0].Data)
	assert.Equal(t, []byte(response), d.In(presentation.Received)[0].Data)
}

func TestVerifyPartialDisclosure(t *testing.T) {
	n := newNotary(t)
	secretStart := len("GET /balance HTTP/1.1\r\nHost: api.example.com\r\nAuthorization: Bearer ")
	p := build(t, presentationtest.NewBuilder(n).
		Transcript([]byte(request), []byte(response)).
		Reveal(presentation.Sent, 0, secretStart).
		Reveal(presentation.Sent, secretStart+6, len(request)).
		Reveal(presentation.Received, 0, len(response)))

	d, err := transcript.Verify(p.TranscriptProof, p.SessionHeader.HandshakeHash, n.Suite())
	require.NoError(t, err)
	require.Len(t, d.In(presentation.Sent), 2)
	assert.NotContains(t, string(p.TranscriptProof.Sent), "secret")
}

func TestVerifyEmptyRanges(t *testing.T) {
	proof := &presentation.TranscriptProof{Ranges: []presentation.ProvenRange{}}
	d, err := transcript.Verify(proof, []byte{1, 2, 3}, crypto.DefaultSuite())
	require.NoError(t, err)
	assert.Empty(t, d.Ranges)

	t.Run("bytes without ranges", func(t *testing.T) {
		proof := &presentation.TranscriptProof{Received: presentation.Bytes{1}, Ranges: []presentation.ProvenRange{}}
		_, err := transcript.Verify(proof, []byte{1, 2, 3}, crypto.DefaultSuite())
		require.ErrorIs(t, err, transcript.ErrLengthMismatch)
	})
}

func TestVerifyFailFast(t *testing.T) {
	n := newNotary(t)
	fresh := func() *presentation.Presentation {
		return build(t, presentationtest.NewBuilder(n).
			Transcript([]byte(request), []byte(response)).
			Reveal(presentation.Sent, 0, 10).
			Reveal(presentation.Received, 0, 8).
			Reveal(presentation.Received, 20, 30))
	}

	u := func(v uint64) *uint64 { return &v }

	tests := []struct {
		name      string
		mutate    func(p *presentation.Presentation)
		wantErr   error
		wantIndex int
	}{
		{
			name:      "bad path node in one range",
			mutate:    func(p *presentation.Presentation) { p.TranscriptProof.Ranges[2].Path[0][0] ^= 0xff },
			wantErr:   transcript.ErrRootMismatch,
			wantIndex: 2,
		},
		{
			name:      "altered disclosed byte",
			mutate:    func(p *presentation.Presentation) { p.TranscriptProof.Received[0] ^= 0x01 },
			wantErr:   transcript.ErrRootMismatch,
			wantIndex: 1,
		},
		{
			name:      "altered blinder",
			mutate:    func(p *presentation.Presentation) { p.TranscriptProof.Ranges[0].Blinder[0] ^= 0x01 },
			wantErr:   transcript.ErrRootMismatch,
			wantIndex: 0,
		},
		{
			name:      "shifted range",
			mutate:    func(p *presentation.Presentation) { p.TranscriptProof.Ranges[2].Start, p.TranscriptProof.Ranges[2].End = 21, 31 },
			wantErr:   transcript.ErrRootMismatch,
			wantIndex: 2,
		},
		{
			name:      "end beyond stated length",
			mutate:    func(p *presentation.Presentation) { p.TranscriptProof.ReceivedLen = u(25) },
			wantErr:   transcript.ErrOutOfBounds,
			wantIndex: 2,
		},
		{
			name: "overlap",
			mutate: func(p *presentation.Presentation) {
				p.TranscriptProof.Ranges[2].Start, p.TranscriptProof.Ranges[2].End = 5, 15
			},
			wantErr:   transcript.ErrOverlap,
			wantIndex: 2,
		},
		{
			name:      "start after end",
			mutate:    func(p *presentation.Presentation) { p.TranscriptProof.Ranges[1].Start = 9 },
			wantErr:   transcript.ErrInvalidRange,
			wantIndex: 1,
		},
		{
			name:      "undeclared zero length",
			mutate:    func(p *presentation.Presentation) { p.TranscriptProof.Ranges[1].End = 0 },
			wantErr:   transcript.ErrEmptyRange,
			wantIndex: 1,
		},
		{
			name:      "duplicate leaf index",
			mutate:    func(p *presentation.Presentation) { p.TranscriptProof.Ranges[2].LeafIndex = p.TranscriptProof.Ranges[1].LeafIndex },
			wantErr:   transcript.ErrDuplicateLeaf,
			wantIndex: 2,
		},
		{
			name:      "leaf index beyond tree",
			mutate:    func(p *presentation.Presentation) { p.TranscriptProof.Ranges[0].LeafIndex = u(99) },
			wantErr:   transcript.ErrLeafIndex,
			wantIndex: 0,
		},
		{
			name:      "packed bytes too short",
			mutate:    func(p *presentation.Presentation) { p.TranscriptProof.Received = p.TranscriptProof.Received[:12] },
			wantErr:   transcript.ErrLengthMismatch,
			wantIndex: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fresh()
			tt.mutate(p)

			_, err := transcript.Verify(p.TranscriptProof, p.SessionHeader.HandshakeHash, n.Suite())
			require.ErrorIs(t, err, tt.wantErr)

			var rangeErr *transcript.RangeError
			require.ErrorAs(t, err, &rangeErr)
			assert.Equal(t, tt.wantIndex, rangeErr.Index)
		})
	}

	t.Run("extra packed bytes", func(t *testing.T) {
		p := fresh()
		p.TranscriptProof.Received = append(p.TranscriptProof.Received, 'x')
		_, err := transcript.Verify(p.TranscriptProof, p.SessionHeader.HandshakeHash, n.Suite())
		require.ErrorIs(t, err, transcript.ErrLengthMismatch)
	})

	t.Run("wrong root", func(t *testing.T) {
		p := fresh()
		_, err := transcript.Verify(p.TranscriptProof, []byte("another root"), n.Suite())
		require.ErrorIs(t, err, transcript.ErrRootMismatch)
	})
}

func TestVerifyDeclaredEmptyRange(t *testing.T) {
	suite := crypto.DefaultSuite()
	preimage, err := transcript.LeafPreimage(presentation.Received, 3, 3, nil, nil)
	require.NoError(t, err)
	root := merkleLeaf(suite, preimage)
	size := uint64(5)

	proof := &presentation.TranscriptProof{
		ReceivedLen: &size,
		Ranges:      []presentation.ProvenRange{{Start: 3, End: 3, Empty: true}},
	}
	d, err := transcript.Verify(proof, root, suite)
	require.NoError(t, err)
	require.Len(t, d.Ranges, 1)
	assert.Zero(t, d.Ranges[0].Len())

	proof.Ranges[0].Empty = false
	_, err = transcript.Verify(proof, root, suite)
	require.ErrorIs(t, err, transcript.ErrEmptyRange)
}

func TestVerifyScenarioShape(t *testing.T) {
	p, err := presentation.Parse([]byte(`{"session_header":{"server_name":"api.example.com","handshake_hash":[1,2,3,4]},"transcript_proof":{"sent":[],"received":[72,73],"ranges":[{"start":0,"end":2}]},"signature":[5,6,7,8]}`))
	require.NoError(t, err)

	d, err := transcript.Verify(p.TranscriptProof, p.SessionHeader.HandshakeHash, fixedHasher{1, 2, 3, 4})
	require.NoError(t, err)
	require.Len(t, d.Ranges, 1)
	assert.Equal(t, []byte("HI"), d.Ranges[0].Data)
	assert.Equal(t, presentation.Received, d.Ranges[0].Direction)
}

type fixedHasher []byte

func (f fixedHasher) Hash([]byte) []byte { return f }

func TestVerifyStatedLengthLimit(t *testing.T) {
	n := newNotary(t)

	tests := []struct {
		name   string
		length uint64
		opts   []transcript.VerifyOption
	}{
		{name: "beyond int range", length: 1 << 63},
		{name: "beyond slice range", length: 1 << 62},
		{name: "beyond default limit", length: transcript.DefaultMaxLength + 1},
		{name: "beyond configured limit", length: uint64(len(response)) + 1, opts: []transcript.VerifyOption{transcript.WithMaxLength(len(response))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := build(t, presentationtest.NewBuilder(n).
				Transcript([]byte(request), []byte(response)).
				Reveal(presentation.Received, 0, 4))
			length := tt.length
			p.TranscriptProof.ReceivedLen = &length

			_, err := transcript.Verify(p.TranscriptProof, p.SessionHeader.HandshakeHash, n.Suite(), tt.opts...)
			require.ErrorIs(t, err, transcript.ErrTooLong)
		})
	}

	t.Run("at the limit", func(t *testing.T) {
		p := build(t, presentationtest.NewBuilder(n).
			Transcript([]byte(request), []byte(response)).
			Reveal(presentation.Received, 0, 4))

		d, err := transcript.Verify(p.TranscriptProof, p.SessionHeader.HandshakeHash, n.Suite(),
			transcript.WithMaxLength(len(response)))
		require.NoError(t, err)
		assert.Equal(t, len(response), d.ReceivedLen)
	})
}
