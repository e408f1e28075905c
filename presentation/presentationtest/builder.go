// Package presentationtest builds signed presentations for tests. It plays the
// notary: it commits to a full transcript, discloses the requested ranges and
// signs the session header.
package presentationtest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/anchorageoss/tlsn-verifier/crypto"
	"github.com/anchorageoss/tlsn-verifier/merkle"
	"github.com/anchorageoss/tlsn-verifier/presentation"
	"github.com/anchorageoss/tlsn-verifier/transcript"
)

// Notary signs canonical session headers
type Notary interface {
	Sign(message []byte) ([]byte, error)
	PublicKey() []byte
	Suite() *crypto.Suite
}

// P256Notary signs with an ECDSA P-256 key
type P256Notary struct {
	key   *ecdsa.PrivateKey
	suite *crypto.Suite
}

// NewP256Notary generates a P-256 notary using the given hash
func NewP256Notary(hash crypto.HashAlgorithm) (*P256Notary, error) {
	suite, err := crypto.NewSuite(crypto.SchemeP256, hash)
	if err != nil {
		return nil, err
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &P256Notary{key: key, suite: suite}, nil
}

func (n *P256Notary) Sign(message []byte) ([]byte, error) {
	return crypto.SignP256(n.key, n.suite.Hash(message))
}

func (n *P256Notary) PublicKey() []byte {
	return crypto.MarshalP256PublicKey(&n.key.PublicKey)
}

func (n *P256Notary) Suite() *crypto.Suite {
	return n.suite
}

// Secp256k1Notary signs with a secp256k1 key
type Secp256k1Notary struct {
	key   *secp256k1.PrivateKey
	suite *crypto.Suite
}

// NewSecp256k1Notary generates a secp256k1 notary using the given hash
func NewSecp256k1Notary(hash crypto.HashAlgorithm) (*Secp256k1Notary, error) {
	suite, err := crypto.NewSuite(crypto.SchemeSecp256k1, hash)
	if err != nil {
		return nil, err
	}
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &Secp256k1Notary{key: key, suite: suite}, nil
}

func (n *Secp256k1Notary) Sign(message []byte) ([]byte, error) {
	return crypto.SignSecp256k1(n.key, n.suite.Hash(message))
}

func (n *Secp256k1Notary) PublicKey() []byte {
	return n.key.PubKey().SerializeCompressed()
}

func (n *Secp256k1Notary) Suite() *crypto.Suite {
	return n.suite
}

type span struct {
	dir        presentation.Direction
	start, end int
	disclosed  bool
}

// Builder assembles a presentation over a full transcript
type Builder struct {
	notary     Notary
	serverName string
	time       uint64
	sent       []byte
	received   []byte
	reveals    map[presentation.Direction][][2]int
	embedKey   bool
}

// NewBuilder starts a presentation for api.example.com signed by notary
func NewBuilder(notary Notary) *Builder {
	return &Builder{
		notary:     notary,
		serverName: "api.example.com",
		time:       1700000000,
		reveals:    map[presentation.Direction][][2]int{},
		embedKey:   true,
	}
}

// ServerName sets the notarized server name
func (b *Builder) ServerName(name string) *Builder {
	b.serverName = name
	return b
}

// Time sets the session time
func (b *Builder) Time(t uint64) *Builder {
	b.time = t
	return b
}

// Transcript sets the full sent and received data
func (b *Builder) Transcript(sent, received []byte) *Builder {
	b.sent = sent
	b.received = received
	return b
}

// Reveal discloses [start, end) of one direction
func (b *Builder) Reveal(dir presentation.Direction, start, end int) *Builder {
	b.reveals[dir] = append(b.reveals[dir], [2]int{start, end})
	return b
}

// RevealAll discloses both directions completely
func (b *Builder) RevealAll() *Builder {
	if len(b.sent) > 0 {
		b.Reveal(presentation.Sent, 0, len(b.sent))
	}
	if len(b.received) > 0 {
		b.Reveal(presentation.Received, 0, len(b.received))
	}
	return b
}

// EmbedKey controls whether the signature carries the notary key and scheme
func (b *Builder) EmbedKey(embed bool) *Builder {
	b.embedKey = embed
	return b
}

// Build commits to the transcript and returns the signed presentation
func (b *Builder) Build() (*presentation.Presentation, error) {
	suite := b.notary.Suite()

	var spans []span
	for _, dir := range []presentation.Direction{presentation.Sent, presentation.Received} {
		full := b.received
		if dir == presentation.Sent {
			full = b.sent
		}
		s, err := partition(dir, len(full), b.reveals[dir])
		if err != nil {
			return nil, err
		}
		spans = append(spans, s...)
	}

	leaves := make([][]byte, len(spans))
	for i, s := range spans {
		preimage, err := transcript.LeafPreimage(s.dir, uint64(s.start), uint64(s.end), blinder(s), b.data(s))
		if err != nil {
			return nil, err
		}
		leaves[i] = merkle.LeafHash(suite, preimage)
	}
	root := merkle.Root(suite, leaves)

	treeSize := uint64(len(leaves))
	sentLen := uint64(len(b.sent))
	receivedLen := uint64(len(b.received))
	proof := &presentation.TranscriptProof{
		Sent:        presentation.Bytes{},
		Received:    presentation.Bytes{},
		SentLen:     &sentLen,
		ReceivedLen: &receivedLen,
		TreeSize:    &treeSize,
		Ranges:      []presentation.ProvenRange{},
	}

	for i, s := range spans {
		if !s.disclosed {
			continue
		}
		path, err := merkle.InclusionProof(suite, uint64(i), leaves)
		if err != nil {
			return nil, err
		}
		wirePath := make([]presentation.Bytes, len(path))
		for j, p := range path {
			wirePath[j] = p
		}
		index := uint64(i)
		proof.Ranges = append(proof.Ranges, presentation.ProvenRange{
			Start:     uint64(s.start),
			End:       uint64(s.end),
			Direction: s.dir.String(),
			LeafIndex: &index,
			Blinder:   blinder(s),
			Path:      wirePath,
		})
		if s.dir == presentation.Sent {
			proof.Sent = append(proof.Sent, b.data(s)...)
		} else {
			proof.Received = append(proof.Received, b.data(s)...)
		}
	}

	header := &presentation.SessionHeader{
		ServerName:    b.serverName,
		HandshakeHash: root,
		Time:          b.time,
	}
	message, err := presentation.CanonicalHeader(header)
	if err != nil {
		return nil, err
	}
	sig, err := b.notary.Sign(message)
	if err != nil {
		return nil, err
	}

	signature := &presentation.NotarySignature{Value: sig}
	if b.embedKey {
		signature.PublicKey = b.notary.PublicKey()
		signature.Scheme = suite.Scheme()
	}

	return &presentation.Presentation{
		SessionHeader:   header,
		TranscriptProof: proof,
		Signature:       signature,
	}, nil
}

// BuildJSON builds the presentation and serializes it as JSON
func (b *Builder) BuildJSON() ([]byte, error) {
	p, err := b.Build()
	if err != nil {
		return nil, err
	}
	return presentation.EncodeJSON(p)
}

func (b *Builder) data(s span) []byte {
	if s.dir == presentation.Sent {
		return b.sent[s.start:s.end]
	}
	return b.received[s.start:s.end]
}

// partition splits [0, length) into disclosed spans and the redacted gaps between them
func partition(dir presentation.Direction, length int, reveals [][2]int) ([]span, error) {
	sorted := append([][2]int(nil), reveals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i][0] < sorted[j][0] })

	var out []span
	pos := 0
	for _, r := range sorted {
		if r[0] < pos || r[1] <= r[0] || r[1] > length {
			return nil, fmt.Errorf("bad %s reveal [%d, %d) for length %d", dir, r[0], r[1], length)
		}
		if r[0] > pos {
			out = append(out, span{dir: dir, start: pos, end: r[0]})
		}
		out = append(out, span{dir: dir, start: r[0], end: r[1], disclosed: true})
		pos = r[1]
	}
	if pos < length {
		out = append(out, span{dir: dir, start: pos, end: length})
	}
	return out, nil
}

// blinder derives a fixed per-span blinder so fixtures are reproducible
func blinder(s span) []byte {
	out := make([]byte, 16)
	out[0] = byte(s.dir)
	binary.BigEndian.PutUint64(out[8:], uint64(s.start))
	return crypto.SHA256(out)[:16]
}
