package verify

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	nitroverifier "github.com/anchorageoss/awsnitroverifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorageoss/tlsn-verifier/attestation"
	"github.com/anchorageoss/tlsn-verifier/crypto"
	"github.com/anchorageoss/tlsn-verifier/presentation"
	"github.com/anchorageoss/tlsn-verifier/presentation/presentationtest"
	"github.com/anchorageoss/tlsn-verifier/testdata"
	"github.com/anchorageoss/tlsn-verifier/transcript"
)

const (
	request  = "GET /v1/account HTTP/1.1\r\nHost: api.example.com\r\nCookie: session=topsecret\r\n\r\n"
	response = "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\n\r\n{\"balance\":100,\"owner\":\"alice\"}"
)

// Mock implementations

type stubProvider struct {
	acceptSig   []byte
	message     []byte
	digest      []byte
	verifyCalls int
	hashCalls   int
}

func (s *stubProvider) Verify(message, signature, publicKey []byte) bool {
	s.verifyCalls++
	if s.message != nil && !bytes.Equal(message, s.message) {
		return false
	}
	return bytes.Equal(signature, s.acceptSig)
}

func (s *stubProvider) Hash(data []byte) []byte {
	s.hashCalls++
	return s.digest
}

type mockDocumentVerifier struct {
	result *nitroverifier.ValidationResult
	err    error
}

func (m *mockDocumentVerifier) Validate(attestationBytes []byte) (*nitroverifier.ValidationResult, error) {
	return m.result, m.err
}

func scenarioProvider(t *testing.T) *stubProvider {
	message, err := presentation.CanonicalHeader(&presentation.SessionHeader{
		ServerName:    "api.example.com",
		HandshakeHash: presentation.Bytes{1, 2, 3, 4},
	})
	require.NoError(t, err)
	return &stubProvider{acceptSig: []byte{5, 6, 7, 8}, message: message, digest: []byte{1, 2, 3, 4}}
}

func newNotary(t *testing.T) *presentationtest.P256Notary {
	n, err := presentationtest.NewP256Notary(crypto.HashSHA256)
	require.NoError(t, err)
	return n
}

func buildJSON(t *testing.T, b *presentationtest.Builder) []byte {
	raw, err := b.BuildJSON()
	require.NoError(t, err)
	return raw
}

func TestNewService(t *testing.T) {
	provider := crypto.DefaultSuite()
	service := NewService(provider, Options{})

	require.NotNil(t, service)
	require.Equal(t, provider, service.provider)
	require.NotNil(t, service.logger)
}

func TestVerifyScenario(t *testing.T) {
	provider := scenarioProvider(t)
	service := NewService(provider, Options{NotaryKey: []byte{0xaa}})

	result := service.VerifyDetailed(testdata.ScenarioJSON)
	require.NoError(t, result.Err)

	out := result.Output
	assert.True(t, out.Valid)
	assert.Equal(t, "api.example.com", out.ServerName)
	assert.Zero(t, out.Time)
	assert.Equal(t, "aa", out.NotaryPubKey)
	assert.Equal(t, presentation.ComputeHash(testdata.ScenarioJSON), out.ProofHash)
	assert.Equal(t, [][2]int{{0, 2}}, out.RedactedRanges)
	assert.Equal(t, map[string]any{"text": "HI"}, out.Data)
	assert.Empty(t, out.Error)

	received, ok := result.Transcript.Received.Bytes()
	require.True(t, ok)
	assert.Equal(t, []byte{72, 73}, received)
}

func TestVerifyValidPresentation(t *testing.T) {
	tests := []struct {
		name   string
		notary func(t *testing.T) presentationtest.Notary
	}{
		{"p256 sha256", func(t *testing.T) presentationtest.Notary { return newNotary(t) }},
		{"p256 blake2b", func(t *testing.T) presentationtest.Notary {
			n, err := presentationtest.NewP256Notary(crypto.HashBLAKE2b256)
			require.NoError(t, err)
			return n
		}},
		{"secp256k1 sha3", func(t *testing.T) presentationtest.Notary {
			n, err := presentationtest.NewSecp256k1Notary(crypto.HashSHA3_256)
			require.NoError(t, err)
			return n
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notary := tt.notary(t)
			raw := buildJSON(t, presentationtest.NewBuilder(notary).
				Transcript([]byte(request), []byte(response)).
				RevealAll())

			out := NewService(notary.Suite(), Options{}).Verify(raw)
			require.True(t, out.Valid, out.Error)
			assert.Equal(t, "api.example.com", out.ServerName)
			assert.Equal(t, uint64(1700000000), out.Time)
			assert.Equal(t, [][2]int{{0, len(response)}}, out.RedactedRanges)
			assert.Len(t, out.DisclosedRanges, 2)

			data, err := json.Marshal(out.Data)
			require.NoError(t, err)
			assert.JSONEq(t, `{"balance":100,"owner":"alice"}`, string(data))
		})
	}
}

func TestVerifyTamperedSignature(t *testing.T) {
	notary := newNotary(t)
	p, err := presentationtest.NewBuilder(notary).Transcript([]byte(request), []byte(response)).RevealAll().Build()
	require.NoError(t, err)

	p.Signature.Value[len(p.Signature.Value)/2] ^= 0x01
	raw, err := presentation.EncodeJSON(p)
	require.NoError(t, err)

	result := NewService(notary.Suite(), Options{}).VerifyDetailed(raw)
	assert.False(t, result.Output.Valid)
	require.ErrorIs(t, result.Err, ErrSignature)
	assert.Contains(t, result.Output.Error, "signature error")
	assert.Nil(t, result.Disclosure, "proof must not be checked after a signature failure")
}

func TestVerifyBadAuthenticationPath(t *testing.T) {
	notary := newNotary(t)
	p, err := presentationtest.NewBuilder(notary).
		Transcript([]byte(request), []byte(response)).
		Reveal(presentation.Sent, 0, 20).
		Reveal(presentation.Received, 0, 15).
		Reveal(presentation.Received, 50, len(response)).
		Build()
	require.NoError(t, err)

	p.TranscriptProof.Ranges[1].Path[0][3] ^= 0x80
	raw, err := presentation.EncodeJSON(p)
	require.NoError(t, err)

	result := NewService(notary.Suite(), Options{}).VerifyDetailed(raw)
	assert.False(t, result.Output.Valid)
	require.ErrorIs(t, result.Err, ErrProof)
	assert.Contains(t, result.Output.Error, "range 1")
	assert.Nil(t, result.Output.RedactedRanges)
}

func TestVerifyIdempotent(t *testing.T) {
	notary := newNotary(t)
	raw := buildJSON(t, presentationtest.NewBuilder(notary).
		Transcript([]byte(request), []byte(response)).
		Reveal(presentation.Received, 0, 17).
		Reveal(presentation.Received, 40, len(response)))
	service := NewService(notary.Suite(), Options{})

	for _, input := range [][]byte{raw, testdata.Malformed} {
		first, err := json.Marshal(service.Verify(input))
		require.NoError(t, err)
		second, err := json.Marshal(service.Verify(input))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(second))
	}
}

func TestVerifyProofHash(t *testing.T) {
	service := NewService(crypto.DefaultSuite(), Options{})

	for _, input := range [][]byte{testdata.Malformed, testdata.ScenarioJSON, {}, []byte(" {} ")} {
		out := service.Verify(input)
		assert.Equal(t, presentation.ComputeHash(input), out.ProofHash)
	}

	// Whitespace changes the identity even when the content is equivalent
	a := service.Verify(testdata.ScenarioJSON)
	b := service.Verify(append([]byte(" "), testdata.ScenarioJSON...))
	assert.NotEqual(t, a.ProofHash, b.ProofHash)
}

func TestVerifyEmptyRanges(t *testing.T) {
	t.Run("signed presentation disclosing nothing", func(t *testing.T) {
		notary := newNotary(t)
		raw := buildJSON(t, presentationtest.NewBuilder(notary).Transcript([]byte(request), []byte(response)))

		out := NewService(notary.Suite(), Options{}).Verify(raw)
		require.True(t, out.Valid, out.Error)
		assert.Nil(t, out.Data)
		assert.NotNil(t, out.RedactedRanges)
		assert.Empty(t, out.RedactedRanges)

		encoded, err := json.Marshal(out)
		require.NoError(t, err)
		assert.Contains(t, string(encoded), `"data":null`)
		assert.Contains(t, string(encoded), `"redacted_ranges":[]`)
	})

	t.Run("fixture", func(t *testing.T) {
		out := NewService(scenarioProvider(t), Options{NotaryKey: []byte{1}}).Verify(testdata.EmptyRangesJSON)
		require.True(t, out.Valid, out.Error)
		assert.Nil(t, out.Data)
	})
}

func TestVerifyParseFailuresSkipCrypto(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"not valid json", testdata.Malformed},
		{"missing transcript_proof", testdata.MissingProofJSON},
		{"empty", nil},
		{"truncated", testdata.ScenarioJSON[:30]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := scenarioProvider(t)
			result := NewService(provider, Options{NotaryKey: []byte{1}}).VerifyDetailed(tt.input)

			require.ErrorIs(t, result.Err, ErrParse)
			assert.False(t, result.Output.Valid)
			assert.Contains(t, result.Output.Error, "verification failed: parse error")
			assert.Zero(t, provider.verifyCalls)
			assert.Zero(t, provider.hashCalls)
		})
	}
}

func TestVerifyNotaryKeyPolicy(t *testing.T) {
	notary := newNotary(t)
	other := newNotary(t)
	embedded := buildJSON(t, presentationtest.NewBuilder(notary).Transcript(nil, []byte("HI")).RevealAll())
	bare := buildJSON(t, presentationtest.NewBuilder(notary).Transcript(nil, []byte("HI")).RevealAll().EmbedKey(false))

	tests := []struct {
		name    string
		raw     []byte
		opts    Options
		wantErr error
	}{
		{name: "embedded key", raw: embedded},
		{name: "configured key", raw: bare, opts: Options{NotaryKey: notary.PublicKey()}},
		{name: "matching keys", raw: embedded, opts: Options{NotaryKey: notary.PublicKey()}},
		{name: "no key", raw: bare, wantErr: ErrNoNotaryKey},
		{name: "conflicting keys", raw: embedded, opts: Options{NotaryKey: other.PublicKey()}, wantErr: ErrNotaryKeyMismatch},
		{name: "wrong configured key", raw: bare, opts: Options{NotaryKey: other.PublicKey()}, wantErr: ErrBadSignature},
		{name: "trusted", raw: embedded, opts: Options{TrustedNotaries: [][]byte{other.PublicKey(), notary.PublicKey()}}},
		{name: "untrusted", raw: embedded, opts: Options{TrustedNotaries: [][]byte{other.PublicKey()}}, wantErr: ErrUntrustedNotary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewService(notary.Suite(), tt.opts).VerifyDetailed(tt.raw)
			if tt.wantErr == nil {
				require.NoError(t, result.Err)
				assert.Equal(t, notary.PublicKey(), result.NotaryKey)
				return
			}
			require.ErrorIs(t, result.Err, ErrSignature)
			require.ErrorIs(t, result.Err, tt.wantErr)
		})
	}
}

func TestVerifySignaturePolicy(t *testing.T) {
	notary := newNotary(t)

	t.Run("scheme mismatch", func(t *testing.T) {
		raw := buildJSON(t, presentationtest.NewBuilder(notary).Transcript(nil, []byte("HI")).RevealAll())
		suite, err := crypto.NewSuite(crypto.SchemeSecp256k1, crypto.HashSHA256)
		require.NoError(t, err)

		result := NewService(suite, Options{}).VerifyDetailed(raw)
		require.ErrorIs(t, result.Err, ErrSchemeMismatch)
	})

	t.Run("empty signature", func(t *testing.T) {
		raw := []byte(`{"session_header":{"server_name":"api.example.com","handshake_hash":[1,2,3,4]},"transcript_proof":{"ranges":[]},"signature":[]}`)
		result := NewService(scenarioProvider(t), Options{NotaryKey: []byte{1}}).VerifyDetailed(raw)
		require.ErrorIs(t, result.Err, ErrEmptySignature)
	})

	t.Run("require session time", func(t *testing.T) {
		raw := buildJSON(t, presentationtest.NewBuilder(notary).Time(0).Transcript(nil, []byte("HI")).RevealAll())

		out := NewService(notary.Suite(), Options{}).Verify(raw)
		assert.True(t, out.Valid, out.Error)

		result := NewService(notary.Suite(), Options{RequireSessionTime: true}).VerifyDetailed(raw)
		require.ErrorIs(t, result.Err, ErrMissingTime)
	})

	t.Run("header fields are signed", func(t *testing.T) {
		p, err := presentationtest.NewBuilder(notary).Transcript(nil, []byte("HI")).RevealAll().Build()
		require.NoError(t, err)
		p.SessionHeader.ServerName = "evil.example.com"
		raw, err := presentation.EncodeJSON(p)
		require.NoError(t, err)

		result := NewService(notary.Suite(), Options{}).VerifyDetailed(raw)
		require.ErrorIs(t, result.Err, ErrBadSignature)
	})
}

func TestVerifySizeLimit(t *testing.T) {
	provider := scenarioProvider(t)
	result := NewService(provider, Options{MaxPresentationBytes: 10}).VerifyDetailed(testdata.ScenarioJSON)
	require.ErrorIs(t, result.Err, ErrParse)
	require.ErrorIs(t, result.Err, ErrTooLarge)
	assert.Zero(t, provider.verifyCalls)
}

func TestVerifyUnsignedLengthCannotExhaustMemory(t *testing.T) {
	notary := newNotary(t)

	for _, length := range []uint64{1 << 62, 1 << 63, 8_000_000_000} {
		p, err := presentationtest.NewBuilder(notary).
			Transcript([]byte(request), []byte(response)).
			Reveal(presentation.Received, 0, 4).
			Build()
		require.NoError(t, err)
		stated := length
		p.TranscriptProof.ReceivedLen = &stated
		raw, err := presentation.EncodeJSON(p)
		require.NoError(t, err)

		var out *Output
		require.NotPanics(t, func() {
			out = NewService(notary.Suite(), Options{MaxPresentationBytes: 1 << 20}).Verify(raw)
		})
		assert.False(t, out.Valid)
		assert.Contains(t, out.Error, "proof")
		assert.Contains(t, out.Error, "exceeds limit")
	}

	t.Run("configured limit", func(t *testing.T) {
		raw := buildJSON(t, presentationtest.NewBuilder(notary).Transcript(nil, []byte(response)).RevealAll())

		result := NewService(notary.Suite(), Options{MaxTranscriptBytes: 8}).VerifyDetailed(raw)
		require.ErrorIs(t, result.Err, ErrProof)
		require.ErrorIs(t, result.Err, transcript.ErrTooLong)

		result = NewService(notary.Suite(), Options{MaxTranscriptBytes: len(response)}).VerifyDetailed(raw)
		require.NoError(t, result.Err)
	})
}

func TestVerifyAttestation(t *testing.T) {
	notary := newNotary(t)
	p, err := presentationtest.NewBuilder(notary).Transcript(nil, []byte("HI")).RevealAll().Build()
	require.NoError(t, err)
	p.NotaryAttestation = base64.StdEncoding.EncodeToString([]byte("attestation-doc"))
	withDoc, err := presentation.EncodeJSON(p)
	require.NoError(t, err)

	p.NotaryAttestation = ""
	withoutDoc, err := presentation.EncodeJSON(p)
	require.NoError(t, err)

	digest := sha256.Sum256(notary.PublicKey())
	valid := &nitroverifier.ValidationResult{
		Valid: true,
		Document: &nitroverifier.AttestationDocument{
			ModuleID: "i-0abc-enc0def",
			PCRs:     map[uint][]byte{0: {0x01}},
			UserData: digest[:],
		},
	}

	t.Run("valid attestation", func(t *testing.T) {
		checker := attestation.NewChecker(&mockDocumentVerifier{result: valid}, nil)
		result := NewService(notary.Suite(), Options{Attestation: checker}).VerifyDetailed(withDoc)
		require.NoError(t, result.Err)
		require.NotNil(t, result.Attestation)
		assert.Equal(t, "i-0abc-enc0def", result.Attestation.ModuleID)
	})

	t.Run("pcr mismatch", func(t *testing.T) {
		checker := attestation.NewChecker(&mockDocumentVerifier{result: valid}, []nitroverifier.PCRRule{{Index: 0, Value: []byte{0x02}}})
		result := NewService(notary.Suite(), Options{Attestation: checker}).VerifyDetailed(withDoc)
		require.ErrorIs(t, result.Err, ErrAttestation)
		require.ErrorIs(t, result.Err, attestation.ErrPCRMismatch)
	})

	t.Run("verifier failure", func(t *testing.T) {
		checker := attestation.NewChecker(&mockDocumentVerifier{err: errors.New("certificate chain invalid")}, nil)
		result := NewService(notary.Suite(), Options{Attestation: checker}).VerifyDetailed(withDoc)
		require.ErrorIs(t, result.Err, ErrAttestation)
	})

	t.Run("required but absent", func(t *testing.T) {
		checker := attestation.NewChecker(&mockDocumentVerifier{result: valid}, nil)
		result := NewService(notary.Suite(), Options{Attestation: checker, RequireAttestation: true}).VerifyDetailed(withoutDoc)
		require.ErrorIs(t, result.Err, ErrNoAttestation)
	})

	t.Run("optional and absent", func(t *testing.T) {
		checker := attestation.NewChecker(&mockDocumentVerifier{result: valid}, nil)
		result := NewService(notary.Suite(), Options{Attestation: checker}).VerifyDetailed(withoutDoc)
		require.NoError(t, result.Err)
		assert.Nil(t, result.Attestation)
	})
}

func TestVerifyCBOR(t *testing.T) {
	notary := newNotary(t)
	p, err := presentationtest.NewBuilder(notary).Transcript([]byte(request), []byte(response)).RevealAll().Build()
	require.NoError(t, err)
	raw, err := presentation.EncodeCBOR(p)
	require.NoError(t, err)

	out := NewService(notary.Suite(), Options{}).Verify(raw)
	require.True(t, out.Valid, out.Error)
	assert.Equal(t, presentation.ComputeHash(raw), out.ProofHash)
}

func TestVerifyConcurrent(t *testing.T) {
	notary := newNotary(t)
	raw := buildJSON(t, presentationtest.NewBuilder(notary).Transcript([]byte(request), []byte(response)).RevealAll())
	service := NewService(notary.Suite(), Options{})
	want := service.Verify(raw)
	require.True(t, want.Valid)

	var wg sync.WaitGroup
	outputs := make([]*Output, 16)
	for i := range outputs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outputs[i] = service.Verify(raw)
		}(i)
	}
	wg.Wait()

	for _, out := range outputs {
		assert.Equal(t, want, out)
	}
}

func TestOutputJSONOnFailure(t *testing.T) {
	out := NewService(crypto.DefaultSuite(), Options{}).Verify(testdata.Malformed)
	encoded, err := json.Marshal(out)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(encoded, &fields))
	assert.Equal(t, false, fields["valid"])
	assert.Nil(t, fields["redacted_ranges"])
	assert.Contains(t, fields, "redacted_ranges")
	assert.Contains(t, fields["error"], "verification failed")
	assert.NotContains(t, fields, "disclosed_ranges")
}
