package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/asn1"
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newP256Key(t *testing.T) *ecdsa.PrivateKey {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func newSecp256k1Key(t *testing.T) *secp256k1.PrivateKey {
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	return key
}

func TestNewSuite(t *testing.T) {
	tests := []struct {
		name    string
		scheme  Scheme
		hash    HashAlgorithm
		wantErr string
	}{
		{"p256 sha256", SchemeP256, HashSHA256, ""},
		{"secp256k1 sha3", SchemeSecp256k1, HashSHA3_256, ""},
		{"p256 blake2b", SchemeP256, HashBLAKE2b256, ""},
		{"case insensitive", "P256", "SHA256", ""},
		{"unknown scheme", "ed25519", HashSHA256, "unsupported signature scheme"},
		{"unknown hash", SchemeP256, "md5", "unsupported hash algorithm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suite, err := NewSuite(tt.scheme, tt.hash)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, suite.Hash([]byte("x")), 32)
		})
	}
}

func TestHashAlgorithmsDiffer(t *testing.T) {
	data := []byte("session header")
	seen := map[string]HashAlgorithm{}
	for _, alg := range []HashAlgorithm{HashSHA256, HashSHA3_256, HashBLAKE2b256} {
		sum, err := alg.Sum(data)
		require.NoError(t, err)
		require.Len(t, sum, 32)
		_, dup := seen[string(sum)]
		require.False(t, dup, "hash collision between algorithms for %s", alg)
		seen[string(sum)] = alg
	}
	assert.Equal(t, SHA256(data), DefaultSuite().Hash(data))
}

func TestSuiteVerifyP256(t *testing.T) {
	key := newP256Key(t)
	pub := MarshalP256PublicKey(&key.PublicKey)
	message := []byte("canonical header bytes")

	for _, alg := range []HashAlgorithm{HashSHA256, HashSHA3_256, HashBLAKE2b256} {
		t.Run(string(alg), func(t *testing.T) {
			suite, err := NewSuite(SchemeP256, alg)
			require.NoError(t, err)

			der, err := SignP256(key, suite.Hash(message))
			require.NoError(t, err)
			assert.True(t, suite.Verify(message, der, pub))

			// r||s form of the same signature
			var sig ECDSASignature
			_, err = asn1.Unmarshal(der, &sig)
			require.NoError(t, err)
			raw := make([]byte, 64)
			sig.R.FillBytes(raw[:32])
			sig.S.FillBytes(raw[32:])
			assert.True(t, suite.Verify(message, raw, pub))

			assert.False(t, suite.Verify([]byte("other message"), der, pub))

			tampered := append([]byte(nil), raw...)
			tampered[10] ^= 0x01
			assert.False(t, suite.Verify(message, tampered, pub))
		})
	}
}

func TestParseP256PublicKey(t *testing.T) {
	key := newP256Key(t)
	uncompressed := MarshalP256PublicKey(&key.PublicKey)
	compressed := elliptic.MarshalCompressed(elliptic.P256(), key.X, key.Y)

	t.Run("uncompressed", func(t *testing.T) {
		pub, err := ParseP256PublicKey(uncompressed)
		require.NoError(t, err)
		assert.Equal(t, 0, pub.X.Cmp(key.X))
	})

	t.Run("compressed", func(t *testing.T) {
		pub, err := ParseP256PublicKey(compressed)
		require.NoError(t, err)
		assert.Equal(t, 0, pub.Y.Cmp(key.Y))
	})

	t.Run("off curve", func(t *testing.T) {
		bad := append([]byte(nil), uncompressed...)
		bad[64] ^= 0x01
		_, err := ParseP256PublicKey(bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not on the P256 curve")
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := ParseP256PublicKey([]byte{0x04, 0x01})
		require.Error(t, err)
	})

	t.Run("verify rejects unparsable key", func(t *testing.T) {
		assert.False(t, VerifyP256([]byte{1, 2, 3}, make([]byte, 32), make([]byte, 64)))
	})
}

func TestMarshalECDSASignatureDER(t *testing.T) {
	der, err := MarshalECDSASignatureDER(big.NewInt(12345), big.NewInt(67890))
	require.NoError(t, err)

	var sig ECDSASignature
	_, err = asn1.Unmarshal(der, &sig)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), sig.R.Int64())
	assert.Equal(t, int64(67890), sig.S.Int64())
}

func TestSignP256NilKey(t *testing.T) {
	_, err := SignP256(nil, make([]byte, 32))
	require.Error(t, err)
}

func TestSuiteVerifySecp256k1(t *testing.T) {
	key := newSecp256k1Key(t)
	suite, err := NewSuite(SchemeSecp256k1, HashSHA256)
	require.NoError(t, err)
	message := []byte("canonical header bytes")

	compact, err := SignSecp256k1(key, suite.Hash(message))
	require.NoError(t, err)
	require.Len(t, compact, 65)

	t.Run("compressed key", func(t *testing.T) {
		assert.True(t, suite.Verify(message, compact, key.PubKey().SerializeCompressed()))
	})

	t.Run("uncompressed key", func(t *testing.T) {
		assert.True(t, suite.Verify(message, compact, key.PubKey().SerializeUncompressed()))
	})

	t.Run("r||s form", func(t *testing.T) {
		// compact layout is recovery byte || r || s
		assert.True(t, suite.Verify(message, compact[1:], key.PubKey().SerializeCompressed()))
	})

	t.Run("other key", func(t *testing.T) {
		other := newSecp256k1Key(t)
		assert.False(t, suite.Verify(message, compact, other.PubKey().SerializeCompressed()))
	})

	t.Run("tampered", func(t *testing.T) {
		tampered := append([]byte(nil), compact...)
		tampered[20] ^= 0x01
		assert.False(t, suite.Verify(message, tampered, key.PubKey().SerializeCompressed()))
	})

	t.Run("digest length", func(t *testing.T) {
		_, err := SignSecp256k1(key, []byte{1, 2, 3})
		require.Error(t, err)
		assert.False(t, VerifySecp256k1(key.PubKey().SerializeCompressed(), []byte{1}, compact))
	})
}

func TestSuiteScheme(t *testing.T) {
	suite, err := NewSuite(SchemeSecp256k1, HashBLAKE2b256)
	require.NoError(t, err)

	var p Provider = suite
	namer, ok := p.(SchemeNamer)
	require.True(t, ok)
	assert.Equal(t, "secp256k1", namer.Scheme())
	assert.Equal(t, "blake2b-256", suite.HashName())
}
