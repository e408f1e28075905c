package wasm

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorageoss/tlsn-verifier/crypto"
	"github.com/anchorageoss/tlsn-verifier/presentation/presentationtest"
)

func TestVerify(t *testing.T) {
	ctx := context.Background()
	notary, err := presentationtest.NewSecp256k1Notary(crypto.HashSHA256)
	require.NoError(t, err)
	raw, err := presentationtest.NewBuilder(notary).
		Transcript([]byte("GET / HTTP/1.1\r\n\r\n"), []byte("HTTP/1.1 200 OK\r\n\r\n{\"ok\":true}")).
		RevealAll().
		EmbedKey(false).
		BuildJSON()
	require.NoError(t, err)

	t.Run("key from javascript", func(t *testing.T) {
		result, err := Verify(ctx, raw, hex.EncodeToString(notary.PublicKey()), Options{Scheme: "secp256k1"})
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(result), &out))
		assert.Equal(t, true, out["valid"], out["error"])
		assert.Equal(t, map[string]any{"ok": true}, out["data"])
	})

	t.Run("missing key", func(t *testing.T) {
		result, err := Verify(ctx, raw, "", Options{Scheme: "secp256k1"})
		require.NoError(t, err)
		assert.Contains(t, result, `"valid":false`)
		assert.Contains(t, result, "no notary public key")
	})

	t.Run("bad options", func(t *testing.T) {
		_, err := Verify(ctx, raw, "", Options{Hash: "md5"})
		require.Error(t, err)

		_, err = Verify(ctx, raw, "zz", Options{Scheme: "secp256k1"})
		require.ErrorContains(t, err, "invalid notary key")
	})
}

func TestMemoryKeyProvider(t *testing.T) {
	key, err := NewMemoryKeyProvider("0x0a0b").NotaryKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x0b}, key)
}
