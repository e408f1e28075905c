// Package keys loads notary public keys.
//
// Keys may be given directly as hex or read from a file. A key file holds
// either a hex-encoded key or a PEM "PUBLIC KEY" block (PKIX, P-256 only).
//
// # Key Directory
//
// Named keys live in ~/.config/tlsn/notaries/ as <name>.pub:
//
//	provider := &keys.FileKeyProvider{KeyName: "pse-notary"}
//	key, err := provider.NotaryKey(context.Background())
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Or load a file by path:
//
//	key, err := keys.LoadNotaryKeyFile("/etc/tlsn/notary.pem")
package keys

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/anchorageoss/tlsn-verifier/crypto"
)

// ErrEmptyKey is returned for blank key material
var ErrEmptyKey = errors.New("empty notary key")

// Provider supplies the notary public key used for verification
type Provider interface {
	NotaryKey(ctx context.Context) ([]byte, error)
}

// StaticKeyProvider returns a fixed key
type StaticKeyProvider struct {
	Key []byte
}

// NotaryKey returns the configured key
func (s *StaticKeyProvider) NotaryKey(ctx context.Context) ([]byte, error) {
	if len(s.Key) == 0 {
		return nil, ErrEmptyKey
	}
	return s.Key, nil
}

// FileKeyProvider reads a key from Path, or from the key directory by KeyName
type FileKeyProvider struct {
	KeyName string
	Path    string
}

// NotaryKey loads the key from disk
func (f *FileKeyProvider) NotaryKey(ctx context.Context) ([]byte, error) {
	path := f.Path
	if path == "" {
		dir, err := DefaultKeyDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, f.KeyName+".pub")
	}
	return LoadNotaryKeyFile(path)
}

// DefaultKeyDir returns the directory holding named notary keys
func DefaultKeyDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "tlsn", "notaries"), nil
}

// LoadNotaryKeyFile reads a hex or PEM encoded notary key
func LoadNotaryKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read notary key file: %w", err)
	}

	content := strings.TrimSpace(string(data))
	if strings.HasPrefix(content, "-----BEGIN") {
		return ParsePEMKey([]byte(content))
	}
	return ParseHexKey(content)
}

// ParseHexKey decodes a hex key, with or without a 0x prefix
func ParseHexKey(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, ErrEmptyKey
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode notary key hex: %w", err)
	}
	return key, nil
}

// ParsePEMKey decodes a PKIX P-256 public key into its uncompressed SEC1 form
func ParsePEMKey(data []byte) ([]byte, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, errors.New("no PEM public key block found")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKIX public key: %w", err)
	}
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok || ecdsaPub.Curve != elliptic.P256() {
		return nil, fmt.Errorf("unsupported public key type %T, only P-256 is supported", pub)
	}
	return crypto.MarshalP256PublicKey(ecdsaPub), nil
}

// ValidateKey checks that key is a well-formed public key for scheme
func ValidateKey(scheme crypto.Scheme, key []byte) error {
	switch scheme {
	case crypto.SchemeP256:
		_, err := crypto.ParseP256PublicKey(key)
		return err
	case crypto.SchemeSecp256k1:
		if _, err := secp256k1.ParsePubKey(key); err != nil {
			return fmt.Errorf("invalid secp256k1 public key: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported scheme: %s", scheme)
	}
}
