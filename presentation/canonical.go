package presentation

import (
	"fmt"

	"github.com/near/borsh-go"
)

// HeaderDomain separates signed session headers from any other signed message
const HeaderDomain = "tlsn/session-header/v1"

type canonicalHeader struct {
	Domain        string `borsh:"domain"`
	ServerName    string `borsh:"server_name"`
	HandshakeHash []byte `borsh:"handshake_hash"`
	Time          uint64 `borsh:"time"`
}

// CanonicalHeader returns the exact bytes the notary signs for a header
func CanonicalHeader(h *SessionHeader) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: session_header", ErrMissingField)
	}
	out, err := borsh.Serialize(canonicalHeader{
		Domain:        HeaderDomain,
		ServerName:    h.ServerName,
		HandshakeHash: []byte(h.HandshakeHash),
		Time:          h.Time,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize session header: %w", err)
	}
	return out, nil
}
