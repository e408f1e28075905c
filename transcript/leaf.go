package transcript

import (
	"fmt"

	"github.com/near/borsh-go"

	"github.com/anchorageoss/tlsn-verifier/presentation"
)

type leaf struct {
	Direction uint8  `borsh:"direction"`
	Start     uint64 `borsh:"start"`
	End       uint64 `borsh:"end"`
	Blinder   []byte `borsh:"blinder"`
	Data      []byte `borsh:"data"`
}

// LeafPreimage returns the committed encoding of one transcript range.
// Redacted ranges are committed the same way, so a blinder keeps short
// secrets from being brute forced out of the tree.
func LeafPreimage(d presentation.Direction, start, end uint64, blinder, data []byte) ([]byte, error) {
	if blinder == nil {
		blinder = []byte{}
	}
	if data == nil {
		data = []byte{}
	}
	out, err := borsh.Serialize(leaf{
		Direction: uint8(d),
		Start:     start,
		End:       end,
		Blinder:   blinder,
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize leaf: %w", err)
	}
	return out, nil
}
