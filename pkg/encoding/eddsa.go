package encoding

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/edwards/v2"
)

// ParseEDDSAPubKey parses a compressed 32-byte Ed25519 point.
func ParseEDDSAPubKey(b []byte) (*edwards.PublicKey, error) {
	pub, err := edwards.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: ed25519: %v", ErrInvalidPubKey, err)
	}
	return pub, nil
}
