package encoding

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// rawS256PubKeyLen is the X||Y form MPC nodes publish for ECDSA wallets.
const rawS256PubKeyLen = 64

var ErrInvalidPubKey = errors.New("invalid public key")

// ParseS256PubKey parses a secp256k1 public key given as raw X||Y or in SEC1
// compressed or uncompressed form.
func ParseS256PubKey(b []byte) (*btcec.PublicKey, error) {
	if len(b) == rawS256PubKeyLen {
		b = append([]byte{0x04}, b...)
	}
	pub, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: secp256k1: %v", ErrInvalidPubKey, err)
	}
	return pub, nil
}
