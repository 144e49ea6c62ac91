package client

import (
	"fmt"

	"github.com/fystack/mpcium-client/pkg/types"
)

// Signer defines the interface for signing messages with different key types
type Signer interface {
	// Sign signs the given data and returns the signature
	Sign(data []byte) ([]byte, error)
	// Algorithm returns the key algorithm used by this signer
	Algorithm() types.EventInitiatorKeyType
	// PublicKey returns the public key in hex format
	PublicKey() (string, error)
}

// SigningError reports a request that could not be signed.
type SigningError struct {
	Op  string
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// SignMessage signs the canonical encoding of msg and stores the signature
// on it. The signature is always the last field written.
func SignMessage(signer Signer, msg types.InitiatorMessage) error {
	raw, err := msg.Raw()
	if err != nil {
		return &SigningError{Op: "encode " + msg.InitiatorID(), Err: err}
	}

	sig, err := signer.Sign(raw)
	if err != nil {
		return &SigningError{Op: "sign " + msg.InitiatorID(), Err: err}
	}

	msg.SetSignature(sig)
	return nil
}
