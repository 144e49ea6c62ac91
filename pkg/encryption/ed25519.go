package encryption

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

type KeyData struct {
	PublicKeyHex  string
	PrivateKeyHex string
}

// GenerateEd25519Keys creates a new initiator key pair. PrivateKeyHex holds
// the 32-byte seed, which is the on-disk key format.
func GenerateEd25519Keys() (KeyData, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyData{}, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return KeyData{
		PublicKeyHex:  hex.EncodeToString(pub),
		PrivateKeyHex: hex.EncodeToString(priv.Seed()),
	}, nil
}

// ParseEd25519PublicKeyFromHex parses a hex-encoded Ed25519 public key.
func ParseEd25519PublicKeyFromHex(hexKey string) (ed25519.PublicKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("public key hex string is empty")
	}

	keyBytes, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid hex format: %w", err)
	}

	if err := ValidateEd25519PublicKey(keyBytes); err != nil {
		return nil, err
	}
	return ed25519.PublicKey(keyBytes), nil
}

// ValidateEd25519PublicKey checks the key length.
func ValidateEd25519PublicKey(keyBytes []byte) error {
	if len(keyBytes) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid Ed25519 public key length: expected %d bytes, got %d",
			ed25519.PublicKeySize, len(keyBytes))
	}
	return nil
}

// VerifyEd25519 verifies sig over msg with pub.
func VerifyEd25519(pub ed25519.PublicKey, msg, sig []byte) error {
	if err := ValidateEd25519PublicKey(pub); err != nil {
		return err
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid Ed25519 signature length: %d", len(sig))
	}
	if !ed25519.Verify(pub, msg, sig) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}
