package client

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/fystack/mpcium-client/pkg/encryption"
	"github.com/fystack/mpcium-client/pkg/identity"
	"github.com/fystack/mpcium-client/pkg/security"
	"github.com/fystack/mpcium-client/pkg/types"
)

// LocalSigner implements the Signer interface for local key management
type LocalSigner struct {
	keyType    types.EventInitiatorKeyType
	ed25519Key ed25519.PrivateKey
	p256Key    *ecdsa.PrivateKey
}

// LocalSignerOptions defines options for creating a LocalSigner
type LocalSignerOptions struct {
	KeyPath   string // Path to the key file
	Encrypted bool   // Whether the key is encrypted
	Password  string // Password for decryption (required if encrypted)
}

// NewLocalSigner creates a new LocalSigner for the specified key type
func NewLocalSigner(keyType types.EventInitiatorKeyType, opts LocalSignerOptions) (Signer, error) {
	keyOpts := identity.KeyOptions{
		Path:       opts.KeyPath,
		Passphrase: opts.Password,
		Encrypted:  opts.Encrypted,
	}

	switch keyType {
	case types.EventInitiatorKeyTypeEd25519:
		seed, err := identity.LoadInitiatorKey(keyOpts)
		if err != nil {
			return nil, err
		}
		defer security.ZeroBytes(seed)
		return NewEd25519Signer(seed)

	case types.EventInitiatorKeyTypeP256:
		keyData, err := identity.ReadKeyFile(keyOpts)
		if err != nil {
			return nil, err
		}
		defer security.ZeroBytes(keyData)

		privKey, err := encryption.ParseP256PrivateKey(keyData)
		if err != nil {
			return nil, &SigningError{Op: "load P256 key", Err: err}
		}
		return &LocalSigner{keyType: keyType, p256Key: privKey}, nil

	default:
		return nil, fmt.Errorf("unsupported key type: %s", keyType)
	}
}

// NewEd25519Signer derives the signing key from a 32-byte seed. The seed is
// copied; callers may zero their buffer afterwards.
func NewEd25519Signer(seed []byte) (*LocalSigner, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, &SigningError{
			Op:  "load Ed25519 key",
			Err: fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed)),
		}
	}
	return &LocalSigner{
		keyType:    types.EventInitiatorKeyTypeEd25519,
		ed25519Key: ed25519.NewKeyFromSeed(seed),
	}, nil
}

// Sign implements the Signer interface for LocalSigner
func (s *LocalSigner) Sign(data []byte) ([]byte, error) {
	switch s.keyType {
	case types.EventInitiatorKeyTypeEd25519:
		if s.ed25519Key == nil {
			return nil, fmt.Errorf("Ed25519 private key not initialized")
		}
		return ed25519.Sign(s.ed25519Key, data), nil

	case types.EventInitiatorKeyTypeP256:
		if s.p256Key == nil {
			return nil, fmt.Errorf("P256 private key not initialized")
		}
		return encryption.SignWithP256(s.p256Key, data)

	default:
		return nil, fmt.Errorf("unsupported key type: %s", s.keyType)
	}
}

// Algorithm implements the Signer interface for LocalSigner
func (s *LocalSigner) Algorithm() types.EventInitiatorKeyType {
	return s.keyType
}

// PublicKey implements the Signer interface for LocalSigner
func (s *LocalSigner) PublicKey() (string, error) {
	switch s.keyType {
	case types.EventInitiatorKeyTypeEd25519:
		if s.ed25519Key == nil {
			return "", fmt.Errorf("Ed25519 private key not initialized")
		}
		pubKey := s.ed25519Key.Public().(ed25519.PublicKey)
		return hex.EncodeToString(pubKey), nil

	case types.EventInitiatorKeyTypeP256:
		if s.p256Key == nil {
			return "", fmt.Errorf("P256 private key not initialized")
		}
		pubKeyBytes, err := encryption.MarshalP256PublicKey(&s.p256Key.PublicKey)
		if err != nil {
			return "", fmt.Errorf("failed to marshal P256 public key: %w", err)
		}
		return hex.EncodeToString(pubKeyBytes), nil

	default:
		return "", fmt.Errorf("unsupported key type: %s", s.keyType)
	}
}
