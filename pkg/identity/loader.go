package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fystack/mpcium-client/pkg/common/pathutil"
	"github.com/fystack/mpcium-client/pkg/encryption"
	"github.com/fystack/mpcium-client/pkg/security"
)

const (
	// DefaultKeyFile is used when no path is configured.
	DefaultKeyFile = "event_initiator.key"
	// EncryptedKeySuffix marks an age-encrypted key file.
	EncryptedKeySuffix = ".age"
)

// KeyOptions locates and unlocks the initiator key file.
type KeyOptions struct {
	Path       string
	Passphrase string
	// Encrypted forces decryption even without the .age suffix.
	Encrypted bool
}

// KeyLoadError is returned for every failure to produce a usable key.
type KeyLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *KeyLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load initiator key %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("load initiator key %s: %s", e.Path, e.Reason)
}

func (e *KeyLoadError) Unwrap() error {
	return e.Err
}

// IsEncryptedPath reports whether path names an encrypted key file.
func IsEncryptedPath(path string) bool {
	return strings.HasSuffix(path, EncryptedKeySuffix)
}

// LoadInitiatorKey reads the initiator key file and returns the 32-byte
// Ed25519 seed. The file holds the hex seed, optionally wrapped in an age
// passphrase envelope.
func LoadInitiatorKey(opts KeyOptions) ([]byte, error) {
	content, path, err := readKeyFile(opts)
	if err != nil {
		return nil, err
	}
	defer security.ZeroBytes(content)

	seed, err := decodeSeed(content)
	if err != nil {
		return nil, &KeyLoadError{Path: path, Reason: "decode key", Err: err}
	}
	return seed, nil
}

// ReadKeyFile returns the decrypted key file content without interpreting
// it. Callers own the returned buffer and should zero it after use.
func ReadKeyFile(opts KeyOptions) ([]byte, error) {
	content, _, err := readKeyFile(opts)
	return content, err
}

func readKeyFile(opts KeyOptions) ([]byte, string, error) {
	path := opts.Path
	if path == "" {
		path = filepath.Join(".", DefaultKeyFile)
	}
	if err := pathutil.ValidateFilePath(path); err != nil {
		return nil, path, &KeyLoadError{Path: path, Reason: "invalid path", Err: err}
	}

	encrypted := opts.Encrypted || IsEncryptedPath(path)
	if encrypted && opts.Passphrase == "" {
		return nil, path, &KeyLoadError{Path: path, Reason: "encrypted key requires a passphrase"}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, path, &KeyLoadError{Path: path, Reason: "read key file", Err: err}
	}
	if !encrypted {
		return content, path, nil
	}
	defer security.ZeroBytes(content)

	plain, err := encryption.DecryptWithPassphrase(content, opts.Passphrase)
	if err != nil {
		return nil, path, &KeyLoadError{Path: path, Reason: "decrypt key file", Err: err}
	}
	return plain, path, nil
}

func decodeSeed(hexText []byte) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(string(hexText)), "0x")

	seed, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("key is not valid hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		security.ZeroBytes(seed)
		return nil, fmt.Errorf("key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return seed, nil
}

// EncryptInitiatorKey wraps a hex seed in an age passphrase envelope, the
// format LoadInitiatorKey expects for .age files.
func EncryptInitiatorKey(seedHex string, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase is required")
	}
	seed, err := decodeSeed([]byte(seedHex))
	if err != nil {
		return nil, err
	}
	security.ZeroBytes(seed)

	return encryption.EncryptWithPassphrase([]byte(seedHex), passphrase)
}
