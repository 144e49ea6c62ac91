package encryption

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseP256PrivateKey parses a P256 private key in DER (PKCS#8 or SEC1) form,
// raw or hex encoded.
func ParseP256PrivateKey(keyData []byte) (*ecdsa.PrivateKey, error) {
	if key, ok := parseP256DER(keyData); ok {
		return key, nil
	}

	keyStr := strings.TrimPrefix(strings.TrimSpace(string(keyData)), "0x")
	keyBytes, err := hex.DecodeString(keyStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode hex string: %w", err)
	}

	if key, ok := parseP256DER(keyBytes); ok {
		return key, nil
	}
	return nil, fmt.Errorf("failed to parse P256 private key from DER or hex format")
}

func parseP256DER(der []byte) (*ecdsa.PrivateKey, bool) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		if ecdsaKey, ok := key.(*ecdsa.PrivateKey); ok && ecdsaKey.Curve == elliptic.P256() {
			return ecdsaKey, true
		}
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil && key.Curve == elliptic.P256() {
		return key, true
	}
	return nil, false
}

// SignWithP256 signs sha256(data) and returns an ASN.1 signature.
func SignWithP256(privateKey *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	if privateKey == nil || privateKey.Curve == nil {
		return nil, fmt.Errorf("invalid private key")
	}

	hash := sha256.Sum256(data)
	signature, err := ecdsa.SignASN1(rand.Reader, privateKey, hash[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign data: %w", err)
	}
	return signature, nil
}

func GenerateP256Keys() (KeyData, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return KeyData{}, err
	}

	privateKeyBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return KeyData{}, err
	}
	publicKeyBytes, err := MarshalP256PublicKey(&privateKey.PublicKey)
	if err != nil {
		return KeyData{}, err
	}

	return KeyData{
		PublicKeyHex:  hex.EncodeToString(publicKeyBytes),
		PrivateKeyHex: hex.EncodeToString(privateKeyBytes),
	}, nil
}

func VerifyP256Signature(publicKey *ecdsa.PublicKey, data []byte, signature []byte) error {
	if err := ValidateP256PublicKey(publicKey); err != nil {
		return err
	}
	if len(signature) == 0 {
		return fmt.Errorf("signature is empty")
	}

	hash := sha256.Sum256(data)
	if !ecdsa.VerifyASN1(publicKey, hash[:], signature) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

// ParseP256PublicKeyFromBytes parses a DER (PKIX) encoded P-256 public key.
func ParseP256PublicKeyFromBytes(keyBytes []byte) (*ecdsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse P-256 public key: %w", err)
	}
	ecdsaKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not an ECDSA key")
	}
	if err := ValidateP256PublicKey(ecdsaKey); err != nil {
		return nil, err
	}
	return ecdsaKey, nil
}

func ValidateP256PublicKey(publicKey *ecdsa.PublicKey) error {
	if publicKey == nil {
		return fmt.Errorf("public key is nil")
	}
	if publicKey.Curve == nil {
		return fmt.Errorf("public key curve is nil")
	}
	if publicKey.Curve != elliptic.P256() {
		return fmt.Errorf("public key is not P-256 curve (got: %s)", publicKey.Curve.Params().Name)
	}
	return nil
}

// MarshalP256PublicKey marshals a P256 public key to DER format
func MarshalP256PublicKey(publicKey *ecdsa.PublicKey) ([]byte, error) {
	if err := ValidateP256PublicKey(publicKey); err != nil {
		return nil, fmt.Errorf("invalid P256 public key: %w", err)
	}
	return x509.MarshalPKIXPublicKey(publicKey)
}
