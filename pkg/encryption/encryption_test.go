package encryption

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEd25519Keys(t *testing.T) {
	keyData, err := GenerateEd25519Keys()
	require.NoError(t, err)

	seed, err := hex.DecodeString(keyData.PrivateKeyHex)
	require.NoError(t, err)
	require.Len(t, seed, ed25519.SeedSize)

	pub, err := ParseEd25519PublicKeyFromHex(keyData.PublicKeyHex)
	require.NoError(t, err)

	priv := ed25519.NewKeyFromSeed(seed)
	assert.Equal(t, priv.Public(), pub)

	msg := []byte(`{"wallet_id":"w1"}`)
	assert.NoError(t, VerifyEd25519(pub, msg, ed25519.Sign(priv, msg)))
	assert.Error(t, VerifyEd25519(pub, []byte(`{"wallet_id":"w2"}`), ed25519.Sign(priv, msg)))
}

func TestParseEd25519PublicKeyFromHex(t *testing.T) {
	valid := strings.Repeat("ab", ed25519.PublicKeySize)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", valid, false},
		{"0x prefix", "0x" + valid, false},
		{"empty", "", true},
		{"not hex", "zz", true},
		{"short", "abcd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseEd25519PublicKeyFromHex(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, key)
				return
			}
			require.NoError(t, err)
			assert.Len(t, key, ed25519.PublicKeySize)
		})
	}
}

func TestVerifyEd25519_BadSignatureLength(t *testing.T) {
	keyData, err := GenerateEd25519Keys()
	require.NoError(t, err)
	pub, err := ParseEd25519PublicKeyFromHex(keyData.PublicKeyHex)
	require.NoError(t, err)

	assert.Error(t, VerifyEd25519(pub, []byte("m"), []byte("short")))
}

func TestP256_SignVerify(t *testing.T) {
	keyData, err := GenerateP256Keys()
	require.NoError(t, err)

	priv, err := ParseP256PrivateKey([]byte(keyData.PrivateKeyHex))
	require.NoError(t, err)

	pubBytes, err := hex.DecodeString(keyData.PublicKeyHex)
	require.NoError(t, err)
	pub, err := ParseP256PublicKeyFromBytes(pubBytes)
	require.NoError(t, err)
	assert.True(t, pub.Equal(&priv.PublicKey))

	data := []byte(`{"wallet_id":"w1"}`)
	sig, err := SignWithP256(priv, data)
	require.NoError(t, err)
	assert.NoError(t, VerifyP256Signature(pub, data, sig))
	assert.Error(t, VerifyP256Signature(pub, []byte("tampered"), sig))
	assert.Error(t, VerifyP256Signature(pub, data, nil))
}

func TestParseP256PrivateKey_Formats(t *testing.T) {
	keyData, err := GenerateP256Keys()
	require.NoError(t, err)

	der, err := hex.DecodeString(keyData.PrivateKeyHex)
	require.NoError(t, err)

	for name, input := range map[string][]byte{
		"der":       der,
		"hex":       []byte(keyData.PrivateKeyHex),
		"0x hex":    []byte("0x" + keyData.PrivateKeyHex),
		"hex + eol": []byte(keyData.PrivateKeyHex + "\n"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseP256PrivateKey(input)
			assert.NoError(t, err)
		})
	}

	_, err = ParseP256PrivateKey([]byte("not-a-key"))
	assert.Error(t, err)
}

func TestSignWithP256_NilKey(t *testing.T) {
	_, err := SignWithP256(nil, []byte("data"))
	assert.Error(t, err)
}

func TestPassphraseRoundTrip(t *testing.T) {
	plaintext := []byte(strings.Repeat("0f", 32))

	sealed, err := EncryptWithPassphrase(plaintext, "correct horse")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), string(plaintext))

	opened, err := DecryptWithPassphrase(sealed, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)

	_, err = DecryptWithPassphrase(sealed, "wrong")
	assert.Error(t, err)
}
