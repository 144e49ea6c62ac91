package encoding

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newS256Key(t *testing.T) *btcec.PublicKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv.PubKey()
}

func TestParseS256PubKey_Forms(t *testing.T) {
	pub := newS256Key(t)

	for name, input := range map[string][]byte{
		"raw":          pub.SerializeUncompressed()[1:],
		"compressed":   pub.SerializeCompressed(),
		"uncompressed": pub.SerializeUncompressed(),
	} {
		t.Run(name, func(t *testing.T) {
			parsed, err := ParseS256PubKey(input)
			require.NoError(t, err)
			assert.True(t, parsed.IsEqual(pub))
		})
	}
}

func TestParseS256PubKey_Invalid(t *testing.T) {
	_, err := ParseS256PubKey(make([]byte, 64))
	assert.ErrorIs(t, err, ErrInvalidPubKey)

	_, err = ParseS256PubKey([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidPubKey)
}

func TestParseEDDSAPubKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	parsed, err := ParseEDDSAPubKey(pub)
	require.NoError(t, err)
	assert.Equal(t, []byte(pub), parsed.SerializeCompressed())

	_, err = ParseEDDSAPubKey([]byte{1, 2})
	assert.ErrorIs(t, err, ErrInvalidPubKey)
}

func TestSummarizeKeys(t *testing.T) {
	edPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	ecPub := newS256Key(t)

	summary, err := SummarizeKeys(ecPub.SerializeUncompressed()[1:], edPub)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(ecPub.SerializeCompressed()), summary.ECDSAPubKey)
	assert.Equal(t, hex.EncodeToString(edPub), summary.EDDSAPubKey)

	_, err = SummarizeKeys([]byte{0x05}, nil)
	assert.ErrorIs(t, err, ErrInvalidPubKey)

	empty, err := SummarizeKeys(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, KeySummary{}, empty)
}
