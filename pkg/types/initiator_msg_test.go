package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyTypeConstants(t *testing.T) {
	assert.Equal(t, "secp256k1", string(KeyTypeSecp256k1))
	assert.Equal(t, "ed25519", string(KeyTypeEd25519))
	assert.True(t, KeyTypeEd25519.Valid())
	assert.False(t, KeyType("rsa").Valid())
}

func TestGenerateKeyMessage_Raw(t *testing.T) {
	msg := &GenerateKeyMessage{
		WalletID:  "w1",
		Signature: []byte("test-signature"),
	}

	raw, err := msg.Raw()
	require.NoError(t, err)
	assert.Equal(t, `{"wallet_id":"w1"}`, string(raw))
}

func TestGenerateKeyMessage_SigAndInitiatorID(t *testing.T) {
	msg := &GenerateKeyMessage{WalletID: "test-wallet-456"}
	msg.SetSignature([]byte("signature"))

	assert.Equal(t, []byte("signature"), msg.Sig())
	assert.Equal(t, "test-wallet-456", msg.InitiatorID())
}

func TestSignTxMessage_Raw(t *testing.T) {
	msg := &SignTxMessage{
		KeyType:             KeyTypeSecp256k1,
		WalletID:            "wallet-123",
		NetworkInternalCode: "BTC",
		TxID:                "tx-456",
		Tx:                  []byte("transaction-data"),
		Signature:           []byte("signature-data"),
	}

	raw, err := msg.Raw()
	require.NoError(t, err)

	expected := `{"key_type":"secp256k1","wallet_id":"wallet-123","network_internal_code":"BTC",` +
		`"tx_id":"tx-456","tx":"dHJhbnNhY3Rpb24tZGF0YQ=="}`
	assert.Equal(t, expected, string(raw))
	assert.NotContains(t, string(raw), "signature")
}

func TestSignTxMessage_InitiatorID(t *testing.T) {
	msg := &SignTxMessage{TxID: "transaction-789", WalletID: "wallet"}
	assert.Equal(t, "transaction-789", msg.InitiatorID())
}

func TestResharingMessage_Raw(t *testing.T) {
	msg := &ResharingMessage{
		SessionID:    "session-1",
		NodeIDs:      []string{"node1", "node2", "node3"},
		NewThreshold: 2,
		KeyType:      KeyTypeEd25519,
		WalletID:     "reshare-wallet",
		Signature:    []byte("reshare-signature"),
	}

	raw, err := msg.Raw()
	require.NoError(t, err)

	// A struct marshals members in declaration order, which is the order the
	// remote verifier uses.
	type data struct {
		SessionID    string   `json:"session_id"`
		NodeIDs      []string `json:"node_ids"`
		NewThreshold int      `json:"new_threshold"`
		KeyType      KeyType  `json:"key_type"`
		WalletID     string   `json:"wallet_id"`
	}

	expectedBytes, err := json.Marshal(data{
		SessionID:    msg.SessionID,
		NodeIDs:      msg.NodeIDs,
		NewThreshold: msg.NewThreshold,
		KeyType:      msg.KeyType,
		WalletID:     msg.WalletID,
	})
	require.NoError(t, err)
	assert.Equal(t, expectedBytes, raw)
	assert.Equal(t, "session-1", msg.InitiatorID())
}

func TestSigningFields_Order(t *testing.T) {
	assert.Equal(t, []string{"wallet_id"}, (&GenerateKeyMessage{}).SigningFields().Keys())
	assert.Equal(t,
		[]string{"key_type", "wallet_id", "network_internal_code", "tx_id", "tx"},
		(&SignTxMessage{}).SigningFields().Keys(),
	)
	assert.Equal(t,
		[]string{"session_id", "node_ids", "new_threshold", "key_type", "wallet_id"},
		(&ResharingMessage{}).SigningFields().Keys(),
	)
}

func TestRaw_IgnoresSignature(t *testing.T) {
	msg := &SignTxMessage{
		KeyType:             KeyTypeSecp256k1,
		WalletID:            "consistent-wallet",
		NetworkInternalCode: "BTC",
		TxID:                "consistent-tx",
		Tx:                  []byte("consistent-data"),
		Signature:           []byte("signature1"),
	}

	raw1, err := msg.Raw()
	require.NoError(t, err)

	msg.Signature = []byte("different-signature")
	raw2, err := msg.Raw()
	require.NoError(t, err)

	assert.Equal(t, raw1, raw2)
}

func TestCanonicalFields_OrderChangesEncoding(t *testing.T) {
	tests := []struct {
		name   string
		fields CanonicalFields
	}{
		{"sign", (&SignTxMessage{
			KeyType:             KeyTypeEd25519,
			WalletID:            "w",
			NetworkInternalCode: "SOL",
			TxID:                "tx",
			Tx:                  []byte{1, 2},
		}).SigningFields()},
		{"reshare", (&ResharingMessage{
			SessionID:    "s",
			NodeIDs:      []string{"a", "b"},
			NewThreshold: 1,
			KeyType:      KeyTypeSecp256k1,
			WalletID:     "w",
		}).SigningFields()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reordered := make(CanonicalFields, len(tt.fields))
			for i, f := range tt.fields {
				reordered[len(tt.fields)-1-i] = f
			}

			original, err := tt.fields.Encode()
			require.NoError(t, err)
			swapped, err := reordered.Encode()
			require.NoError(t, err)

			assert.NotEqual(t, original, swapped)
			assert.JSONEq(t, string(original), string(swapped), "same members, different order")
		})
	}
}

func TestCanonicalFields_EmptyValues(t *testing.T) {
	raw, err := (&SignTxMessage{}).Raw()
	require.NoError(t, err)
	assert.Equal(t, `{"key_type":"","wallet_id":"","network_internal_code":"","tx_id":"","tx":null}`, string(raw))

	empty, err := CanonicalFields{}.Encode()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(empty))
}

func TestAllMessageTypesImplementInitiatorMessage(t *testing.T) {
	var _ InitiatorMessage = &GenerateKeyMessage{}
	var _ InitiatorMessage = &SignTxMessage{}
	var _ InitiatorMessage = &ResharingMessage{}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{"generate ok", &GenerateKeyMessage{WalletID: "w"}, false},
		{"generate missing wallet", &GenerateKeyMessage{}, true},
		{"sign ok", &SignTxMessage{KeyType: KeyTypeEd25519, WalletID: "w", Tx: []byte{1}}, false},
		{"sign bad key type", &SignTxMessage{KeyType: "rsa", WalletID: "w", Tx: []byte{1}}, true},
		{"sign empty tx", &SignTxMessage{KeyType: KeyTypeEd25519, WalletID: "w"}, true},
		{"reshare ok", &ResharingMessage{WalletID: "w", KeyType: KeyTypeSecp256k1, NodeIDs: []string{"a", "b"}, NewThreshold: 1}, false},
		{"reshare duplicate nodes", &ResharingMessage{WalletID: "w", KeyType: KeyTypeSecp256k1, NodeIDs: []string{"a", "a"}, NewThreshold: 1}, true},
		{"reshare empty node id", &ResharingMessage{WalletID: "w", KeyType: KeyTypeSecp256k1, NodeIDs: []string{"a", ""}, NewThreshold: 1}, true},
		{"reshare threshold too high", &ResharingMessage{WalletID: "w", KeyType: KeyTypeSecp256k1, NodeIDs: []string{"a", "b"}, NewThreshold: 2}, true},
		{"reshare threshold zero", &ResharingMessage{WalletID: "w", KeyType: KeyTypeSecp256k1, NodeIDs: []string{"a", "b"}, NewThreshold: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMessage)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
