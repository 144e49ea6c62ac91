package types

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

type KeyType string

const (
	KeyTypeSecp256k1 KeyType = "secp256k1"
	KeyTypeEd25519   KeyType = "ed25519"
)

// EventInitiatorKeyType is the algorithm of the key that signs requests.
type EventInitiatorKeyType string

const (
	EventInitiatorKeyTypeEd25519 EventInitiatorKeyType = "ed25519"
	EventInitiatorKeyTypeP256    EventInitiatorKeyType = "p256"
)

var ErrInvalidMessage = errors.New("invalid initiator message")

// InitiatorMessage is a request signed by the event initiator.
type InitiatorMessage interface {
	// Raw returns the canonical bytes covered by the signature.
	Raw() ([]byte, error)
	// Sig returns the signature.
	Sig() []byte
	// InitiatorID returns the correlation id of the request.
	InitiatorID() string
	// SetSignature stores the signature. It must be the last field set.
	SetSignature(sig []byte)
}

type GenerateKeyMessage struct {
	WalletID  string `json:"wallet_id"`
	Signature []byte `json:"signature,omitempty"`
}

type SignTxMessage struct {
	KeyType             KeyType `json:"key_type"`
	WalletID            string  `json:"wallet_id"`
	NetworkInternalCode string  `json:"network_internal_code"`
	TxID                string  `json:"tx_id"`
	Tx                  []byte  `json:"tx"`
	Signature           []byte  `json:"signature,omitempty"`
}

type ResharingMessage struct {
	SessionID    string   `json:"session_id"`
	NodeIDs      []string `json:"node_ids"` // new peer IDs
	NewThreshold int      `json:"new_threshold"`
	KeyType      KeyType  `json:"key_type"`
	WalletID     string   `json:"wallet_id"`
	Signature    []byte   `json:"signature,omitempty"`
}

func (k KeyType) Valid() bool {
	return k == KeyTypeSecp256k1 || k == KeyTypeEd25519
}

func (m *GenerateKeyMessage) SigningFields() CanonicalFields {
	return CanonicalFields{
		{Key: "wallet_id", Value: m.WalletID},
	}
}

func (m *GenerateKeyMessage) Raw() ([]byte, error) {
	return m.SigningFields().Encode()
}

func (m *GenerateKeyMessage) Sig() []byte {
	return m.Signature
}

func (m *GenerateKeyMessage) InitiatorID() string {
	return m.WalletID
}

func (m *GenerateKeyMessage) SetSignature(sig []byte) {
	m.Signature = sig
}

func (m *GenerateKeyMessage) Validate() error {
	if m.WalletID == "" {
		return fmt.Errorf("%w: wallet_id is required", ErrInvalidMessage)
	}
	return nil
}

func (m *SignTxMessage) SigningFields() CanonicalFields {
	return CanonicalFields{
		{Key: "key_type", Value: m.KeyType},
		{Key: "wallet_id", Value: m.WalletID},
		{Key: "network_internal_code", Value: m.NetworkInternalCode},
		{Key: "tx_id", Value: m.TxID},
		{Key: "tx", Value: m.Tx},
	}
}

func (m *SignTxMessage) Raw() ([]byte, error) {
	return m.SigningFields().Encode()
}

func (m *SignTxMessage) Sig() []byte {
	return m.Signature
}

func (m *SignTxMessage) InitiatorID() string {
	return m.TxID
}

func (m *SignTxMessage) SetSignature(sig []byte) {
	m.Signature = sig
}

func (m *SignTxMessage) Validate() error {
	switch {
	case m.WalletID == "":
		return fmt.Errorf("%w: wallet_id is required", ErrInvalidMessage)
	case !m.KeyType.Valid():
		return fmt.Errorf("%w: unsupported key_type %q", ErrInvalidMessage, m.KeyType)
	case len(m.Tx) == 0:
		return fmt.Errorf("%w: tx is empty", ErrInvalidMessage)
	}
	return nil
}

func (m *ResharingMessage) SigningFields() CanonicalFields {
	return CanonicalFields{
		{Key: "session_id", Value: m.SessionID},
		{Key: "node_ids", Value: m.NodeIDs},
		{Key: "new_threshold", Value: m.NewThreshold},
		{Key: "key_type", Value: m.KeyType},
		{Key: "wallet_id", Value: m.WalletID},
	}
}

func (m *ResharingMessage) Raw() ([]byte, error) {
	return m.SigningFields().Encode()
}

func (m *ResharingMessage) Sig() []byte {
	return m.Signature
}

// InitiatorID for resharing is the session id; the wallet may be reshared
// more than once.
func (m *ResharingMessage) InitiatorID() string {
	return m.SessionID
}

func (m *ResharingMessage) SetSignature(sig []byte) {
	m.Signature = sig
}

func (m *ResharingMessage) Validate() error {
	switch {
	case m.WalletID == "":
		return fmt.Errorf("%w: wallet_id is required", ErrInvalidMessage)
	case !m.KeyType.Valid():
		return fmt.Errorf("%w: unsupported key_type %q", ErrInvalidMessage, m.KeyType)
	case len(m.NodeIDs) == 0:
		return fmt.Errorf("%w: node_ids is empty", ErrInvalidMessage)
	case len(lo.Uniq(m.NodeIDs)) != len(m.NodeIDs):
		return fmt.Errorf("%w: node_ids contains duplicates", ErrInvalidMessage)
	case lo.Contains(m.NodeIDs, ""):
		return fmt.Errorf("%w: node_ids contains an empty id", ErrInvalidMessage)
	case m.NewThreshold < 1 || m.NewThreshold >= len(m.NodeIDs):
		// t+1 parties are needed to sign, so t must stay below the committee size.
		return fmt.Errorf("%w: new_threshold %d out of range for %d nodes", ErrInvalidMessage, m.NewThreshold, len(m.NodeIDs))
	}
	return nil
}
