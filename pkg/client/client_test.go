package client

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fystack/mpcium-client/pkg/common/generation"
	"github.com/fystack/mpcium-client/pkg/event"
	"github.com/fystack/mpcium-client/pkg/kvstore"
	"github.com/fystack/mpcium-client/pkg/messaging"
	"github.com/fystack/mpcium-client/pkg/messaging/messagingtest"
	"github.com/fystack/mpcium-client/pkg/types"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSigner is a mock implementation of the Signer interface
type MockSigner struct {
	mock.Mock
}

func (m *MockSigner) Sign(data []byte) ([]byte, error) {
	args := m.Called(data)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockSigner) Algorithm() types.EventInitiatorKeyType {
	args := m.Called()
	return args.Get(0).(types.EventInitiatorKeyType)
}

func (m *MockSigner) PublicKey() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

type testEnv struct {
	js      *messagingtest.JetStream
	core    *messagingtest.Core
	dl      *messagingtest.PubSub
	journal *Journal
	signer  *LocalSigner
	pub     ed25519.PublicKey
	client  *mpcClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = 7
	signer, err := NewEd25519Signer(seed)
	require.NoError(t, err)

	store, err := kvstore.NewBadgerKVStore(kvstore.BadgerOptions{InMemory: true})
	require.NoError(t, err)
	journal := NewJournal(store)
	t.Cleanup(func() { journal.Close() })

	env := &testEnv{
		js:      messagingtest.NewJetStream(),
		core:    &messagingtest.Core{},
		dl:      &messagingtest.PubSub{},
		journal: journal,
		signer:  signer,
		pub:     ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey),
	}
	env.client = newMPCClient(env.js, env.core, env.dl, signer, Options{Journal: journal})
	return env
}

func waitSettled(t *testing.T, msg *messagingtest.Msg) string {
	t.Helper()
	select {
	case d := <-msg.Settled:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("message was not settled")
		return ""
	}
}

func TestNewMPCClient_RequiresConnection(t *testing.T) {
	_, err := NewMPCClient(Options{})
	assert.ErrorContains(t, err, "NatsConn is required")
}

func TestCreateWallet_PublishesSignedRequest(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.client.CreateWallet("wallet-1")
	require.NoError(t, err)
	assert.Equal(t, "wallet-1", id)

	require.Len(t, env.js.Published, 1)
	published := env.js.Published[0]
	assert.Equal(t, event.KeygenRequestSubject, published.Subject)
	assert.Equal(t, "wallet-1", published.Header.Get(nats.MsgIdHdr))
	assert.Contains(t, env.js.Streams, event.KeygenBrokerStream)

	var msg types.GenerateKeyMessage
	require.NoError(t, json.Unmarshal(published.Data, &msg))
	raw, err := msg.Raw()
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(env.pub, raw, msg.Signature))

	pending, err := env.client.PendingRequests("keygen")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "wallet-1", pending[0].ID)
	assert.Equal(t, messaging.PublishDurable, pending[0].Path)
}

func TestCreateWallet_GeneratesWalletID(t *testing.T) {
	env := newTestEnv(t)
	c := newMPCClient(env.js, env.core, env.dl, env.signer, Options{})

	const calls = 10000
	seen := make(map[string]struct{}, calls)
	for i := 0; i < calls; i++ {
		id, err := c.CreateWallet("")
		require.NoError(t, err)
		require.True(t, generation.IsCorrelationID(id), "malformed id %q", id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %q", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, env.js.Published, calls)

	var msg types.GenerateKeyMessage
	require.NoError(t, json.Unmarshal(env.js.Published[0].Data, &msg))
	assert.Contains(t, seen, msg.WalletID)
	assert.Equal(t, msg.WalletID, env.js.Published[0].Header.Get(nats.MsgIdHdr))
}

func TestSignTransaction_GeneratesTxID(t *testing.T) {
	env := newTestEnv(t)

	msg := &types.SignTxMessage{
		KeyType:             types.KeyTypeEd25519,
		WalletID:            "wallet-1",
		NetworkInternalCode: "SOL",
		Tx:                  []byte("payload"),
	}
	id, err := env.client.SignTransaction(msg)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, msg.TxID)

	require.Len(t, env.js.Published, 1)
	assert.Equal(t, event.SigningRequestEventTopic, env.js.Published[0].Subject)
	assert.Equal(t, id, env.js.Published[0].Header.Get(nats.MsgIdHdr))

	raw, err := msg.Raw()
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(env.pub, raw, msg.Signature))
}

func TestSignTransaction_InvalidMessage(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.SignTransaction(nil)
	assert.ErrorIs(t, err, types.ErrInvalidMessage)

	_, err = env.client.SignTransaction(&types.SignTxMessage{WalletID: "w1", KeyType: "rsa", Tx: []byte{1}})
	assert.ErrorIs(t, err, types.ErrInvalidMessage)
}

func TestResharing_PublishesWithSessionID(t *testing.T) {
	env := newTestEnv(t)

	msg := &types.ResharingMessage{
		SessionID:    "session-1",
		NodeIDs:      []string{"node0", "node1", "node2"},
		NewThreshold: 1,
		KeyType:      types.KeyTypeSecp256k1,
		WalletID:     "wallet-1",
	}
	id, err := env.client.Resharing(msg)
	require.NoError(t, err)
	assert.Equal(t, "session-1", id)
	require.Len(t, env.js.Published, 1)
	assert.Equal(t, event.ReshareRequestSubject, env.js.Published[0].Subject)
}

func TestSubmit_FallsBackToBestEffort(t *testing.T) {
	logs := messagingtest.CaptureLogs(t)
	env := newTestEnv(t)
	env.js.PublishErr = jetstream.ErrNoStreamResponse

	id, err := env.client.CreateWallet("wallet-2")
	require.NoError(t, err)
	assert.Equal(t, "wallet-2", id)
	require.Equal(t, 1, env.core.Count())
	assert.Equal(t, event.KeygenRequestSubject, env.core.Msgs[0].Subject)
	assert.Equal(t, 1, logs.Count("durable publish unavailable, falling back to best-effort"))

	pending, err := env.client.PendingRequests("keygen")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, messaging.PublishBestEffort, pending[0].Path)
}

func TestSubmit_ResultHandledBeforePublishReturns(t *testing.T) {
	env := newTestEnv(t)
	env.js.OnPublish = func(*nats.Msg) {
		env.client.resolve(event.KeygenCategory, "wallet-fast")
	}

	_, err := env.client.CreateWallet("wallet-fast")
	require.NoError(t, err)

	pending, err := env.client.PendingRequests("keygen")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmit_PublishFailureForgetsRequest(t *testing.T) {
	env := newTestEnv(t)
	env.js.PublishErr = nats.ErrTimeout
	env.core.Err = nats.ErrConnectionClosed

	_, err := env.client.CreateWallet("wallet-lost")
	require.ErrorIs(t, err, nats.ErrConnectionClosed)

	pending, err := env.client.PendingRequests("keygen")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmit_SignerFailure(t *testing.T) {
	env := newTestEnv(t)
	signer := &MockSigner{}
	signer.On("Algorithm").Return(types.EventInitiatorKeyTypeP256)
	signer.On("Sign", mock.Anything).Return([]byte(nil), errors.New("kms throttled"))
	c := newMPCClient(env.js, env.core, env.dl, signer, Options{})

	_, err := c.CreateWallet("wallet-1")
	var signErr *SigningError
	assert.True(t, errors.As(err, &signErr))
	assert.Empty(t, env.js.Published)
	assert.Zero(t, env.core.Count())
}

func TestOnSignResult_DeliversAndResolves(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.journal.Record("signing", "tx-1", messaging.PublishDurable))

	results := make(chan event.SigningResultEvent, 1)
	require.NoError(t, env.client.OnSignResult(func(evt event.SigningResultEvent) error {
		results <- evt
		return nil
	}))

	consumer := env.js.ConsumerFor(event.SigningResultStream, event.SigningResultConsumer)
	require.NotNil(t, consumer)
	assert.Equal(t, event.SigningResultTopic, env.js.LastConsumerCfg.FilterSubject)

	msg := messagingtest.NewMsg("mpc.mpc_signing_result.tx-1",
		[]byte(`{"result_type":"success","wallet_id":"w1","tx_id":"tx-1","signature":"AQID"}`), 1)
	consumer.Iter.Msgs <- msg
	assert.Equal(t, messagingtest.Ack, waitSettled(t, msg))

	evt := <-results
	assert.Equal(t, "tx-1", evt.TxID)
	assert.Equal(t, event.ResultTypeSuccess, evt.ResultType)

	pending, err := env.client.PendingRequests("signing")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOnSignResult_UndecodablePayloadIsTerminated(t *testing.T) {
	env := newTestEnv(t)

	called := make(chan struct{}, 1)
	require.NoError(t, env.client.OnSignResult(func(event.SigningResultEvent) error {
		called <- struct{}{}
		return nil
	}))

	consumer := env.js.ConsumerFor(event.SigningResultStream, event.SigningResultConsumer)
	for _, payload := range []string{`{not json`, `{"tx_id":"tx-1","result_type":"maybe"}`} {
		msg := messagingtest.NewMsg("mpc.mpc_signing_result.tx-1", []byte(payload), 1)
		consumer.Iter.Msgs <- msg
		assert.Equal(t, messagingtest.Term, waitSettled(t, msg), payload)
	}
	assert.Empty(t, called)
}

func TestOnWalletCreationResult_RedeliveredAfterCallbackError(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.journal.Record("keygen", "w1", messaging.PublishDurable))

	attempts := 0
	require.NoError(t, env.client.OnWalletCreationResult(func(evt event.KeygenResultEvent) error {
		attempts++
		if attempts == 1 {
			return errors.New("database unavailable")
		}
		return nil
	}))

	consumer := env.js.ConsumerFor(event.KeygenResultStream, event.KeygenResultConsumer)
	payload := []byte(`{"wallet_id":"w1","result_type":"success"}`)

	first := messagingtest.NewMsg("mpc.mpc_keygen_result.w1", payload, 1)
	consumer.Iter.Msgs <- first
	assert.Equal(t, messagingtest.Nak, waitSettled(t, first))

	pending, err := env.client.PendingRequests("keygen")
	require.NoError(t, err)
	assert.Len(t, pending, 1, "request stays pending until the callback succeeds")

	second := messagingtest.NewMsg("mpc.mpc_keygen_result.w1", payload, 2)
	consumer.Iter.Msgs <- second
	assert.Equal(t, messagingtest.Ack, waitSettled(t, second))
	assert.Equal(t, 2, attempts)

	pending, err = env.client.PendingRequests("keygen")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOnResharingResult_CorrelatesBySubject(t *testing.T) {
	env := newTestEnv(t)

	sessionID, err := env.client.Resharing(&types.ResharingMessage{
		NodeIDs:      []string{"node0", "node1", "node2"},
		NewThreshold: 1,
		KeyType:      types.KeyTypeSecp256k1,
		WalletID:     "w1",
	})
	require.NoError(t, err)

	results := make(chan event.ResharingResultEvent, 1)
	require.NoError(t, env.client.OnResharingResult(func(evt event.ResharingResultEvent) error {
		results <- evt
		return nil
	}))

	consumer := env.js.ConsumerFor(event.ReshareResultStream, event.ReshareResultConsumer)
	require.NotNil(t, consumer)
	msg := messagingtest.NewMsg("mpc.mpc_reshare_result."+sessionID,
		[]byte(`{"result_type":"success","wallet_id":"w1","new_threshold":1,"key_type":"secp256k1","pub_key":"AQI="}`), 1)
	consumer.Iter.Msgs <- msg
	assert.Equal(t, messagingtest.Ack, waitSettled(t, msg))

	evt := <-results
	assert.Equal(t, sessionID, evt.CorrelationID())
	assert.Equal(t, "w1", evt.WalletID)

	pending, err := env.client.PendingRequests("reshare")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOnResult_ReusesProvisionedConsumer(t *testing.T) {
	env := newTestEnv(t)
	noop := func(event.ResharingResultEvent) error { return nil }

	require.NoError(t, env.client.OnResharingResult(noop))
	require.NoError(t, env.client.OnResharingResult(noop))
	assert.Equal(t, 1, env.js.CreateConsumerCalls)
	assert.Equal(t, 1, env.js.CreateStreamCalls)
}

func TestOnResult_ConsumerSuffix(t *testing.T) {
	env := newTestEnv(t)
	c := newMPCClient(env.js, env.core, env.dl, env.signer, Options{ConsumerSuffix: "cli"})

	require.NoError(t, c.OnWalletCreationResult(func(event.KeygenResultEvent) error { return nil }))
	assert.Equal(t, "mpc_keygen_result_cli", env.js.LastConsumerCfg.Durable)
	assert.NotNil(t, env.js.ConsumerFor(event.KeygenResultStream, "mpc_keygen_result_cli"))
	assert.Nil(t, env.js.ConsumerFor(event.KeygenResultStream, event.KeygenResultConsumer))
	require.NoError(t, c.Close())
}

func TestOnResult_NilCallback(t *testing.T) {
	env := newTestEnv(t)
	assert.Error(t, env.client.OnSignResult(nil))
}

func TestOnResult_ExhaustedDeadLetter(t *testing.T) {
	env := newTestEnv(t)
	env.client = newMPCClient(env.js, env.core, env.dl, env.signer, Options{
		MaxDeliver:      2,
		ExhaustedPolicy: messaging.ExhaustedDeadLetter,
	})

	require.NoError(t, env.client.OnWalletCreationResult(func(event.KeygenResultEvent) error {
		return errors.New("always failing")
	}))
	assert.Equal(t, 2, env.js.LastConsumerCfg.MaxDeliver)

	consumer := env.js.ConsumerFor(event.KeygenResultStream, event.KeygenResultConsumer)
	msg := messagingtest.NewMsg("mpc.mpc_keygen_result.w1", []byte(`{"wallet_id":"w1","result_type":"success"}`), 2)
	consumer.Iter.Msgs <- msg
	assert.Equal(t, messagingtest.Term, waitSettled(t, msg))
	assert.Equal(t, []string{"mpc.dead_letter.mpc_keygen_result"}, env.dl.Published)
}

func TestClose(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.client.OnSignResult(func(event.SigningResultEvent) error { return nil }))
	consumer := env.js.ConsumerFor(event.SigningResultStream, event.SigningResultConsumer)

	require.NoError(t, env.client.Close())
	assert.True(t, consumer.Iter.Stopped())
	assert.ErrorIs(t, env.client.Close(), ErrClientClosed)

	_, err := env.client.CreateWallet("wallet-1")
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.ErrorIs(t, env.client.OnSignResult(func(event.SigningResultEvent) error { return nil }), ErrClientClosed)
}

func TestClose_FromCallback(t *testing.T) {
	env := newTestEnv(t)
	closed := make(chan error, 1)
	require.NoError(t, env.client.OnWalletCreationResult(func(event.KeygenResultEvent) error {
		closed <- env.client.Close()
		return nil
	}))

	consumer := env.js.ConsumerFor(event.KeygenResultStream, event.KeygenResultConsumer)
	msg := messagingtest.NewMsg("mpc.mpc_keygen_result.w1", []byte(`{"wallet_id":"w1","result_type":"success"}`), 1)
	consumer.Iter.Msgs <- msg

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return from inside the callback")
	}
	assert.Equal(t, messagingtest.Ack, waitSettled(t, msg))
}
