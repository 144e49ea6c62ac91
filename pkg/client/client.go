package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fystack/mpcium-client/pkg/common/generation"
	"github.com/fystack/mpcium-client/pkg/event"
	"github.com/fystack/mpcium-client/pkg/logger"
	"github.com/fystack/mpcium-client/pkg/messaging"
	"github.com/fystack/mpcium-client/pkg/types"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const defaultProvisionTimeout = 30 * time.Second

var ErrClientClosed = errors.New("mpc client is closed")

type MPCClient interface {
	// CreateWallet submits a key generation request and returns its
	// correlation id, the wallet id.
	CreateWallet(walletID string) (string, error)
	OnWalletCreationResult(callback func(event event.KeygenResultEvent) error) error

	// SignTransaction submits a signing request and returns its correlation
	// id. An empty TxID is filled with a generated one.
	SignTransaction(msg *types.SignTxMessage) (string, error)
	OnSignResult(callback func(event event.SigningResultEvent) error) error

	// Resharing submits a reshare request and returns its correlation id. An
	// empty SessionID is filled with a generated one.
	Resharing(msg *types.ResharingMessage) (string, error)
	OnResharingResult(callback func(event event.ResharingResultEvent) error) error

	// PendingRequests lists journaled requests still waiting for a result.
	PendingRequests(category string) ([]PendingRequest, error)

	// Close stops every subscription. The NATS connection is left open.
	Close() error
}

// Options defines configuration options for creating a new MPCClient
type Options struct {
	// NATS connection, borrowed and never closed by the client
	NatsConn *nats.Conn

	// Key options, used when Signer is nil
	KeyPath   string // Path to the key file (default: "./event_initiator.key")
	Encrypted bool   // Whether the key is encrypted
	Password  string // Password for encrypted key

	// Signer overrides the local Ed25519 key
	Signer Signer

	// Result consumer settings
	MaxDeliver      int
	AckWait         time.Duration
	Backoff         []time.Duration
	ExhaustedPolicy messaging.ExhaustedPolicy
	// ConsumerSuffix gives this client its own durable result consumers
	// (mpc_keygen_result_<suffix>) instead of the shared ones.
	ConsumerSuffix string

	PublishTimeout time.Duration

	// Journal, when set, records requests until their result is handled
	Journal *Journal
}

type jetStreamAPI interface {
	Stream(ctx context.Context, stream string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	StreamNameBySubject(ctx context.Context, subject string) (string, error)
	Consumer(ctx context.Context, stream string, consumer string) (jetstream.Consumer, error)
	CreateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error)
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

type corePublisher interface {
	PublishMsg(msg *nats.Msg) error
}

type mpcClient struct {
	signer      Signer
	publisher   *messaging.RequestPublisher
	provisioner *messaging.StreamProvisioner
	deadLetter  messaging.PubSub
	journal     *Journal

	maxDeliver int
	ackWait    time.Duration
	backoff    []time.Duration
	policy     messaging.ExhaustedPolicy
	// consumerSuffix selects private durable consumers when set.
	consumerSuffix string

	mu     sync.Mutex
	closed bool
	queues map[string]*messaging.ResultQueue
	subs   []*messaging.ResultSubscription
}

// NewMPCClient creates a new MPC client using the provided options. Unless
// opts.Signer is set, the Ed25519 initiator key is read from opts.KeyPath,
// decrypting it when it is an .age file.
func NewMPCClient(opts Options) (MPCClient, error) {
	if opts.NatsConn == nil {
		return nil, errors.New("NatsConn is required")
	}

	signer := opts.Signer
	if signer == nil {
		local, err := NewLocalSigner(types.EventInitiatorKeyTypeEd25519, LocalSignerOptions{
			KeyPath:   opts.KeyPath,
			Encrypted: opts.Encrypted,
			Password:  opts.Password,
		})
		if err != nil {
			return nil, err
		}
		signer = local
	}

	js, err := jetstream.New(opts.NatsConn)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	return newMPCClient(js, opts.NatsConn, messaging.NewNATSPubSub(opts.NatsConn), signer, opts), nil
}

func newMPCClient(js jetStreamAPI, core corePublisher, deadLetter messaging.PubSub, signer Signer, opts Options) *mpcClient {
	provisioner := messaging.NewStreamProvisioner(js)

	maxDeliver := opts.MaxDeliver
	if maxDeliver <= 0 {
		maxDeliver = messaging.DefaultMaxDeliveryAttempts
	}
	policy := opts.ExhaustedPolicy
	if policy == "" {
		policy = messaging.ExhaustedBroker
	}

	algo := signer.Algorithm()
	logger.Info("MPC client initialized", "signer", string(algo), "max_deliver", maxDeliver, "exhausted_policy", string(policy))

	return &mpcClient{
		signer:         signer,
		publisher:      messaging.NewRequestPublisher(core, js, provisioner, messaging.WithPublishTimeout(opts.PublishTimeout)),
		provisioner:    provisioner,
		deadLetter:     deadLetter,
		journal:        opts.Journal,
		maxDeliver:     maxDeliver,
		ackWait:        opts.AckWait,
		backoff:        opts.Backoff,
		policy:         policy,
		consumerSuffix: opts.ConsumerSuffix,
		queues:         make(map[string]*messaging.ResultQueue),
	}
}

// CreateWallet generates a GenerateKeyMessage, signs it, and publishes it.
// An empty walletID is replaced by a generated one.
func (c *mpcClient) CreateWallet(walletID string) (string, error) {
	if walletID == "" {
		id, err := generation.NewCorrelationID()
		if err != nil {
			return "", err
		}
		walletID = id
	}
	msg := &types.GenerateKeyMessage{WalletID: walletID}
	if err := msg.Validate(); err != nil {
		return "", fmt.Errorf("CreateWallet: %w", err)
	}
	return c.submit(event.KeygenCategory, msg)
}

// SignTransaction signs msg and publishes it.
func (c *mpcClient) SignTransaction(msg *types.SignTxMessage) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("SignTransaction: %w: nil message", types.ErrInvalidMessage)
	}
	if err := msg.Validate(); err != nil {
		return "", fmt.Errorf("SignTransaction: %w", err)
	}
	if msg.TxID == "" {
		id, err := generation.NewCorrelationID()
		if err != nil {
			return "", err
		}
		msg.TxID = id
	}
	return c.submit(event.SigningCategory, msg)
}

// Resharing signs msg and publishes it.
func (c *mpcClient) Resharing(msg *types.ResharingMessage) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("Resharing: %w: nil message", types.ErrInvalidMessage)
	}
	if err := msg.Validate(); err != nil {
		return "", fmt.Errorf("Resharing: %w", err)
	}
	if msg.SessionID == "" {
		id, err := generation.NewCorrelationID()
		if err != nil {
			return "", err
		}
		msg.SessionID = id
	}
	return c.submit(event.ReshareCategory, msg)
}

func (c *mpcClient) submit(cat event.Category, msg types.InitiatorMessage) (string, error) {
	if c.isClosed() {
		return "", ErrClientClosed
	}

	if err := SignMessage(c.signer, msg); err != nil {
		return "", err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal %s request: %w", cat.Name, err)
	}

	id := msg.InitiatorID()

	// Journal first so a result handled before Publish returns finds the
	// entry to resolve.
	journaled := false
	if c.journal != nil {
		if err := c.journal.Record(cat.Name, id, messaging.PublishDurable); err != nil {
			logger.Error("Failed to journal request", err, "category", cat.Name, "id", id)
		} else {
			journaled = true
		}
	}

	path, err := c.publisher.Publish(context.Background(), messaging.PublishRequest{
		Subject:        cat.RequestSubject,
		StreamName:     cat.RequestStream,
		StreamSubjects: []string{cat.RequestTopic},
		MsgID:          id,
		Data:           data,
	})
	if err != nil {
		if journaled {
			c.resolve(cat, id)
		}
		return "", fmt.Errorf("publish %s request: %w", cat.Name, err)
	}

	if journaled && path != messaging.PublishDurable {
		if err := c.journal.Update(cat.Name, id, path); err != nil {
			logger.Warn("Failed to update journaled request", "category", cat.Name, "id", id, "error", err.Error())
		}
	}

	logger.Info("Submitted request", "category", cat.Name, "id", id, "path", string(path))
	return id, nil
}

// OnWalletCreationResult registers callback for keygen results.
func (c *mpcClient) OnWalletCreationResult(callback func(event event.KeygenResultEvent) error) error {
	if err := subscribe(c, event.KeygenCategory, callback); err != nil {
		return fmt.Errorf("OnWalletCreationResult: %w", err)
	}
	return nil
}

// OnSignResult registers callback for signing results.
func (c *mpcClient) OnSignResult(callback func(event event.SigningResultEvent) error) error {
	if err := subscribe(c, event.SigningCategory, callback); err != nil {
		return fmt.Errorf("OnSignResult: %w", err)
	}
	return nil
}

// OnResharingResult registers callback for reshare results.
func (c *mpcClient) OnResharingResult(callback func(event event.ResharingResultEvent) error) error {
	if err := subscribe(c, event.ReshareCategory, callback); err != nil {
		return fmt.Errorf("OnResharingResult: %w", err)
	}
	return nil
}

// subscribe decodes each delivery before handing it to callback. Payloads
// that cannot be decoded are terminated without reaching the callback.
func subscribe[T event.ResultEvent](c *mpcClient, cat event.Category, callback func(T) error) error {
	if callback == nil {
		return errors.New("callback cannot be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}

	queue, err := c.resultQueueLocked(cat)
	if err != nil {
		return err
	}

	sub, err := queue.Subscribe(func(subject string, data []byte) error {
		evt, err := event.Decode[T](subject, data)
		if err != nil {
			return messaging.Permanent(err)
		}
		if err := callback(evt); err != nil {
			return err
		}
		c.resolve(cat, evt.CorrelationID())
		return nil
	})
	if err != nil {
		return err
	}

	c.subs = append(c.subs, sub)
	return nil
}

// resultQueueLocked provisions the result stream and consumer of cat the
// first time it is needed. c.mu must be held.
func (c *mpcClient) resultQueueLocked(cat event.Category) (*messaging.ResultQueue, error) {
	if q, ok := c.queues[cat.Name]; ok {
		return q, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultProvisionTimeout)
	defer cancel()

	streamName, err := c.provisioner.EnsureStream(ctx, messaging.StreamSpec{
		Name:     cat.ResultStream,
		Subjects: []string{cat.ResultTopic},
		MaxAge:   messaging.DefaultResultStreamMaxAge,
	})
	if err != nil {
		return nil, err
	}

	consumer, err := c.provisioner.EnsureConsumer(ctx, streamName, messaging.ConsumerSpec{
		Durable:       c.consumerName(cat),
		FilterSubject: cat.ResultTopic,
		MaxDeliver:    c.maxDeliver,
		AckWait:       c.ackWait,
		BackOff:       c.backoff,
	})
	if err != nil {
		return nil, err
	}

	q := messaging.NewResultQueue(c.consumerName(cat), consumer,
		messaging.WithMaxDeliver(c.maxDeliver),
		messaging.WithExhaustedPolicy(c.policy),
		messaging.WithDeadLetter(c.deadLetter),
	)
	c.queues[cat.Name] = q
	return q, nil
}

func (c *mpcClient) consumerName(cat event.Category) string {
	if c.consumerSuffix == "" {
		return cat.ResultConsumer
	}
	return cat.ResultConsumer + "_" + c.consumerSuffix
}

func (c *mpcClient) resolve(cat event.Category, id string) {
	if c.journal == nil || id == "" {
		return
	}
	if err := c.journal.Resolve(cat.Name, id); err != nil {
		logger.Warn("Failed to resolve journaled request", "category", cat.Name, "id", id, "error", err.Error())
	}
}

func (c *mpcClient) PendingRequests(category string) ([]PendingRequest, error) {
	if c.journal == nil {
		return nil, nil
	}
	return c.journal.Pending(category)
}

func (c *mpcClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close stops every subscription once. It does not wait for running
// callbacks, so it may be called from inside one.
func (c *mpcClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.closed = true

	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			logger.Warn("Failed to stop result subscription", "error", err.Error())
		}
	}
	c.subs = nil

	logger.Info("MPC client closed")
	return nil
}
