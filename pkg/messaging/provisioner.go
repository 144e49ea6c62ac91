package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/avast/retry-go"
	"github.com/fystack/mpcium-client/pkg/logger"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	DefaultAckWait             = 60 * time.Second
	DefaultMaxDeliveryAttempts = 3
	DefaultMaxAckPending       = 1000
	DefaultResultStreamMaxAge  = 24 * time.Hour
	DefaultRequestStreamMaxAge = 3 * time.Minute

	defaultProvisionAttempts = 3
	defaultProvisionDelay    = 100 * time.Millisecond
)

// streamManager is the part of jetstream.JetStream the provisioner needs.
type streamManager interface {
	Stream(ctx context.Context, stream string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	StreamNameBySubject(ctx context.Context, subject string) (string, error)
	Consumer(ctx context.Context, stream string, consumer string) (jetstream.Consumer, error)
	CreateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error)
}

// StreamSpec describes a durable stream the client depends on.
type StreamSpec struct {
	Name     string
	Subjects []string
	MaxAge   time.Duration
	// Storage defaults to file storage.
	Storage jetstream.StorageType
}

// ConsumerSpec describes a named durable consumer.
type ConsumerSpec struct {
	Durable       string
	FilterSubject string
	MaxDeliver    int
	AckWait       time.Duration
	BackOff       []time.Duration
	MaxAckPending int
}

// StreamProvisioner makes sure durable streams and consumers exist. Both
// operations are idempotent and safe to race from several clients.
type StreamProvisioner struct {
	js       streamManager
	attempts uint
	delay    time.Duration
}

func NewStreamProvisioner(js streamManager) *StreamProvisioner {
	return &StreamProvisioner{
		js:       js,
		attempts: defaultProvisionAttempts,
		delay:    defaultProvisionDelay,
	}
}

// EnsureStream returns the name of the stream that captures desc.Subjects.
// That is desc.Name unless another stream already owns overlapping
// subjects, in which case the owner is used.
func (p *StreamProvisioner) EnsureStream(ctx context.Context, desc StreamSpec) (string, error) {
	if desc.Name == "" {
		return "", ErrInvalidStreamName
	}
	if len(desc.Subjects) == 0 {
		return "", ErrInvalidSubjects
	}

	var streamName string
	err := p.do(ctx, func() error {
		name, err := p.ensureStream(ctx, desc)
		streamName = name
		return err
	})
	if err != nil {
		return "", &ProvisionError{Resource: "stream", Name: desc.Name, Err: err}
	}
	return streamName, nil
}

func (p *StreamProvisioner) ensureStream(ctx context.Context, desc StreamSpec) (string, error) {
	_, err := p.js.Stream(ctx, desc.Name)
	if err == nil {
		return desc.Name, nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return "", fmt.Errorf("lookup stream: %w", err)
	}

	maxAge := desc.MaxAge
	if maxAge == 0 {
		maxAge = DefaultResultStreamMaxAge
	}

	_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        desc.Name,
		Description: "Stream for " + desc.Name,
		Subjects:    desc.Subjects,
		Retention:   jetstream.LimitsPolicy,
		Storage:     desc.Storage,
		MaxAge:      maxAge,
	})
	switch {
	case err == nil:
		logger.Info("Created JetStream stream", "stream", desc.Name, "subjects", desc.Subjects)
		return desc.Name, nil
	case isStreamExists(err):
		logger.Debug("Stream created concurrently, reusing", "stream", desc.Name)
		return desc.Name, nil
	case isSubjectOverlap(err):
		owner, lookupErr := p.js.StreamNameBySubject(ctx, desc.Subjects[0])
		if lookupErr != nil {
			return "", fmt.Errorf("resolve stream owning %s: %w", desc.Subjects[0], lookupErr)
		}
		logger.Info("Subjects already captured by another stream, reusing it",
			"stream", desc.Name, "owner", owner, "subject", desc.Subjects[0])
		return owner, nil
	default:
		return "", fmt.Errorf("create stream: %w", err)
	}
}

// EnsureConsumer returns the durable consumer, creating it when absent.
func (p *StreamProvisioner) EnsureConsumer(ctx context.Context, streamName string, desc ConsumerSpec) (jetstream.Consumer, error) {
	if streamName == "" {
		return nil, ErrInvalidStreamName
	}
	if desc.Durable == "" {
		return nil, ErrInvalidConsumer
	}

	durable := sanitizeConsumerName(desc.Durable)
	var consumer jetstream.Consumer
	err := p.do(ctx, func() error {
		c, err := p.ensureConsumer(ctx, streamName, durable, desc)
		consumer = c
		return err
	})
	if err != nil {
		return nil, &ProvisionError{Resource: "consumer", Name: durable, Err: err}
	}
	return consumer, nil
}

func (p *StreamProvisioner) ensureConsumer(ctx context.Context, streamName, durable string, desc ConsumerSpec) (jetstream.Consumer, error) {
	consumer, err := p.js.Consumer(ctx, streamName, durable)
	if err == nil {
		return consumer, nil
	}
	if !errors.Is(err, jetstream.ErrConsumerNotFound) {
		return nil, fmt.Errorf("lookup consumer: %w", err)
	}

	consumer, err = p.js.CreateConsumer(ctx, streamName, consumerConfig(durable, desc))
	switch {
	case err == nil:
		logger.Info("Created durable consumer", "stream", streamName, "consumer", durable, "filter", desc.FilterSubject)
		return consumer, nil
	case isConsumerExists(err):
		logger.Debug("Consumer created concurrently, reusing", "stream", streamName, "consumer", durable)
		consumer, err = p.js.Consumer(ctx, streamName, durable)
		if err != nil {
			return nil, fmt.Errorf("lookup existing consumer: %w", err)
		}
		return consumer, nil
	default:
		return nil, fmt.Errorf("create consumer: %w", err)
	}
}

func consumerConfig(durable string, desc ConsumerSpec) jetstream.ConsumerConfig {
	maxDeliver := desc.MaxDeliver
	if maxDeliver <= 0 {
		maxDeliver = DefaultMaxDeliveryAttempts
	}
	ackWait := desc.AckWait
	if ackWait <= 0 {
		ackWait = DefaultAckWait
	}
	maxAckPending := desc.MaxAckPending
	if maxAckPending <= 0 {
		maxAckPending = DefaultMaxAckPending
	}

	// The server rejects a backoff list that is not shorter than MaxDeliver.
	backoff := desc.BackOff
	if len(backoff) >= maxDeliver {
		backoff = backoff[:maxDeliver-1]
	}
	if len(backoff) == 0 {
		backoff = nil
	}

	return jetstream.ConsumerConfig{
		Name:          durable,
		Durable:       durable,
		Description:   "Durable result consumer " + durable,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		FilterSubject: desc.FilterSubject,
		MaxDeliver:    maxDeliver,
		AckWait:       ackWait,
		BackOff:       backoff,
		MaxAckPending: maxAckPending,
	}
}

func (p *StreamProvisioner) do(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(p.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("Retrying JetStream provisioning", "attempt", n+1, "error", err.Error())
		}),
	)
}

func sanitizeConsumerName(name string) string {
	name = strings.ReplaceAll(name, ".", "_")
	name = strings.ReplaceAll(name, ":", "_")
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, ">", "all")
	name = strings.ReplaceAll(name, "*", "any")

	if len(name) > 0 && !unicode.IsLetter(rune(name[0])) && name[0] != '_' {
		name = "_" + name
	}

	return name
}
