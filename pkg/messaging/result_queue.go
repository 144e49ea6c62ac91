package messaging

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fystack/mpcium-client/pkg/logger"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	DeadLetterSubjectPrefix = "mpc.dead_letter"

	HeaderOriginalSubject = "Mpc-Original-Subject"
	HeaderNumDelivered    = "Mpc-Num-Delivered"
	HeaderFailure         = "Mpc-Failure"

	defaultPullErrorBackoff = 500 * time.Millisecond
)

// ExhaustedPolicy decides what happens to a message whose handler keeps
// failing after the consumer's last delivery attempt.
type ExhaustedPolicy string

const (
	// ExhaustedBroker naks the message and lets the broker's MaxDeliver
	// limit stop redelivery.
	ExhaustedBroker     ExhaustedPolicy = "broker"
	ExhaustedTerminate  ExhaustedPolicy = "terminate"
	ExhaustedDeadLetter ExhaustedPolicy = "dead-letter"
)

func ParseExhaustedPolicy(s string) (ExhaustedPolicy, error) {
	switch p := ExhaustedPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ExhaustedBroker, nil
	case ExhaustedBroker, ExhaustedTerminate, ExhaustedDeadLetter:
		return p, nil
	default:
		return "", fmt.Errorf("unknown exhausted policy %q", s)
	}
}

// Disposition is the acknowledgement sent back for one delivery.
type Disposition string

const (
	DispositionAck  Disposition = "ack"
	DispositionNak  Disposition = "nak"
	DispositionTerm Disposition = "term"
)

// Handler processes one delivered payload and the subject it arrived on.
// Returning an error wrapped with Permanent terminates the message; any other
// error requests redelivery.
type Handler func(subject string, data []byte) error

type messageSource interface {
	Messages(opts ...jetstream.PullMessagesOpt) (jetstream.MessagesContext, error)
}

// ResultQueue pulls messages from one durable consumer and settles each of
// them exactly once.
type ResultQueue struct {
	name         string
	source       messageSource
	maxDeliver   int
	policy       ExhaustedPolicy
	deadLetter   PubSub
	errorBackoff time.Duration
}

type QueueOption func(*ResultQueue)

// WithMaxDeliver tells the queue how many deliveries the consumer allows so
// it can recognise the last one.
func WithMaxDeliver(n int) QueueOption {
	return func(q *ResultQueue) {
		q.maxDeliver = n
	}
}

func WithExhaustedPolicy(policy ExhaustedPolicy) QueueOption {
	return func(q *ResultQueue) {
		q.policy = policy
	}
}

func WithDeadLetter(pubsub PubSub) QueueOption {
	return func(q *ResultQueue) {
		q.deadLetter = pubsub
	}
}

func withPullErrorBackoff(d time.Duration) QueueOption {
	return func(q *ResultQueue) {
		q.errorBackoff = d
	}
}

func NewResultQueue(name string, source messageSource, opts ...QueueOption) *ResultQueue {
	q := &ResultQueue{
		name:         name,
		source:       source,
		maxDeliver:   DefaultMaxDeliveryAttempts,
		policy:       ExhaustedBroker,
		errorBackoff: defaultPullErrorBackoff,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func DeadLetterSubject(consumer string) string {
	return DeadLetterSubjectPrefix + "." + sanitizeConsumerName(consumer)
}

// Subscribe starts a pull loop that feeds handler until the returned
// subscription is stopped.
func (q *ResultQueue) Subscribe(handler Handler) (*ResultSubscription, error) {
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	iter, err := q.source.Messages()
	if err != nil {
		return nil, fmt.Errorf("open message iterator for %s: %w", q.name, err)
	}

	sub := &ResultSubscription{
		iter: iter,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go q.pull(sub, handler)

	logger.Info("Subscribed to result queue", "consumer", q.name)
	return sub, nil
}

func (q *ResultQueue) pull(sub *ResultSubscription, handler Handler) {
	defer close(sub.done)

	for {
		msg, err := sub.iter.Next()
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgIteratorClosed) || sub.stopped() {
				logger.Debug("Result queue pull loop stopped", "consumer", q.name)
				return
			}
			logger.Warn("Failed to pull result message", "consumer", q.name, "error", err.Error())
			select {
			case <-sub.stop:
				return
			case <-time.After(q.errorBackoff):
			}
			continue
		}

		q.process(msg, handler)
	}
}

// process runs handler for msg and settles it. The returned disposition is
// what was sent to the broker.
func (q *ResultQueue) process(msg jetstream.Msg, handler Handler) Disposition {
	err := invoke(handler, msg.Subject(), msg.Data())
	if err == nil {
		return q.settle(msg, DispositionAck)
	}

	if errors.Is(err, ErrPermanent) {
		logger.Warn("Dropping undeliverable result", "consumer", q.name, "subject", msg.Subject(), "error", err.Error())
		return q.settle(msg, DispositionTerm)
	}

	cbErr := &CallbackError{Queue: q.name, Err: err}
	meta, metaErr := msg.Metadata()
	if metaErr == nil && q.maxDeliver > 0 && meta.NumDelivered >= uint64(q.maxDeliver) {
		return q.exhausted(msg, meta.NumDelivered, cbErr)
	}

	logger.Error("Result handler failed, requesting redelivery", cbErr, "consumer", q.name, "subject", msg.Subject())
	return q.settle(msg, DispositionNak)
}

func (q *ResultQueue) exhausted(msg jetstream.Msg, delivered uint64, cbErr *CallbackError) Disposition {
	logger.Error("Result delivery attempts exhausted", cbErr,
		"consumer", q.name,
		"subject", msg.Subject(),
		"delivered", delivered,
		"policy", string(q.policy),
	)

	switch q.policy {
	case ExhaustedTerminate:
		return q.settle(msg, DispositionTerm)
	case ExhaustedDeadLetter:
		if q.deadLetter == nil {
			return q.settle(msg, DispositionNak)
		}
		headers := map[string]string{
			HeaderOriginalSubject: msg.Subject(),
			HeaderNumDelivered:    strconv.FormatUint(delivered, 10),
			HeaderFailure:         cbErr.Err.Error(),
		}
		if err := q.deadLetter.PublishWithHeaders(DeadLetterSubject(q.name), msg.Data(), headers); err != nil {
			logger.Error("Failed to publish dead letter", err, "consumer", q.name)
			return q.settle(msg, DispositionNak)
		}
		return q.settle(msg, DispositionTerm)
	default:
		return q.settle(msg, DispositionNak)
	}
}

func (q *ResultQueue) settle(msg jetstream.Msg, d Disposition) Disposition {
	var err error
	switch d {
	case DispositionAck:
		err = msg.Ack()
	case DispositionNak:
		err = msg.Nak()
	case DispositionTerm:
		err = msg.Term()
	}
	if err != nil {
		logger.Error("Failed to settle result message", err, "consumer", q.name, "disposition", string(d))
	}
	return d
}

func invoke(handler Handler, subject string, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(subject, data)
}

var _ Subscription = (*ResultSubscription)(nil)

// ResultSubscription is the handle for one running pull loop.
type ResultSubscription struct {
	iter jetstream.MessagesContext
	once sync.Once
	stop chan struct{}
	done chan struct{}
}

// Unsubscribe stops the pull loop. It does not wait for an in-flight
// handler, so it is safe to call from inside one.
func (s *ResultSubscription) Unsubscribe() error {
	s.once.Do(func() {
		close(s.stop)
		s.iter.Stop()
	})
	return nil
}

// Done is closed once the pull loop has exited.
func (s *ResultSubscription) Done() <-chan struct{} {
	return s.done
}

func (s *ResultSubscription) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}
