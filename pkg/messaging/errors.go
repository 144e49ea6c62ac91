package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

var (
	ErrInvalidStreamName  = errors.New("stream name cannot be empty")
	ErrInvalidSubjects    = errors.New("subjects cannot be empty")
	ErrInvalidConsumer    = errors.New("durable consumer name cannot be empty")
	ErrConnectionClosed   = errors.New("connection is closed")
	ErrSubscriptionClosed = errors.New("subscription is closed")

	// ErrPermanent marks a message that must not be redelivered.
	ErrPermanent = errors.New("permanent messaging error")
)

// JetStream API error codes that mean an equivalent resource is already in
// place.
const (
	errCodeConsumerNameExists   jetstream.ErrorCode = 10013
	errCodeStreamNameInUse      jetstream.ErrorCode = 10058
	errCodeStreamSubjectOverlap jetstream.ErrorCode = 10065
	errCodeConsumerExists       jetstream.ErrorCode = 10148
)

// ProvisionError is a genuine failure to create a durable stream or consumer.
type ProvisionError struct {
	Resource string
	Name     string
	Err      error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision %s %q: %v", e.Resource, e.Name, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// CallbackError wraps a failure raised by caller code while handling a
// delivered message.
type CallbackError struct {
	Queue string
	Err   error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("result handler for %s failed: %v", e.Queue, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// Permanent marks err so the message carrying it is terminated instead of
// redelivered.
func Permanent(err error) error {
	if err == nil || errors.Is(err, ErrPermanent) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

func apiErrorCode(err error) (jetstream.ErrorCode, bool) {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode, true
	}
	return 0, false
}

func isStreamExists(err error) bool {
	if errors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
		return true
	}
	code, ok := apiErrorCode(err)
	return ok && code == errCodeStreamNameInUse
}

func isSubjectOverlap(err error) bool {
	code, ok := apiErrorCode(err)
	return ok && code == errCodeStreamSubjectOverlap
}

func isConsumerExists(err error) bool {
	code, ok := apiErrorCode(err)
	return ok && (code == errCodeConsumerExists || code == errCodeConsumerNameExists)
}

// isTransient reports broker errors worth retrying within one operation.
func isTransient(err error) bool {
	return errors.Is(err, nats.ErrTimeout) || errors.Is(err, nats.ErrNoResponders)
}

// isUnavailable reports errors meaning the durable path cannot be used right
// now, as opposed to a malformed request.
func isUnavailable(err error) bool {
	return isTransient(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, jetstream.ErrJetStreamNotEnabled) ||
		errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, ErrStreamUnavailable)
}
