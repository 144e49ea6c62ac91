package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fystack/mpcium-client/pkg/logger"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const DefaultPublishTimeout = 5 * time.Second

var ErrStreamUnavailable = errors.New("request stream unavailable")

// PublishPath records which delivery guarantee a request was sent with.
type PublishPath string

const (
	PublishDurable    PublishPath = "durable"
	PublishBestEffort PublishPath = "best-effort"
)

type jetStreamPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

type corePublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// PublishRequest is one signed request ready for the wire.
type PublishRequest struct {
	Subject string
	// StreamName and StreamSubjects describe the durable stream expected to
	// capture Subject.
	StreamName     string
	StreamSubjects []string
	// MsgID lets the broker drop duplicates of a retried publish.
	MsgID string
	Data  []byte
}

// RequestPublisher sends requests over JetStream when the request stream is
// reachable and over core NATS otherwise.
type RequestPublisher struct {
	js          jetStreamPublisher
	core        corePublisher
	provisioner *StreamProvisioner
	timeout     time.Duration

	mu     sync.Mutex
	probed map[string]string
}

type PublisherOption func(*RequestPublisher)

func WithPublishTimeout(timeout time.Duration) PublisherOption {
	return func(p *RequestPublisher) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// NewRequestPublisher builds a publisher. js and provisioner may be nil, in
// which case every request goes out best-effort.
func NewRequestPublisher(core corePublisher, js jetStreamPublisher, provisioner *StreamProvisioner, opts ...PublisherOption) *RequestPublisher {
	p := &RequestPublisher{
		js:          js,
		core:        core,
		provisioner: provisioner,
		timeout:     DefaultPublishTimeout,
		probed:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish delivers req and reports the path it took. A request is handed to
// the broker once per path: a best-effort send only happens after the
// durable one was refused for availability reasons.
func (p *RequestPublisher) Publish(ctx context.Context, req PublishRequest) (PublishPath, error) {
	if req.Subject == "" {
		return "", ErrInvalidSubjects
	}

	msg := nats.NewMsg(req.Subject)
	msg.Data = req.Data
	if req.MsgID != "" {
		msg.Header.Set(nats.MsgIdHdr, req.MsgID)
	}

	err := p.publishDurable(ctx, req, msg)
	if err == nil {
		logger.Debug("Published request", "subject", req.Subject, "path", PublishDurable, "msg_id", req.MsgID)
		return PublishDurable, nil
	}
	if !isUnavailable(err) {
		return "", fmt.Errorf("durable publish to %s: %w", req.Subject, err)
	}

	logger.Warn("durable publish unavailable, falling back to best-effort",
		"subject", req.Subject,
		"stream", req.StreamName,
		"reason", err.Error(),
	)
	if err := p.core.PublishMsg(msg); err != nil {
		return "", fmt.Errorf("best-effort publish to %s: %w", req.Subject, err)
	}
	return PublishBestEffort, nil
}

func (p *RequestPublisher) publishDurable(ctx context.Context, req PublishRequest, msg *nats.Msg) error {
	if p.js == nil || p.provisioner == nil || req.StreamName == "" {
		return ErrStreamUnavailable
	}

	if err := p.probe(ctx, req); err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.js.PublishMsg(pubCtx, msg)
	if err != nil {
		p.forget(req.StreamName)
		return err
	}
	return nil
}

// probe confirms once per stream that JetStream is able to capture the
// request subject. Successful probes are cached until a publish fails.
func (p *RequestPublisher) probe(ctx context.Context, req PublishRequest) error {
	p.mu.Lock()
	_, ok := p.probed[req.StreamName]
	p.mu.Unlock()
	if ok {
		return nil
	}

	subjects := req.StreamSubjects
	if len(subjects) == 0 {
		subjects = []string{req.Subject}
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	owner, err := p.provisioner.EnsureStream(probeCtx, StreamSpec{
		Name:     req.StreamName,
		Subjects: subjects,
		MaxAge:   DefaultRequestStreamMaxAge,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStreamUnavailable, err)
	}

	p.mu.Lock()
	p.probed[req.StreamName] = owner
	p.mu.Unlock()
	return nil
}

func (p *RequestPublisher) forget(stream string) {
	p.mu.Lock()
	delete(p.probed, stream)
	p.mu.Unlock()
}
