// Package messagingtest provides in-memory stand-ins for the JetStream and
// core NATS surfaces used by the messaging and client packages.
package messagingtest

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/fystack/mpcium-client/pkg/logger"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	Ack  = "ack"
	Nak  = "nak"
	Term = "term"
)

// JetStream fakes stream and consumer management plus JetStream publishing.
type JetStream struct {
	mu sync.Mutex

	Streams   map[string][]string
	Consumers map[string]*Consumer
	Owners    map[string]string

	StreamErrs        []error
	CreateStreamErr   error
	CreateConsumerErr error
	// RegisterOnConflict simulates a peer winning the consumer creation race.
	RegisterOnConflict bool
	PublishErr         error
	// OnPublish runs after a successful durable publish is recorded.
	OnPublish func(*nats.Msg)

	StreamCalls         int
	CreateStreamCalls   int
	CreateConsumerCalls int
	PublishCalls        int
	LastConsumerCfg     jetstream.ConsumerConfig
	Published           []*nats.Msg
}

func NewJetStream() *JetStream {
	return &JetStream{
		Streams:   make(map[string][]string),
		Consumers: make(map[string]*Consumer),
		Owners:    make(map[string]string),
	}
}

func (f *JetStream) Stream(_ context.Context, name string) (jetstream.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StreamCalls++
	if len(f.StreamErrs) > 0 {
		err := f.StreamErrs[0]
		f.StreamErrs = f.StreamErrs[1:]
		return nil, err
	}
	if _, ok := f.Streams[name]; ok {
		return nil, nil
	}
	return nil, jetstream.ErrStreamNotFound
}

func (f *JetStream) CreateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateStreamCalls++
	if f.CreateStreamErr != nil {
		return nil, f.CreateStreamErr
	}
	f.Streams[cfg.Name] = cfg.Subjects
	return nil, nil
}

func (f *JetStream) StreamNameBySubject(_ context.Context, subject string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if owner, ok := f.Owners[subject]; ok {
		return owner, nil
	}
	return "", jetstream.ErrStreamNotFound
}

func (f *JetStream) Consumer(_ context.Context, stream, name string) (jetstream.Consumer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.Consumers[stream+"/"+name]; ok {
		return c, nil
	}
	return nil, jetstream.ErrConsumerNotFound
}

func (f *JetStream) CreateConsumer(_ context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateConsumerCalls++
	f.LastConsumerCfg = cfg
	c := &Consumer{Name: cfg.Durable, Iter: NewIter()}
	if f.CreateConsumerErr != nil {
		if f.RegisterOnConflict {
			f.Consumers[stream+"/"+cfg.Durable] = c
		}
		return nil, f.CreateConsumerErr
	}
	f.Consumers[stream+"/"+cfg.Durable] = c
	return c, nil
}

// ConsumerFor returns the consumer registered for stream and durable, or nil.
func (f *JetStream) ConsumerFor(stream, durable string) *Consumer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Consumers[stream+"/"+durable]
}

func (f *JetStream) PublishMsg(_ context.Context, msg *nats.Msg, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	f.PublishCalls++
	if f.PublishErr != nil {
		err := f.PublishErr
		f.mu.Unlock()
		return nil, err
	}
	f.Published = append(f.Published, msg)
	hook := f.OnPublish
	f.mu.Unlock()

	if hook != nil {
		hook(msg)
	}
	return &jetstream.PubAck{Stream: "fake"}, nil
}

// SetPublishErr changes the durable publish outcome while publishers run.
func (f *JetStream) SetPublishErr(err error) {
	f.mu.Lock()
	f.PublishErr = err
	f.mu.Unlock()
}

type Consumer struct {
	jetstream.Consumer
	Name string
	Iter *Iter
	Err  error
}

func (c *Consumer) Messages(...jetstream.PullMessagesOpt) (jetstream.MessagesContext, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Iter, nil
}

// Iter is a pull iterator fed through Msgs and Errs.
type Iter struct {
	jetstream.MessagesContext
	Msgs     chan jetstream.Msg
	Errs     chan error
	stopOnce sync.Once
	stopped  chan struct{}
}

func NewIter() *Iter {
	return &Iter{
		Msgs:    make(chan jetstream.Msg, 16),
		Errs:    make(chan error, 4),
		stopped: make(chan struct{}),
	}
}

func (it *Iter) Next() (jetstream.Msg, error) {
	select {
	case <-it.stopped:
		return nil, jetstream.ErrMsgIteratorClosed
	default:
	}
	select {
	case <-it.stopped:
		return nil, jetstream.ErrMsgIteratorClosed
	case err := <-it.Errs:
		return nil, err
	case m := <-it.Msgs:
		return m, nil
	}
}

func (it *Iter) Stop() {
	it.stopOnce.Do(func() { close(it.stopped) })
}

func (it *Iter) Stopped() bool {
	select {
	case <-it.stopped:
		return true
	default:
		return false
	}
}

// Msg records how it was settled.
type Msg struct {
	jetstream.Msg
	subject   string
	data      []byte
	delivered uint64

	mu           sync.Mutex
	dispositions []string
	Settled      chan string
}

func NewMsg(subject string, data []byte, delivered uint64) *Msg {
	return &Msg{
		subject:   subject,
		data:      data,
		delivered: delivered,
		Settled:   make(chan string, 4),
	}
}

func (m *Msg) Data() []byte    { return m.data }
func (m *Msg) Subject() string { return m.subject }

func (m *Msg) Metadata() (*jetstream.MsgMetadata, error) {
	return &jetstream.MsgMetadata{NumDelivered: m.delivered}, nil
}

func (m *Msg) record(d string) error {
	m.mu.Lock()
	m.dispositions = append(m.dispositions, d)
	m.mu.Unlock()
	m.Settled <- d
	return nil
}

func (m *Msg) Ack() error  { return m.record(Ack) }
func (m *Msg) Nak() error  { return m.record(Nak) }
func (m *Msg) Term() error { return m.record(Term) }

func (m *Msg) Recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.dispositions...)
}

// Core records best-effort publishes.
type Core struct {
	mu   sync.Mutex
	Err  error
	Msgs []*nats.Msg
}

func (f *Core) PublishMsg(msg *nats.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Msgs = append(f.Msgs, msg)
	return nil
}

func (f *Core) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Msgs)
}

// PubSub records fire-and-forget publishes.
type PubSub struct {
	mu        sync.Mutex
	Err       error
	Published []string
	Headers   []map[string]string
}

func (f *PubSub) Publish(topic string, data []byte) error {
	return f.PublishWithHeaders(topic, data, nil)
}

func (f *PubSub) PublishWithHeaders(topic string, _ []byte, headers map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Published = append(f.Published, topic)
	f.Headers = append(f.Headers, headers)
	return nil
}

type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) Count(substr string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), substr)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// CaptureLogs redirects the global logger for the duration of the test.
func CaptureLogs(t testing.TB) *LogBuffer {
	t.Helper()
	buf := &LogBuffer{}
	prev := logger.Log
	logger.Log = zerolog.New(buf)
	t.Cleanup(func() { logger.Log = prev })
	return buf
}
