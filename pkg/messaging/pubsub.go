package messaging

import (
	"github.com/fystack/mpcium-client/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Subscription interface {
	Unsubscribe() error
}

// PubSub is fire-and-forget publishing over core NATS.
type PubSub interface {
	Publish(topic string, message []byte) error
	PublishWithHeaders(topic string, data []byte, headers map[string]string) error
}

type natsPubSub struct {
	natsConn *nats.Conn
}

func NewNATSPubSub(natsConn *nats.Conn) PubSub {
	return &natsPubSub{natsConn}
}

func (n *natsPubSub) Publish(topic string, message []byte) error {
	logger.Debug("[NATS] Publishing message", "topic", topic)
	return n.natsConn.Publish(topic, message)
}

func (n *natsPubSub) PublishWithHeaders(topic string, data []byte, headers map[string]string) error {
	msg := nats.NewMsg(topic)
	msg.Data = data
	for k, v := range headers {
		msg.Header.Set(k, v)
	}
	logger.Debug("[NATS] Publishing message with headers", "topic", topic, "headers", len(headers))
	return n.natsConn.PublishMsg(msg)
}
