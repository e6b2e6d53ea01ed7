// Package bus is the publish/subscribe transport the controller talks to.
package bus

import (
	"context"
	"errors"
)

var ErrNotConnected = errors.New("bus: not connected")

// Message is one payload received on a topic.
type Message struct {
	Topic   string
	Payload []byte
}

// Handler is invoked for every message on a subscribed topic.  It must not
// block for long; the controller only enqueues.
type Handler func(Message)

type Client interface {
	Subscribe(ctx context.Context, topic string, h Handler) error
	Publish(ctx context.Context, topic string, payload []byte) error
	Connected() bool
	Close()
}
