package bus

import (
	"context"
	"sync"
)

// Memory is an in-process Client.  Publish records the message and delivers
// it synchronously to every handler subscribed to the same topic.
type Memory struct {
	mu         sync.Mutex
	subs       map[string][]Handler
	published  []Message
	connected  bool
	publishErr error
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]Handler), connected: true}
}

func (m *Memory) Subscribe(_ context.Context, topic string, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	m.subs[topic] = append(m.subs[topic], h)
	return nil
}

func (m *Memory) Publish(_ context.Context, topic string, payload []byte) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	if m.publishErr != nil {
		err := m.publishErr
		m.mu.Unlock()
		return err
	}
	msg := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
	m.published = append(m.published, msg)
	handlers := append([]Handler(nil), m.subs[topic]...)
	m.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
	return nil
}

// Inject delivers payload to subscribers of topic without recording it as
// published, the way a message from another peer arrives.
func (m *Memory) Inject(topic string, payload []byte) {
	m.mu.Lock()
	handlers := append([]Handler(nil), m.subs[topic]...)
	m.mu.Unlock()

	for _, h := range handlers {
		h(Message{Topic: topic, Payload: payload})
	}
}

// Published returns every message published so far.
func (m *Memory) Published() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Message, len(m.published))
	copy(out, m.published)
	return out
}

// FailPublish makes every subsequent Publish return err (nil to reset).
func (m *Memory) FailPublish(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

func (m *Memory) SetConnected(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = v
}

func (m *Memory) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *Memory) Close() { m.SetConnected(false) }

var _ Client = (*Memory)(nil)
