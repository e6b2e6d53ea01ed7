package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type MQTTConfig struct {
	BrokerURL      string // e.g. "tcp://localhost:1883"
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	ConnectTimeout time.Duration
}

// MQTT adapts a paho client to Client.  Subscriptions are remembered and
// replayed from the OnConnect handler so they survive reconnects.
type MQTT struct {
	cfg    MQTTConfig
	client mqtt.Client
	log    *zap.Logger

	mu   sync.Mutex
	subs map[string]Handler
}

// DialMQTT connects to the broker and returns once the first connection is
// up, ctx expires or ConnectTimeout passes.
func DialMQTT(ctx context.Context, cfg MQTTConfig, log *zap.Logger) (*MQTT, error) {
	m := newMQTT(cfg, log)
	m.client = mqtt.NewClient(m.clientOptions())

	connectCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	if err := wait(connectCtx, m.client.Connect()); err != nil {
		m.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect %s: %w", m.cfg.BrokerURL, err)
	}
	return m, nil
}

func newMQTT(cfg MQTTConfig, log *zap.Logger) *MQTT {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MQTT{
		cfg:  cfg,
		log:  log.Named("mqtt"),
		subs: make(map[string]Handler),
	}
}

// clientOptions keeps OrderMatters on: paho then invokes callbacks one at a
// time from its router goroutine, so Handler sees messages in broker order.
// Handlers must not block.
func (m *MQTT) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(m.cfg.BrokerURL).
		SetClientID(m.cfg.ClientID).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetConnectTimeout(m.cfg.ConnectTimeout).
		SetCleanSession(true).
		SetOrderMatters(true).
		SetOnConnectHandler(m.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			m.log.Warn("connection lost", zap.Error(err))
		})
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username).SetPassword(m.cfg.Password)
	}
	return opts
}

func (m *MQTT) onConnect(c mqtt.Client) {
	m.log.Info("connected", zap.String("broker", m.cfg.BrokerURL))

	m.mu.Lock()
	defer m.mu.Unlock()
	for topic, h := range m.subs {
		tok := c.Subscribe(topic, m.cfg.QoS, m.wrap(h))
		if !tok.WaitTimeout(m.cfg.ConnectTimeout) {
			m.log.Error("resubscribe timed out", zap.String("topic", topic), zap.Duration("timeout", m.cfg.ConnectTimeout))
			continue
		}
		if err := tok.Error(); err != nil {
			m.log.Error("resubscribe failed", zap.String("topic", topic), zap.Error(err))
		}
	}
}

func (m *MQTT) wrap(h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		h(Message{Topic: msg.Topic(), Payload: msg.Payload()})
	}
}

func (m *MQTT) Subscribe(ctx context.Context, topic string, h Handler) error {
	m.mu.Lock()
	m.subs[topic] = h
	m.mu.Unlock()

	if err := wait(ctx, m.client.Subscribe(topic, m.cfg.QoS, m.wrap(h))); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	return nil
}

func (m *MQTT) Publish(ctx context.Context, topic string, payload []byte) error {
	if !m.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	if err := wait(ctx, m.client.Publish(topic, m.cfg.QoS, false, payload)); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

func (m *MQTT) Connected() bool {
	return m.client.IsConnectionOpen()
}

func (m *MQTT) Close() {
	m.client.Disconnect(250)
}

func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Client = (*MQTT)(nil)
