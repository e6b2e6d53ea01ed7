package controller

import (
	"context"

	"go.uber.org/zap"

	"github.com/wkrzos/parked/internal/bus"
	"github.com/wkrzos/parked/internal/envelope"
	"github.com/wkrzos/parked/internal/metrics"
)

// Emitter publishes responses on the response topic.  Each response is
// published once; failures are logged and counted, never retried.
type Emitter struct {
	bus      bus.Client
	topic    string
	identity string
	log      *zap.Logger
	metrics  metrics.Recorder
}

func NewEmitter(b bus.Client, topic, identity string, log *zap.Logger, rec metrics.Recorder) *Emitter {
	return &Emitter{bus: b, topic: topic, identity: identity, log: log, metrics: rec}
}

func (e *Emitter) Emit(ctx context.Context, header string, body any, correlationID string) error {
	env, err := envelope.New(header, e.identity, body, correlationID)
	if err != nil {
		e.fail(header, err)
		return err
	}
	payload, err := env.Encode()
	if err != nil {
		e.fail(header, err)
		return err
	}

	if err := e.bus.Publish(ctx, e.topic, payload); err != nil {
		e.fail(header, err)
		return err
	}

	e.metrics.ResponsePublished(header)
	e.log.Debug("response published",
		zap.String("header", header),
		zap.String("id", env.ID),
		zap.String("correlation_id", correlationID))
	return nil
}

func (e *Emitter) fail(header string, err error) {
	e.metrics.PublishFailed(header)
	e.log.Error("publish response failed",
		zap.String("header", header),
		zap.String("topic", e.topic),
		zap.Error(err))
}
