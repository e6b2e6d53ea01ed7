package controller

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/wkrzos/parked/internal/bus"
	"github.com/wkrzos/parked/internal/dedup"
	"github.com/wkrzos/parked/internal/envelope"
	"github.com/wkrzos/parked/internal/metrics"
	"github.com/wkrzos/parked/internal/parking/service"
	"github.com/wkrzos/parked/internal/parking/types"
)

// DefaultTopic is used for both requests and responses when none is configured.
const DefaultTopic = "/database"

type Dependencies struct {
	Logger        *zap.Logger
	Bus           bus.Client
	Identity      string
	RequestTopic  string
	ResponseTopic string

	Gates         *service.GateService
	Registrations *service.RegistrationService

	// Dedup is optional.  When nil every message is handled.
	Dedup    dedup.Store
	DedupTTL time.Duration

	Metrics        metrics.Recorder
	QueueSize      int
	HandlerTimeout time.Duration // 0 = no per-message deadline
}

// Controller consumes bus messages one at a time: decode, drop our own
// messages and redeliveries, route by header, run the handler, publish the
// response.
type Controller struct {
	log      *zap.Logger
	bus      bus.Client
	topic    string
	filter   SelfFilter
	router   *Router
	emitter  *Emitter
	dedup    dedup.Store
	dedupTTL time.Duration
	metrics  metrics.Recorder
	timeout  time.Duration
	queue    chan bus.Message
}

func New(d Dependencies) *Controller {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	if d.RequestTopic == "" {
		d.RequestTopic = DefaultTopic
	}
	if d.ResponseTopic == "" {
		d.ResponseTopic = DefaultTopic
	}
	if d.QueueSize <= 0 {
		d.QueueSize = 256
	}
	if d.DedupTTL <= 0 {
		d.DedupTTL = dedup.DefaultTTL
	}

	log := d.Logger.Named("controller")
	filter := NewSelfFilter(d.Identity)

	c := &Controller{
		log:      log,
		bus:      d.Bus,
		topic:    d.RequestTopic,
		filter:   filter,
		router:   NewRouter(),
		emitter:  NewEmitter(d.Bus, d.ResponseTopic, filter.Identity(), log, d.Metrics),
		dedup:    d.Dedup,
		dedupTTL: d.DedupTTL,
		metrics:  d.Metrics,
		timeout:  d.HandlerTimeout,
		queue:    make(chan bus.Message, d.QueueSize),
	}

	c.router.Handle(types.HeaderEntry, passageHandler(d.Gates.Entry))
	c.router.Handle(types.HeaderDeparture, passageHandler(d.Gates.Departure))
	c.router.Handle(types.HeaderRegistration, registrationHandler(d.Registrations))

	return c
}

// Subscribe attaches the controller to the request topic.
func (c *Controller) Subscribe(ctx context.Context) error {
	if err := c.bus.Subscribe(ctx, c.topic, c.Deliver); err != nil {
		return err
	}
	c.log.Info("subscribed", zap.String("topic", c.topic), zap.String("identity", c.filter.Identity()))
	return nil
}

// Deliver enqueues msg for Run.  It never blocks the bus client: when the
// queue is full the message is dropped.
func (c *Controller) Deliver(msg bus.Message) {
	c.metrics.MessageReceived()
	select {
	case c.queue <- msg:
	default:
		c.metrics.MessageDropped(metrics.DropQueueFull)
		c.log.Warn("queue full, message dropped", zap.String("topic", msg.Topic))
	}
}

// Run handles queued messages until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.queue:
			c.Handle(ctx, msg)
		}
	}
}

// Handle processes a single message synchronously.  It never returns an
// error and never panics; every failure is logged and counted.
func (c *Controller) Handle(ctx context.Context, msg bus.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.MessageDropped(metrics.DropPanic)
			c.log.Error("handler panicked", zap.Any("panic", r), zap.String("topic", msg.Topic))
		}
	}()

	env, err := envelope.Decode(msg.Payload)
	if err != nil {
		c.metrics.MessageDropped(metrics.DropMalformed)
		c.log.Warn("malformed message", zap.Error(err))
		return
	}

	if c.filter.IsSelf(env) {
		c.metrics.MessageDropped(metrics.DropSelf)
		return
	}

	handle, claimed := c.claim(ctx, env)
	if !handle {
		c.metrics.MessageDropped(metrics.DropDuplicate)
		c.log.Info("duplicate message dropped", zap.String("id", env.ID), zap.String("header", env.Header))
		return
	}

	// Only a committed change keeps its claim; anything else may be retried
	// with the same id.
	committed := false
	if claimed {
		defer func() {
			if !committed {
				c.release(ctx, env.ID)
			}
		}()
	}

	h, ok := c.router.Route(env.Header)
	if !ok {
		c.metrics.MessageDropped(metrics.DropUnknown)
		c.log.Warn("unknown header", zap.String("header", env.Header), zap.String("sender", env.Sender))
		return
	}

	hctx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := h(hctx, env)
	if err != nil {
		reason := metrics.DropMalformed
		if isValidationError(err) {
			reason = metrics.DropInvalid
		}
		c.metrics.MessageDropped(reason)
		c.log.Warn("invalid request",
			zap.String("header", env.Header),
			zap.String("sender", env.Sender),
			zap.Error(err))
		return
	}
	committed = resp.Status
	c.metrics.TransactionCompleted(resp.Action, resp.Status, time.Since(start))

	_ = c.emitter.Emit(ctx, resp.Header, resp.Body, env.ID)
}

// claim reports whether env should be handled and whether the dedup store
// now holds a claim on its id.  Messages without an id are always handled;
// a failing dedup store does not block processing.
func (c *Controller) claim(ctx context.Context, env envelope.Envelope) (handle, claimed bool) {
	if c.dedup == nil || env.ID == "" {
		return true, false
	}
	ok, err := c.dedup.MarkProcessed(ctx, env.ID, c.dedupTTL)
	if err != nil {
		c.log.Warn("dedup unavailable, handling anyway", zap.String("id", env.ID), zap.Error(err))
		return true, false
	}
	return ok, ok
}

func (c *Controller) release(ctx context.Context, id string) {
	if err := c.dedup.Release(context.WithoutCancel(ctx), id); err != nil {
		c.log.Warn("dedup release failed", zap.String("id", id), zap.Error(err))
	}
}

type passageFunc func(context.Context, types.PassageRequest) (types.StatusResponse, error)

func passageHandler(fn passageFunc) HandlerFunc {
	return func(ctx context.Context, env envelope.Envelope) (Response, error) {
		var req types.PassageRequest
		if err := env.DecodeBody(&req); err != nil {
			return Response{}, err
		}
		resp, err := fn(ctx, req)
		if err != nil {
			return Response{}, err
		}
		return Response{Header: types.HeaderDatabaseStatus, Action: resp.Action, Status: resp.Status, Body: resp}, nil
	}
}

func registrationHandler(svc *service.RegistrationService) HandlerFunc {
	return func(ctx context.Context, env envelope.Envelope) (Response, error) {
		var req types.RegistrationRequest
		if err := env.DecodeBody(&req); err != nil {
			return Response{}, err
		}
		resp, err := svc.Handle(ctx, req)
		if err != nil {
			return Response{}, err
		}
		return Response{Header: types.HeaderRegistrationResponse, Action: resp.Action, Status: resp.Status, Body: resp}, nil
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, service.ErrMissingCardUUID) ||
		errors.Is(err, service.ErrMissingUsername) ||
		errors.Is(err, service.ErrInvalidAction)
}
