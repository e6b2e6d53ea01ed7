// Package metrics exposes controller counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons.
const (
	DropMalformed = "malformed"
	DropSelf      = "self"
	DropDuplicate = "duplicate"
	DropUnknown   = "unknown_header"
	DropInvalid   = "invalid_body"
	DropQueueFull = "queue_full"
	DropPanic     = "panic"
)

// Recorder is what the controller reports to.
type Recorder interface {
	MessageReceived()
	MessageDropped(reason string)
	TransactionCompleted(action string, status bool, d time.Duration)
	ResponsePublished(header string)
	PublishFailed(header string)
}

// Collector is the Prometheus Recorder.
type Collector struct {
	received     prometheus.Counter
	dropped      *prometheus.CounterVec
	transactions *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	published    *prometheus.CounterVec
	publishFail  *prometheus.CounterVec
}

// NewCollector registers the controller metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parked_messages_received_total",
			Help: "Bus messages received on the request topic.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parked_messages_dropped_total",
			Help: "Messages discarded before a response was emitted, by reason.",
		}, []string{"reason"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parked_transactions_total",
			Help: "Handled requests by action and reported status.",
		}, []string{"action", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parked_handler_duration_seconds",
			Help:    "Time spent in a handler, transaction included.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parked_responses_published_total",
			Help: "Responses published, by header.",
		}, []string{"header"}),
		publishFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parked_responses_failed_total",
			Help: "Responses that could not be published, by header.",
		}, []string{"header"}),
	}

	reg.MustRegister(
		c.received,
		c.dropped,
		c.transactions,
		c.latency,
		c.published,
		c.publishFail,
	)

	return c
}

func (c *Collector) MessageReceived() { c.received.Inc() }

func (c *Collector) MessageDropped(reason string) {
	c.dropped.WithLabelValues(reason).Inc()
}

func (c *Collector) TransactionCompleted(action string, status bool, d time.Duration) {
	c.transactions.WithLabelValues(action, strconv.FormatBool(status)).Inc()
	c.latency.WithLabelValues(action).Observe(d.Seconds())
}

func (c *Collector) ResponsePublished(header string) {
	c.published.WithLabelValues(header).Inc()
}

func (c *Collector) PublishFailed(header string) {
	c.publishFail.WithLabelValues(header).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) MessageReceived() {}
func (Nop) MessageDropped(string) {}
func (Nop) TransactionCompleted(string, bool, time.Duration) {}
func (Nop) ResponsePublished(string) {}
func (Nop) PublishFailed(string) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
