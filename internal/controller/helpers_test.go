package controller_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wkrzos/parked/internal/bus"
	"github.com/wkrzos/parked/internal/controller"
	"github.com/wkrzos/parked/internal/db"
	"github.com/wkrzos/parked/internal/envelope"
	"github.com/wkrzos/parked/internal/parking/service"
	"github.com/wkrzos/parked/internal/parking/store/sqldb"
)

// recorder counts drop reasons so tests can tell when a message was
// consumed without producing a response.
type recorder struct {
	mu      sync.Mutex
	dropped map[string]int
	handled int
	failed  int
}

func newRecorder() *recorder { return &recorder{dropped: make(map[string]int)} }

func (r *recorder) MessageReceived() {}

func (r *recorder) MessageDropped(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped[reason]++
}

func (r *recorder) TransactionCompleted(string, bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handled++
}

func (r *recorder) ResponsePublished(string) {}

func (r *recorder) PublishFailed(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

func (r *recorder) drops(reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped[reason]
}

func (r *recorder) publishFailures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

type harness struct {
	t    *testing.T
	ctrl *controller.Controller
	bus  *bus.Memory
	db   *sqlx.DB
	w    *db.Worker
	rec  *recorder
}

// newHarness wires a controller to a fresh SQLite file and an in-memory bus.
// Request and response share the default topic, as in production.
func newHarness(t *testing.T, mutate ...func(*controller.Dependencies)) *harness {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open(ctx, db.Config{Driver: db.DriverSQLite, Path: filepath.Join(t.TempDir(), "parked.db")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	w := db.NewWorker(conn)
	t.Cleanup(w.Close)

	log := zaptest.NewLogger(t)
	b := bus.NewMemory()
	rec := newRecorder()

	deps := controller.Dependencies{
		Logger:        log,
		Bus:           b,
		Gates:         service.NewGateService(service.NewGateRegistry(nil), sqldb.NewGateLogStore(w), log),
		Registrations: service.NewRegistrationService(sqldb.NewRegistrationStore(w), log),
		Metrics:       rec,
	}
	for _, m := range mutate {
		m(&deps)
	}

	ctrl := controller.New(deps)
	require.NoError(t, ctrl.Subscribe(ctx))

	return &harness{t: t, ctrl: ctrl, bus: b, db: conn, w: w, rec: rec}
}

// run starts the consumer loop until the test ends.
func (h *harness) run() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.ctrl.Run(ctx)
	}()
	h.t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (h *harness) payload(header, sender, id string, body any) []byte {
	h.t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(h.t, err)
	b, err := envelope.Envelope{Header: header, Body: raw, Sender: sender, ID: id}.Encode()
	require.NoError(h.t, err)
	return b
}

// handle processes one message synchronously, bypassing the queue.
func (h *harness) handle(header, sender, id string, body any) {
	h.t.Helper()
	h.ctrl.Handle(context.Background(), bus.Message{Topic: controller.DefaultTopic, Payload: h.payload(header, sender, id, body)})
}

// inject delivers a message through the bus the way a peer would.
func (h *harness) inject(header, sender, id string, body any) {
	h.t.Helper()
	h.bus.Inject(controller.DefaultTopic, h.payload(header, sender, id, body))
}

// responses decodes everything the controller published.
func (h *harness) responses() []envelope.Envelope {
	h.t.Helper()

	var out []envelope.Envelope
	for _, m := range h.bus.Published() {
		env, err := envelope.Decode(m.Payload)
		require.NoError(h.t, err)
		out = append(out, env)
	}
	return out
}

type statusBody struct {
	Action   string `json:"action"`
	Status   bool   `json:"status"`
	CardUUID string `json:"card_uuid"`
	User     string `json:"user"`
}

func (h *harness) lastStatus() (envelope.Envelope, statusBody) {
	h.t.Helper()

	rs := h.responses()
	require.NotEmpty(h.t, rs, "expected at least one response")
	env := rs[len(rs)-1]

	var body statusBody
	require.NoError(h.t, env.DecodeBody(&body))
	return env, body
}

func (h *harness) count(query string, args ...any) int {
	h.t.Helper()

	var n int
	require.NoError(h.t, h.db.Get(&n, h.db.Rebind(query), args...))
	return n
}

func (h *harness) seedBinding(username, cardCode string) {
	h.t.Helper()

	var userID int64
	require.NoError(h.t, h.db.Get(&userID,
		`INSERT INTO parking_user(username, password, email) VALUES (?, 'pw', ?) RETURNING id`,
		username, username+"@example.com"))
	_, err := h.db.Exec(`INSERT INTO card(card_code, user_id) VALUES (?, ?)`, cardCode, userID)
	require.NoError(h.t, err)
}

// occupyWorker parks a job on the transaction worker until the returned
// func is called.
func (h *harness) occupyWorker() (release func()) {
	h.t.Helper()

	started := make(chan struct{})
	unblock := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.w.Do(context.Background(), func(context.Context, *sqlx.Tx) error {
			close(started)
			<-unblock
			return nil
		})
	}()
	<-started
	return func() {
		close(unblock)
		<-done
	}
}

// drainWorker waits until every queued transaction has been taken.
func (h *harness) drainWorker() {
	h.t.Helper()
	require.NoError(h.t, h.w.Do(context.Background(), func(context.Context, *sqlx.Tx) error { return nil }))
}
