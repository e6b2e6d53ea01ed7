package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wkrzos/parked/internal/parking/service"
	"github.com/wkrzos/parked/internal/parking/store/memory"
	"github.com/wkrzos/parked/internal/parking/types"
)

func newTestGateService(gates map[string]int64) (*service.GateService, *memory.Store) {
	ms := memory.New()
	svc := service.NewGateService(service.NewGateRegistry(gates), ms, zap.NewNop())
	return svc, ms
}

// ── Entry / departure ────────────────────────────────────────────────────────

func TestEntry_KnownCard(t *testing.T) {
	svc, ms := newTestGateService(nil)
	ms.AddCard("ABC123", ms.AddUser("alice"))

	resp, err := svc.Entry(context.Background(), types.PassageRequest{CardUUID: "ABC123"})
	require.NoError(t, err)

	assert.Equal(t, types.StatusResponse{Action: "entry", Status: true, CardUUID: "ABC123", User: "alice"}, resp)

	events := ms.Events()
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].GateID)
	assert.True(t, events[0].Entry)
	assert.Equal(t, "SUCCESS", events[0].Status)
}

func TestDeparture_KnownCard(t *testing.T) {
	svc, ms := newTestGateService(nil)
	ms.AddCard("ABC123", ms.AddUser("alice"))

	resp, err := svc.Departure(context.Background(), types.PassageRequest{CardUUID: "ABC123"})
	require.NoError(t, err)

	assert.True(t, resp.Status)
	assert.Equal(t, "departure", resp.Action)

	events := ms.Events()
	require.Len(t, events, 1)
	assert.Equal(t, int64(2), events[0].GateID)
	assert.False(t, events[0].Entry)
}

func TestEntry_UnknownCard(t *testing.T) {
	svc, ms := newTestGateService(nil)

	resp, err := svc.Entry(context.Background(), types.PassageRequest{CardUUID: "NOPE"})
	require.NoError(t, err)

	assert.False(t, resp.Status)
	assert.Empty(t, resp.User)
	assert.Equal(t, "NOPE", resp.CardUUID)
	assert.Empty(t, ms.Events())
}

func TestEntry_OrphanCard_EmptyUser(t *testing.T) {
	svc, ms := newTestGateService(nil)
	ms.AddCard("ORPHAN", 0)

	resp, err := svc.Entry(context.Background(), types.PassageRequest{CardUUID: "ORPHAN"})
	require.NoError(t, err)

	assert.True(t, resp.Status)
	assert.Empty(t, resp.User)
	assert.Len(t, ms.Events(), 1)
}

func TestEntry_MissingCardUUID(t *testing.T) {
	svc, ms := newTestGateService(nil)

	for _, code := range []string{"", "   "} {
		_, err := svc.Entry(context.Background(), types.PassageRequest{CardUUID: code})
		assert.ErrorIs(t, err, service.ErrMissingCardUUID, "card_uuid=%q", code)
	}
	assert.Empty(t, ms.Events())
}

func TestEntry_CardUUIDUsedVerbatim(t *testing.T) {
	svc, ms := newTestGateService(nil)
	ms.AddCard("ABC123", ms.AddUser("alice"))

	resp, err := svc.Entry(context.Background(), types.PassageRequest{CardUUID: " ABC123"})
	require.NoError(t, err)

	assert.False(t, resp.Status, "padded code is a different card")
	assert.Equal(t, " ABC123", resp.CardUUID)
	assert.Empty(t, ms.Events())
}

func TestEntry_StoreFailure_StatusFalse(t *testing.T) {
	svc, ms := newTestGateService(nil)
	ms.AddCard("ABC123", ms.AddUser("alice"))
	ms.FailNext(1)

	resp, err := svc.Entry(context.Background(), types.PassageRequest{CardUUID: "ABC123"})
	require.NoError(t, err)

	assert.False(t, resp.Status)
	assert.Empty(t, resp.User)
	assert.Empty(t, ms.Events())
}

func TestEntry_ConfiguredGateIDs(t *testing.T) {
	svc, ms := newTestGateService(map[string]int64{"entry_gate": 11})
	ms.AddCard("ABC123", ms.AddUser("alice"))

	_, err := svc.Entry(context.Background(), types.PassageRequest{CardUUID: "ABC123"})
	require.NoError(t, err)
	_, err = svc.Departure(context.Background(), types.PassageRequest{CardUUID: "ABC123"})
	require.NoError(t, err)

	events := ms.Events()
	require.Len(t, events, 2)
	assert.Equal(t, int64(11), events[0].GateID)
	assert.Equal(t, int64(0), events[1].GateID, "unconfigured role resolves to 0")
}

// ── Gate registry ────────────────────────────────────────────────────────────

func TestGateRegistry(t *testing.T) {
	reg := service.NewGateRegistry(nil)
	assert.Equal(t, int64(1), reg.GateID("entry_gate"))
	assert.Equal(t, int64(2), reg.GateID(" Departure_Gate "))
	assert.Equal(t, int64(0), reg.GateID("side_gate"))
}
