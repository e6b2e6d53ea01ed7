package memory

import (
	"context"
	"time"

	"github.com/wkrzos/parked/internal/parking/store"
)

// GateEvent is a stored gate_log row.  CardID becomes 0 when the card is
// later unregistered.
type GateEvent struct {
	ID       int64
	GateID   int64
	CardID   int64
	Entry    bool
	Status   string
	LoggedAt time.Time
}

func (s *Store) RecordPassage(_ context.Context, rec store.PassageRecord) (store.PassageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(); err != nil {
		return store.PassageResult{}, err
	}

	card, ok := s.cardByCode(rec.CardCode)
	if !ok {
		return store.PassageResult{}, nil
	}

	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	s.nextEventID++
	s.events = append(s.events, GateEvent{
		ID:       s.nextEventID,
		GateID:   rec.GateID,
		CardID:   card.ID,
		Entry:    rec.Entry,
		Status:   store.GateStatusSuccess,
		LoggedAt: rec.At.UTC(),
	})

	return store.PassageResult{Found: true, Username: s.users[card.UserID].Username}, nil
}

// Events returns a snapshot of all recorded gate events in write order.
func (s *Store) Events() []GateEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]GateEvent, len(s.events))
	copy(out, s.events)
	return out
}

var _ store.GateLogStore = (*Store)(nil)
