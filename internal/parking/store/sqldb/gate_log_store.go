package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	dbpkg "github.com/wkrzos/parked/internal/db"
	"github.com/wkrzos/parked/internal/parking/store"
)

// GateLogStore runs every operation as one job on the shared transaction worker.
type GateLogStore struct {
	writer *dbpkg.Worker
}

func NewGateLogStore(writer *dbpkg.Worker) *GateLogStore {
	return &GateLogStore{writer: writer}
}

func (s *GateLogStore) RecordPassage(ctx context.Context, rec store.PassageRecord) (store.PassageResult, error) {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	atMs := rec.At.UTC().UnixMilli()

	var res store.PassageResult
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		card, ok, err := findCardByCode(ctx, tx, rec.CardCode)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		username, err := usernameByID(ctx, tx, card.UserID)
		if err != nil {
			return err
		}

		// Append-only: gate_log rows are never updated by the controller.
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
INSERT INTO gate_log(gate_id, card_id, is_entry, status, logged_at_ms)
VALUES (?, ?, ?, ?, ?);
`), rec.GateID, card.ID, rec.Entry, store.GateStatusSuccess, atMs); err != nil {
			return fmt.Errorf("RecordPassage insert: %w", err)
		}

		res = store.PassageResult{Found: true, Username: username}
		return nil
	})
	if err != nil {
		return store.PassageResult{}, err
	}
	return res, nil
}

var _ store.GateLogStore = (*GateLogStore)(nil)
