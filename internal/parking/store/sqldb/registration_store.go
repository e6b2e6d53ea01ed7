package sqldb

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	dbpkg "github.com/wkrzos/parked/internal/db"
	"github.com/wkrzos/parked/internal/parking/store"
)

// RegistrationStore runs every operation as one job on the shared transaction worker.
type RegistrationStore struct {
	writer *dbpkg.Worker
}

func NewRegistrationStore(writer *dbpkg.Worker) *RegistrationStore {
	return &RegistrationStore{writer: writer}
}

// Register inserts the user and then its card.  A failing card insert (for
// example a duplicate card_code) rolls back the user as well.
func (s *RegistrationStore) Register(ctx context.Context, rec store.RegistrationRecord) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var userID int64
		if err := tx.GetContext(ctx, &userID, tx.Rebind(`
INSERT INTO parking_user(username, password, email)
VALUES (?, ?, ?)
RETURNING id;
`), rec.Username, rec.Password, rec.Email); err != nil {
			return fmt.Errorf("Register insert user: %w", err)
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`
INSERT INTO card(card_code, user_id) VALUES (?, ?);
`), rec.CardCode, userID); err != nil {
			return fmt.Errorf("Register insert card: %w", err)
		}
		return nil
	})
}

func (s *RegistrationStore) Reassign(ctx context.Context, cardCode, username string) (store.ReassignResult, error) {
	var res store.ReassignResult
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		userID, ok, err := userIDByUsername(ctx, tx, username)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		res.UserFound = true

		r, err := tx.ExecContext(ctx, tx.Rebind(`
UPDATE card SET user_id = ? WHERE card_code = ?;
`), userID, cardCode)
		if err != nil {
			return fmt.Errorf("Reassign update card: %w", err)
		}
		n, err := r.RowsAffected()
		if err != nil {
			return fmt.Errorf("Reassign rows affected: %w", err)
		}
		res.CardFound = n > 0
		return nil
	})
	if err != nil {
		return store.ReassignResult{}, err
	}
	return res, nil
}

// Unregister deletes the card before its owner so the card → user reference
// never points at a missing row mid-transaction.
func (s *RegistrationStore) Unregister(ctx context.Context, cardCode string) (bool, error) {
	var found bool
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		card, ok, err := findCardByCode(ctx, tx, cardCode)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`
DELETE FROM card WHERE id = ?;
`), card.ID); err != nil {
			return fmt.Errorf("Unregister delete card: %w", err)
		}

		if card.UserID.Valid {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
DELETE FROM parking_user WHERE id = ?;
`), card.UserID.Int64); err != nil {
				return fmt.Errorf("Unregister delete user: %w", err)
			}
		}

		found = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

var _ store.RegistrationStore = (*RegistrationStore)(nil)
