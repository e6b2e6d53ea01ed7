package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type cardRow struct {
	ID     int64         `db:"id"`
	Code   string        `db:"card_code"`
	UserID sql.NullInt64 `db:"user_id"`
}

// The helpers below must be called inside an existing transaction.

// findCardByCode returns the card with the given code.  ok is false when no
// card matches.
func findCardByCode(ctx context.Context, tx *sqlx.Tx, code string) (cardRow, bool, error) {
	var c cardRow
	err := tx.GetContext(ctx, &c, tx.Rebind(`
SELECT id, card_code, user_id FROM card WHERE card_code = ?;
`), code)
	if errors.Is(err, sql.ErrNoRows) {
		return cardRow{}, false, nil
	}
	if err != nil {
		return cardRow{}, false, fmt.Errorf("findCardByCode %s: %w", code, err)
	}
	return c, true, nil
}

// usernameByID returns the owner's username, or "" for a NULL or dangling
// reference.
func usernameByID(ctx context.Context, tx *sqlx.Tx, userID sql.NullInt64) (string, error) {
	if !userID.Valid {
		return "", nil
	}
	var name string
	err := tx.GetContext(ctx, &name, tx.Rebind(`
SELECT username FROM parking_user WHERE id = ?;
`), userID.Int64)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("usernameByID %d: %w", userID.Int64, err)
	}
	return name, nil
}

// userIDByUsername resolves a username.  ok is false when nobody has it.
func userIDByUsername(ctx context.Context, tx *sqlx.Tx, username string) (int64, bool, error) {
	var id int64
	err := tx.GetContext(ctx, &id, tx.Rebind(`
SELECT id FROM parking_user WHERE username = ?;
`), username)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("userIDByUsername %s: %w", username, err)
	}
	return id, true, nil
}
