package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type SeedDevOptions struct {
	// Username and CardCode of the demo binding. Empty values fall back to
	// "demo" / "DEMO-0001".
	Username string
	CardCode string
}

// SeedDev inserts one demo user with one card so a fresh dev database can be
// exercised from a gate right away. Safe to call on every start.
func SeedDev(ctx context.Context, db *sqlx.DB, opt SeedDevOptions) error {
	if opt.Username == "" {
		opt.Username = "demo"
	}
	if opt.CardCode == "" {
		opt.CardCode = "DEMO-0001"
	}

	if _, err := db.ExecContext(ctx, db.Rebind(`
INSERT INTO parking_user(username, password, email)
VALUES (?, 'defaultpassword', ?)
ON CONFLICT(username) DO NOTHING;`), opt.Username, opt.Username+"@example.com"); err != nil {
		return fmt.Errorf("seed parking_user: %w", err)
	}

	if _, err := db.ExecContext(ctx, db.Rebind(`
INSERT INTO card(card_code, user_id)
SELECT ?, id FROM parking_user WHERE username = ?
ON CONFLICT(card_code) DO NOTHING;`), opt.CardCode, opt.Username); err != nil {
		return fmt.Errorf("seed card %s: %w", opt.CardCode, err)
	}

	return nil
}
