package sqldb_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/wkrzos/parked/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production.  The connection is closed automatically when the
// test finishes.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	// Each test gets its own named in-memory database.  The shared-cache URI
	// keeps it alive for the lifetime of the pool.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		name,
	)

	conn, err := sqlx.Open(db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("openTestDB: sqlx.Open: %v", err)
	}

	// Match production: single connection for SQLite safety.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn.  The worker is closed
// automatically when the test finishes.
func newTestWriter(t *testing.T, conn *sqlx.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

// seedBinding inserts a user with one card and returns the card id.
func seedBinding(t *testing.T, conn *sqlx.DB, username, cardCode string) int64 {
	t.Helper()

	var userID int64
	if err := conn.Get(&userID,
		`INSERT INTO parking_user(username, password, email) VALUES (?, 'pw', ?) RETURNING id`,
		username, username+"@example.com",
	); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}

	var cardID int64
	if err := conn.Get(&cardID,
		`INSERT INTO card(card_code, user_id) VALUES (?, ?) RETURNING id`, cardCode, userID,
	); err != nil {
		t.Fatalf("seed card %s: %v", cardCode, err)
	}
	return cardID
}

// seedOrphanCard inserts a card with no owner.
func seedOrphanCard(t *testing.T, conn *sqlx.DB, cardCode string) int64 {
	t.Helper()

	var cardID int64
	if err := conn.Get(&cardID,
		`INSERT INTO card(card_code, user_id) VALUES (?, NULL) RETURNING id`, cardCode,
	); err != nil {
		t.Fatalf("seed orphan card %s: %v", cardCode, err)
	}
	return cardID
}

func countRows(t *testing.T, conn *sqlx.DB, table string) int {
	t.Helper()

	var n int
	if err := conn.Get(&n, `SELECT COUNT(*) FROM `+table); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// cardOwner returns the username owning cardCode; Valid is false when the
// card has no owner.
func cardOwner(t *testing.T, conn *sqlx.DB, cardCode string) sql.NullString {
	t.Helper()

	var owner sql.NullString
	err := conn.Get(&owner, `
SELECT u.username FROM card c LEFT JOIN parking_user u ON u.id = c.user_id
WHERE c.card_code = ?`, cardCode)
	if err != nil {
		t.Fatalf("cardOwner %s: %v", cardCode, err)
	}
	return owner
}
