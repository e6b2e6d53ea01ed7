package sqldb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wkrzos/parked/internal/db"
	"github.com/wkrzos/parked/internal/parking/store"
	"github.com/wkrzos/parked/internal/parking/store/sqldb"
)

// newMockWriter returns a worker over a sqlmock connection.
func newMockWriter(t *testing.T) (*db.Worker, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	w := db.NewWorker(sqlx.NewDb(mockDB, "sqlmock"))
	t.Cleanup(func() {
		w.Close()
		mockDB.Close()
	})
	return w, mock
}

func TestRegistrationStore_Register_CardInsertFails_RollsBack(t *testing.T) {
	w, mock := newMockWriter(t)
	rs := sqldb.NewRegistrationStore(w)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO parking_user`).
		WithArgs("alice", "defaultpassword", "alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(`INSERT INTO card`).
		WithArgs("XYZ", int64(7)).
		WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	err := rs.Register(context.Background(), newRecord("alice", "XYZ"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Register insert card")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationStore_Unregister_DeletesCardBeforeUser(t *testing.T) {
	w, mock := newMockWriter(t)
	rs := sqldb.NewRegistrationStore(w)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, card_code, user_id FROM card`).
		WithArgs("XYZ").
		WillReturnRows(sqlmock.NewRows([]string{"id", "card_code", "user_id"}).AddRow(3, "XYZ", 7))
	mock.ExpectExec(`DELETE FROM card`).WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM parking_user`).WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	found, err := rs.Unregister(context.Background(), "XYZ")
	require.NoError(t, err)
	assert.True(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateLogStore_RecordPassage_InsertFails_RollsBack(t *testing.T) {
	w, mock := newMockWriter(t)
	gs := sqldb.NewGateLogStore(w)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, card_code, user_id FROM card`).
		WithArgs("CARD-001").
		WillReturnRows(sqlmock.NewRows([]string{"id", "card_code", "user_id"}).AddRow(3, "CARD-001", 7))
	mock.ExpectQuery(`SELECT username FROM parking_user`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"username"}).AddRow("alice"))
	mock.ExpectExec(`INSERT INTO gate_log`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	res, err := gs.RecordPassage(context.Background(), store.PassageRecord{CardCode: "CARD-001", GateID: 1, Entry: true})
	require.Error(t, err)
	assert.False(t, res.Found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateLogStore_RecordPassage_CommitFails(t *testing.T) {
	w, mock := newMockWriter(t)
	gs := sqldb.NewGateLogStore(w)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, card_code, user_id FROM card`).
		WithArgs("CARD-001").
		WillReturnRows(sqlmock.NewRows([]string{"id", "card_code", "user_id"}).AddRow(3, "CARD-001", nil))
	mock.ExpectExec(`INSERT INTO gate_log`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	res, err := gs.RecordPassage(context.Background(), store.PassageRecord{CardCode: "CARD-001", GateID: 1, Entry: true})
	require.Error(t, err)
	assert.Equal(t, store.PassageResult{}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}
