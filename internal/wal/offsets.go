package wal

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"
)

// registerHookedDriver registers the hooked sqlite3 driver at most once per
// process, the same sync.Once guard the teacher's repository.Connect uses
// around its own sql.Register call.
var registerHookedDriver = sync.OnceFunc(func() {
	sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &queryHooks{}))
})

// OffsetStore persists each (engine_id, definition_id) pair's applied_lsn
// cursor to `$DATA_DIR/offsets.db`, following the teacher's
// sqlx.Open("sqlite3WithHooks", ...) + SetMaxOpenConns(1) pairing for a
// single-writer SQLite database wrapped in sqlhooks query timing
// (internal/repository/dbConnection.go, internal/repository/hooks.go).
type OffsetStore struct {
	db *sqlx.DB
}

// OpenOffsetStore opens (creating and migrating if necessary) the SQLite
// offsets database at path.
func OpenOffsetStore(path string) (*OffsetStore, error) {
	registerHookedDriver()
	db, err := sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", path))
	if err != nil {
		return nil, &ErrWalIoError{Path: path, Err: err}
	}
	// SQLite does not multithread; one connection avoids waiting on its
	// own locks, same as the teacher's primary job database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS offsets (
			engine_id      INTEGER NOT NULL,
			definition_id  INTEGER NOT NULL,
			applied_lsn    INTEGER NOT NULL,
			PRIMARY KEY (engine_id, definition_id)
		)`); err != nil {
		return nil, &ErrWalIoError{Path: path, Err: err}
	}
	return &OffsetStore{db: db}, nil
}

// Get returns the stored applied_lsn for (engineID, definitionID), or
// (0, false) if no cursor has been recorded yet.
func (s *OffsetStore) Get(engineID, definitionID uint16) (uint64, bool, error) {
	var lsn uint64
	err := s.db.Get(&lsn, `SELECT applied_lsn FROM offsets WHERE engine_id = ? AND definition_id = ?`, engineID, definitionID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &ErrWalIoError{Path: "offsets.db", Err: err}
	}
	return lsn, true, nil
}

// Ack advances the persisted cursor for (engineID, definitionID) to lsn.
// Callers must only ever advance the cursor (the WAL's per-pair ordering
// guarantee depends on it).
func (s *OffsetStore) Ack(engineID, definitionID uint16, lsn uint64) error {
	_, err := s.db.Exec(`
		INSERT INTO offsets (engine_id, definition_id, applied_lsn) VALUES (?, ?, ?)
		ON CONFLICT(engine_id, definition_id) DO UPDATE SET applied_lsn = excluded.applied_lsn
	`, engineID, definitionID, lsn)
	if err != nil {
		return &ErrWalIoError{Path: "offsets.db", Err: err}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *OffsetStore) Close() error { return s.db.Close() }
