package engine

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/data-tracks/DataTracks/internal/value"
)

// sqliteEngine persists trains as (station_id, field_key, field_value)
// rows, built with squirrel the way internal/repository/job.go builds its
// queries, over a single-connection SQLite database
// (internal/repository/dbConnection.go's SetMaxOpenConns(1) pattern).
type sqliteEngine struct {
	db *sqlx.DB
}

func newSQLiteEngine() Engine { return &sqliteEngine{} }

func (e *sqliteEngine) Init(ctx context.Context, cfg *value.Dict) error {
	path, err := stringField(cfg, "path")
	if err != nil {
		return err
	}
	db, err := sqlx.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", path))
	if err != nil {
		return fmt.Errorf("engine/sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS trains (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			station_id INTEGER NOT NULL,
			field_key TEXT NOT NULL,
			field_value TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("engine/sqlite: bootstrap schema: %w", err)
	}
	e.db = db
	return nil
}

func (e *sqliteEngine) Apply(ctx context.Context, stationID uint32, wagons []map[string]value.Value) error {
	for _, w := range wagons {
		for k, v := range wagonToFields(w) {
			_, err := sq.Insert("trains").
				Columns("station_id", "field_key", "field_value").
				Values(stationID, k, v).
				RunWith(e.db.DB).
				ExecContext(ctx)
			if err != nil {
				return classifyApplyErr(err)
			}
		}
	}
	return nil
}

func (e *sqliteEngine) Close() error { return e.db.Close() }
