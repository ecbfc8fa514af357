package engine

import (
	"context"
	"embed"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/data-tracks/DataTracks/internal/value"
)

//go:embed migrations/postgres/*
var postgresMigrations embed.FS

// postgresEngine persists trains to a Postgres database, bootstrapped
// with golang-migrate exactly as internal/repository/migration.go bootstraps
// the teacher's sqlite3/mysql schema via iofs embedded migrations.
type postgresEngine struct {
	db *sqlx.DB
}

func newPostgresEngine() Engine { return &postgresEngine{} }

func (e *postgresEngine) Init(ctx context.Context, cfg *value.Dict) error {
	dsn, err := stringField(cfg, "dsn")
	if err != nil {
		return err
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("engine/postgres: open: %w", err)
	}
	db.SetMaxOpenConns(10)

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("engine/postgres: migrate driver: %w", err)
	}
	src, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("engine/postgres: migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("engine/postgres: migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("engine/postgres: migrate up: %w", err)
	}

	e.db = db
	return nil
}

func (e *postgresEngine) Apply(ctx context.Context, stationID uint32, wagons []map[string]value.Value) error {
	for _, w := range wagons {
		for k, v := range wagonToFields(w) {
			_, err := sq.Insert("trains").
				Columns("station_id", "field_key", "field_value").
				Values(stationID, k, v).
				PlaceholderFormat(sq.Dollar).
				RunWith(e.db.DB).
				ExecContext(ctx)
			if err != nil {
				return classifyApplyErr(err)
			}
		}
	}
	return nil
}

func (e *postgresEngine) Close() error { return e.db.Close() }
