// Package postgres stores events in PostgreSQL through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/leshachaplin/testgenie/internal/storage/event"
	"github.com/leshachaplin/testgenie/internal/storage/event/sqlstore"
)

const (
	Driver = "postgres"

	undefinedTable = "42P01"
)

type Config struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

var Dialect = sqlstore.Dialect{
	Name: Driver,
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS ` + event.Table + ` (
			id               BIGSERIAL PRIMARY KEY,
			event            TEXT NOT NULL,
			event_timestamp  TEXT,
			session_id       TEXT,
			username         TEXT,
			hostname         TEXT,
			user_email       TEXT,
			domain           TEXT,
			version          TEXT,
			runtime_version  TEXT,
			platform         TEXT,
			arch             TEXT,
			machine_id       TEXT,
			install_location TEXT,
			event_data       JSONB,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analytics_events_event ON ` + event.Table + ` (event)`,
		`CREATE INDEX IF NOT EXISTS idx_analytics_events_created_at ON ` + event.Table + ` (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_analytics_events_username ON ` + event.Table + ` (username)`,
	},
	Day:            `to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')`,
	Numbered:       true,
	IsMissingTable: isMissingTable,
}

func isMissingTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}

// New connects to cfg.URL. The schema is not touched; it is created on the
// first write that finds the table missing, or by Migrate.
func New(ctx context.Context, cfg Config) (*sqlstore.Store, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	store := sqlstore.New(db, Dialect)
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
