// Package sqlite stores events in a local SQLite file. It is the default driver
// for a single-node dashboard.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/leshachaplin/testgenie/internal/storage/event"
	"github.com/leshachaplin/testgenie/internal/storage/event/sqlstore"
)

const Driver = "sqlite"

type Config struct {
	Path string `mapstructure:"path"`
}

var openDB = sql.Open

var Dialect = sqlstore.Dialect{
	Name: Driver,
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS ` + event.Table + ` (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
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
			event_data       TEXT,
			created_at       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analytics_events_event ON ` + event.Table + ` (event)`,
		`CREATE INDEX IF NOT EXISTS idx_analytics_events_created_at ON ` + event.Table + ` (created_at)`,
	},
	// created_at holds unix milliseconds
	Day:            `strftime('%Y-%m-%d', created_at / 1000, 'unixepoch')`,
	TimeValue:      func(t time.Time) any { return t.UnixMilli() },
	IsMissingTable: isMissingTable,
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// New opens (creating if needed) the database at cfg.Path. ":memory:" keeps
// everything in process.
func New(ctx context.Context, cfg Config) (*sqlstore.Store, error) {
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	return sqlstore.New(db, Dialect), nil
}
