// Package clickhouse stores events in a ClickHouse MergeTree table over the native protocol.
package clickhouse

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog"

	"github.com/leshachaplin/testgenie/internal/storage/event"
)

const (
	Driver = "clickhouse"

	unknownTable = 60
)

type Clickhouse struct {
	conn   driver.Conn
	lastID atomic.Int64
}

func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Clickhouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.DB,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Debugf: func(format string, v ...any) {
			logger.Debug().Msgf(format, v...)
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout:     time.Second * 30,
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Duration(10) * time.Minute,
	})
	if err != nil {
		return nil, &event.StoreError{Store: Driver, Op: "open", Err: err}
	}

	if err = conn.Ping(ctx); err != nil {
		var exception *clickhouse.Exception
		if errors.As(err, &exception) {
			logger.Error().Int32("code", exception.Code).Str("stack", exception.StackTrace).Msg(exception.Message)
		}
		return nil, &event.StoreError{Store: Driver, Op: "ping", Err: err}
	}

	c := &Clickhouse{
		conn: conn,
	}
	c.lastID.Store(time.Now().UnixMicro())
	return c, nil
}

func (c *Clickhouse) Name() string { return Driver }

func (c *Clickhouse) Close() error {
	return c.conn.Close()
}

func (c *Clickhouse) Migrate(ctx context.Context) error {
	err := c.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+event.Table+`
		(
			id               UInt64,
			event            String,
			event_timestamp  String,
			session_id       String,
			username         String,
			hostname         String,
			user_email       String,
			domain           String,
			version          String,
			runtime_version  String,
			platform         String,
			arch             String,
			machine_id       String,
			install_location String,
			event_data       String,
			created_at       DateTime64(3, 'UTC')
		) Engine = MergeTree
		ORDER BY (created_at, id)`)
	if err != nil {
		return &event.SchemaError{Store: Driver, Err: err}
	}
	return nil
}

// nextID hands out ids that grow with wall time and never repeat within the process.
// MergeTree has no auto-increment.
func (c *Clickhouse) nextID() int64 {
	for {
		last := c.lastID.Load()
		next := time.Now().UnixMicro()
		if next <= last {
			next = last + 1
		}
		if c.lastID.CompareAndSwap(last, next) {
			return next
		}
	}
}

func isMissingTable(err error) bool {
	var exception *clickhouse.Exception
	return errors.As(err, &exception) && exception.Code == unknownTable
}
