package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/leshachaplin/testgenie/internal/domain"
	"github.com/leshachaplin/testgenie/internal/storage/event"
)

const columns = `id, event, event_timestamp, session_id, username, hostname, user_email, domain,
	version, runtime_version, platform, arch, machine_id, install_location, event_data, created_at`

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) Name() string { return s.dialect.Name }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return s.storeErr("ping", err)
	}
	return nil
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &event.SchemaError{Store: s.Name(), Err: err}
		}
	}
	return nil
}

// Insert writes rec and sets rec.ID. A missing table is created once and the
// write retried; if that still fails the error is a *event.SchemaError.
func (s *Store) Insert(ctx context.Context, rec *domain.Record) error {
	err := s.insert(ctx, rec)
	if err == nil {
		return nil
	}
	if !s.dialect.IsMissingTable(err) {
		return s.storeErr("insert", err)
	}

	if err := s.Migrate(ctx); err != nil {
		return err
	}
	if err := s.insert(ctx, rec); err != nil {
		return &event.SchemaError{Store: s.Name(), Err: fmt.Errorf("insert after create: %w", err)}
	}
	return nil
}

func (s *Store) insert(ctx context.Context, rec *domain.Record) error {
	var data any
	if len(rec.Data) > 0 {
		b, err := json.Marshal(rec.Data)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
		data = string(b)
	}

	query := s.dialect.rebind(`INSERT INTO ` + event.Table + ` (event, event_timestamp, session_id, username,
		hostname, user_email, domain, version, runtime_version, platform, arch, machine_id, install_location,
		event_data, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	return s.db.QueryRowContext(ctx, query,
		rec.Event,
		nullable(rec.Timestamp),
		nullable(rec.SessionID),
		nullable(rec.Username),
		nullable(rec.Hostname),
		nullable(rec.UserEmail),
		nullable(rec.Domain),
		nullable(rec.Version),
		nullable(rec.RuntimeVersion),
		nullable(rec.Platform),
		nullable(rec.Arch),
		nullable(rec.MachineID),
		nullable(rec.InstallLocation),
		data,
		s.dialect.timeValue(rec.CreatedAt),
	).Scan(&rec.ID)
}

func (s *Store) Summary(ctx context.Context, now time.Time) (domain.Summary, error) {
	var sum domain.Summary

	dayStart := startOfDay(now)
	dayEnd := dayStart.Add(24 * time.Hour)

	counters := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&sum.TotalEvents, `SELECT COUNT(*) FROM ` + event.Table, nil},
		{&sum.TodayEvents, `SELECT COUNT(*) FROM ` + event.Table + ` WHERE created_at >= ? AND created_at < ?`,
			[]any{s.dialect.timeValue(dayStart), s.dialect.timeValue(dayEnd)}},
		{&sum.UniqueUsers, `SELECT COUNT(DISTINCT username) FROM ` + event.Table +
			` WHERE username IS NOT NULL AND username <> ''`, nil},
	}
	for _, c := range counters {
		if err := s.db.QueryRowContext(ctx, s.dialect.rebind(c.query), c.args...).Scan(c.dst); err != nil {
			return domain.Summary{}, s.storeErr("summary", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT platform FROM `+event.Table+
		` WHERE platform IS NOT NULL AND platform <> '' ORDER BY platform`)
	if err != nil {
		return domain.Summary{}, s.storeErr("platforms", err)
	}
	defer rows.Close()

	sum.Platforms = []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return domain.Summary{}, s.storeErr("platforms", err)
		}
		sum.Platforms = append(sum.Platforms, p)
	}
	if err := rows.Err(); err != nil {
		return domain.Summary{}, s.storeErr("platforms", err)
	}
	return sum, nil
}

func (s *Store) Page(ctx context.Context, q domain.PageQuery) ([]domain.Record, error) {
	query := `SELECT ` + columns + ` FROM ` + event.Table
	args := make([]any, 0, len(q.Events)+2)
	if len(q.Events) > 0 {
		query += ` WHERE event IN (` + placeholders(len(q.Events)) + `)`
		for _, e := range q.Events {
			args = append(args, e)
		}
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, s.storeErr("page", err)
	}
	defer rows.Close()

	out := make([]domain.Record, 0, q.Limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, s.storeErr("page", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeErr("page", err)
	}
	return out, nil
}

func (s *Store) CountEvents(ctx context.Context, events ...string) (map[string]int64, error) {
	query := `SELECT event, COUNT(*) FROM ` + event.Table
	args := make([]any, 0, len(events))
	if len(events) > 0 {
		query += ` WHERE event IN (` + placeholders(len(events)) + `)`
		for _, e := range events {
			args = append(args, e)
		}
	}
	query += ` GROUP BY event`

	counts, err := s.eventCounts(ctx, query, args...)
	if err != nil {
		return nil, s.storeErr("count events", err)
	}

	out := make(map[string]int64, len(counts))
	for _, c := range counts {
		out[c.Event] = c.Count
	}
	return out, nil
}

func (s *Store) ActivitySince(ctx context.Context, since time.Time) ([]domain.EventCount, error) {
	out, err := s.eventCounts(ctx, `SELECT event, COUNT(*) FROM `+event.Table+
		` WHERE created_at > ? GROUP BY event ORDER BY event`, s.dialect.timeValue(since))
	if err != nil {
		return nil, s.storeErr("activity", err)
	}
	return out, nil
}

func (s *Store) eventCounts(ctx context.Context, query string, args ...any) ([]domain.EventCount, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.EventCount{}
	for rows.Next() {
		var c domain.EventCount
		if err := rows.Scan(&c.Event, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DailyCounts(ctx context.Context, ev string, since time.Time) ([]domain.DailyCount, error) {
	query := `SELECT ` + s.dialect.Day + ` AS day, COUNT(*) FROM ` + event.Table +
		` WHERE event = ? AND created_at > ? GROUP BY day ORDER BY day`

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), ev, s.dialect.timeValue(since))
	if err != nil {
		return nil, s.storeErr("daily counts", err)
	}
	defer rows.Close()

	out := []domain.DailyCount{}
	for rows.Next() {
		var c domain.DailyCount
		if err := rows.Scan(&c.Date, &c.Installations); err != nil {
			return nil, s.storeErr("daily counts", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeErr("daily counts", err)
	}
	return out, nil
}

func (s *Store) Users(ctx context.Context) ([]domain.UserRollup, error) {
	query := `SELECT COALESCE(username, ''), COALESCE(hostname, ''), MAX(COALESCE(user_email, '')),
		MAX(created_at), COUNT(*), SUM(CASE WHEN event = ? THEN 1 ELSE 0 END)
		FROM ` + event.Table + `
		GROUP BY COALESCE(username, ''), COALESCE(hostname, '')
		ORDER BY MAX(created_at) DESC`

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), domain.ActionInstallSuccess)
	if err != nil {
		return nil, s.storeErr("users", err)
	}
	defer rows.Close()

	out := []domain.UserRollup{}
	for rows.Next() {
		var (
			u        domain.UserRollup
			lastSeen timeValue
		)
		if err := rows.Scan(&u.Username, &u.Hostname, &u.UserEmail, &lastSeen, &u.TotalEvents, &u.SuccessfulInstalls); err != nil {
			return nil, s.storeErr("users", err)
		}
		u.LastSeen = lastSeen.Time
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeErr("users", err)
	}
	return out, nil
}

func (s *Store) storeErr(op string, err error) error {
	return &event.StoreError{Store: s.Name(), Op: op, Err: err}
}

func scanRecord(rows *sql.Rows) (domain.Record, error) {
	var (
		rec       domain.Record
		timestamp sql.NullString
		session   sql.NullString
		username  sql.NullString
		hostname  sql.NullString
		email     sql.NullString
		dom       sql.NullString
		version   sql.NullString
		runtime   sql.NullString
		platform  sql.NullString
		arch      sql.NullString
		machine   sql.NullString
		location  sql.NullString
		data      sql.NullString
		created   timeValue
	)
	err := rows.Scan(&rec.ID, &rec.Event, &timestamp, &session, &username, &hostname, &email, &dom,
		&version, &runtime, &platform, &arch, &machine, &location, &data, &created)
	if err != nil {
		return domain.Record{}, err
	}

	rec.Timestamp = timestamp.String
	rec.SessionID = session.String
	rec.Username = username.String
	rec.Hostname = hostname.String
	rec.UserEmail = email.String
	rec.Domain = dom.String
	rec.Version = version.String
	rec.RuntimeVersion = runtime.String
	rec.Platform = platform.String
	rec.Arch = arch.String
	rec.MachineID = machine.String
	rec.InstallLocation = location.String
	rec.CreatedAt = created.Time
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &rec.Data); err != nil {
			return domain.Record{}, fmt.Errorf("unmarshal event data: %w", err)
		}
	}
	return rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
