package clickhouse

import (
	"context"
	"strings"
	"time"

	"github.com/leshachaplin/testgenie/internal/domain"
	"github.com/leshachaplin/testgenie/internal/storage/event"
)

const columns = `id, event, event_timestamp, session_id, username, hostname, user_email, domain,
	version, runtime_version, platform, arch, machine_id, install_location, event_data, created_at`

func (c *Clickhouse) Insert(ctx context.Context, rec *domain.Record) error {
	rec.ID = c.nextID()

	err := c.insert(ctx, rec)
	if err == nil {
		return nil
	}
	if !isMissingTable(err) {
		return c.storeErr("insert", err)
	}

	if err := c.Migrate(ctx); err != nil {
		return err
	}
	if err := c.insert(ctx, rec); err != nil {
		return &event.SchemaError{Store: Driver, Err: err}
	}
	return nil
}

func (c *Clickhouse) insert(ctx context.Context, rec *domain.Record) error {
	r, err := rowFromRecord(rec)
	if err != nil {
		return err
	}

	batch, err := c.conn.PrepareBatch(ctx, `INSERT INTO `+event.Table)
	if err != nil {
		return err
	}
	if err := batch.AppendStruct(&r); err != nil {
		return err
	}
	return batch.Send()
}

func (c *Clickhouse) Summary(ctx context.Context, now time.Time) (domain.Summary, error) {
	var (
		total, today, users uint64
		sum                 domain.Summary
	)

	dayStart := now.UTC().Truncate(24 * time.Hour)
	if err := c.conn.QueryRow(ctx, `SELECT count() FROM `+event.Table).Scan(&total); err != nil {
		return sum, c.storeErr("summary", err)
	}
	if err := c.conn.QueryRow(ctx, `SELECT count() FROM `+event.Table+` WHERE created_at >= ? AND created_at < ?`,
		dayStart, dayStart.Add(24*time.Hour)).Scan(&today); err != nil {
		return sum, c.storeErr("summary", err)
	}
	if err := c.conn.QueryRow(ctx, `SELECT uniqExact(username) FROM `+event.Table+` WHERE username != ''`).Scan(&users); err != nil {
		return sum, c.storeErr("summary", err)
	}

	rows, err := c.conn.Query(ctx, `SELECT DISTINCT platform FROM `+event.Table+` WHERE platform != '' ORDER BY platform`)
	if err != nil {
		return sum, c.storeErr("platforms", err)
	}
	defer rows.Close()

	sum.Platforms = []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return domain.Summary{}, c.storeErr("platforms", err)
		}
		sum.Platforms = append(sum.Platforms, p)
	}
	if err := rows.Err(); err != nil {
		return domain.Summary{}, c.storeErr("platforms", err)
	}

	sum.TotalEvents = int64(total)
	sum.TodayEvents = int64(today)
	sum.UniqueUsers = int64(users)
	return sum, nil
}

func (c *Clickhouse) Page(ctx context.Context, q domain.PageQuery) ([]domain.Record, error) {
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

	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, c.storeErr("page", err)
	}
	defer rows.Close()

	out := make([]domain.Record, 0, q.Limit)
	for rows.Next() {
		var r row
		if err := rows.ScanStruct(&r); err != nil {
			return nil, c.storeErr("page", err)
		}
		rec, err := r.record()
		if err != nil {
			return nil, c.storeErr("page", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, c.storeErr("page", err)
	}
	return out, nil
}

func (c *Clickhouse) CountEvents(ctx context.Context, events ...string) (map[string]int64, error) {
	query := `SELECT event, count() FROM ` + event.Table
	args := make([]any, 0, len(events))
	if len(events) > 0 {
		query += ` WHERE event IN (` + placeholders(len(events)) + `)`
		for _, e := range events {
			args = append(args, e)
		}
	}
	query += ` GROUP BY event`

	counts, err := c.eventCounts(ctx, query, args...)
	if err != nil {
		return nil, c.storeErr("count events", err)
	}
	out := make(map[string]int64, len(counts))
	for _, ec := range counts {
		out[ec.Event] = ec.Count
	}
	return out, nil
}

func (c *Clickhouse) ActivitySince(ctx context.Context, since time.Time) ([]domain.EventCount, error) {
	out, err := c.eventCounts(ctx, `SELECT event, count() FROM `+event.Table+
		` WHERE created_at > ? GROUP BY event ORDER BY event`, since.UTC())
	if err != nil {
		return nil, c.storeErr("activity", err)
	}
	return out, nil
}

func (c *Clickhouse) eventCounts(ctx context.Context, query string, args ...any) ([]domain.EventCount, error) {
	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.EventCount{}
	for rows.Next() {
		var (
			name  string
			count uint64
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		out = append(out, domain.EventCount{Event: name, Count: int64(count)})
	}
	return out, rows.Err()
}

func (c *Clickhouse) DailyCounts(ctx context.Context, ev string, since time.Time) ([]domain.DailyCount, error) {
	rows, err := c.conn.Query(ctx, `SELECT toString(toDate(created_at)) AS day, count() FROM `+event.Table+`
		WHERE event = ? AND created_at > ? GROUP BY day ORDER BY day`, ev, since.UTC())
	if err != nil {
		return nil, c.storeErr("daily counts", err)
	}
	defer rows.Close()

	out := []domain.DailyCount{}
	for rows.Next() {
		var (
			day   string
			count uint64
		)
		if err := rows.Scan(&day, &count); err != nil {
			return nil, c.storeErr("daily counts", err)
		}
		out = append(out, domain.DailyCount{Date: day, Installations: int64(count)})
	}
	if err := rows.Err(); err != nil {
		return nil, c.storeErr("daily counts", err)
	}
	return out, nil
}

func (c *Clickhouse) Users(ctx context.Context) ([]domain.UserRollup, error) {
	rows, err := c.conn.Query(ctx, `SELECT username, hostname, max(user_email), max(created_at), count(),
		countIf(event = ?) FROM `+event.Table+`
		GROUP BY username, hostname
		ORDER BY max(created_at) DESC`, domain.ActionInstallSuccess)
	if err != nil {
		return nil, c.storeErr("users", err)
	}
	defer rows.Close()

	out := []domain.UserRollup{}
	for rows.Next() {
		var (
			u              domain.UserRollup
			total, success uint64
		)
		if err := rows.Scan(&u.Username, &u.Hostname, &u.UserEmail, &u.LastSeen, &total, &success); err != nil {
			return nil, c.storeErr("users", err)
		}
		u.LastSeen = u.LastSeen.UTC()
		u.TotalEvents = int64(total)
		u.SuccessfulInstalls = int64(success)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, c.storeErr("users", err)
	}
	return out, nil
}

func (c *Clickhouse) storeErr(op string, err error) error {
	return &event.StoreError{Store: Driver, Op: op, Err: err}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
