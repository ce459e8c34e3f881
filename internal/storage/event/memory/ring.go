// Package memory keeps the most recent events in a fixed-size ring. It backs the
// "memory" store driver and is the collector's fallback when the primary store fails.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/leshachaplin/testgenie/internal/domain"
)

const DefaultCapacity = 1000

type Ring struct {
	mu     sync.RWMutex
	buf    []domain.Record
	start  int
	size   int
	nextID int64
}

func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]domain.Record, capacity)}
}

func (r *Ring) Name() string { return domain.SourceMemory }

func (r *Ring) Migrate(context.Context) error { return nil }

func (r *Ring) Close() error { return nil }

func (r *Ring) Capacity() int { return len(r.buf) }

func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Insert appends rec and evicts the oldest record once the ring is full.
// rec.ID is overwritten with a ring-local sequence number.
func (r *Ring) Insert(_ context.Context, rec *domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	rec.ID = r.nextID

	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = *rec
		r.size++
		return nil
	}
	r.buf[r.start] = *rec
	r.start = (r.start + 1) % len(r.buf)
	return nil
}

// Snapshot returns a copy of the buffered records, oldest first.
func (r *Ring) Snapshot() []domain.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Record, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// newestFirst is Snapshot reversed.
func (r *Ring) newestFirst() []domain.Record {
	out := r.Snapshot()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (r *Ring) Summary(_ context.Context, now time.Time) (domain.Summary, error) {
	dayStart := startOfDay(now)
	dayEnd := dayStart.Add(24 * time.Hour)

	users := make(map[string]struct{})
	platforms := make(map[string]struct{})
	var s domain.Summary
	for _, rec := range r.Snapshot() {
		s.TotalEvents++
		if !rec.CreatedAt.Before(dayStart) && rec.CreatedAt.Before(dayEnd) {
			s.TodayEvents++
		}
		if rec.Username != "" {
			users[rec.Username] = struct{}{}
		}
		if rec.Platform != "" {
			platforms[rec.Platform] = struct{}{}
		}
	}

	s.UniqueUsers = int64(len(users))
	s.Platforms = make([]string, 0, len(platforms))
	for p := range platforms {
		s.Platforms = append(s.Platforms, p)
	}
	sort.Strings(s.Platforms)
	return s, nil
}

func (r *Ring) Page(_ context.Context, q domain.PageQuery) ([]domain.Record, error) {
	out := make([]domain.Record, 0, q.Limit)
	skipped := 0
	for _, rec := range r.newestFirst() {
		if !matches(q.Events, rec.Event) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		if len(out) == q.Limit {
			break
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Ring) CountEvents(_ context.Context, events ...string) (map[string]int64, error) {
	out := make(map[string]int64, len(events))
	for _, rec := range r.Snapshot() {
		if matches(events, rec.Event) {
			out[rec.Event]++
		}
	}
	return out, nil
}

func (r *Ring) ActivitySince(_ context.Context, since time.Time) ([]domain.EventCount, error) {
	counts := make(map[string]int64)
	for _, rec := range r.Snapshot() {
		if rec.CreatedAt.After(since) {
			counts[rec.Event]++
		}
	}
	out := make([]domain.EventCount, 0, len(counts))
	for ev, n := range counts {
		out = append(out, domain.EventCount{Event: ev, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Event < out[j].Event })
	return out, nil
}

func (r *Ring) DailyCounts(_ context.Context, event string, since time.Time) ([]domain.DailyCount, error) {
	counts := make(map[string]int64)
	for _, rec := range r.Snapshot() {
		if rec.Event == event && rec.CreatedAt.After(since) {
			counts[rec.CreatedAt.UTC().Format(time.DateOnly)]++
		}
	}
	out := make([]domain.DailyCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, domain.DailyCount{Date: day, Installations: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r *Ring) Users(_ context.Context) ([]domain.UserRollup, error) {
	type key struct{ username, hostname string }
	byUser := make(map[key]*domain.UserRollup)
	var order []key

	// newest first, so the first email seen per user is the latest one
	for _, rec := range r.newestFirst() {
		k := key{rec.Username, rec.Hostname}
		u, ok := byUser[k]
		if !ok {
			u = &domain.UserRollup{Username: rec.Username, Hostname: rec.Hostname, LastSeen: rec.CreatedAt}
			byUser[k] = u
			order = append(order, k)
		}
		if u.UserEmail == "" {
			u.UserEmail = rec.UserEmail
		}
		u.TotalEvents++
		if rec.Event == domain.ActionInstallSuccess {
			u.SuccessfulInstalls++
		}
	}

	out := make([]domain.UserRollup, 0, len(order))
	for _, k := range order {
		out = append(out, *byUser[k])
	}
	return out, nil
}

func matches(events []string, event string) bool {
	if len(events) == 0 {
		return true
	}
	for _, e := range events {
		if e == event {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
