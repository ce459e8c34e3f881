package service

import (
	"context"
	"time"

	"github.com/leshachaplin/testgenie/internal/domain"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100

	recentInstallsLimit = 50
	usageWindow         = 30 * 24 * time.Hour
	activityWindow      = 24 * time.Hour

	demoMessage = "Showing demo data - configure a database to see live analytics"
)

// Stats never fails: when no store can answer it returns an empty demo payload.
func (s *Service) Stats(ctx context.Context, page, limit int) domain.Stats {
	page, limit = normalizePage(page, limit)

	for _, src := range s.readers() {
		st, err := s.statsFrom(ctx, src, page, limit)
		if err != nil {
			s.logger.Warn().Err(err).Str("store", src.Name()).Msg("stats unavailable, degrading")
			continue
		}
		return st
	}
	return s.demoStats(page, limit)
}

func (s *Service) statsFrom(ctx context.Context, src Storage, page, limit int) (domain.Stats, error) {
	now := s.now().UTC()

	summary, err := src.Summary(ctx, now)
	if err != nil {
		return domain.Stats{}, err
	}
	outcomes, err := src.CountEvents(ctx, domain.ActionInstallSuccess, domain.ActionInstallError)
	if err != nil {
		return domain.Stats{}, err
	}
	activity, err := src.ActivitySince(ctx, now.Add(-activityWindow))
	if err != nil {
		return domain.Stats{}, err
	}
	recent, err := src.Page(ctx, domain.PageQuery{Limit: limit, Offset: (page - 1) * limit})
	if err != nil {
		return domain.Stats{}, err
	}

	views := make([]domain.EventView, 0, len(recent))
	for i := range recent {
		views = append(views, recent[i].View())
	}
	if activity == nil {
		activity = []domain.EventCount{}
	}
	platforms := summary.Platforms
	if platforms == nil {
		platforms = []string{}
	}

	return domain.Stats{
		TotalInstalls:  outcomes[domain.ActionInstallSuccess],
		UniqueUsers:    summary.UniqueUsers,
		SuccessRate:    domain.SuccessRate(outcomes[domain.ActionInstallSuccess], outcomes[domain.ActionInstallError]),
		RecentActivity: activity,
		TotalEvents:    summary.TotalEvents,
		TodayEvents:    summary.TodayEvents,
		Platforms:      platforms,
		RecentEvents:   views,
		Pagination: domain.Pagination{
			CurrentPage:  page,
			ItemsPerPage: limit,
			HasNextPage:  len(recent) == limit,
			HasPrevPage:  page > 1,
		},
		LastUpdated: now,
		IsLive:      true,
		DataSource:  src.Name(),
	}, nil
}

func (s *Service) demoStats(page, limit int) domain.Stats {
	return domain.Stats{
		RecentActivity: []domain.EventCount{},
		Platforms:      []string{},
		RecentEvents:   []domain.EventView{},
		Pagination: domain.Pagination{
			CurrentPage:  page,
			ItemsPerPage: limit,
			HasPrevPage:  page > 1,
		},
		LastUpdated: s.now().UTC(),
		DataSource:  domain.SourceDemo,
		Message:     demoMessage,
	}
}

// RecentInstalls returns the newest install_start/install_success events.
func (s *Service) RecentInstalls(ctx context.Context) []domain.EventView {
	recs, _ := read(s, "recent", func(src Storage) ([]domain.Record, error) {
		return src.Page(ctx, domain.PageQuery{
			Events: []string{domain.ActionInstallSuccess, domain.ActionInstallStart},
			Limit:  recentInstallsLimit,
		})
	})

	out := make([]domain.EventView, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].View())
	}
	return out
}

// UsageOverTime counts successful installs per UTC day over the last 30 days.
func (s *Service) UsageOverTime(ctx context.Context) []domain.DailyCount {
	since := s.now().UTC().Add(-usageWindow)
	out, _ := read(s, "usage over time", func(src Storage) ([]domain.DailyCount, error) {
		return src.DailyCounts(ctx, domain.ActionInstallSuccess, since)
	})
	if out == nil {
		return []domain.DailyCount{}
	}
	return out
}

func (s *Service) Users(ctx context.Context) []domain.UserRollup {
	out, _ := read(s, "users", func(src Storage) ([]domain.UserRollup, error) {
		return src.Users(ctx)
	})
	if out == nil {
		return []domain.UserRollup{}
	}
	return out
}

// Buffered dumps the in-memory ring, oldest first.
func (s *Service) Buffered() []domain.Record {
	return s.buffer.Snapshot()
}

// read runs fn against the preferred store and degrades on failure. The second
// result names the store that answered.
func read[T any](s *Service, op string, fn func(Storage) (T, error)) (T, string) {
	for _, src := range s.readers() {
		v, err := fn(src)
		if err == nil {
			return v, src.Name()
		}
		s.logger.Warn().Err(err).Str("store", src.Name()).Str("op", op).Msg("read failed, degrading")
	}

	var zero T
	return zero, domain.SourceDemo
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}
