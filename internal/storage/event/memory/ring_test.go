package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leshachaplin/testgenie/internal/domain"
)

func record(event string, at time.Time) *domain.Record {
	return &domain.Record{Event: event, Timestamp: at.Format(time.RFC3339), CreatedAt: at}
}

func TestRing_Retention(t *testing.T) {
	ctx := context.Background()
	r := New(DefaultCapacity)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 1050; i++ {
		rec := record(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Second))
		require.NoError(t, r.Insert(ctx, rec))
	}

	snap := r.Snapshot()
	require.Len(t, snap, 1000)
	assert.Equal(t, "e50", snap[0].Event)
	assert.Equal(t, "e1049", snap[len(snap)-1].Event)
	assert.Equal(t, int64(1050), snap[len(snap)-1].ID)
}

func TestRing_ConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	r := New(100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = r.Insert(ctx, record(domain.ActionCommand, time.Now()))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, r.Len())
}

func TestRing_Page(t *testing.T) {
	ctx := context.Background()
	r := New(DefaultCapacity)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 25; i++ {
		require.NoError(t, r.Insert(ctx, record(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	cases := map[string]struct {
		query domain.PageQuery
		first string
		last  string
		count int
	}{
		"first page": {query: domain.PageQuery{Limit: 10}, first: "e25", last: "e16", count: 10},
		"second page": {query: domain.PageQuery{Limit: 10, Offset: 10}, first: "e15", last: "e6", count: 10},
		"tail":        {query: domain.PageQuery{Limit: 10, Offset: 20}, first: "e5", last: "e1", count: 5},
		"filtered":    {query: domain.PageQuery{Limit: 10, Events: []string{"e3", "e7"}}, first: "e7", last: "e3", count: 2},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := r.Page(ctx, tc.query)
			require.NoError(t, err)
			require.Len(t, got, tc.count)
			assert.Equal(t, tc.first, got[0].Event)
			assert.Equal(t, tc.last, got[len(got)-1].Event)
		})
	}
}

func TestRing_Aggregates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	r := New(10)

	rows := []*domain.Record{
		{Event: domain.ActionInstallSuccess, Username: "ana", Hostname: "h1", Platform: "linux", CreatedAt: now.Add(-48 * time.Hour)},
		{Event: domain.ActionInstallSuccess, Username: "ana", Hostname: "h1", UserEmail: "ana@x.io", Platform: "linux", CreatedAt: now.Add(-time.Hour)},
		{Event: domain.ActionInstallError, Username: "bo", Hostname: "h2", Platform: "darwin", CreatedAt: now.Add(-2 * time.Hour)},
		{Event: domain.ActionCommand, CreatedAt: now.Add(-30 * time.Minute)},
	}
	for _, rec := range rows {
		require.NoError(t, r.Insert(ctx, rec))
	}

	summary, err := r.Summary(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), summary.TotalEvents)
	assert.Equal(t, int64(3), summary.TodayEvents)
	assert.Equal(t, int64(2), summary.UniqueUsers)
	assert.Equal(t, []string{"darwin", "linux"}, summary.Platforms)

	counts, err := r.CountEvents(ctx, domain.ActionInstallSuccess, domain.ActionInstallError)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{domain.ActionInstallSuccess: 2, domain.ActionInstallError: 1}, counts)

	activity, err := r.ActivitySince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []domain.EventCount{
		{Event: domain.ActionCommand, Count: 1},
		{Event: domain.ActionInstallError, Count: 1},
		{Event: domain.ActionInstallSuccess, Count: 1},
	}, activity)

	daily, err := r.DailyCounts(ctx, domain.ActionInstallSuccess, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []domain.DailyCount{
		{Date: "2026-03-08", Installations: 1},
		{Date: "2026-03-10", Installations: 1},
	}, daily)

	users, err := r.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "", users[0].Username)
	assert.Equal(t, "ana", users[1].Username)
	assert.Equal(t, "ana@x.io", users[1].UserEmail)
	assert.Equal(t, int64(2), users[1].TotalEvents)
	assert.Equal(t, int64(2), users[1].SuccessfulInstalls)
	assert.Equal(t, now.Add(-time.Hour), users[1].LastSeen)
}
