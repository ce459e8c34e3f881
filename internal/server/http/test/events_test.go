package http

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leshachaplin/testgenie/internal/domain"
	"github.com/leshachaplin/testgenie/internal/storage/event/sqlite"
)

func (i *IntegrationTestSuite) TestUsage_SendEvents() {
	ctx, mainCansel := context.WithTimeout(i.ctx, time.Minute)
	defer mainCansel()

	cases := map[string]struct {
		senders int
		events  int
	}{
		"ok": {
			senders: 20,
			events:  10,
		},
	}
	for name, tc := range cases {
		i.Run(name, func() {
			before, err := i.client.Stats(ctx, 1, 10)
			i.Require().NoError(err)

			wg := &sync.WaitGroup{}
			for k := 0; k < tc.senders; k++ {
				wg.Add(1)
				go func(sessionID string) {
					defer wg.Done()
					for j := 0; j < tc.events; j++ {
						action := domain.ActionInstallSuccess
						if j%4 == 0 {
							action = domain.ActionInstallError
						}
						err := i.client.SendUsage(ctx, domain.Event{
							Action:    action,
							Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
							SessionID: sessionID,
							UserInfo:  &domain.UserInfo{Username: sessionID[:8], Hostname: "ci"},
							Data:      map[string]any{domain.DataPlatform: "linux"},
						})
						i.NoError(err)
					}
				}(uuid.NewString())
			}
			wg.Wait()

			after, err := i.client.Stats(ctx, 1, 10)
			i.Require().NoError(err)
			i.Equal(sqlite.Driver, after.DataSource)
			i.Equal(before.TotalEvents+int64(tc.senders*tc.events), after.TotalEvents)
			i.Equal([]string{"linux"}, after.Platforms)
			i.Len(after.RecentEvents, 10)
			i.True(after.Pagination.HasNextPage)
		})
	}
}
