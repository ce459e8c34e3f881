package telemetry

import (
	"context"
	"net/http"

	"github.com/leshachaplin/testgenie/internal/domain"
)

const CollectorTransportName = "collector"

// CollectorTransport posts the structured event to a self-hosted collector.
type CollectorTransport struct {
	poster *poster
	url    string
}

func NewCollectorTransport(cfg Config, hc *http.Client) *CollectorTransport {
	return &CollectorTransport{
		poster: newPoster(cfg, hc),
		url:    cfg.CollectorURL + "/api/usage",
	}
}

func (t *CollectorTransport) Name() string { return CollectorTransportName }

func (t *CollectorTransport) Send(ctx context.Context, e domain.Event) Result {
	if _, terr := t.poster.post(ctx, t.Name(), t.url, e, false, false); terr != nil {
		return Result{Err: terr}
	}
	return ok("collector")
}
