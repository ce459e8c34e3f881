package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/leshachaplin/testgenie/internal/domain"
	"github.com/leshachaplin/testgenie/internal/storage/event/memory"
)

// Storage is implemented by every event store backend.
type Storage interface {
	Name() string
	Migrate(ctx context.Context) error
	Insert(ctx context.Context, rec *domain.Record) error
	Summary(ctx context.Context, now time.Time) (domain.Summary, error)
	Page(ctx context.Context, q domain.PageQuery) ([]domain.Record, error)
	CountEvents(ctx context.Context, events ...string) (map[string]int64, error)
	ActivitySince(ctx context.Context, since time.Time) ([]domain.EventCount, error)
	DailyCounts(ctx context.Context, event string, since time.Time) ([]domain.DailyCount, error)
	Users(ctx context.Context) ([]domain.UserRollup, error)
	Close() error
}

// Broadcaster pushes freshly ingested events to live listeners.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev domain.LiveEvent)
}

type Ingester interface {
	IngestUsage(ctx context.Context, e domain.Event) error
	IngestAction(ctx context.Context, payload map[string]any) error
}

type Reader interface {
	Stats(ctx context.Context, page, limit int) domain.Stats
	RecentInstalls(ctx context.Context) []domain.EventView
	UsageOverTime(ctx context.Context) []domain.DailyCount
	Users(ctx context.Context) []domain.UserRollup
	Buffered() []domain.Record
}

type Setup interface {
	SetupStatus(ctx context.Context) SetupStatus
	Setup(ctx context.Context) error
}

type Collector interface {
	Ingester
	Reader
	Setup
}

type Service struct {
	primary Storage
	buffer  *memory.Ring
	live    Broadcaster
	logger  zerolog.Logger
	now     func() time.Time
}

// New wires the collector. primary may be nil (no store configured or it failed to
// open); buffer may be the primary itself when the memory driver is selected.
func New(primary Storage, buffer *memory.Ring, live Broadcaster, logger zerolog.Logger) *Service {
	if buffer == nil {
		buffer = memory.New(memory.DefaultCapacity)
	}
	return &Service{
		primary: primary,
		buffer:  buffer,
		live:    live,
		logger:  logger.With().Str("component", "collector").Logger(),
		now:     time.Now,
	}
}

func (s *Service) bufferIsPrimary() bool {
	return s.primary != nil && s.primary == Storage(s.buffer)
}

// readers lists the stores a read may be served from, in preference order.
func (s *Service) readers() []Storage {
	out := make([]Storage, 0, 2)
	if s.primary != nil {
		out = append(out, s.primary)
	}
	if !s.bufferIsPrimary() && s.buffer.Len() > 0 {
		out = append(out, s.buffer)
	}
	return out
}
