package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/leshachaplin/testgenie/app/waiter"
	"github.com/leshachaplin/testgenie/internal/config"
	"github.com/leshachaplin/testgenie/internal/domain"
	"github.com/leshachaplin/testgenie/internal/live"
	appServer "github.com/leshachaplin/testgenie/internal/server/http"
	"github.com/leshachaplin/testgenie/internal/service"
	"github.com/leshachaplin/testgenie/internal/storage/event/clickhouse"
	"github.com/leshachaplin/testgenie/internal/storage/event/memory"
	"github.com/leshachaplin/testgenie/internal/storage/event/postgres"
	"github.com/leshachaplin/testgenie/internal/storage/event/sqlite"
	"github.com/leshachaplin/testgenie/internal/worker"
	"github.com/leshachaplin/testgenie/internal/worker/redpanda/consumer"
	"github.com/leshachaplin/testgenie/internal/worker/redpanda/producer"
)

type LoadConfigFn func() (config.Config, error)

type App struct {
	cfg      config.Config
	logger   zerolog.Logger
	server   *appServer.Server
	waiter   waiter.Waiter
	ctx      context.Context
	cancelFn context.CancelFunc
}

func New(loadConfigFn LoadConfigFn) *App {
	ctx, cancelFn := context.WithCancel(context.Background())
	cfg, err := loadConfigFn()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := NewZeroLogger(Level(cfg.LogLevel))

	w := waiter.NewWaiter(ctx, cancelFn)

	return &App{
		cfg:      cfg,
		logger:   logger,
		waiter:   w,
		ctx:      w.Context(),
		cancelFn: cancelFn,
	}
}

func (a *App) Start() {
	defer a.cancelFn()

	buffer := memory.New(a.cfg.Store.BufferCapacity)
	primary := a.openStore(buffer)
	if primary != nil {
		defer primary.Close()
	}

	hub := live.NewHub(a.logger)
	var broadcaster service.Broadcaster = hub
	if a.cfg.Live.Enabled() {
		pool, closeFn, err := a.liveFanOut(hub)
		if err != nil {
			a.logger.Fatal().Err(err).Msg("Could not setup live fan-out.")
		}
		defer closeFn()
		broadcaster = pool
		a.waitForWorker(pool)
	}

	collector := service.New(primary, buffer, broadcaster, a.logger)
	handler := appServer.NewHandler(collector, a.logger)

	a.server = appServer.New(handler, hub)

	a.waitForServer(hub)

	if err := a.waiter.Wait(); err != nil {
		a.logger.Fatal().Err(err).Msg("App crash.")
	}
}

func (a *App) Stop() {
	a.cancelFn()
}

// openStore returns the configured primary store, or nil when it cannot be
// reached; the collector then serves from the in-memory buffer.
func (a *App) openStore(buffer *memory.Ring) service.Storage {
	var (
		primary service.Storage
		err     error
	)

	switch a.cfg.Store.Driver {
	case config.DriverMemory:
		return buffer
	case sqlite.Driver:
		primary, err = sqlite.New(a.ctx, a.cfg.SQLite)
	case postgres.Driver:
		primary, err = postgres.New(a.ctx, a.cfg.Postgres)
	case clickhouse.Driver:
		primary, err = clickhouse.New(a.ctx, a.cfg.Clickhouse, a.logger)
	default:
		err = fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
	if err != nil {
		a.logger.Error().Err(err).Str("driver", a.cfg.Store.Driver).Msg("store unavailable, events will be kept in memory")
		return nil
	}

	if a.cfg.Store.MigrateOnStart {
		if err := primary.Migrate(a.ctx); err != nil {
			a.logger.Warn().Err(err).Str("driver", a.cfg.Store.Driver).Msg("could not create events table, will retry on first write")
		}
	}
	a.logger.Info().Str("driver", primary.Name()).Msg("event store ready")
	return primary
}

// liveFanOut routes live events through Redpanda so every replica's hub sees them.
func (a *App) liveFanOut(hub *live.Hub) (*worker.Pool, func(), error) {
	consumerErrorChan := make(chan error, 1)
	liveConsumer, err := consumer.NewConsumer(a.ctx, consumer.Config{
		Brokers: a.cfg.Live.Brokers,
		// one group per replica: each must receive every event
		ConsumerGroup: fmt.Sprintf("%s-%s", a.cfg.Live.ConsumerGroup, uuid.NewString()),
		Topics:        []string{a.cfg.Live.Topic},
		FromLatest:    true,
	}, consumerErrorChan, a.logger.With().Str("live consumer", "Consume").Logger())
	if err != nil {
		return nil, nil, fmt.Errorf("live consumer: %w", err)
	}

	liveProducer, err := producer.NewProducer(a.ctx, producer.Config{
		RetryAttempts: a.cfg.Live.RetryAttempts,
		RetryDelay:    a.cfg.Live.RetryDelay,
		Brokers:       a.cfg.Live.Brokers,
		Topic:         a.cfg.Live.Topic,
	}, a.logger.With().Str("live producer", "Publish").Logger())
	if err != nil {
		_ = liveConsumer.Close()
		return nil, nil, fmt.Errorf("live producer: %w", err)
	}

	queue := worker.NewRedpandaQueue(liveProducer, liveConsumer)
	l := a.logger.With().Str("WORKER", "LIVE").Logger()
	pool := worker.New(a.ctx, a.cfg.Live.Worker, queue, l)
	pool.Start(func(ctx context.Context, ev domain.LiveEvent) error {
		hub.Broadcast(ctx, ev)
		return nil
	})

	a.waiter.Add(func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case err := <-consumerErrorChan:
				a.logger.Error().Err(err).Msg("live consumer error")
			}
		}
	})

	return pool, func() {
		if err := queue.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("error while closing live queue")
		}
	}, nil
}

func (a *App) waitForServer(hub *live.Hub) {
	a.waiter.Add(func(ctx context.Context) error {
		defer a.logger.Debug().Msg("server has been shutdown")

		group, gCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			defer a.logger.Debug().Msg("public server exited")
			a.logger.Info().Str("addr", a.cfg.Addr).Msg("starting server")
			err := a.server.ServePublic(a.cfg.Addr, appServer.AccessLog(a.logger))
			if err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})

		group.Go(func() error {
			<-gCtx.Done()
			a.logger.Debug().Msg("shutting down the server")
			hub.Close()

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			if err := a.server.ShutdownPublic(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("error while shutting down the server")
			}
			return nil
		})

		return group.Wait()
	})
}

func (a *App) waitForWorker(liveWorker worker.WorkerPool) {
	a.waiter.Add(func(ctx context.Context) error {
		group, gCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			<-gCtx.Done()
			liveWorker.GracefulStop()
			return nil
		})
		return group.Wait()
	})
}
