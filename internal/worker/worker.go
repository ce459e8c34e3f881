// Package worker fans live events out through a shared queue so that every
// collector replica can push every ingested event to its own listeners.
package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/leshachaplin/testgenie/internal/domain"
)

type WorkerPool interface {
	Start(executeFn func(ctx context.Context, ev domain.LiveEvent) error)
	GracefulStop()
	Process(ev domain.LiveEvent)
}

type Pool struct {
	numWorkers  int
	taskPayload chan domain.LiveEvent
	outbox      chan domain.LiveEvent
	queue       Queue
	start       sync.Once
	stop        sync.Once
	doneChan    chan struct{}
	ctx         context.Context
	cancelFn    context.CancelFunc
	wg          *sync.WaitGroup
	logger      zerolog.Logger
}

func New(ctx context.Context, cfg Config, queue Queue, logger zerolog.Logger) *Pool {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.NumWorkers
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = defaultOutboxSize
	}

	c, cancelFn := context.WithCancel(ctx)
	return &Pool{
		numWorkers:  cfg.NumWorkers,
		taskPayload: make(chan domain.LiveEvent, cfg.QueueSize),
		outbox:      make(chan domain.LiveEvent, cfg.OutboxSize),
		doneChan:    make(chan struct{}),
		queue:       queue,
		ctx:         c,
		cancelFn:    cancelFn,
		wg:          &sync.WaitGroup{},
		logger:      logger,
	}
}

func (w *Pool) Start(
	executeFn func(ctx context.Context, ev domain.LiveEvent) error,
) {
	w.start.Do(func() {
		for i := 0; i < w.numWorkers; i++ {
			w.wg.Add(1)
			l := w.logger.With().Int("worker", i).Logger()
			go w.work(w.ctx, l, executeFn)
		}

		w.wg.Add(2)
		go func() {
			defer w.wg.Done()
			w.queue.Consume(w.ctx, w.taskPayload, w.doneChan)
		}()
		go w.publish()
	})
}

func (w *Pool) GracefulStop() {
	w.stop.Do(func() {
		close(w.doneChan)
		w.cancelFn()
		w.wg.Wait()
	})
}

// Process hands ev to the publisher without waiting for the broker; any pool
// consuming the queue picks it up. When the outbox is full ev is dropped.
func (w *Pool) Process(ev domain.LiveEvent) {
	select {
	case w.outbox <- ev:
	default:
		w.logger.Warn().Str("event", ev.Event).Msg("live outbox full, dropping event")
	}
}

// Broadcast lets the pool stand in for the local hub on the ingestion path.
func (w *Pool) Broadcast(_ context.Context, ev domain.LiveEvent) {
	w.Process(ev)
}

// publish drains the outbox in order until the pool stops.
func (w *Pool) publish() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.doneChan:
			return
		case ev := <-w.outbox:
			if err := w.queue.Publish(w.ctx, ev); err != nil {
				w.onFailure(ev, err)
			}
		}
	}
}

func (w *Pool) onFailure(ev domain.LiveEvent, err error) {
	w.logger.Error().Err(err).Str("event", ev.Event).Str("timestamp", ev.Timestamp).Msg("failed to fan out live event")
}

func (w *Pool) work(
	ctx context.Context,
	logger zerolog.Logger,
	executeFn func(ctx context.Context, ev domain.LiveEvent) error,
) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.doneChan:
			return
		case pld, ok := <-w.taskPayload:
			if !ok {
				return
			}

			logger.Debug().Str("event", pld.Event).Msg("start processing live event")
			if err := executeFn(ctx, pld); err != nil {
				w.onFailure(pld, err)
			}
		}
	}
}
