// Package waiter runs the long-lived parts of an app and stops them together on
// a signal, a cancelled context or the first failure.
package waiter

import (
	"context"
	"os/signal"
	"sync"

	"golang.org/x/sync/errgroup"
)

type WaitFunc func(ctx context.Context) error

type Waiter interface {
	Add(fns ...WaitFunc)
	Wait() error
	Context() context.Context
	CancelFunc() context.CancelFunc
}

type waiter struct {
	ctx      context.Context
	cancelFn context.CancelFunc
	stop     context.CancelFunc

	mu  sync.Mutex
	fns []WaitFunc
}

var _ Waiter = (*waiter)(nil)

func NewWaiter(ctx context.Context, cancelFn context.CancelFunc, options ...Option) Waiter {
	cfg := defaultCfg()
	for _, option := range options {
		option(&cfg)
	}

	w := &waiter{cancelFn: cancelFn}
	w.ctx, w.stop = signal.NotifyContext(ctx, cfg.signals...)
	return w
}

func (w *waiter) Add(fns ...WaitFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fns = append(w.fns, fns...)
}

// Wait blocks until every added func has returned. The first error cancels the rest.
func (w *waiter) Wait() error {
	defer w.stop()

	group, gCtx := errgroup.WithContext(w.ctx)

	group.Go(func() error {
		<-gCtx.Done()
		w.cancelFn()
		return nil
	})

	w.mu.Lock()
	fns := append([]WaitFunc(nil), w.fns...)
	w.mu.Unlock()

	for _, fn := range fns {
		fn := fn
		group.Go(func() error { return fn(gCtx) })
	}

	return group.Wait()
}

func (w *waiter) Context() context.Context {
	return w.ctx
}

func (w *waiter) CancelFunc() context.CancelFunc {
	return w.cancelFn
}
