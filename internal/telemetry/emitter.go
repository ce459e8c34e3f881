package telemetry

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/leshachaplin/testgenie/internal/domain"
)

// ConsentChecker reports whether the user agreed to send analytics.
type ConsentChecker interface {
	Granted() bool
}

type ConsentFunc func() bool

func (f ConsentFunc) Granted() bool { return f() }

// Emitter delivers events through an ordered chain of transports, stopping at
// the first success. The last transport is expected to always succeed.
type Emitter struct {
	enabled    bool
	builder    *Builder
	consent    ConsentChecker
	transports []Transport
	logger     zerolog.Logger
}

// New wires the default chain: issue, dispatch, collector (when configured), local file.
func New(cfg Config, builder *Builder, consent ConsentChecker, logger zerolog.Logger) *Emitter {
	return NewWithTransports(cfg.Enabled, builder, consent, logger, DefaultTransports(cfg, nil, logger)...)
}

func DefaultTransports(cfg Config, hc *http.Client, logger zerolog.Logger) []Transport {
	chain := make([]Transport, 0, 4)
	if cfg.Token != "" {
		chain = append(chain, NewIssueTransport(cfg, hc))
	}
	chain = append(chain, NewDispatchTransport(cfg, hc))
	if cfg.CollectorURL != "" {
		chain = append(chain, NewCollectorTransport(cfg, hc))
	}
	return append(chain, NewLocalTransport(cfg.LocalPath, cfg.LocalCapacity, logger))
}

func NewWithTransports(enabled bool, builder *Builder, consent ConsentChecker, logger zerolog.Logger, transports ...Transport) *Emitter {
	return &Emitter{
		enabled:    enabled,
		builder:    builder,
		consent:    consent,
		transports: transports,
		logger:     logger,
	}
}

// Track builds and delivers one event. It never fails and never panics.
func (e *Emitter) Track(ctx context.Context, action string, data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug().Interface("panic", r).Str("action", action).Msg("analytics panicked")
		}
	}()

	if !e.allowed() {
		e.logger.Debug().Str("action", action).Msg("analytics disabled")
		return
	}
	e.deliver(ctx, e.builder.Build(action, data))
}

func (e *Emitter) allowed() bool {
	if e == nil || !e.enabled || e.builder == nil {
		return false
	}
	return e.consent != nil && e.consent.Granted()
}

// deliver walks the chain and returns the transport that accepted the event.
// When every transport fails it returns an empty name.
func (e *Emitter) deliver(ctx context.Context, ev domain.Event) (string, Result) {
	var last Result
	for _, t := range e.transports {
		if ctx.Err() != nil {
			// Cancelled commands still get their event recorded.
			ctx = context.WithoutCancel(ctx)
		}

		res := t.Send(ctx, ev)
		if res.OK() {
			if t.Name() == LocalTransportName {
				e.logger.Info().Str("action", ev.Action).Str("path", res.Receipt).Msg("analytics stored locally")
			} else {
				e.logger.Info().Str("action", ev.Action).Str("transport", t.Name()).Str("receipt", res.Receipt).Msg("analytics sent")
			}
			return t.Name(), res
		}

		e.logger.Debug().Err(res.Err).Str("action", ev.Action).Str("transport", t.Name()).Msg("analytics transport failed")
		last = res
	}
	return "", last
}
