package service

import (
	"context"
	"strings"
	"time"

	"github.com/leshachaplin/testgenie/internal/domain"
	"github.com/leshachaplin/testgenie/internal/storage/event"
)

// IngestUsage stores a structured usage event.
func (s *Service) IngestUsage(ctx context.Context, e domain.Event) error {
	e.Action = strings.TrimSpace(e.Action)
	e.Timestamp = strings.TrimSpace(e.Timestamp)
	e.SessionID = strings.TrimSpace(e.SessionID)

	switch {
	case e.Action == "":
		return &ValidationError{Field: "event"}
	case e.Timestamp == "":
		return &ValidationError{Field: "timestamp"}
	case e.SessionID == "":
		return &ValidationError{Field: "sessionId"}
	}
	return s.ingest(ctx, e)
}

// IngestAction stores a flat action payload, as posted by dispatch webhooks.
func (s *Service) IngestAction(ctx context.Context, payload map[string]any) error {
	e := domain.EventFromFlat(payload)
	e.Action = strings.TrimSpace(e.Action)
	if e.Action == "" {
		return &ValidationError{Field: "action"}
	}
	if e.Timestamp == "" {
		e.Timestamp = s.now().UTC().Format(time.RFC3339Nano)
	}
	return s.ingest(ctx, e)
}

func (s *Service) ingest(ctx context.Context, e domain.Event) error {
	rec := domain.NewRecord(e, s.now())
	if err := s.persist(ctx, rec); err != nil {
		return err
	}

	s.logger.Debug().Str("event", rec.Event).Int64("id", rec.ID).Msg("event stored")
	if s.live != nil {
		s.live.Broadcast(ctx, rec.Live())
	}
	return nil
}

func (s *Service) persist(ctx context.Context, rec *domain.Record) error {
	if s.primary == nil || s.bufferIsPrimary() {
		return s.buffer.Insert(ctx, rec)
	}

	err := s.primary.Insert(ctx, rec)
	if err == nil {
		return nil
	}
	if event.IsSchemaError(err) {
		s.logger.Error().Err(err).Str("store", s.primary.Name()).Msg("failed to create events table")
		return err
	}

	s.logger.Warn().Err(err).Str("store", s.primary.Name()).Msg("store unavailable, buffering event in memory")
	return s.buffer.Insert(ctx, rec)
}
