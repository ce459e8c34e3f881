package service

import (
	"context"
	"fmt"

	"github.com/leshachaplin/testgenie/internal/domain"
)

type SetupStatus struct {
	Store   string `json:"store"`
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

// SetupStatus reports whether the primary store can serve reads.
func (s *Service) SetupStatus(ctx context.Context) SetupStatus {
	if s.primary == nil {
		return SetupStatus{Store: domain.SourceMemory, Message: "no database configured, events are kept in memory"}
	}
	if _, err := s.primary.Summary(ctx, s.now()); err != nil {
		return SetupStatus{Store: s.primary.Name(), Message: err.Error()}
	}
	return SetupStatus{Store: s.primary.Name(), Ready: true, Message: "events table is ready"}
}

// Setup creates the events table on the primary store.
func (s *Service) Setup(ctx context.Context) error {
	if s.primary == nil {
		return fmt.Errorf("no database configured")
	}
	return s.primary.Migrate(ctx)
}
