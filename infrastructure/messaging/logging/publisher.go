// Package logging publishes domain events to the application log. It is the
// default publisher when no event bus is configured.
package logging

import (
	"context"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/events"
	"go.uber.org/zap"
)

// Publisher writes one log line per event
type Publisher struct {
	logger *zap.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a logging publisher
func NewPublisher(logger *zap.Logger) *Publisher {
	return &Publisher{logger: logger.Named("events")}
}

// Publish logs each event at Info
func (p *Publisher) Publish(ctx context.Context, evts ...events.DomainEvent) error {
	for _, e := range evts {
		p.logger.Info("Domain event",
			zap.String("event_type", e.GetEventType()),
			zap.String("workspace_id", e.GetAggregateID()),
			zap.Int64("version", e.GetVersion()),
			zap.Time("timestamp", e.GetTimestamp()),
			zap.Any("event", e),
		)
	}
	return nil
}
