package services

import (
	"context"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/events"
	"go.uber.org/zap"
)

// publish is best effort: the log has already committed, so a bus failure is only logged
func publish(ctx context.Context, publisher ports.EventPublisher, logger *zap.Logger, evts ...events.DomainEvent) {
	if publisher == nil || len(evts) == 0 {
		return
	}
	if err := publisher.Publish(ctx, evts...); err != nil {
		logger.Warn("Failed to publish events",
			zap.Int("count", len(evts)),
			zap.String("event_type", evts[0].GetEventType()),
			zap.Error(err),
		)
	}
}
