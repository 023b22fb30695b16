package ports

import (
	"context"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/events"
)

// EventPublisher publishes domain events after the log has committed them.
// Publishing is best effort; the log stays authoritative.
type EventPublisher interface {
	Publish(ctx context.Context, evts ...events.DomainEvent) error
}

// MetricsRecorder receives counters and timings from the services
type MetricsRecorder interface {
	ChangeProposed(op valueobjects.Operation)
	ChangeResolved(decision valueobjects.Decision, outcome string)
	ChangeUndone(outcome string)
	SnapshotRebuilt(records int, took time.Duration)
	LayoutComputed(nodes int, took time.Duration)
}
