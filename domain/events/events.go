package events

import (
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
)

// Event type names as published on the bus
const (
	TypeChangeProposed = "change.proposed"
	TypeChangeApplied  = "change.applied"
	TypeChangeRejected = "change.rejected"
	TypeChangeUndone   = "change.undone"
)

// DomainEvent is the base interface for all domain events.
// Events represent something that has happened in the past.
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int64
}

// BaseEvent provides common event fields. The aggregate is the workspace log
// and Version is the change record's log version.
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int64     `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int64       { return e.Version }

// ChangeRef identifies the change an event is about
type ChangeRef struct {
	ChangeID   string                  `json:"change_id"`
	Operation  valueobjects.Operation  `json:"operation"`
	TargetType valueobjects.TargetType `json:"target_type"`
	TargetID   string                  `json:"target_id"`
	Actor      valueobjects.Actor      `json:"actor"`
}

func newBase(rec *entities.ChangeRecord, eventType string, at time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: rec.WorkspaceID,
		EventType:   eventType,
		Timestamp:   at,
		Version:     rec.Version,
	}
}

func refOf(rec *entities.ChangeRecord) ChangeRef {
	return ChangeRef{
		ChangeID:   rec.ID,
		Operation:  rec.Operation,
		TargetType: rec.TargetType,
		TargetID:   rec.TargetID,
		Actor:      rec.Actor,
	}
}

// ChangeProposed is raised when a record enters the log as pending
type ChangeProposed struct {
	BaseEvent
	ChangeRef
}

// NewChangeProposed creates a ChangeProposed event
func NewChangeProposed(rec *entities.ChangeRecord) ChangeProposed {
	return ChangeProposed{BaseEvent: newBase(rec, TypeChangeProposed, rec.CreatedAt), ChangeRef: refOf(rec)}
}

// ChangeApplied is raised when a record has been folded into the snapshot
type ChangeApplied struct {
	BaseEvent
	ChangeRef
	SnapshotVersion int64  `json:"snapshot_version"`
	InverseOf       string `json:"inverse_of,omitempty"`
}

// NewChangeApplied creates a ChangeApplied event
func NewChangeApplied(rec *entities.ChangeRecord, snapshotVersion int64, at time.Time) ChangeApplied {
	return ChangeApplied{
		BaseEvent:       newBase(rec, TypeChangeApplied, at),
		ChangeRef:       refOf(rec),
		SnapshotVersion: snapshotVersion,
		InverseOf:       rec.InverseOf,
	}
}

// ChangeRejected is raised when a record is rejected, by decision or at apply time
type ChangeRejected struct {
	BaseEvent
	ChangeRef
	Reason string `json:"reason,omitempty"`
}

// NewChangeRejected creates a ChangeRejected event
func NewChangeRejected(rec *entities.ChangeRecord, at time.Time) ChangeRejected {
	return ChangeRejected{BaseEvent: newBase(rec, TypeChangeRejected, at), ChangeRef: refOf(rec), Reason: rec.Reason}
}

// ChangeUndone is raised when an applied record has been reversed
type ChangeUndone struct {
	BaseEvent
	ChangeRef
	UndoneBy string `json:"undone_by"`
}

// NewChangeUndone creates a ChangeUndone event
func NewChangeUndone(rec *entities.ChangeRecord, at time.Time) ChangeUndone {
	return ChangeUndone{BaseEvent: newBase(rec, TypeChangeUndone, at), ChangeRef: refOf(rec), UndoneBy: rec.UndoneBy}
}
