package entities

import (
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
)

// ChangeRecord is one entry of a workspace's versioned change log
type ChangeRecord struct {
	ID          string                    `json:"id"`
	WorkspaceID string                    `json:"workspace_id"`
	Version     int64                     `json:"version"`
	Operation   valueobjects.Operation    `json:"operation"`
	TargetType  valueobjects.TargetType   `json:"target_type"`
	TargetID    string                    `json:"target_id"`
	Actor       valueobjects.Actor        `json:"actor"`
	BeforeState *State                    `json:"before_state"`
	AfterState  *State                    `json:"after_state"`
	Status      valueobjects.ChangeStatus `json:"status"`
	Reason      string                    `json:"reason,omitempty"`
	InverseOf   string                    `json:"inverse_of,omitempty"`
	UndoneBy    string                    `json:"undone_by,omitempty"`
	AppliedSeq  int64                     `json:"applied_seq,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
	AppliedAt   *time.Time                `json:"applied_at"`
	ResolvedAt  *time.Time                `json:"resolved_at,omitempty"`
}

// NewChangeRecord creates a pending record from a normalized draft
func NewChangeRecord(id string, version int64, draft ChangeDraft, createdAt time.Time) *ChangeRecord {
	return &ChangeRecord{
		ID:          id,
		WorkspaceID: draft.WorkspaceID,
		Version:     version,
		Operation:   draft.Operation,
		TargetType:  draft.TargetType,
		TargetID:    draft.TargetID,
		Actor:       draft.Actor,
		BeforeState: draft.BeforeState.Clone(),
		AfterState:  draft.AfterState.Clone(),
		Status:      valueobjects.ChangePending,
		InverseOf:   draft.InverseOf,
		CreatedAt:   createdAt,
	}
}

// MarkApplied moves a pending record to applied. seq is its position in the
// workspace's application order.
func (r *ChangeRecord) MarkApplied(seq int64, at time.Time) error {
	if err := r.transition(valueobjects.ChangeApplied); err != nil {
		return err
	}
	r.AppliedSeq = seq
	r.AppliedAt = &at
	r.ResolvedAt = &at
	return nil
}

// MarkRejected moves a pending record to rejected
func (r *ChangeRecord) MarkRejected(reason string, at time.Time) error {
	if err := r.transition(valueobjects.ChangeRejected); err != nil {
		return err
	}
	r.Reason = reason
	r.ResolvedAt = &at
	return nil
}

// MarkUndone moves an applied record to undone, pointing at the inverse that reversed it
func (r *ChangeRecord) MarkUndone(inverseID string) error {
	if err := r.transition(valueobjects.ChangeUndone); err != nil {
		return err
	}
	r.UndoneBy = inverseID
	return nil
}

func (r *ChangeRecord) transition(next valueobjects.ChangeStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return pkgerrors.NewAlreadyResolved(r.ID, string(r.Status))
	}
	r.Status = next
	return nil
}

// IsPending reports whether the record awaits a decision
func (r *ChangeRecord) IsPending() bool {
	return r.Status == valueobjects.ChangePending
}

// Clone returns a deep copy
func (r *ChangeRecord) Clone() *ChangeRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.BeforeState = r.BeforeState.Clone()
	out.AfterState = r.AfterState.Clone()
	if r.AppliedAt != nil {
		t := *r.AppliedAt
		out.AppliedAt = &t
	}
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		out.ResolvedAt = &t
	}
	return &out
}
