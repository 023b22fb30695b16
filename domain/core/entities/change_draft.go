package entities

import (
	"fmt"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/utils"
)

// ChangeDraft is a proposed mutation before the log assigns it an id and version
type ChangeDraft struct {
	WorkspaceID string                  `json:"workspace_id" validate:"required,max=128"`
	Operation   valueobjects.Operation  `json:"operation" validate:"required"`
	TargetType  valueobjects.TargetType `json:"target_type" validate:"required"`
	TargetID    string                  `json:"target_id" validate:"required,max=128"`
	Actor       valueobjects.Actor      `json:"actor" validate:"required"`
	BeforeState *State                  `json:"before_state,omitempty"`
	AfterState  *State                  `json:"after_state,omitempty"`
	InverseOf   string                  `json:"inverse_of,omitempty"`
}

// Validate checks the draft is well formed. It does not look at any snapshot.
func (d ChangeDraft) Validate() error {
	if err := utils.ValidateStruct(d); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	if !d.Operation.IsValid() {
		return pkgerrors.NewValidationError(fmt.Sprintf("unknown operation: %s", d.Operation))
	}
	if !d.TargetType.IsValid() {
		return pkgerrors.NewValidationError(fmt.Sprintf("unknown target type: %s", d.TargetType))
	}
	if !d.Actor.IsValid() {
		return pkgerrors.NewValidationError(fmt.Sprintf("unknown actor: %s", d.Actor))
	}
	if want, fixed := d.Operation.TargetType(); fixed && want != d.TargetType {
		return pkgerrors.NewValidationError(fmt.Sprintf("%s must target a %s", d.Operation, want))
	}

	switch {
	case d.Operation.RequiresBefore() && d.BeforeState == nil:
		return pkgerrors.NewValidationError(fmt.Sprintf("%s requires before_state", d.Operation))
	case d.Operation.ForbidsBefore() && d.BeforeState != nil:
		return pkgerrors.NewValidationError(fmt.Sprintf("%s must not carry before_state", d.Operation))
	case d.Operation.RequiresAfter() && d.AfterState == nil:
		return pkgerrors.NewValidationError(fmt.Sprintf("%s requires after_state", d.Operation))
	case d.Operation.ForbidsAfter() && d.AfterState != nil:
		return pkgerrors.NewValidationError(fmt.Sprintf("%s must not carry after_state", d.Operation))
	}

	if d.Operation == valueobjects.OpUpdateNode && d.AfterState.Overlay != nil {
		return pkgerrors.NewValidationError("update_node must not carry an overlay, propose update_overlay instead")
	}

	switch d.Operation {
	case valueobjects.OpCreateNode, valueobjects.OpUpdateNode:
		if _, err := NodeFromState(d.TargetID, d.AfterState); err != nil {
			return err
		}
	case valueobjects.OpCreateEdge:
		if _, err := EdgeFromState(d.TargetID, d.AfterState); err != nil {
			return err
		}
	}
	return nil
}

// Normalize fills defaults so that an applied node equals its after_state.
// Node states without a status mean accepted.
func (d ChangeDraft) Normalize() ChangeDraft {
	out := d
	out.BeforeState = d.BeforeState.Clone()
	out.AfterState = d.AfterState.Clone()
	if d.TargetType == valueobjects.TargetNode && d.Operation != valueobjects.OpUpdateOverlay {
		for _, s := range []*State{out.BeforeState, out.AfterState} {
			if s != nil && s.Status == "" {
				s.Status = string(valueobjects.NodeStatusAccepted)
			}
		}
	}
	return out
}
