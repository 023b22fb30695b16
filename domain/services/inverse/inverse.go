// Package inverse synthesizes the change that reverses an applied record.
package inverse

import (
	"fmt"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
)

// Synthesize returns the draft that undoes rec. create and delete swap, update
// and update_overlay swap their states. The draft is attributed to the system.
func Synthesize(rec *entities.ChangeRecord) (entities.ChangeDraft, error) {
	if rec.Status != valueobjects.ChangeApplied {
		return entities.ChangeDraft{}, pkgerrors.NewAlreadyResolved(rec.ID, string(rec.Status))
	}

	draft := entities.ChangeDraft{
		WorkspaceID: rec.WorkspaceID,
		Operation:   rec.Operation.Inverse(),
		TargetType:  rec.TargetType,
		TargetID:    rec.TargetID,
		Actor:       valueobjects.ActorSystem,
		InverseOf:   rec.ID,
	}

	switch rec.Operation {
	case valueobjects.OpCreateNode, valueobjects.OpCreateEdge:
		draft.BeforeState = rec.AfterState.WithoutReason()
	case valueobjects.OpDeleteNode, valueobjects.OpDeleteEdge:
		draft.AfterState = rec.BeforeState.WithoutReason()
	case valueobjects.OpUpdateNode:
		draft.BeforeState = rec.AfterState.WithoutReason()
		draft.AfterState = rec.BeforeState.WithoutReason()
		draft.AfterState.Overlay = nil
	case valueobjects.OpUpdateOverlay:
		draft.BeforeState = rec.AfterState.WithoutReason()
		draft.AfterState = rec.BeforeState.WithoutReason()
	default:
		return entities.ChangeDraft{}, pkgerrors.NewValidationError(fmt.Sprintf("cannot invert operation %s", rec.Operation))
	}

	if draft.AfterState != nil {
		draft.AfterState.Reason = fmt.Sprintf("undo of change %s", rec.ID)
	}
	return draft.Normalize(), nil
}
