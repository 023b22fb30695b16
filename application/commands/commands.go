package commands

import (
	"context"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/commands/bus"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/services"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/utils"
)

// ProposeChangeCommand appends a draft to the workspace log as pending
type ProposeChangeCommand struct {
	Draft entities.ChangeDraft
}

// Validate validates the draft shape
func (c ProposeChangeCommand) Validate() error {
	return c.Draft.Validate()
}

// ResolveChangesCommand approves or rejects a batch of pending changes
type ResolveChangesCommand struct {
	WorkspaceID string              `validate:"required,max=128"`
	Decisions   []services.Decision `validate:"required"`
}

// Validate validates the command
func (c ResolveChangesCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	return nil
}

// ResolveResult is the result of a ResolveChangesCommand
type ResolveResult struct {
	Outcomes []services.Outcome
	Summary  services.Summary
}

// UndoChangeCommand reverses an applied change
type UndoChangeCommand struct {
	ChangeID string `validate:"required"`
}

// Validate validates the command
func (c UndoChangeCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	return nil
}

// Handlers routes commands to the change-log services
type Handlers struct {
	changes  *services.ChangeLogService
	approval *services.ApprovalProcessor
	undo     *services.UndoEngine
}

// NewHandlers creates the command handlers
func NewHandlers(changes *services.ChangeLogService, approval *services.ApprovalProcessor, undo *services.UndoEngine) *Handlers {
	return &Handlers{changes: changes, approval: approval, undo: undo}
}

// Register wires every command onto b
func (h *Handlers) Register(b *bus.CommandBus) error {
	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandlerFunc
	}{
		{ProposeChangeCommand{}, h.propose},
		{ResolveChangesCommand{}, h.resolve},
		{UndoChangeCommand{}, h.undoChange},
	}
	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handlers) propose(ctx context.Context, cmd bus.Command) (interface{}, error) {
	return h.changes.Propose(ctx, cmd.(ProposeChangeCommand).Draft)
}

func (h *Handlers) resolve(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c := cmd.(ResolveChangesCommand)
	outcomes, err := h.approval.Resolve(ctx, c.WorkspaceID, c.Decisions)
	if err != nil {
		return nil, err
	}
	return &ResolveResult{Outcomes: outcomes, Summary: services.Summarize(outcomes)}, nil
}

func (h *Handlers) undoChange(ctx context.Context, cmd bus.Command) (interface{}, error) {
	return h.undo.Undo(ctx, cmd.(UndoChangeCommand).ChangeID)
}
