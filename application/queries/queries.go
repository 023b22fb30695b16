package queries

import (
	"context"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/projections"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/queries/bus"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/services"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/services/layout"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/utils"
)

func validate(q interface{}) error {
	if err := utils.ValidateStruct(q); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	return nil
}

// GetChangeQuery fetches one change record
type GetChangeQuery struct {
	ChangeID string `validate:"required"`
}

// Validate validates the query
func (q GetChangeQuery) Validate() error { return validate(q) }

// ListPendingQuery lists the pending queue of a workspace
type ListPendingQuery struct {
	WorkspaceID string `validate:"required"`
	Filter      ports.PendingFilter
}

// Validate validates the query
func (q ListPendingQuery) Validate() error { return validate(q) }

// GetHistoryQuery pages through the log newest first
type GetHistoryQuery struct {
	WorkspaceID string `validate:"required"`
	Limit       int    `validate:"min=0"`
	Cursor      int64  `validate:"min=0"`
}

// Validate validates the query
func (q GetHistoryQuery) Validate() error { return validate(q) }

// GetGraphQuery projects the current snapshot for rendering
type GetGraphQuery struct {
	WorkspaceID     string `validate:"required"`
	IncludeProposed bool
}

// Validate validates the query
func (q GetGraphQuery) Validate() error { return validate(q) }

// GetLayoutQuery returns positions and group blocks only
type GetLayoutQuery struct {
	WorkspaceID string `validate:"required"`
}

// Validate validates the query
func (q GetLayoutQuery) Validate() error { return validate(q) }

// LayoutView is the result of GetLayoutQuery
type LayoutView struct {
	WorkspaceID string                           `json:"workspace_id"`
	Version     int64                            `json:"version"`
	Positions   map[string]valueobjects.Position `json:"positions"`
	Groups      []layout.GroupBlock              `json:"groups"`
}

// Handlers answers the read side from the log, the snapshot and the projector
type Handlers struct {
	changes   *services.ChangeLogService
	snapshots *services.SnapshotManager
	projector *projections.GraphProjector
}

// NewHandlers creates the query handlers
func NewHandlers(changes *services.ChangeLogService, snapshots *services.SnapshotManager, projector *projections.GraphProjector) *Handlers {
	return &Handlers{changes: changes, snapshots: snapshots, projector: projector}
}

// Register wires every query onto b
func (h *Handlers) Register(b *bus.QueryBus) error {
	registrations := []struct {
		query   bus.Query
		handler bus.QueryHandlerFunc
	}{
		{GetChangeQuery{}, h.getChange},
		{ListPendingQuery{}, h.listPending},
		{GetHistoryQuery{}, h.history},
		{GetGraphQuery{}, h.graph},
		{GetLayoutQuery{}, h.layout},
	}
	for _, r := range registrations {
		if err := b.Register(r.query, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handlers) getChange(ctx context.Context, q bus.Query) (interface{}, error) {
	return h.changes.Get(ctx, q.(GetChangeQuery).ChangeID)
}

func (h *Handlers) listPending(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(ListPendingQuery)
	return h.changes.ListPending(ctx, query.WorkspaceID, query.Filter)
}

func (h *Handlers) history(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(GetHistoryQuery)
	return h.changes.History(ctx, query.WorkspaceID, query.Limit, query.Cursor)
}

// graph reads the pending queue before the snapshot. A change approved in
// between then shows as applied and still flagged instead of vanishing.
func (h *Handlers) graph(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(GetGraphQuery)
	pending, err := h.changes.ListPending(ctx, query.WorkspaceID, ports.PendingFilter{})
	if err != nil {
		return nil, err
	}
	snap, err := h.snapshots.Read(ctx, query.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return h.projector.Project(snap, pending, projections.Options{IncludeProposed: query.IncludeProposed}), nil
}

func (h *Handlers) layout(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(GetLayoutQuery)
	snap, err := h.snapshots.Read(ctx, query.WorkspaceID)
	if err != nil {
		return nil, err
	}
	result := h.projector.Layout(snap)
	return &LayoutView{
		WorkspaceID: query.WorkspaceID,
		Version:     snap.Version(),
		Positions:   result.Positions,
		Groups:      result.Groups,
	}, nil
}
