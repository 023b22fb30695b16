package handlers

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/commands"
	cmdbus "github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/commands/bus"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/queries"
	querybus "github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/queries/bus"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/services"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/interfaces/http/rest/middleware"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/common"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ResolveRequest is the body of POST /changes/resolve. Either Decisions, or
// ChangeIDs plus one Decision for all of them.
type ResolveRequest struct {
	WorkspaceID string                `json:"workspace_id"`
	ChangeIDs   []string              `json:"change_ids,omitempty"`
	Decision    valueobjects.Decision `json:"decision,omitempty"`
	Reason      string                `json:"reason,omitempty"`
	Decisions   []services.Decision   `json:"decisions,omitempty"`
}

// decisions flattens the request into one decision per id
func (r ResolveRequest) decisions() ([]services.Decision, error) {
	switch {
	case len(r.Decisions) > 0 && len(r.ChangeIDs) > 0:
		return nil, pkgerrors.NewValidationError("use either decisions or change_ids, not both")
	case len(r.Decisions) > 0:
		return r.Decisions, nil
	case len(r.ChangeIDs) == 0:
		return nil, pkgerrors.NewValidationError("no changes to resolve")
	}
	out := make([]services.Decision, len(r.ChangeIDs))
	for i, id := range r.ChangeIDs {
		out[i] = services.Decision{ChangeID: id, Decision: r.Decision, Reason: r.Reason}
	}
	return out, nil
}

// UndoRequest is the body of POST /changes/undo
type UndoRequest struct {
	ChangeID string `json:"change_id"`
}

// PendingResponse wraps the pending queue
type PendingResponse struct {
	Changes []*entities.ChangeRecord `json:"changes"`
}

// ChangeHandler serves the change-log endpoints
type ChangeHandler struct {
	commands *cmdbus.CommandBus
	queries  *querybus.QueryBus
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewChangeHandler creates a change handler
func NewChangeHandler(commands *cmdbus.CommandBus, queries *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *ChangeHandler {
	return &ChangeHandler{commands: commands, queries: queries, errors: errs, logger: logger}
}

// ListPending handles GET /workspaces/{workspaceID}/changes/pending
func (h *ChangeHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspace(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := ports.PendingFilter{
		Actor:      valueobjects.Actor(q.Get("actor")),
		Operation:  valueobjects.Operation(q.Get("operation")),
		TargetType: valueobjects.TargetType(q.Get("target_type")),
		ProjectID:  q.Get("project_id"),
	}

	result, err := h.queries.Ask(r.Context(), queries.ListPendingQuery{WorkspaceID: workspaceID, Filter: filter})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	records, _ := result.([]*entities.ChangeRecord)
	if records == nil {
		records = []*entities.ChangeRecord{}
	}
	common.RespondJSON(w, http.StatusOK, PendingResponse{Changes: records})
}

// Propose handles POST /workspaces/{workspaceID}/changes
func (h *ChangeHandler) Propose(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var draft entities.ChangeDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if draft.WorkspaceID == "" {
		draft.WorkspaceID = workspaceID
	}
	if draft.WorkspaceID != workspaceID {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("workspace_id does not match the request path"))
		return
	}

	result, err := h.commands.Send(r.Context(), commands.ProposeChangeCommand{Draft: draft})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, result)
}

// History handles GET /workspaces/{workspaceID}/changes/history
func (h *ChangeHandler) History(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		if _, err := common.ParseCursor(raw); err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid cursor"))
			return
		}
	}
	// The service clamps the limit against the domain configuration.
	params := common.ExtractCursorParams(r, 0, math.MaxInt32)

	result, err := h.queries.Ask(r.Context(), queries.GetHistoryQuery{
		WorkspaceID: workspaceID,
		Limit:       params.Limit,
		Cursor:      params.Cursor,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// Get handles GET /changes/{changeID}
func (h *ChangeHandler) Get(w http.ResponseWriter, r *http.Request) {
	result, err := h.queries.Ask(r.Context(), queries.GetChangeQuery{ChangeID: chi.URLParam(r, "changeID")})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if rec, ok := result.(*entities.ChangeRecord); ok && !allowed(r, rec.WorkspaceID) {
		h.errors.Handle(w, r, pkgerrors.NewChangeNotFound(rec.ID))
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// Resolve handles POST /changes/resolve
func (h *ChangeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if !allowed(r, req.WorkspaceID) {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("workspace not granted by token"))
		return
	}
	decisions, err := req.decisions()
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.commands.Send(r.Context(), commands.ResolveChangesCommand{
		WorkspaceID: req.WorkspaceID,
		Decisions:   decisions,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	res := result.(*commands.ResolveResult)
	h.logger.Info("Changes resolved",
		zap.String("workspaceID", req.WorkspaceID),
		zap.Int("applied", len(res.Summary.Applied)),
		zap.Int("rejected", len(res.Summary.Rejected)),
		zap.Int("failed", len(res.Summary.Failed)))
	common.RespondJSON(w, http.StatusOK, res.Summary)
}

// Undo handles POST /changes/undo
func (h *ChangeHandler) Undo(w http.ResponseWriter, r *http.Request) {
	var req UndoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if req.ChangeID != "" {
		// Scope check before the undo touches the log.
		found, err := h.queries.Ask(r.Context(), queries.GetChangeQuery{ChangeID: req.ChangeID})
		if err != nil {
			h.errors.Handle(w, r, err)
			return
		}
		if rec, ok := found.(*entities.ChangeRecord); ok && !allowed(r, rec.WorkspaceID) {
			h.errors.Handle(w, r, pkgerrors.NewChangeNotFound(rec.ID))
			return
		}
	}

	result, err := h.commands.Send(r.Context(), commands.UndoChangeCommand{ChangeID: req.ChangeID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, result)
}

func (h *ChangeHandler) workspace(w http.ResponseWriter, r *http.Request) (string, bool) {
	return workspaceParam(w, r, h.errors)
}

func workspaceParam(w http.ResponseWriter, r *http.Request, errs *pkgerrors.ErrorHandler) (string, bool) {
	workspaceID := chi.URLParam(r, "workspaceID")
	if !allowed(r, workspaceID) {
		errs.Handle(w, r, pkgerrors.NewUnauthorizedError("workspace not granted by token"))
		return "", false
	}
	return workspaceID, true
}

// allowed is true when auth is off or the token grants workspaceID
func allowed(r *http.Request, workspaceID string) bool {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	return !ok || claims.CanAccess(workspaceID)
}
