package handlers

import (
	"net/http"
	"strconv"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/queries"
	querybus "github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/queries/bus"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/common"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
)

// GraphHandler serves the projected graph and its layout
type GraphHandler struct {
	queries *querybus.QueryBus
	errors  *pkgerrors.ErrorHandler
}

// NewGraphHandler creates a graph handler
func NewGraphHandler(queries *querybus.QueryBus, errs *pkgerrors.ErrorHandler) *GraphHandler {
	return &GraphHandler{queries: queries, errors: errs}
}

// Graph handles GET /workspaces/{workspaceID}/graph
func (h *GraphHandler) Graph(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := workspaceParam(w, r, h.errors)
	if !ok {
		return
	}
	includeProposed := false
	if raw := r.URL.Query().Get("include_proposed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("include_proposed must be a boolean"))
			return
		}
		includeProposed = v
	}

	result, err := h.queries.Ask(r.Context(), queries.GetGraphQuery{WorkspaceID: workspaceID, IncludeProposed: includeProposed})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// Layout handles GET /workspaces/{workspaceID}/layout
func (h *GraphHandler) Layout(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := workspaceParam(w, r, h.errors)
	if !ok {
		return
	}
	result, err := h.queries.Ask(r.Context(), queries.GetLayoutQuery{WorkspaceID: workspaceID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}
