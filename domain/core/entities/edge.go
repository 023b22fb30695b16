package entities

import (
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
)

// Edge is a directed relation between two nodes
type Edge struct {
	ID       string                `json:"id"`
	SourceID string                `json:"source_id"`
	TargetID string                `json:"target_id"`
	Type     valueobjects.EdgeType `json:"type"`
	Label    string                `json:"label,omitempty"`
	Overlay  Overlay               `json:"overlay"`
}

// EdgeFromState builds an edge from a change's after_state
func EdgeFromState(id string, s *State) (Edge, error) {
	if s == nil {
		return Edge{}, pkgerrors.NewValidationError("edge state is required")
	}
	edgeType := valueobjects.EdgeType(s.Type)
	if !edgeType.IsValid() {
		return Edge{}, pkgerrors.NewValidationError("unknown edge type: " + s.Type)
	}
	if s.SourceID == "" || s.TargetID == "" {
		return Edge{}, pkgerrors.NewValidationError("edge requires source_id and target_id")
	}
	return Edge{
		ID:       id,
		SourceID: s.SourceID,
		TargetID: s.TargetID,
		Type:     edgeType,
		Label:    s.Label,
		Overlay:  s.overlay().Clone(),
	}, nil
}

// State returns the edge as a change-record fragment
func (e Edge) State() *State {
	s := &State{
		Label:    e.Label,
		Type:     string(e.Type),
		SourceID: e.SourceID,
		TargetID: e.TargetID,
	}
	if !e.Overlay.IsZero() {
		ov := e.Overlay.Clone()
		s.Overlay = &ov
	}
	return s
}

// Touches reports whether the edge has nodeID as an endpoint
func (e Edge) Touches(nodeID string) bool {
	return e.SourceID == nodeID || e.TargetID == nodeID
}

// Clone returns a deep copy
func (e Edge) Clone() Edge {
	out := e
	out.Overlay = e.Overlay.Clone()
	return out
}

// WithOverlay returns a copy carrying the given overlay
func (e Edge) WithOverlay(o Overlay) Edge {
	out := e.Clone()
	out.Overlay = o.Clone()
	return out
}
