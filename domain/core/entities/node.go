package entities

import (
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
)

// Node is an immutable value snapshot of a graph node at one version.
// Mutation produces a new Node; snapshots hand out copies.
type Node struct {
	ID       string                  `json:"id"`
	Type     valueobjects.NodeType   `json:"type"`
	Label    string                  `json:"label"`
	Status   valueobjects.NodeStatus `json:"status"`
	Metadata Metadata                `json:"metadata"`
	Overlay  Overlay                 `json:"overlay"`
}

// NodeFromState builds a node from a change's after_state
func NodeFromState(id string, s *State) (Node, error) {
	if s == nil {
		return Node{}, pkgerrors.NewValidationError("node state is required")
	}
	nodeType := valueobjects.NodeType(s.Type)
	if !nodeType.IsValid() {
		return Node{}, pkgerrors.NewValidationError("unknown node type: " + s.Type)
	}
	status := valueobjects.NodeStatus(s.Status)
	if status == "" {
		status = valueobjects.NodeStatusAccepted
	}
	if !status.IsValid() {
		return Node{}, pkgerrors.NewValidationError("unknown node status: " + s.Status)
	}
	n := Node{
		ID:       id,
		Type:     nodeType,
		Label:    s.Label,
		Status:   status,
		Metadata: s.metadata().Clone(),
		Overlay:  s.overlay().Clone(),
	}
	return n, nil
}

// State returns the node as a change-record fragment
func (n Node) State() *State {
	md := n.Metadata.Clone()
	s := &State{
		Label:    n.Label,
		Type:     string(n.Type),
		Status:   string(n.Status),
		Metadata: &md,
	}
	if !n.Overlay.IsZero() {
		ov := n.Overlay.Clone()
		s.Overlay = &ov
	}
	return s
}

// ProjectID returns the project grouping key, empty when ungrouped
func (n Node) ProjectID() string {
	return n.Metadata.ProjectID
}

// Clone returns a deep copy
func (n Node) Clone() Node {
	out := n
	out.Metadata = n.Metadata.Clone()
	out.Overlay = n.Overlay.Clone()
	return out
}

// WithOverlay returns a copy carrying the given overlay
func (n Node) WithOverlay(o Overlay) Node {
	out := n.Clone()
	out.Overlay = o.Clone()
	return out
}
