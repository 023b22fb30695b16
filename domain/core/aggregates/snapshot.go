package aggregates

import (
	"fmt"
	"sort"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
)

// Snapshot is the materialized node/edge set of one workspace. It is derived
// by folding applied change records and is the only mutable graph state.
type Snapshot struct {
	workspaceID string
	nodes       map[string]entities.Node
	edges       map[string]entities.Edge
	version     int64
	sequence    int64
}

// NewSnapshot creates an empty snapshot
func NewSnapshot(workspaceID string) *Snapshot {
	return &Snapshot{
		workspaceID: workspaceID,
		nodes:       make(map[string]entities.Node),
		edges:       make(map[string]entities.Edge),
	}
}

// ReplaySnapshot folds every record that was ever applied, in application order
func ReplaySnapshot(workspaceID string, records []*entities.ChangeRecord) (*Snapshot, error) {
	applied := make([]*entities.ChangeRecord, 0, len(records))
	for _, rec := range records {
		if rec.Status.WasApplied() {
			applied = append(applied, rec)
		}
	}
	SortByApplication(applied)

	s := NewSnapshot(workspaceID)
	for _, rec := range applied {
		if err := s.Apply(rec); err != nil {
			return nil, fmt.Errorf("replay of change %s (version %d) failed: %w", rec.ID, rec.Version, err)
		}
	}
	return s, nil
}

// SortByApplication orders records by applied sequence, falling back to version
func SortByApplication(records []*entities.ChangeRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.AppliedSeq != b.AppliedSeq {
			return a.AppliedSeq < b.AppliedSeq
		}
		return a.Version < b.Version
	})
}

// WorkspaceID returns the owning workspace
func (s *Snapshot) WorkspaceID() string {
	return s.workspaceID
}

// Version returns the highest record version folded into the snapshot
func (s *Snapshot) Version() int64 {
	return s.version
}

// Sequence returns how many records have been applied
func (s *Snapshot) Sequence() int64 {
	return s.sequence
}

// NodeCount returns the number of nodes
func (s *Snapshot) NodeCount() int {
	return len(s.nodes)
}

// EdgeCount returns the number of edges
func (s *Snapshot) EdgeCount() int {
	return len(s.edges)
}

// Node returns a copy of a node
func (s *Snapshot) Node(id string) (entities.Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return entities.Node{}, false
	}
	return n.Clone(), true
}

// Edge returns a copy of an edge
func (s *Snapshot) Edge(id string) (entities.Edge, bool) {
	e, ok := s.edges[id]
	if !ok {
		return entities.Edge{}, false
	}
	return e.Clone(), true
}

// Nodes returns copies of all nodes sorted by id
func (s *Snapshot) Nodes() []entities.Node {
	out := make([]entities.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns copies of all edges sorted by id
func (s *Snapshot) Edges() []entities.Edge {
	out := make([]entities.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IncidentEdges returns the edges touching nodeID sorted by id
func (s *Snapshot) IncidentEdges(nodeID string) []entities.Edge {
	var out []entities.Edge
	for _, e := range s.edges {
		if e.Touches(nodeID) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CurrentState returns the state fragment a proposer should send as before_state
func (s *Snapshot) CurrentState(targetType valueobjects.TargetType, id string) (*entities.State, bool) {
	switch targetType {
	case valueobjects.TargetNode:
		if n, ok := s.nodes[id]; ok {
			return n.State(), true
		}
	case valueobjects.TargetEdge:
		if e, ok := s.edges[id]; ok {
			return e.State(), true
		}
	}
	return nil, false
}

// Clone returns an independent copy
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		workspaceID: s.workspaceID,
		nodes:       make(map[string]entities.Node, len(s.nodes)),
		edges:       make(map[string]entities.Edge, len(s.edges)),
		version:     s.version,
		sequence:    s.sequence,
	}
	for id, n := range s.nodes {
		out.nodes[id] = n.Clone()
	}
	for id, e := range s.edges {
		out.edges[id] = e.Clone()
	}
	return out
}

// Apply folds one record into the snapshot. It validates first, so a failed
// apply leaves the snapshot untouched.
func (s *Snapshot) Apply(rec *entities.ChangeRecord) error {
	mutate, err := s.plan(rec)
	if err != nil {
		return err
	}
	mutate()
	s.sequence++
	if rec.Version > s.version {
		s.version = rec.Version
	}
	return nil
}

// Check reports whether rec would apply cleanly
func (s *Snapshot) Check(rec *entities.ChangeRecord) error {
	_, err := s.plan(rec)
	return err
}

// plan validates rec against the current state and returns the mutation to run
func (s *Snapshot) plan(rec *entities.ChangeRecord) (func(), error) {
	if rec.WorkspaceID != "" && rec.WorkspaceID != s.workspaceID {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("change %s belongs to workspace %s", rec.ID, rec.WorkspaceID))
	}
	id := rec.TargetID

	switch rec.Operation {
	case valueobjects.OpCreateNode:
		if _, exists := s.nodes[id]; exists {
			return nil, pkgerrors.NewStaleStateConflict(id, "node already exists")
		}
		n, err := entities.NodeFromState(id, rec.AfterState)
		if err != nil {
			return nil, err
		}
		return func() { s.nodes[id] = n }, nil

	case valueobjects.OpUpdateNode:
		cur, exists := s.nodes[id]
		if !exists {
			return nil, pkgerrors.NewStaleStateConflict(id, "node does not exist")
		}
		if !rec.BeforeState.MatchesNode(cur) {
			return nil, pkgerrors.NewStaleStateConflict(id, "node changed since the change was proposed")
		}
		n, err := entities.NodeFromState(id, rec.AfterState)
		if err != nil {
			return nil, err
		}
		n.Overlay = cur.Overlay.Clone()
		return func() { s.nodes[id] = n }, nil

	case valueobjects.OpDeleteNode:
		cur, exists := s.nodes[id]
		if !exists {
			return nil, pkgerrors.NewStaleStateConflict(id, "node does not exist")
		}
		if !rec.BeforeState.MatchesNode(cur) {
			return nil, pkgerrors.NewStaleStateConflict(id, "node changed since the change was proposed")
		}
		if incident := s.IncidentEdges(id); len(incident) > 0 {
			return nil, pkgerrors.NewDanglingEdgeReference(incident[0].ID, id)
		}
		return func() { delete(s.nodes, id) }, nil

	case valueobjects.OpCreateEdge:
		if _, exists := s.edges[id]; exists {
			return nil, pkgerrors.NewStaleStateConflict(id, "edge already exists")
		}
		e, err := entities.EdgeFromState(id, rec.AfterState)
		if err != nil {
			return nil, err
		}
		for _, endpoint := range []string{e.SourceID, e.TargetID} {
			if _, ok := s.nodes[endpoint]; !ok {
				return nil, pkgerrors.NewDanglingEdgeReference(id, endpoint)
			}
		}
		return func() { s.edges[id] = e }, nil

	case valueobjects.OpDeleteEdge:
		cur, exists := s.edges[id]
		if !exists {
			return nil, pkgerrors.NewStaleStateConflict(id, "edge does not exist")
		}
		if !rec.BeforeState.MatchesEdge(cur) {
			return nil, pkgerrors.NewStaleStateConflict(id, "edge changed since the change was proposed")
		}
		return func() { delete(s.edges, id) }, nil

	case valueobjects.OpUpdateOverlay:
		return s.planOverlay(rec)
	}

	return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown operation: %s", rec.Operation))
}

func (s *Snapshot) planOverlay(rec *entities.ChangeRecord) (func(), error) {
	id := rec.TargetID
	next := entities.Overlay{}
	if rec.AfterState != nil && rec.AfterState.Overlay != nil {
		next = rec.AfterState.Overlay.Clone()
	}

	switch rec.TargetType {
	case valueobjects.TargetNode:
		cur, exists := s.nodes[id]
		if !exists {
			return nil, pkgerrors.NewStaleStateConflict(id, "node does not exist")
		}
		if !rec.BeforeState.MatchesOverlay(cur.Overlay) {
			return nil, pkgerrors.NewStaleStateConflict(id, "overlay changed since the change was proposed")
		}
		return func() { s.nodes[id] = cur.WithOverlay(next) }, nil

	case valueobjects.TargetEdge:
		cur, exists := s.edges[id]
		if !exists {
			return nil, pkgerrors.NewStaleStateConflict(id, "edge does not exist")
		}
		if !rec.BeforeState.MatchesOverlay(cur.Overlay) {
			return nil, pkgerrors.NewStaleStateConflict(id, "overlay changed since the change was proposed")
		}
		return func() { s.edges[id] = cur.WithOverlay(next) }, nil
	}

	return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown target type: %s", rec.TargetType))
}

// Validate checks that every edge references existing nodes
func (s *Snapshot) Validate() error {
	for id, e := range s.edges {
		for _, endpoint := range []string{e.SourceID, e.TargetID} {
			if _, ok := s.nodes[endpoint]; !ok {
				return pkgerrors.NewDanglingEdgeReference(id, endpoint)
			}
		}
	}
	return nil
}
