package entities

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeState(label string) *State {
	return &State{Label: label, Type: string(valueobjects.NodeTypeIntent), Metadata: &Metadata{ProjectID: "P1"}}
}

func TestChangeDraftValidate(t *testing.T) {
	base := ChangeDraft{
		WorkspaceID: "ws-1",
		Operation:   valueobjects.OpCreateNode,
		TargetType:  valueobjects.TargetNode,
		TargetID:    "n1",
		Actor:       valueobjects.ActorAutomatedAgent,
		AfterState:  nodeState("Plan trip"),
	}

	tests := []struct {
		name    string
		mutate  func(d *ChangeDraft)
		wantErr bool
	}{
		{"valid create node", func(d *ChangeDraft) {}, false},
		{"missing workspace", func(d *ChangeDraft) { d.WorkspaceID = "" }, true},
		{"unknown operation", func(d *ChangeDraft) { d.Operation = "merge_node" }, true},
		{"unknown actor", func(d *ChangeDraft) { d.Actor = "robot" }, true},
		{"target type mismatch", func(d *ChangeDraft) { d.TargetType = valueobjects.TargetEdge }, true},
		{"create with before", func(d *ChangeDraft) { d.BeforeState = nodeState("x") }, true},
		{"create without after", func(d *ChangeDraft) { d.AfterState = nil }, true},
		{"unknown node type", func(d *ChangeDraft) { d.AfterState.Type = "note" }, true},
		{"delete without before", func(d *ChangeDraft) {
			d.Operation = valueobjects.OpDeleteNode
			d.AfterState = nil
		}, true},
		{"delete with after", func(d *ChangeDraft) {
			d.Operation = valueobjects.OpDeleteNode
			d.BeforeState = nodeState("x")
		}, true},
		{"edge without endpoints", func(d *ChangeDraft) {
			d.Operation = valueobjects.OpCreateEdge
			d.TargetType = valueobjects.TargetEdge
			d.AfterState = &State{Type: string(valueobjects.EdgeTypeCausal)}
		}, true},
		{"valid edge", func(d *ChangeDraft) {
			d.Operation = valueobjects.OpCreateEdge
			d.TargetType = valueobjects.TargetEdge
			d.AfterState = &State{Type: string(valueobjects.EdgeTypeCausal), SourceID: "a", TargetID: "b"}
		}, false},
		{"update node with overlay", func(d *ChangeDraft) {
			d.Operation = valueobjects.OpUpdateNode
			d.BeforeState = nodeState("Plan trip")
			d.AfterState.Overlay = &Overlay{Color: "#ff0000"}
		}, true},
		{"valid update node", func(d *ChangeDraft) {
			d.Operation = valueobjects.OpUpdateNode
			d.BeforeState = nodeState("Plan trip")
			d.BeforeState.Overlay = &Overlay{Color: "#ff0000"}
		}, false},
		{"overlay on edge", func(d *ChangeDraft) {
			d.Operation = valueobjects.OpUpdateOverlay
			d.TargetType = valueobjects.TargetEdge
			d.BeforeState = &State{}
			d.AfterState = &State{Overlay: &Overlay{Color: "#ff0000"}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base
			d.AfterState = base.AfterState.Clone()
			tt.mutate(&d)

			err := d.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestChangeDraftNormalizeDefaultsStatus(t *testing.T) {
	d := ChangeDraft{
		WorkspaceID: "ws",
		Operation:   valueobjects.OpUpdateNode,
		TargetType:  valueobjects.TargetNode,
		TargetID:    "n1",
		Actor:       valueobjects.ActorUser,
		BeforeState: nodeState("a"),
		AfterState:  nodeState("b"),
	}

	n := d.Normalize()

	assert.Equal(t, "accepted", n.BeforeState.Status)
	assert.Equal(t, "accepted", n.AfterState.Status)
	assert.Equal(t, "", d.AfterState.Status, "normalize must not touch the input")
}

func TestChangeRecordLifecycle(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := NewChangeRecord("c1", 1, ChangeDraft{
		WorkspaceID: "ws", Operation: valueobjects.OpCreateNode, TargetType: valueobjects.TargetNode,
		TargetID: "n1", Actor: valueobjects.ActorUser, AfterState: nodeState("a"),
	}, now)

	require.True(t, rec.IsPending())
	require.NoError(t, rec.MarkApplied(1, now))
	assert.Equal(t, valueobjects.ChangeApplied, rec.Status)
	assert.Equal(t, int64(1), rec.AppliedSeq)
	require.NotNil(t, rec.AppliedAt)

	err := rec.MarkRejected("late", now)
	assert.True(t, errors.Is(err, pkgerrors.ErrAlreadyResolved))

	require.NoError(t, rec.MarkUndone("c2"))
	assert.Equal(t, "c2", rec.UndoneBy)

	err = rec.MarkApplied(2, now)
	assert.True(t, errors.Is(err, pkgerrors.ErrAlreadyResolved))
	err = rec.MarkUndone("c3")
	assert.True(t, errors.Is(err, pkgerrors.ErrAlreadyResolved))
}

func TestChangeRecordCloneIsDeep(t *testing.T) {
	rec := NewChangeRecord("c1", 1, ChangeDraft{
		WorkspaceID: "ws", Operation: valueobjects.OpCreateNode, TargetType: valueobjects.TargetNode,
		TargetID: "n1", Actor: valueobjects.ActorUser, AfterState: nodeState("a"),
	}, time.Now())

	cp := rec.Clone()
	cp.AfterState.Label = "changed"
	cp.AfterState.Metadata.ProjectID = "P2"

	assert.Equal(t, "a", rec.AfterState.Label)
	assert.Equal(t, "P1", rec.AfterState.Metadata.ProjectID)
}

func TestStateMatching(t *testing.T) {
	n, err := NodeFromState("n1", &State{Label: "Plan", Type: "intent", Metadata: &Metadata{ProjectID: "P1", PlaybookCodes: []string{}}})
	require.NoError(t, err)
	assert.Equal(t, valueobjects.NodeStatusAccepted, n.Status)

	s := n.State()
	s.Reason = "agent thought so"
	assert.True(t, s.MatchesNode(n))

	s.Metadata.ThreadID = "t-9"
	assert.False(t, s.MatchesNode(n))

	var nilState *State
	assert.False(t, nilState.MatchesNode(n))

	e := Edge{ID: "e1", SourceID: "a", TargetID: "b", Type: valueobjects.EdgeTypeSpawns}
	assert.True(t, e.State().MatchesEdge(e))
	assert.True(t, (&State{}).MatchesOverlay(Overlay{}))

	pin := valueobjects.MustPosition(10, 20)
	assert.False(t, (&State{}).MatchesOverlay(Overlay{Pinned: &pin}))
}

func TestMetadataEqualTreatsEmptyAsNil(t *testing.T) {
	a := Metadata{Extra: map[string]string{}, PlaybookCodes: []string{}}
	assert.True(t, a.Equal(Metadata{}))

	b := Metadata{ExecutionResult: &ExecutionResult{Status: "ok"}}
	assert.False(t, b.Equal(Metadata{}))
	assert.True(t, b.Equal(b.Clone()))
}

func TestStateJSONShape(t *testing.T) {
	s := &State{Label: "Draft outline", Type: "artifact", Reason: "summarized chat"}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"label":"Draft outline","type":"artifact","reason":"summarized chat"}`, string(data))
}
