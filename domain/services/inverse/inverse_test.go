package inverse

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/aggregates"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func applied(t *testing.T, s *aggregates.Snapshot, version int64, d entities.ChangeDraft) *entities.ChangeRecord {
	t.Helper()
	rec := entities.NewChangeRecord(fmt.Sprintf("c%d", version), version, d.Normalize(), time.Now())
	require.NoError(t, s.Apply(rec))
	require.NoError(t, rec.MarkApplied(s.Sequence(), time.Now()))
	return rec
}

func TestSynthesizeRequiresApplied(t *testing.T) {
	rec := entities.NewChangeRecord("c1", 1, entities.ChangeDraft{WorkspaceID: "ws", Operation: valueobjects.OpCreateNode}, time.Now())
	_, err := Synthesize(rec)
	assert.True(t, errors.Is(err, pkgerrors.ErrAlreadyResolved))
}

func TestInverseLaws(t *testing.T) {
	s := aggregates.NewSnapshot("ws")

	create := applied(t, s, 1, entities.ChangeDraft{
		WorkspaceID: "ws", Operation: valueobjects.OpCreateNode, TargetType: valueobjects.TargetNode,
		TargetID: "n1", Actor: valueobjects.ActorAutomatedAgent,
		AfterState: &entities.State{Label: "Book flights", Type: "intent", Reason: "user asked"},
	})
	before, _ := s.CurrentState(valueobjects.TargetNode, "n1")
	update := applied(t, s, 2, entities.ChangeDraft{
		WorkspaceID: "ws", Operation: valueobjects.OpUpdateNode, TargetType: valueobjects.TargetNode,
		TargetID: "n1", Actor: valueobjects.ActorUser, BeforeState: before,
		AfterState: &entities.State{Label: "Book cheap flights", Type: "intent"},
	})

	t.Run("update inverse restores before state", func(t *testing.T) {
		d, err := Synthesize(update)
		require.NoError(t, err)
		assert.Equal(t, valueobjects.OpUpdateNode, d.Operation)
		assert.Equal(t, valueobjects.ActorSystem, d.Actor)
		assert.Equal(t, update.ID, d.InverseOf)

		c := s.Clone()
		require.NoError(t, c.Apply(entities.NewChangeRecord("inv", 3, d, time.Now())))
		n, _ := c.Node("n1")
		assert.True(t, before.MatchesNode(n))
	})

	t.Run("create inverse removes node", func(t *testing.T) {
		d, err := Synthesize(create)
		require.NoError(t, err)
		assert.Equal(t, valueobjects.OpDeleteNode, d.Operation)
		assert.Nil(t, d.AfterState)
		assert.Empty(t, d.BeforeState.Reason)

		// the node was updated since, so the inverse is stale
		err = s.Clone().Apply(entities.NewChangeRecord("inv", 3, d, time.Now()))
		assert.True(t, errors.Is(err, pkgerrors.ErrStaleStateConflict))
	})
}

func TestSynthesizeDeleteEdge(t *testing.T) {
	rec := &entities.ChangeRecord{
		ID: "c9", WorkspaceID: "ws", Operation: valueobjects.OpDeleteEdge, TargetType: valueobjects.TargetEdge,
		TargetID: "e1", Status: valueobjects.ChangeApplied,
		BeforeState: &entities.State{Type: "causal", SourceID: "a", TargetID: "b"},
	}

	d, err := Synthesize(rec)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.OpCreateEdge, d.Operation)
	assert.Nil(t, d.BeforeState)
	assert.Equal(t, "a", d.AfterState.SourceID)
	assert.Equal(t, "undo of change c9", d.AfterState.Reason)
	assert.NoError(t, d.Validate())
}

func TestSynthesizeUpdateNodeLeavesOverlayAlone(t *testing.T) {
	s := aggregates.NewSnapshot("ws")
	applied(t, s, 1, entities.ChangeDraft{
		WorkspaceID: "ws", Operation: valueobjects.OpCreateNode, TargetType: valueobjects.TargetNode,
		TargetID: "n1", Actor: valueobjects.ActorUser,
		AfterState: &entities.State{Label: "Draft", Type: "artifact"},
	})
	applied(t, s, 2, entities.ChangeDraft{
		WorkspaceID: "ws", Operation: valueobjects.OpUpdateOverlay, TargetType: valueobjects.TargetNode,
		TargetID: "n1", Actor: valueobjects.ActorUser,
		BeforeState: &entities.State{}, AfterState: &entities.State{Overlay: &entities.Overlay{Color: "#123456"}},
	})
	before, _ := s.CurrentState(valueobjects.TargetNode, "n1")
	require.NotNil(t, before.Overlay)
	update := applied(t, s, 3, entities.ChangeDraft{
		WorkspaceID: "ws", Operation: valueobjects.OpUpdateNode, TargetType: valueobjects.TargetNode,
		TargetID: "n1", Actor: valueobjects.ActorUser, BeforeState: before,
		AfterState: &entities.State{Label: "Final", Type: "artifact"},
	})

	d, err := Synthesize(update)
	require.NoError(t, err)
	assert.Nil(t, d.AfterState.Overlay)
	require.NoError(t, d.Validate())

	require.NoError(t, s.Apply(entities.NewChangeRecord("inv", 4, d, time.Now())))
	n, _ := s.Node("n1")
	assert.Equal(t, "Draft", n.Label)
	assert.Equal(t, "#123456", n.Overlay.Color)
}
