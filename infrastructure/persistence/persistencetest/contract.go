// Package persistencetest holds the behavioural contract every
// ChangeLogRepository adapter must satisfy.
package persistencetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty repository
type Factory func(t *testing.T) ports.ChangeLogRepository

// NodeDraft builds a create_node draft for tests
func NodeDraft(workspaceID, nodeID, project string) entities.ChangeDraft {
	return entities.ChangeDraft{
		WorkspaceID: workspaceID,
		Operation:   valueobjects.OpCreateNode,
		TargetType:  valueobjects.TargetNode,
		TargetID:    nodeID,
		Actor:       valueobjects.ActorAutomatedAgent,
		AfterState: &entities.State{
			Label:    "node " + nodeID,
			Type:     string(valueobjects.NodeTypeIntent),
			Status:   string(valueobjects.NodeStatusAccepted),
			Metadata: &entities.Metadata{ProjectID: project, PlaybookCodes: []string{"pb-1"}},
			Reason:   "proposed in test",
		},
	}
}

// RunChangeLogContract runs the shared repository behaviour tests
func RunChangeLogContract(t *testing.T, newRepo Factory) {
	ctx := context.Background()

	t.Run("append assigns consecutive versions per workspace", func(t *testing.T) {
		repo := newRepo(t)

		var versions []int64
		for i := 0; i < 3; i++ {
			rec, err := repo.Append(ctx, NodeDraft("ws-a", fmt.Sprintf("n%d", i), "P1"))
			require.NoError(t, err)
			assert.Equal(t, valueobjects.ChangePending, rec.Status)
			assert.NotEmpty(t, rec.ID)
			assert.False(t, rec.CreatedAt.IsZero())
			versions = append(versions, rec.Version)
		}
		other, err := repo.Append(ctx, NodeDraft("ws-b", "x", ""))
		require.NoError(t, err)

		assert.Equal(t, []int64{1, 2, 3}, versions)
		assert.Equal(t, int64(1), other.Version)

		head, err := repo.LatestVersion(ctx, "ws-a")
		require.NoError(t, err)
		assert.Equal(t, int64(3), head)
	})

	t.Run("get round trips states", func(t *testing.T) {
		repo := newRepo(t)
		rec, err := repo.Append(ctx, NodeDraft("ws", "n1", "P1"))
		require.NoError(t, err)

		got, err := repo.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, "ws", got.WorkspaceID)
		assert.Nil(t, got.BeforeState)
		require.NotNil(t, got.AfterState)
		assert.Equal(t, "proposed in test", got.AfterState.Reason)
		assert.Equal(t, []string{"pb-1"}, got.AfterState.Metadata.PlaybookCodes)
		assert.Nil(t, got.AppliedAt)

		_, err = repo.Get(ctx, "does-not-exist")
		assert.True(t, errors.Is(err, pkgerrors.ErrChangeNotFound))
	})

	t.Run("update is conditional on status", func(t *testing.T) {
		repo := newRepo(t)
		rec, err := repo.Append(ctx, NodeDraft("ws", "n1", ""))
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Millisecond)
		applied := rec.Clone()
		require.NoError(t, applied.MarkApplied(1, now))
		require.NoError(t, repo.Update(ctx, applied, valueobjects.ChangePending))

		rejected := rec.Clone()
		require.NoError(t, rejected.MarkRejected("too late", now))
		err = repo.Update(ctx, rejected, valueobjects.ChangePending)
		assert.True(t, errors.Is(err, pkgerrors.ErrAlreadyResolved))

		got, err := repo.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, valueobjects.ChangeApplied, got.Status)
		assert.Equal(t, int64(1), got.AppliedSeq)
		require.NotNil(t, got.AppliedAt)
		assert.True(t, got.AppliedAt.Equal(now))
	})

	t.Run("pending is oldest first and filtered", func(t *testing.T) {
		repo := newRepo(t)
		a, _ := repo.Append(ctx, NodeDraft("ws", "a", "P1"))
		b, _ := repo.Append(ctx, NodeDraft("ws", "b", "P2"))
		c, _ := repo.Append(ctx, NodeDraft("ws", "c", "P1"))

		done := b.Clone()
		require.NoError(t, done.MarkRejected("no", time.Now()))
		require.NoError(t, repo.Update(ctx, done, valueobjects.ChangePending))

		pending, err := repo.ListPending(ctx, "ws", ports.PendingFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{a.ID, c.ID}, ids(pending))

		p2, err := repo.ListPending(ctx, "ws", ports.PendingFilter{ProjectID: "P2"})
		require.NoError(t, err)
		assert.Empty(t, p2)

		none, err := repo.ListPending(ctx, "empty-ws", ports.PendingFilter{})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("history pages newest first", func(t *testing.T) {
		repo := newRepo(t)
		for i := 0; i < 5; i++ {
			_, err := repo.Append(ctx, NodeDraft("ws", fmt.Sprintf("n%d", i), ""))
			require.NoError(t, err)
		}

		first, err := repo.ListHistory(ctx, "ws", 2, 0)
		require.NoError(t, err)
		assert.Equal(t, []int64{5, 4}, versionsOf(first.Entries))
		assert.Equal(t, int64(4), first.NextCursor)

		second, err := repo.ListHistory(ctx, "ws", 2, first.NextCursor)
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 2}, versionsOf(second.Entries))

		last, err := repo.ListHistory(ctx, "ws", 2, second.NextCursor)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, versionsOf(last.Entries))
		assert.Equal(t, int64(0), last.NextCursor)
	})

	t.Run("applied lists application order", func(t *testing.T) {
		repo := newRepo(t)
		a, _ := repo.Append(ctx, NodeDraft("ws", "a", ""))
		b, _ := repo.Append(ctx, NodeDraft("ws", "b", ""))
		_, _ = repo.Append(ctx, NodeDraft("ws", "c", ""))

		bApplied := b.Clone()
		require.NoError(t, bApplied.MarkApplied(1, time.Now()))
		require.NoError(t, repo.Update(ctx, bApplied, valueobjects.ChangePending))
		aApplied := a.Clone()
		require.NoError(t, aApplied.MarkApplied(2, time.Now()))
		require.NoError(t, repo.Update(ctx, aApplied, valueobjects.ChangePending))
		require.NoError(t, aApplied.MarkUndone("inverse-id"))
		require.NoError(t, repo.Update(ctx, aApplied, valueobjects.ChangeApplied))

		applied, err := repo.ListApplied(ctx, "ws")
		require.NoError(t, err)
		assert.Equal(t, []string{b.ID, a.ID}, ids(applied))
		assert.Equal(t, valueobjects.ChangeUndone, applied[1].Status)
		assert.Equal(t, "inverse-id", applied[1].UndoneBy)
	})

	t.Run("version monotonicity property", func(t *testing.T) {
		parameters := gopter.DefaultTestParameters()
		parameters.MinSuccessfulTests = 20
		properties := gopter.NewProperties(parameters)
		repo := newRepo(t)
		run := 0

		properties.Property("each append is previous max plus one regardless of outcome", prop.ForAll(
			func(outcomes []bool) bool {
				run++
				ws := fmt.Sprintf("prop-%d", run)
				var prev int64
				for i, approve := range outcomes {
					rec, err := repo.Append(ctx, NodeDraft(ws, fmt.Sprintf("n%d", i), ""))
					if err != nil || rec.Version != prev+1 {
						return false
					}
					prev = rec.Version
					next := rec.Clone()
					if approve {
						err = next.MarkApplied(int64(i+1), time.Now())
					} else {
						err = next.MarkRejected("rejected in property", time.Now())
					}
					if err != nil || repo.Update(ctx, next, valueobjects.ChangePending) != nil {
						return false
					}
				}
				head, err := repo.LatestVersion(ctx, ws)
				return err == nil && head == int64(len(outcomes))
			},
			gen.SliceOfN(8, gen.Bool()),
		))

		properties.TestingRun(t)
	})
}

func ids(recs []*entities.ChangeRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func versionsOf(recs []*entities.ChangeRecord) []int64 {
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Version)
	}
	return out
}
