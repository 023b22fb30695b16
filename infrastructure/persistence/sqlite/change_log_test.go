package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRepo(t *testing.T) *ChangeLogRepository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "changes.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestChangeLogRepository(t *testing.T) {
	persistencetest.RunChangeLogContract(t, func(t *testing.T) ports.ChangeLogRepository {
		return newTestRepo(t)
	})
}

func TestReopenKeepsLog(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "changes.db")

	repo, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	rec, err := repo.Append(ctx, persistencetest.NodeDraft("ws", "n1", "P1"))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	reopened, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Version, got.Version)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	next, err := reopened.Append(ctx, persistencetest.NodeDraft("ws", "n2", "P1"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.Version)
}

func TestInMemoryDatabase(t *testing.T) {
	repo, err := Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()

	assert.NoError(t, repo.Ping(context.Background()))
}
