package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/commands"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/projections"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/queries"
	domainconfig "github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/config"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/config"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/persistence/persistencetest"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(backend string, t *testing.T) *config.Config {
	return &config.Config{
		Environment:      "test",
		Backend:          backend,
		SQLitePath:       filepath.Join(t.TempDir(), "changes.db"),
		AWSRegion:        "us-west-2",
		Publisher:        config.PublisherLogging,
		LogLevel:         "error",
		SnapshotCache:    true,
		EnableMetrics:    true,
		MetricsNamespace: "test",
		Domain:           domainconfig.DefaultDomainConfig(),
	}
}

func TestInitializeContainerEndToEnd(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	ctx := context.Background()

	c, cleanup, err := InitializeContainer(ctx, testConfig(config.BackendSQLite, t))
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, c.Ready(ctx))
	assert.Nil(t, c.Watcher)

	out, err := c.CommandBus.Send(ctx, commands.ProposeChangeCommand{Draft: persistencetest.NodeDraft("ws", "n1", "P")})
	require.NoError(t, err)
	rec := out.(*entities.ChangeRecord)
	assert.Equal(t, int64(1), rec.Version)

	out, err = c.QueryBus.Ask(ctx, queries.GetGraphQuery{WorkspaceID: "ws", IncludeProposed: true})
	require.NoError(t, err)
	view := out.(*projections.GraphView)
	require.Len(t, view.Nodes, 1)
	assert.True(t, view.Nodes[0].Ghost)
	assert.Zero(t, c.CloudWatch.Pending())
}

func TestProvideStorageBackends(t *testing.T) {
	logger := zap.NewNop()

	s, cleanup, err := ProvideStorage(testConfig(config.BackendMemory, t), aws.Config{}, nil, logger)
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, s.Ping)
	assert.NotNil(t, ProvideRepository(s))

	s, cleanup, err = ProvideStorage(testConfig(config.BackendSQLite, t), aws.Config{}, nil, logger)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	cleanup()

	_, _, err = ProvideStorage(testConfig("postgres", t), aws.Config{}, nil, logger)
	assert.Error(t, err)
}

func TestProvideLoggerRejectsBadLevel(t *testing.T) {
	cfg := testConfig(config.BackendMemory, t)
	cfg.LogLevel = "loud"
	_, err := ProvideLogger(cfg)
	assert.Error(t, err)
}
