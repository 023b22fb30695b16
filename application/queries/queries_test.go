package queries

import (
	"context"
	"errors"
	"testing"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/commands"
	cmdbus "github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/commands/bus"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/projections"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/queries/bus"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/services"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/config"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/messaging/logging"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/observability"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/persistence/memory"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/persistence/persistencetest"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const ws = "ws-cqrs"

type app struct {
	commands *cmdbus.CommandBus
	queries  *bus.QueryBus
}

func newApp(t *testing.T) *app {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NopRecorder{}
	cfg := config.DefaultDomainConfig()
	repo := memory.NewChangeLogRepository()
	publisher := logging.NewPublisher(logger)

	snapshots := services.NewSnapshotManager(repo, metrics, logger, true)
	changes := services.NewChangeLogService(repo, snapshots, publisher, metrics, cfg.ChangeLog, logger)
	approvals := services.NewApprovalProcessor(repo, snapshots, publisher, metrics, cfg.ChangeLog.MaxBatchSize, logger)
	undo := services.NewUndoEngine(repo, snapshots, publisher, metrics, logger)
	projector := projections.NewGraphProjector(cfg.Layout, metrics, logger)

	a := &app{
		commands: cmdbus.NewCommandBus(cmdbus.LoggingMiddleware(logger)),
		queries:  bus.NewQueryBus(bus.TimingMiddleware(logger, 0)),
	}
	require.NoError(t, commands.NewHandlers(changes, approvals, undo).Register(a.commands))
	require.NoError(t, NewHandlers(changes, snapshots, projector).Register(a.queries))
	return a
}

func (a *app) propose(t *testing.T, d entities.ChangeDraft) *entities.ChangeRecord {
	t.Helper()
	out, err := a.commands.Send(context.Background(), commands.ProposeChangeCommand{Draft: d})
	require.NoError(t, err)
	return out.(*entities.ChangeRecord)
}

func (a *app) resolve(t *testing.T, decision valueobjects.Decision, ids ...string) *commands.ResolveResult {
	t.Helper()
	decisions := make([]services.Decision, 0, len(ids))
	for _, id := range ids {
		decisions = append(decisions, services.Decision{ChangeID: id, Decision: decision})
	}
	out, err := a.commands.Send(context.Background(), commands.ResolveChangesCommand{WorkspaceID: ws, Decisions: decisions})
	require.NoError(t, err)
	return out.(*commands.ResolveResult)
}

func TestProposeApproveAndProject(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	n1 := a.propose(t, persistencetest.NodeDraft(ws, "n1", "P"))
	n2 := a.propose(t, persistencetest.NodeDraft(ws, "n2", "P"))

	res := a.resolve(t, valueobjects.DecisionApprove, n1.ID)
	assert.Equal(t, []string{n1.ID}, res.Summary.Applied)

	out, err := a.queries.Ask(ctx, GetGraphQuery{WorkspaceID: ws, IncludeProposed: true})
	require.NoError(t, err)
	view := out.(*projections.GraphView)
	require.Len(t, view.Nodes, 2)
	assert.Equal(t, "n1", view.Nodes[0].ID)
	assert.False(t, view.Nodes[0].Ghost)
	assert.Equal(t, "n2", view.Nodes[1].ID)
	assert.True(t, view.Nodes[1].Ghost)
	assert.Equal(t, []string{n2.ID}, view.Nodes[1].PendingChanges)
	assert.Equal(t, int64(1), view.Version)

	out, err = a.queries.Ask(ctx, GetLayoutQuery{WorkspaceID: ws})
	require.NoError(t, err)
	lv := out.(*LayoutView)
	assert.Len(t, lv.Positions, 1)
	require.Len(t, lv.Groups, 1)
	assert.Equal(t, "P", lv.Groups[0].ProjectID)

	out, err = a.queries.Ask(ctx, ListPendingQuery{WorkspaceID: ws, Filter: ports.PendingFilter{ProjectID: "P"}})
	require.NoError(t, err)
	assert.Len(t, out.([]*entities.ChangeRecord), 1)

	out, err = a.queries.Ask(ctx, GetHistoryQuery{WorkspaceID: ws})
	require.NoError(t, err)
	h := out.(*services.History)
	assert.Equal(t, int64(1), h.CurrentVersion)
	assert.Equal(t, int64(2), h.LogVersion)
	assert.Len(t, h.Entries, 2)
}

func TestUndoThroughBus(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	n1 := a.propose(t, persistencetest.NodeDraft(ws, "n1", ""))
	a.resolve(t, valueobjects.DecisionApprove, n1.ID)

	out, err := a.commands.Send(ctx, commands.UndoChangeCommand{ChangeID: n1.ID})
	require.NoError(t, err)
	inverse := out.(*entities.ChangeRecord)
	assert.Equal(t, n1.ID, inverse.InverseOf)
	assert.Equal(t, valueobjects.OpDeleteNode, inverse.Operation)

	out, err = a.queries.Ask(ctx, GetChangeQuery{ChangeID: n1.ID})
	require.NoError(t, err)
	assert.Equal(t, valueobjects.ChangeUndone, out.(*entities.ChangeRecord).Status)

	out, err = a.queries.Ask(ctx, GetGraphQuery{WorkspaceID: ws})
	require.NoError(t, err)
	assert.Empty(t, out.(*projections.GraphView).Nodes)
}

func TestBusValidationAndRouting(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	_, err := a.queries.Ask(ctx, GetGraphQuery{})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = a.commands.Send(ctx, commands.UndoChangeCommand{})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = a.commands.Send(ctx, commands.ProposeChangeCommand{})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = a.queries.Ask(ctx, GetChangeQuery{ChangeID: "missing"})
	assert.True(t, errors.Is(err, pkgerrors.ErrChangeNotFound))

	_, err = bus.NewQueryBus().Ask(ctx, GetChangeQuery{ChangeID: "x"})
	assert.True(t, errors.Is(err, bus.ErrHandlerNotFound))

	err = NewHandlers(nil, nil, nil).Register(a.queries)
	assert.Error(t, err)
}
