package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/aggregates"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"go.uber.org/zap"
)

// errSnapshotDiverged tells the manager to drop its cached snapshot after a
// write that may have left memory and log out of step.
var errSnapshotDiverged = errors.New("snapshot diverged from change log")

// SnapshotManager owns the per-workspace snapshots. Writers run under the
// workspace lock; readers get clones.
type SnapshotManager struct {
	repo    ports.ChangeLogRepository
	metrics ports.MetricsRecorder
	logger  *zap.Logger
	cache   bool

	mu         sync.Mutex
	workspaces map[string]*workspaceSnapshot
}

type workspaceSnapshot struct {
	mu   sync.Mutex
	snap *aggregates.Snapshot
}

// NewSnapshotManager creates a snapshot manager. With cache off every access
// replays the log, which is what stateless deployments sharing one store need.
func NewSnapshotManager(repo ports.ChangeLogRepository, metrics ports.MetricsRecorder, logger *zap.Logger, cache bool) *SnapshotManager {
	return &SnapshotManager{
		repo:       repo,
		metrics:    metrics,
		logger:     logger,
		cache:      cache,
		workspaces: make(map[string]*workspaceSnapshot),
	}
}

func (m *SnapshotManager) entry(workspaceID string) *workspaceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.workspaces[workspaceID]
	if !ok {
		e = &workspaceSnapshot{}
		m.workspaces[workspaceID] = e
	}
	return e
}

// load must be called with e.mu held
func (m *SnapshotManager) load(ctx context.Context, workspaceID string, e *workspaceSnapshot) (*aggregates.Snapshot, error) {
	if e.snap != nil && m.cache {
		return e.snap, nil
	}

	start := time.Now()
	records, err := m.repo.ListApplied(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	snap, err := aggregates.ReplaySnapshot(workspaceID, records)
	if err != nil {
		m.logger.Error("Snapshot replay failed",
			zap.String("workspace_id", workspaceID),
			zap.Error(err),
		)
		return nil, pkgerrors.NewInternalError("snapshot replay failed").WithCause(err)
	}

	took := time.Since(start)
	m.metrics.SnapshotRebuilt(len(records), took)
	m.logger.Debug("Snapshot rebuilt",
		zap.String("workspace_id", workspaceID),
		zap.Int("records", len(records)),
		zap.Int64("version", snap.Version()),
		zap.Duration("took", took),
	)

	e.snap = snap
	return snap, nil
}

// Read returns a private copy of the workspace snapshot
func (m *SnapshotManager) Read(ctx context.Context, workspaceID string) (*aggregates.Snapshot, error) {
	e := m.entry(workspaceID)
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := m.load(ctx, workspaceID, e)
	if err != nil {
		return nil, err
	}
	return snap.Clone(), nil
}

// Write runs fn with exclusive access to the live snapshot. fn must persist a
// record before applying it so the snapshot never runs ahead of the log.
func (m *SnapshotManager) Write(ctx context.Context, workspaceID string, fn func(*aggregates.Snapshot) error) error {
	e := m.entry(workspaceID)
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := m.load(ctx, workspaceID, e)
	if err != nil {
		return err
	}

	err = fn(snap)
	if errors.Is(err, errSnapshotDiverged) {
		m.logger.Warn("Dropping cached snapshot", zap.String("workspace_id", workspaceID))
		e.snap = nil
	}
	return err
}

// Invalidate forces the next access to replay the log
func (m *SnapshotManager) Invalidate(workspaceID string) {
	e := m.entry(workspaceID)
	e.mu.Lock()
	e.snap = nil
	e.mu.Unlock()
}
