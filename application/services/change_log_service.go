package services

import (
	"context"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/config"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/events"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"go.uber.org/zap"
)

// History is one page of a workspace log, newest first
type History struct {
	Entries        []*entities.ChangeRecord `json:"entries"`
	CurrentVersion int64                    `json:"current_version"`
	LogVersion     int64                    `json:"log_version"`
	NextCursor     int64                    `json:"next_cursor,omitempty"`
}

// ChangeLogService is the write path for proposals and the read path for the log
type ChangeLogService struct {
	repo      ports.ChangeLogRepository
	snapshots *SnapshotManager
	publisher ports.EventPublisher
	metrics   ports.MetricsRecorder
	limits    config.ChangeLogConfig
	logger    *zap.Logger
}

// NewChangeLogService creates a new change log service
func NewChangeLogService(
	repo ports.ChangeLogRepository,
	snapshots *SnapshotManager,
	publisher ports.EventPublisher,
	metrics ports.MetricsRecorder,
	limits config.ChangeLogConfig,
	logger *zap.Logger,
) *ChangeLogService {
	return &ChangeLogService{
		repo:      repo,
		snapshots: snapshots,
		publisher: publisher,
		metrics:   metrics,
		limits:    limits,
		logger:    logger,
	}
}

// Propose validates a draft and appends it as pending
func (s *ChangeLogService) Propose(ctx context.Context, draft entities.ChangeDraft) (*entities.ChangeRecord, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	rec, err := s.repo.Append(ctx, draft.Normalize())
	if err != nil {
		s.logger.Error("Failed to append change",
			zap.String("workspace_id", draft.WorkspaceID),
			zap.String("operation", string(draft.Operation)),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.ChangeProposed(rec.Operation)
	s.logger.Info("Change proposed",
		zap.String("workspace_id", rec.WorkspaceID),
		zap.String("change_id", rec.ID),
		zap.Int64("version", rec.Version),
		zap.String("operation", string(rec.Operation)),
		zap.String("target_id", rec.TargetID),
		zap.String("actor", string(rec.Actor)),
	)
	publish(ctx, s.publisher, s.logger, events.NewChangeProposed(rec))
	return rec, nil
}

// Get returns one record
func (s *ChangeLogService) Get(ctx context.Context, id string) (*entities.ChangeRecord, error) {
	if id == "" {
		return nil, pkgerrors.NewValidationError("change id is required")
	}
	return s.repo.Get(ctx, id)
}

// ListPending returns the pending queue oldest first
func (s *ChangeLogService) ListPending(ctx context.Context, workspaceID string, filter ports.PendingFilter) ([]*entities.ChangeRecord, error) {
	if workspaceID == "" {
		return nil, pkgerrors.NewValidationError("workspace id is required")
	}
	return s.repo.ListPending(ctx, workspaceID, filter)
}

// History returns a page of the log plus the snapshot version it has reached
func (s *ChangeLogService) History(ctx context.Context, workspaceID string, limit int, cursor int64) (*History, error) {
	if workspaceID == "" {
		return nil, pkgerrors.NewValidationError("workspace id is required")
	}
	if cursor < 0 {
		return nil, pkgerrors.NewValidationError("cursor must not be negative")
	}
	limit = s.clampLimit(limit)

	page, err := s.repo.ListHistory(ctx, workspaceID, limit, cursor)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshots.Read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	head, err := s.repo.LatestVersion(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	return &History{
		Entries:        page.Entries,
		CurrentVersion: snap.Version(),
		LogVersion:     head,
		NextCursor:     page.NextCursor,
	}, nil
}

func (s *ChangeLogService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.limits.DefaultHistoryLimit
	}
	if limit > s.limits.MaxHistoryLimit {
		return s.limits.MaxHistoryLimit
	}
	return limit
}
