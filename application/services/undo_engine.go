package services

import (
	"context"
	"errors"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/aggregates"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/events"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/services/inverse"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/utils"
	"go.uber.org/zap"
)

// UndoEngine reverses applied records by appending and auto-applying their inverse
type UndoEngine struct {
	repo      ports.ChangeLogRepository
	snapshots *SnapshotManager
	publisher ports.EventPublisher
	metrics   ports.MetricsRecorder
	logger    *zap.Logger
}

// NewUndoEngine creates a new undo engine
func NewUndoEngine(
	repo ports.ChangeLogRepository,
	snapshots *SnapshotManager,
	publisher ports.EventPublisher,
	metrics ports.MetricsRecorder,
	logger *zap.Logger,
) *UndoEngine {
	return &UndoEngine{
		repo:      repo,
		snapshots: snapshots,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Undo reverses the applied record id and returns the new inverse record.
// Undoing an inverse is an undo of that inverse, never a resurrection of the original.
func (u *UndoEngine) Undo(ctx context.Context, id string) (*entities.ChangeRecord, error) {
	if id == "" {
		return nil, pkgerrors.NewValidationError("change id is required")
	}

	original, err := u.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var result *entities.ChangeRecord
	err = u.snapshots.Write(ctx, original.WorkspaceID, func(snap *aggregates.Snapshot) error {
		// Re-read under the workspace lock; a concurrent undo may have won.
		rec, err := u.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		draft, err := inverse.Synthesize(rec)
		if err != nil {
			return err
		}

		inv, err := u.repo.Append(ctx, draft)
		if err != nil {
			return err
		}
		u.metrics.ChangeProposed(inv.Operation)
		publish(ctx, u.publisher, u.logger, events.NewChangeProposed(inv))

		now := utils.Now()
		if err := snap.Check(inv); err != nil {
			if markErr := inv.MarkRejected(pkgerrors.Reason(err), now); markErr == nil {
				if updErr := u.repo.Update(ctx, inv, valueobjects.ChangePending); updErr != nil {
					u.logger.Error("Failed to record rejected inverse",
						zap.String("change_id", inv.ID),
						zap.Error(updErr),
					)
				} else {
					publish(ctx, u.publisher, u.logger, events.NewChangeRejected(inv, now))
				}
			}
			return err
		}

		if err := inv.MarkApplied(snap.Sequence()+1, now); err != nil {
			return err
		}
		if err := u.repo.Update(ctx, inv, valueobjects.ChangePending); err != nil {
			return err
		}
		if err := snap.Apply(inv); err != nil {
			u.logger.Error("Applied inverse did not fold into snapshot",
				zap.String("change_id", inv.ID),
				zap.Error(err),
			)
			return errSnapshotDiverged
		}

		if err := rec.MarkUndone(inv.ID); err != nil {
			return err
		}
		if err := u.repo.Update(ctx, rec, valueobjects.ChangeApplied); err != nil {
			return err
		}

		publish(ctx, u.publisher, u.logger,
			events.NewChangeApplied(inv, snap.Version(), now),
			events.NewChangeUndone(rec, now),
		)
		result = inv
		return nil
	})
	if err != nil {
		u.metrics.ChangeUndone("failed")
		u.logger.Warn("Undo failed",
			zap.String("change_id", id),
			zap.String("reason", pkgerrors.Reason(err)),
		)
		if errors.Is(err, errSnapshotDiverged) {
			return nil, pkgerrors.NewInternalError("undo left the snapshot inconsistent; it will be rebuilt")
		}
		return nil, err
	}

	u.metrics.ChangeUndone("applied")
	u.logger.Info("Change undone",
		zap.String("workspace_id", result.WorkspaceID),
		zap.String("change_id", id),
		zap.String("inverse_id", result.ID),
		zap.Int64("inverse_version", result.Version),
	)
	return result, nil
}
