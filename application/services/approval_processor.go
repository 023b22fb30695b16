package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/aggregates"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/events"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/utils"
	"go.uber.org/zap"
)

// Decision is one approve or reject request
type Decision struct {
	ChangeID string                `json:"change_id" validate:"required"`
	Decision valueobjects.Decision `json:"decision" validate:"required,oneof=approve reject"`
	Reason   string                `json:"reason,omitempty" validate:"max=1024"`
}

// Outcome is the result for one input id. Err is nil on success.
type Outcome struct {
	ChangeID string
	Decision valueobjects.Decision
	Record   *entities.ChangeRecord
	Err      error
}

// Failure is a failed id with a printable reason
type Failure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"`
}

// Summary groups outcomes the way callers display them
type Summary struct {
	Applied  []string  `json:"applied"`
	Rejected []string  `json:"rejected"`
	Failed   []Failure `json:"failed"`
}

// Summarize folds outcomes into a Summary, keeping input order within each list
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Applied: []string{}, Rejected: []string{}, Failed: []Failure{}}
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			f := Failure{ID: o.ChangeID, Reason: pkgerrors.Reason(o.Err)}
			if appErr := pkgerrors.GetAppError(o.Err); appErr != nil {
				f.Code = appErr.Code
			}
			s.Failed = append(s.Failed, f)
		case o.Record != nil && o.Record.Status == valueobjects.ChangeApplied:
			s.Applied = append(s.Applied, o.ChangeID)
		default:
			s.Rejected = append(s.Rejected, o.ChangeID)
		}
	}
	return s
}

// ApprovalProcessor applies approve and reject decisions. A batch is just a
// list of single decisions; each id commits on its own and a failure never
// rolls back the ids before it.
type ApprovalProcessor struct {
	repo         ports.ChangeLogRepository
	snapshots    *SnapshotManager
	publisher    ports.EventPublisher
	metrics      ports.MetricsRecorder
	maxBatchSize int
	logger       *zap.Logger
}

// NewApprovalProcessor creates a new approval processor
func NewApprovalProcessor(
	repo ports.ChangeLogRepository,
	snapshots *SnapshotManager,
	publisher ports.EventPublisher,
	metrics ports.MetricsRecorder,
	maxBatchSize int,
	logger *zap.Logger,
) *ApprovalProcessor {
	return &ApprovalProcessor{
		repo:         repo,
		snapshots:    snapshots,
		publisher:    publisher,
		metrics:      metrics,
		maxBatchSize: maxBatchSize,
		logger:       logger,
	}
}

// Resolve processes decisions in input order and returns one outcome per
// decision. The error is only set when the batch as a whole is unusable.
func (p *ApprovalProcessor) Resolve(ctx context.Context, workspaceID string, decisions []Decision) ([]Outcome, error) {
	if workspaceID == "" {
		return nil, pkgerrors.NewValidationError("workspace id is required")
	}
	if len(decisions) == 0 {
		return nil, pkgerrors.NewValidationError("at least one change id is required")
	}
	if p.maxBatchSize > 0 && len(decisions) > p.maxBatchSize {
		return nil, pkgerrors.NewValidationError(
			fmt.Sprintf("batch of %d exceeds the limit of %d", len(decisions), p.maxBatchSize),
		).WithDetail("max_batch_size", p.maxBatchSize)
	}

	outcomes := make([]Outcome, 0, len(decisions))
	err := p.snapshots.Write(ctx, workspaceID, func(snap *aggregates.Snapshot) error {
		diverged := false
		for _, d := range decisions {
			out := p.resolveOne(ctx, workspaceID, snap, d, &diverged)
			outcomes = append(outcomes, out)
		}
		if diverged {
			return errSnapshotDiverged
		}
		return nil
	})
	if err != nil && !errors.Is(err, errSnapshotDiverged) {
		return nil, err
	}

	summary := Summarize(outcomes)
	p.logger.Info("Decisions resolved",
		zap.String("workspace_id", workspaceID),
		zap.Int("applied", len(summary.Applied)),
		zap.Int("rejected", len(summary.Rejected)),
		zap.Int("failed", len(summary.Failed)),
	)
	return outcomes, nil
}

func (p *ApprovalProcessor) resolveOne(ctx context.Context, workspaceID string, snap *aggregates.Snapshot, d Decision, diverged *bool) Outcome {
	out := Outcome{ChangeID: d.ChangeID, Decision: d.Decision}

	fail := func(err error, metric string) Outcome {
		out.Err = err
		p.metrics.ChangeResolved(d.Decision, metric)
		p.logger.Warn("Decision failed",
			zap.String("workspace_id", workspaceID),
			zap.String("change_id", d.ChangeID),
			zap.String("decision", string(d.Decision)),
			zap.String("reason", pkgerrors.Reason(err)),
		)
		return out
	}

	if err := ctx.Err(); err != nil {
		return fail(pkgerrors.NewTimeoutError("resolve").WithCause(err), "cancelled")
	}
	if err := utils.ValidateStruct(d); err != nil {
		return fail(pkgerrors.NewValidationError(err.Error()), "invalid")
	}

	rec, err := p.repo.Get(ctx, d.ChangeID)
	if err != nil {
		return fail(err, "not_found")
	}
	if rec.WorkspaceID != workspaceID {
		return fail(pkgerrors.NewChangeNotFound(d.ChangeID), "not_found")
	}
	if !rec.IsPending() {
		return fail(pkgerrors.NewAlreadyResolved(rec.ID, string(rec.Status)), "already_resolved")
	}

	if d.Decision == valueobjects.DecisionReject {
		return p.reject(ctx, out, rec, d.Reason, fail)
	}

	// Stale conflicts leave the record pending so it can be re-decided after a refetch.
	if err := snap.Check(rec); err != nil {
		if errors.Is(err, pkgerrors.ErrStaleStateConflict) {
			return fail(err, "stale")
		}
		if errors.Is(err, pkgerrors.ErrDanglingEdgeReference) {
			if markErr := p.markRejected(ctx, rec, pkgerrors.Reason(err)); markErr != nil {
				return fail(markErr, "error")
			}
			out.Record = rec
			return fail(err, "dangling")
		}
		return fail(err, "invalid")
	}

	now := utils.Now()
	if err := rec.MarkApplied(snap.Sequence()+1, now); err != nil {
		return fail(err, "already_resolved")
	}
	if err := p.repo.Update(ctx, rec, valueobjects.ChangePending); err != nil {
		return fail(err, "error")
	}
	if err := snap.Apply(rec); err != nil {
		*diverged = true
		p.logger.Error("Applied change did not fold into snapshot",
			zap.String("change_id", rec.ID),
			zap.Error(err),
		)
		return fail(err, "error")
	}

	p.metrics.ChangeResolved(d.Decision, "applied")
	p.logger.Info("Change applied",
		zap.String("workspace_id", workspaceID),
		zap.String("change_id", rec.ID),
		zap.Int64("version", rec.Version),
		zap.Int64("applied_seq", rec.AppliedSeq),
	)
	publish(ctx, p.publisher, p.logger, events.NewChangeApplied(rec, snap.Version(), now))

	out.Record = rec
	return out
}

func (p *ApprovalProcessor) reject(ctx context.Context, out Outcome, rec *entities.ChangeRecord, reason string, fail func(error, string) Outcome) Outcome {
	if reason == "" {
		reason = "rejected by reviewer"
	}
	if err := p.markRejected(ctx, rec, reason); err != nil {
		return fail(err, "error")
	}

	p.metrics.ChangeResolved(valueobjects.DecisionReject, "rejected")
	p.logger.Info("Change rejected",
		zap.String("workspace_id", rec.WorkspaceID),
		zap.String("change_id", rec.ID),
		zap.Int64("version", rec.Version),
	)
	out.Record = rec
	return out
}

// markRejected persists a pending -> rejected transition and announces it
func (p *ApprovalProcessor) markRejected(ctx context.Context, rec *entities.ChangeRecord, reason string) error {
	now := utils.Now()
	if err := rec.MarkRejected(reason, now); err != nil {
		return err
	}
	if err := p.repo.Update(ctx, rec, valueobjects.ChangePending); err != nil {
		return err
	}
	publish(ctx, p.publisher, p.logger, events.NewChangeRejected(rec, now))
	return nil
}
