// Package traced wraps a ChangeLogRepository with OpenTelemetry spans.
package traced

import (
	"context"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/persistence"

// ChangeLogRepository decorates another repository with one span per call
type ChangeLogRepository struct {
	next    ports.ChangeLogRepository
	tracer  trace.Tracer
	backend string
}

var _ ports.ChangeLogRepository = (*ChangeLogRepository)(nil)

// Wrap returns next instrumented with the global tracer provider.
// backend names the store in span attributes ("memory", "sqlite", "dynamodb").
func Wrap(next ports.ChangeLogRepository, backend string) *ChangeLogRepository {
	return WrapWithTracer(next, backend, otel.Tracer(instrumentationName))
}

// WrapWithTracer is Wrap with an explicit tracer
func WrapWithTracer(next ports.ChangeLogRepository, backend string, tracer trace.Tracer) *ChangeLogRepository {
	return &ChangeLogRepository{next: next, tracer: tracer, backend: backend}
}

func (r *ChangeLogRepository) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("db.system", r.backend),
		attribute.String("db.operation", op),
	)
	return r.tracer.Start(ctx, "changelog."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (r *ChangeLogRepository) Append(ctx context.Context, draft entities.ChangeDraft) (*entities.ChangeRecord, error) {
	ctx, span := r.start(ctx, "append",
		attribute.String("workspace.id", draft.WorkspaceID),
		attribute.String("change.operation", string(draft.Operation)),
	)
	rec, err := r.next.Append(ctx, draft)
	if err == nil {
		span.SetAttributes(attribute.Int64("change.version", rec.Version))
	}
	end(span, err)
	return rec, err
}

func (r *ChangeLogRepository) Get(ctx context.Context, id string) (*entities.ChangeRecord, error) {
	ctx, span := r.start(ctx, "get", attribute.String("change.id", id))
	rec, err := r.next.Get(ctx, id)
	end(span, err)
	return rec, err
}

func (r *ChangeLogRepository) Update(ctx context.Context, rec *entities.ChangeRecord, expected valueobjects.ChangeStatus) error {
	ctx, span := r.start(ctx, "update",
		attribute.String("change.id", rec.ID),
		attribute.String("change.status", string(rec.Status)),
		attribute.String("change.expected_status", string(expected)),
	)
	err := r.next.Update(ctx, rec, expected)
	end(span, err)
	return err
}

func (r *ChangeLogRepository) ListPending(ctx context.Context, workspaceID string, filter ports.PendingFilter) ([]*entities.ChangeRecord, error) {
	ctx, span := r.start(ctx, "list_pending", attribute.String("workspace.id", workspaceID))
	recs, err := r.next.ListPending(ctx, workspaceID, filter)
	span.SetAttributes(attribute.Int("result.count", len(recs)))
	end(span, err)
	return recs, err
}

func (r *ChangeLogRepository) ListHistory(ctx context.Context, workspaceID string, limit int, cursor int64) (*ports.HistoryPage, error) {
	ctx, span := r.start(ctx, "list_history",
		attribute.String("workspace.id", workspaceID),
		attribute.Int("page.limit", limit),
		attribute.Int64("page.cursor", cursor),
	)
	page, err := r.next.ListHistory(ctx, workspaceID, limit, cursor)
	end(span, err)
	return page, err
}

func (r *ChangeLogRepository) ListApplied(ctx context.Context, workspaceID string) ([]*entities.ChangeRecord, error) {
	ctx, span := r.start(ctx, "list_applied", attribute.String("workspace.id", workspaceID))
	recs, err := r.next.ListApplied(ctx, workspaceID)
	span.SetAttributes(attribute.Int("result.count", len(recs)))
	end(span, err)
	return recs, err
}

func (r *ChangeLogRepository) LatestVersion(ctx context.Context, workspaceID string) (int64, error) {
	ctx, span := r.start(ctx, "latest_version", attribute.String("workspace.id", workspaceID))
	v, err := r.next.LatestVersion(ctx, workspaceID)
	end(span, err)
	return v, err
}
