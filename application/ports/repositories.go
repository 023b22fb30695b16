package ports

import (
	"context"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
)

// ChangeLogRepository is the durable, append-only store of change records.
// This is a port in hexagonal architecture; memory, SQLite and DynamoDB adapters implement it.
type ChangeLogRepository interface {
	// Append assigns the next workspace version, an id and created_at, and stores the draft as pending.
	// Versions are never reused or skipped.
	Append(ctx context.Context, draft entities.ChangeDraft) (*entities.ChangeRecord, error)

	// Get retrieves a record by id. Unknown ids return a CHANGE_NOT_FOUND error.
	Get(ctx context.Context, id string) (*entities.ChangeRecord, error)

	// Update persists a status transition. It fails with ALREADY_RESOLVED when the
	// stored status is no longer expected.
	Update(ctx context.Context, rec *entities.ChangeRecord, expected valueobjects.ChangeStatus) error

	// ListPending returns pending records oldest first
	ListPending(ctx context.Context, workspaceID string, filter PendingFilter) ([]*entities.ChangeRecord, error)

	// ListHistory returns records newest first, starting below cursor (0 means the head)
	ListHistory(ctx context.Context, workspaceID string, limit int, cursor int64) (*HistoryPage, error)

	// ListApplied returns every record that was ever applied, in application order
	ListApplied(ctx context.Context, workspaceID string) ([]*entities.ChangeRecord, error)

	// LatestVersion returns the highest version in the workspace log
	LatestVersion(ctx context.Context, workspaceID string) (int64, error)
}

// PendingFilter narrows ListPending. Empty fields match everything.
type PendingFilter struct {
	Actor      valueobjects.Actor
	Operation  valueobjects.Operation
	TargetType valueobjects.TargetType
	ProjectID  string
}

// Matches reports whether rec passes the filter
func (f PendingFilter) Matches(rec *entities.ChangeRecord) bool {
	if f.Actor != "" && rec.Actor != f.Actor {
		return false
	}
	if f.Operation != "" && rec.Operation != f.Operation {
		return false
	}
	if f.TargetType != "" && rec.TargetType != f.TargetType {
		return false
	}
	if f.ProjectID != "" {
		return projectOf(rec.AfterState) == f.ProjectID || projectOf(rec.BeforeState) == f.ProjectID
	}
	return true
}

func projectOf(s *entities.State) string {
	if s == nil || s.Metadata == nil {
		return ""
	}
	return s.Metadata.ProjectID
}

// HistoryPage is one page of ListHistory. NextCursor is 0 on the last page.
type HistoryPage struct {
	Entries    []*entities.ChangeRecord
	NextCursor int64
}
