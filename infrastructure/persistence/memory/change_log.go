package memory

import (
	"context"
	"sync"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/aggregates"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/utils"
	"github.com/google/uuid"
)

// ChangeLogRepository keeps change logs in process memory. Records are cloned
// on the way in and out so callers never share state with the store.
type ChangeLogRepository struct {
	mu      sync.RWMutex
	records map[string]*entities.ChangeRecord
	logs    map[string][]string
}

// NewChangeLogRepository creates an empty in-memory change log
func NewChangeLogRepository() *ChangeLogRepository {
	return &ChangeLogRepository{
		records: make(map[string]*entities.ChangeRecord),
		logs:    make(map[string][]string),
	}
}

var _ ports.ChangeLogRepository = (*ChangeLogRepository)(nil)

// Append stores the draft as the next pending version of its workspace
func (r *ChangeLogRepository) Append(ctx context.Context, draft entities.ChangeDraft) (*entities.ChangeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.logs[draft.WorkspaceID]
	rec := entities.NewChangeRecord(uuid.New().String(), int64(len(log))+1, draft, utils.Now())
	r.records[rec.ID] = rec
	r.logs[draft.WorkspaceID] = append(log, rec.ID)

	return rec.Clone(), nil
}

// Get retrieves a record by id
func (r *ChangeLogRepository) Get(ctx context.Context, id string) (*entities.ChangeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, pkgerrors.NewChangeNotFound(id)
	}
	return rec.Clone(), nil
}

// Update replaces a record if its stored status is still expected
func (r *ChangeLogRepository) Update(ctx context.Context, rec *entities.ChangeRecord, expected valueobjects.ChangeStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[rec.ID]
	if !ok {
		return pkgerrors.NewChangeNotFound(rec.ID)
	}
	if stored.Status != expected {
		return pkgerrors.NewAlreadyResolved(rec.ID, string(stored.Status))
	}
	r.records[rec.ID] = rec.Clone()
	return nil
}

// ListPending returns pending records oldest first
func (r *ChangeLogRepository) ListPending(ctx context.Context, workspaceID string, filter ports.PendingFilter) ([]*entities.ChangeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*entities.ChangeRecord{}
	for _, id := range r.logs[workspaceID] {
		rec := r.records[id]
		if rec.IsPending() && filter.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// ListHistory returns records newest first below cursor
func (r *ChangeLogRepository) ListHistory(ctx context.Context, workspaceID string, limit int, cursor int64) (*ports.HistoryPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log := r.logs[workspaceID]
	start := int64(len(log))
	if cursor > 0 && cursor-1 < start {
		start = cursor - 1
	}

	page := &ports.HistoryPage{Entries: []*entities.ChangeRecord{}}
	for v := start; v >= 1 && len(page.Entries) < limit; v-- {
		page.Entries = append(page.Entries, r.records[log[v-1]].Clone())
	}
	if n := len(page.Entries); n > 0 {
		last := page.Entries[n-1].Version
		if last > 1 {
			page.NextCursor = last
		}
	}
	return page, nil
}

// ListApplied returns every applied or undone record in application order
func (r *ChangeLogRepository) ListApplied(ctx context.Context, workspaceID string) ([]*entities.ChangeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.ChangeRecord
	for _, id := range r.logs[workspaceID] {
		if rec := r.records[id]; rec.Status.WasApplied() {
			out = append(out, rec.Clone())
		}
	}
	aggregates.SortByApplication(out)
	return out, nil
}

// LatestVersion returns the head version of a workspace log
func (r *ChangeLogRepository) LatestVersion(ctx context.Context, workspaceID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.logs[workspaceID])), nil
}
