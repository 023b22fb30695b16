// Package sqlite stores change logs in an embedded SQLite database
// (modernc.org/sqlite, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const recordColumns = `id, workspace_id, version, operation, target_type, target_id, actor,
	before_state, after_state, status, reason, inverse_of, undone_by, applied_seq,
	created_at, applied_at, resolved_at`

// ChangeLogRepository is a ChangeLogRepository backed by SQLite
type ChangeLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ ports.ChangeLogRepository = (*ChangeLogRepository)(nil)

// Open opens (or creates) the database at path and runs migrations.
// Use ":memory:" for a throwaway database.
func Open(path string, logger *zap.Logger) (*ChangeLogRepository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// One writer keeps version allocation serialized and makes :memory: usable.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	r := &ChangeLogRepository{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return r, nil
}

// Close closes the underlying database connection
func (r *ChangeLogRepository) Close() error {
	return r.db.Close()
}

// Ping checks the database is reachable
func (r *ChangeLogRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *ChangeLogRepository) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS change_records (
			id           TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			version      INTEGER NOT NULL,
			operation    TEXT NOT NULL,
			target_type  TEXT NOT NULL,
			target_id    TEXT NOT NULL,
			actor        TEXT NOT NULL,
			before_state TEXT,
			after_state  TEXT,
			status       TEXT NOT NULL,
			reason       TEXT NOT NULL DEFAULT '',
			inverse_of   TEXT NOT NULL DEFAULT '',
			undone_by    TEXT NOT NULL DEFAULT '',
			applied_seq  INTEGER NOT NULL DEFAULT 0,
			created_at   TEXT NOT NULL,
			applied_at   TEXT,
			resolved_at  TEXT,
			UNIQUE (workspace_id, version)
		);

		CREATE INDEX IF NOT EXISTS idx_change_records_status
			ON change_records (workspace_id, status, version);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Append stores the draft as the next pending version of its workspace
func (r *ChangeLogRepository) Append(ctx context.Context, draft entities.ChangeDraft) (*entities.ChangeRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("append", err)
	}
	defer tx.Rollback()

	var head int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM change_records WHERE workspace_id = ?`,
		draft.WorkspaceID,
	).Scan(&head); err != nil {
		return nil, pkgerrors.NewDatabaseError("append", err)
	}

	rec := entities.NewChangeRecord(uuid.New().String(), head+1, draft, utils.Now())
	before, after, err := encodeStates(rec)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO change_records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.WorkspaceID, rec.Version, rec.Operation, rec.TargetType, rec.TargetID, rec.Actor,
		before, after, rec.Status, rec.Reason, rec.InverseOf, rec.UndoneBy, rec.AppliedSeq,
		formatTime(&rec.CreatedAt), nil, nil,
	); err != nil {
		return nil, pkgerrors.NewDatabaseError("append", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, pkgerrors.NewDatabaseError("append", err)
	}

	r.logger.Debug("Change appended",
		zap.String("workspace_id", rec.WorkspaceID),
		zap.String("change_id", rec.ID),
		zap.Int64("version", rec.Version),
	)
	return rec, nil
}

// Get retrieves a record by id
func (r *ChangeLogRepository) Get(ctx context.Context, id string) (*entities.ChangeRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM change_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.NewChangeNotFound(id)
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get", err)
	}
	return rec, nil
}

// Update persists a transition if the stored status is still expected
func (r *ChangeLogRepository) Update(ctx context.Context, rec *entities.ChangeRecord, expected valueobjects.ChangeStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE change_records
		    SET status = ?, reason = ?, undone_by = ?, applied_seq = ?, applied_at = ?, resolved_at = ?
		  WHERE id = ? AND status = ?`,
		rec.Status, rec.Reason, rec.UndoneBy, rec.AppliedSeq, formatTime(rec.AppliedAt), formatTime(rec.ResolvedAt),
		rec.ID, expected,
	)
	if err != nil {
		return pkgerrors.NewDatabaseError("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.NewDatabaseError("update", err)
	}
	if n == 1 {
		return nil
	}

	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM change_records WHERE id = ?`, rec.ID).Scan(&current)
	if err == sql.ErrNoRows {
		return pkgerrors.NewChangeNotFound(rec.ID)
	}
	if err != nil {
		return pkgerrors.NewDatabaseError("update", err)
	}
	return pkgerrors.NewAlreadyResolved(rec.ID, current)
}

// ListPending returns pending records oldest first
func (r *ChangeLogRepository) ListPending(ctx context.Context, workspaceID string, filter ports.PendingFilter) ([]*entities.ChangeRecord, error) {
	recs, err := r.query(ctx, "list pending",
		`SELECT `+recordColumns+` FROM change_records
		  WHERE workspace_id = ? AND status = ?
		  ORDER BY version ASC`,
		workspaceID, valueobjects.ChangePending,
	)
	if err != nil {
		return nil, err
	}

	out := make([]*entities.ChangeRecord, 0, len(recs))
	for _, rec := range recs {
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ListHistory returns records newest first below cursor
func (r *ChangeLogRepository) ListHistory(ctx context.Context, workspaceID string, limit int, cursor int64) (*ports.HistoryPage, error) {
	recs, err := r.query(ctx, "list history",
		`SELECT `+recordColumns+` FROM change_records
		  WHERE workspace_id = ? AND (? = 0 OR version < ?)
		  ORDER BY version DESC
		  LIMIT ?`,
		workspaceID, cursor, cursor, limit,
	)
	if err != nil {
		return nil, err
	}

	page := &ports.HistoryPage{Entries: recs}
	if n := len(recs); n > 0 && recs[n-1].Version > 1 {
		page.NextCursor = recs[n-1].Version
	}
	return page, nil
}

// ListApplied returns every applied or undone record in application order
func (r *ChangeLogRepository) ListApplied(ctx context.Context, workspaceID string) ([]*entities.ChangeRecord, error) {
	return r.query(ctx, "list applied",
		`SELECT `+recordColumns+` FROM change_records
		  WHERE workspace_id = ? AND status IN (?, ?)
		  ORDER BY applied_seq ASC, version ASC`,
		workspaceID, valueobjects.ChangeApplied, valueobjects.ChangeUndone,
	)
}

// LatestVersion returns the head version of a workspace log
func (r *ChangeLogRepository) LatestVersion(ctx context.Context, workspaceID string) (int64, error) {
	var head int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM change_records WHERE workspace_id = ?`, workspaceID,
	).Scan(&head)
	if err != nil {
		return 0, pkgerrors.NewDatabaseError("latest version", err)
	}
	return head, nil
}

func (r *ChangeLogRepository) query(ctx context.Context, op, q string, args ...interface{}) ([]*entities.ChangeRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError(op, err)
	}
	defer rows.Close()

	out := []*entities.ChangeRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError(op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError(op, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*entities.ChangeRecord, error) {
	var (
		rec                   entities.ChangeRecord
		before, after         sql.NullString
		createdAt             string
		appliedAt, resolvedAt sql.NullString
	)
	if err := row.Scan(
		&rec.ID, &rec.WorkspaceID, &rec.Version, &rec.Operation, &rec.TargetType, &rec.TargetID, &rec.Actor,
		&before, &after, &rec.Status, &rec.Reason, &rec.InverseOf, &rec.UndoneBy, &rec.AppliedSeq,
		&createdAt, &appliedAt, &resolvedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if rec.BeforeState, err = decodeState(before); err != nil {
		return nil, err
	}
	if rec.AfterState, err = decodeState(after); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.AppliedAt, err = parseNullTime(appliedAt); err != nil {
		return nil, err
	}
	if rec.ResolvedAt, err = parseNullTime(resolvedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func encodeStates(rec *entities.ChangeRecord) (before, after interface{}, err error) {
	if before, err = encodeState(rec.BeforeState); err != nil {
		return nil, nil, err
	}
	if after, err = encodeState(rec.AfterState); err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

func encodeState(s *entities.State) (interface{}, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return string(data), nil
}

func decodeState(v sql.NullString) (*entities.State, error) {
	if !v.Valid {
		return nil, nil
	}
	var s entities.State
	if err := json.Unmarshal([]byte(v.String), &s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &s, nil
}

func formatTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, fmt.Errorf("parse time: %w", err)
	}
	return &t, nil
}
