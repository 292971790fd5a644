package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"surajya/models"
)

// ReconciliationRepository persists ledger writes that have no local counterpart.
type ReconciliationRepository struct {
	db *sql.DB
}

// NewReconciliationRepository creates a new reconciliation repository
func NewReconciliationRepository(db *sql.DB) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

// Create records an entry. Status defaults to open.
func (r *ReconciliationRepository) Create(ctx context.Context, entry *models.ReconciliationEntry) error {
	if entry.Status == "" {
		entry.Status = models.ReconcileOpen
	}
	query := `
		INSERT INTO ledger_reconciliation (id, kind, grievance_id, ledger_id, payload, error, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := execContext(ctx, r.db, query,
		entry.ID,
		string(entry.Kind),
		entry.GrievanceID,
		entry.LedgerID,
		entry.Payload,
		entry.Error,
		string(entry.Status),
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create reconciliation entry: %w", err)
	}
	return nil
}

// List returns entries with the given status (all when empty), oldest first.
func (r *ReconciliationRepository) List(ctx context.Context, status models.ReconciliationStatus) ([]models.ReconciliationEntry, error) {
	var where string
	var args []any
	if status != "" {
		where = "WHERE status = ?"
		args = append(args, string(status))
	}
	return r.query(ctx, where, args...)
}

// ListOpen returns the open entries of one kind for a grievance, oldest first.
func (r *ReconciliationRepository) ListOpen(ctx context.Context, grievanceID string, kind models.ReconciliationKind) ([]models.ReconciliationEntry, error) {
	return r.query(ctx, "WHERE grievance_id = ? AND kind = ? AND status = ?",
		grievanceID, string(kind), string(models.ReconcileOpen))
}

func (r *ReconciliationRepository) query(ctx context.Context, where string, args ...any) ([]models.ReconciliationEntry, error) {
	query := `
		SELECT id, kind, grievance_id, ledger_id, payload, error, status, created_at, replayed_at
		FROM ledger_reconciliation
	` + where + " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliation entries: %w", err)
	}
	defer rows.Close()

	var entries []models.ReconciliationEntry
	for rows.Next() {
		var e models.ReconciliationEntry
		var kind, st string
		var replayedAt sql.NullTime
		if err := rows.Scan(&e.ID, &kind, &e.GrievanceID, &e.LedgerID, &e.Payload, &e.Error, &st, &e.CreatedAt, &replayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation entry: %w", err)
		}
		e.Kind = models.ReconciliationKind(kind)
		e.Status = models.ReconciliationStatus(st)
		e.CreatedAt = e.CreatedAt.UTC()
		if replayedAt.Valid {
			t := replayedAt.Time.UTC()
			e.ReplayedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkReplayed closes an open entry. Replaying an already closed entry yields ErrConflict.
func (r *ReconciliationRepository) MarkReplayed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE ledger_reconciliation SET status = ?, replayed_at = ? WHERE id = ? AND status = ?`
	result, err := execContext(ctx, r.db, query, string(models.ReconcileReplayed), at.UTC(), id, string(models.ReconcileOpen))
	if err != nil {
		return fmt.Errorf("failed to mark reconciliation entry replayed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("reconciliation entry %s: %w", id, ErrConflict)
	}
	return nil
}
