package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"surajya/models"
)

// AuditRepository appends to and reads the grievance audit trail.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one audit entry. The trail is append-only; there is no update or delete.
func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO grievance_audit_log (grievance_id, action, actor_type, actor_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := execContext(ctx, r.db, query,
		entry.GrievanceID,
		entry.Action,
		string(entry.ActorType),
		entry.ActorID,
		entry.Metadata,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		entry.AuditID = id
	}
	return nil
}

// ListByGrievance returns the trail of one grievance in insertion order.
func (r *AuditRepository) ListByGrievance(ctx context.Context, grievanceID string) ([]models.AuditEntry, error) {
	query := `
		SELECT audit_id, grievance_id, action, actor_type, actor_id, metadata, created_at
		FROM grievance_audit_log
		WHERE grievance_id = ?
		ORDER BY audit_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, grievanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var actorType string
		if err := rows.Scan(&e.AuditID, &e.GrievanceID, &e.Action, &actorType, &e.ActorID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.ActorType = models.ActorType(actorType)
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit log: %w", err)
	}
	return entries, nil
}

// SerializeToJSON is a helper for audit metadata.
func SerializeToJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to serialize audit metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
