package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"surajya/models"
)

// Fields maps column names to values for a conditional update. In the expected
// set a nil value matches NULL and a NullOrBefore value matches NULL or any
// time strictly before it.
type Fields map[string]any

// NullOrBefore matches a nullable timestamp column that is NULL or older than the given time.
type NullOrBefore time.Time

// Columns a conditional update may read or write. id, citizen_id and
// created_at are immutable after insert.
var mutableColumns = map[string]bool{
	"status":                true,
	"priority":              true,
	"assigned_level":        true,
	"auto_escalated":        true,
	"escalation_count":      true,
	"last_escalated_at":     true,
	"verification_otp":      true,
	"otp_expires_at":        true,
	"resolution_attempt_id": true,
	"resolution_started_at": true,
	"ledger_id":             true,
	"ledger_receipt":        true,
	"resolved_at":           true,
	"resolved_by":           true,
}

const grievanceColumns = `
	id, citizen_id, category, description, location, contact_number, email, image_url,
	status, priority, assigned_level, auto_escalated, escalation_count, last_escalated_at,
	verification_otp, otp_expires_at, resolution_attempt_id, resolution_started_at,
	ledger_id, ledger_receipt, created_at, resolved_at, resolved_by`

// GrievanceRepository handles database operations for grievances
type GrievanceRepository struct {
	db *sql.DB
}

// NewGrievanceRepository creates a new grievance repository
func NewGrievanceRepository(db *sql.DB) *GrievanceRepository {
	return &GrievanceRepository{db: db}
}

// Insert stores a new grievance. A grievance with the same id yields ErrDuplicate.
func (r *GrievanceRepository) Insert(ctx context.Context, g *models.Grievance) error {
	query := `INSERT INTO grievances (` + grievanceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := execContext(ctx, r.db, query,
		g.ID,
		g.CitizenID,
		g.Category,
		g.Description,
		g.Location,
		g.ContactNumber,
		g.Email,
		g.ImageURL,
		g.Status,
		g.Priority,
		g.AssignedLevel,
		g.AutoEscalated,
		g.EscalationCount,
		g.LastEscalatedAt,
		g.VerificationOTP,
		g.OTPExpiresAt,
		g.ResolutionAttemptID,
		g.ResolutionStartedAt,
		g.LedgerID,
		g.LedgerReceipt,
		g.CreatedAt.UTC(),
		g.ResolvedAt,
		g.ResolvedBy,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("grievance %s: %w", g.ID, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert grievance: %w", err)
	}
	return nil
}

// Get retrieves a grievance by id
func (r *GrievanceRepository) Get(ctx context.Context, id string) (*models.Grievance, error) {
	query := `SELECT ` + grievanceColumns + ` FROM grievances WHERE id = ?`
	g, err := scanGrievance(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("grievance %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grievance: %w", err)
	}
	return g, nil
}

// Query lists grievances matching filter, oldest first.
func (r *GrievanceRepository) Query(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, error) {
	var conds []string
	var args []any
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Level > 0 {
		conds = append(conds, "assigned_level = ?")
		args = append(args, filter.Level)
	}
	if filter.MaxLevel > 0 {
		conds = append(conds, "assigned_level < ?")
		args = append(args, filter.MaxLevel)
	}
	if filter.CitizenID != "" {
		conds = append(conds, "citizen_id = ?")
		args = append(args, filter.CitizenID)
	}

	query := `SELECT ` + grievanceColumns + ` FROM grievances`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query grievances: %w", err)
	}
	defer rows.Close()

	var out []models.Grievance
	for rows.Next() {
		g, err := scanGrievance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grievance: %w", err)
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate grievances: %w", err)
	}
	return out, nil
}

// ConditionalUpdate applies updates only if every expected column still holds
// its expected value. It returns ErrConflict when the row exists but no longer
// matches, and ErrNotFound when the row does not exist.
func (r *GrievanceRepository) ConditionalUpdate(ctx context.Context, id string, expected, updates Fields) error {
	if len(updates) == 0 {
		return errors.New("conditional update with no fields")
	}

	var sets []string
	var args []any
	for _, col := range sortedKeys(updates) {
		if !mutableColumns[col] {
			return fmt.Errorf("column %q is not updatable", col)
		}
		sets = append(sets, col+" = ?")
		args = append(args, bindValue(updates[col]))
	}

	conds := []string{"id = ?"}
	args = append(args, id)
	for _, col := range sortedKeys(expected) {
		if !mutableColumns[col] {
			return fmt.Errorf("column %q cannot be used as a precondition", col)
		}
		switch v := expected[col].(type) {
		case nil:
			conds = append(conds, col+" IS NULL")
		case NullOrBefore:
			conds = append(conds, "("+col+" IS NULL OR "+col+" < ?)")
			args = append(args, time.Time(v).UTC())
		default:
			conds = append(conds, col+" = ?")
			args = append(args, bindValue(v))
		}
	}

	query := "UPDATE grievances SET " + strings.Join(sets, ", ") + " WHERE " + strings.Join(conds, " AND ")
	result, err := execContext(ctx, r.db, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update grievance %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grievances WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check grievance %s: %w", id, err)
	}
	if exists == 0 {
		return fmt.Errorf("grievance %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("grievance %s: %w", id, ErrConflict)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrievance(row rowScanner) (*models.Grievance, error) {
	var g models.Grievance
	var status string
	err := row.Scan(
		&g.ID,
		&g.CitizenID,
		&g.Category,
		&g.Description,
		&g.Location,
		&g.ContactNumber,
		&g.Email,
		&g.ImageURL,
		&status,
		&g.Priority,
		&g.AssignedLevel,
		&g.AutoEscalated,
		&g.EscalationCount,
		&g.LastEscalatedAt,
		&g.VerificationOTP,
		&g.OTPExpiresAt,
		&g.ResolutionAttemptID,
		&g.ResolutionStartedAt,
		&g.LedgerID,
		&g.LedgerReceipt,
		&g.CreatedAt,
		&g.ResolvedAt,
		&g.ResolvedBy,
	)
	if err != nil {
		return nil, err
	}
	g.Status = models.GrievanceStatus(status)
	g.CreatedAt = g.CreatedAt.UTC()
	return &g, nil
}

// bindValue normalizes times to UTC so both drivers store the same instant.
func bindValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case *time.Time:
		return nullTime(t)
	case *string:
		return nullString(t)
	case models.GrievanceStatus:
		return string(t)
	}
	return v
}

func sortedKeys(f Fields) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
