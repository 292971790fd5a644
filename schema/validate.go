// Package schema provides startup validation of required DB columns to prevent schema-code mismatch.
package schema

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
)

// RequiredColumn defines a required column for a table.
type RequiredColumn struct {
	Table  string
	Column string
}

// DefaultRequiredColumns returns the columns the escalation pass and the
// resolution lease depend on. If any are missing the server should not start.
var DefaultRequiredColumns = []RequiredColumn{
	{Table: tableGrievances, Column: "assigned_level"},
	{Table: tableGrievances, Column: "escalation_count"},
	{Table: tableGrievances, Column: "last_escalated_at"},
	{Table: tableGrievances, Column: "verification_otp"},
	{Table: tableGrievances, Column: "otp_expires_at"},
	{Table: tableGrievances, Column: "resolution_attempt_id"},
	{Table: tableGrievances, Column: "resolution_started_at"},
	{Table: tablePriorityRules, Column: "base_priority"},
}

// lateColumns were added after the first deployment and are back-filled by
// EnsureGrievanceColumns instead of failing startup.
var lateColumns = []struct {
	column string
	mysql  string
	sqlite string
}{
	{"ledger_receipt", "VARCHAR(128) NULL", "TEXT NULL"},
	{"resolution_attempt_id", "VARCHAR(36) NULL COMMENT 'Resolution lease holder'", "TEXT NULL"},
	{"resolution_started_at", "DATETIME(6) NULL", "DATETIME NULL"},
}

// ValidateRequiredColumns checks that all required columns exist and returns an
// error listing the missing ones.
func ValidateRequiredColumns(db *sql.DB, dialect Dialect, required []RequiredColumn) error {
	if len(required) == 0 {
		required = DefaultRequiredColumns
	}
	var missing []string
	for _, rc := range required {
		exists, err := columnExists(db, dialect, rc.Table, rc.Column)
		if err != nil {
			return fmt.Errorf("failed to check column %s.%s: %w", rc.Table, rc.Column, err)
		}
		if !exists {
			missing = append(missing, rc.Table+"."+rc.Column)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns (run migrations to fix): %s", strings.Join(missing, ", "))
	}
	log.Println("[SCHEMA] Required columns verified")
	return nil
}

// EnsureGrievanceColumns adds only missing columns to grievances. Does not drop
// or modify existing ones.
func EnsureGrievanceColumns(db *sql.DB, dialect Dialect) error {
	for _, c := range lateColumns {
		spec := c.mysql
		if dialect == SQLite {
			spec = c.sqlite
		}
		if err := ensureColumn(db, dialect, tableGrievances, c.column, spec); err != nil {
			return err
		}
	}
	return nil
}

func ensureColumn(db *sql.DB, dialect Dialect, table, column, spec string) error {
	exists, err := columnExists(db, dialect, table, column)
	if err != nil {
		return fmt.Errorf("failed to check column %s.%s: %w", table, column, err)
	}
	if exists {
		return nil
	}
	// Neither dialect supports ADD COLUMN IF NOT EXISTS; checked above.
	query := "ALTER TABLE " + table + " ADD COLUMN " + column + " " + spec
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}
	log.Printf("[SCHEMA] Added missing column: %s.%s", table, column)
	return nil
}

func tableExists(db *sql.DB, dialect Dialect, table string) (bool, error) {
	var count int
	var err error
	if dialect == SQLite {
		err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
	} else {
		err = db.QueryRow(
			`SELECT COUNT(*) FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`,
			table,
		).Scan(&count)
	}
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func columnExists(db *sql.DB, dialect Dialect, table, column string) (bool, error) {
	var count int
	var err error
	if dialect == SQLite {
		err = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&count)
	} else {
		err = db.QueryRow(
			`SELECT COUNT(*) FROM information_schema.COLUMNS 
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?`,
			table, column,
		).Scan(&count)
	}
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func splitStatements(block string) []string {
	var out []string
	for _, s := range strings.Split(block, ";") {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
