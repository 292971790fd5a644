// Package schema creates missing tables at startup and never drops or overwrites existing ones.

package schema

import (
	"database/sql"
	"fmt"
	"log"
)

// Dialect names the SQL driver a schema is written for. Values match the
// database/sql driver names.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite3"
)

const (
	tablePriorityRules  = "priority_rules"
	tableGrievances     = "grievances"
	tableAuditLog       = "grievance_audit_log"
	tableReconciliation = "ledger_reconciliation"
)

type tableDef struct {
	name   string
	mysql  string
	sqlite string
}

// Creation order matters only for readability; there are no foreign keys
// because the reconciliation log must accept rows for grievances that never
// reached the store.
var tables = []tableDef{
	{
		name: tablePriorityRules,
		mysql: `
CREATE TABLE IF NOT EXISTS priority_rules (
    category VARCHAR(100) PRIMARY KEY COMMENT 'Grievance category (unique key)',
    base_priority INT NOT NULL DEFAULT 3 COMMENT 'Base priority 1-10',
    keywords TEXT NULL COMMENT 'JSON array of keyword hints',
    created_at DATETIME(6) NOT NULL COMMENT 'First seen'
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		sqlite: `
CREATE TABLE IF NOT EXISTS priority_rules (
    category TEXT PRIMARY KEY,
    base_priority INTEGER NOT NULL DEFAULT 3,
    keywords TEXT NULL,
    created_at DATETIME NOT NULL
)`,
	},
	{
		name: tableGrievances,
		mysql: `
CREATE TABLE IF NOT EXISTS grievances (
    id VARCHAR(36) PRIMARY KEY,
    citizen_id VARCHAR(128) NOT NULL COMMENT 'Opaque identity from the auth provider',
    category VARCHAR(100) NOT NULL,
    description TEXT NOT NULL,
    location TEXT NULL,
    contact_number VARCHAR(32) NOT NULL,
    email VARCHAR(255) NOT NULL,
    image_url TEXT NULL,
    status ENUM('pending', 'resolved') NOT NULL DEFAULT 'pending',
    priority INT NULL,
    assigned_level TINYINT NOT NULL DEFAULT 1,
    auto_escalated BOOLEAN NOT NULL DEFAULT FALSE,
    escalation_count INT NOT NULL DEFAULT 0,
    last_escalated_at DATETIME(6) NULL,
    verification_otp VARCHAR(100) NULL COMMENT 'bcrypt hash of the resolution OTP',
    otp_expires_at DATETIME(6) NULL,
    resolution_attempt_id VARCHAR(36) NULL COMMENT 'Resolution lease holder',
    resolution_started_at DATETIME(6) NULL,
    ledger_id VARCHAR(128) NULL,
    ledger_receipt VARCHAR(128) NULL,
    created_at DATETIME(6) NOT NULL,
    resolved_at DATETIME(6) NULL,
    resolved_by VARCHAR(128) NULL,
    INDEX idx_status_level_created (status, assigned_level, created_at),
    INDEX idx_citizen (citizen_id),
    INDEX idx_ledger_id (ledger_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		sqlite: `
CREATE TABLE IF NOT EXISTS grievances (
    id TEXT PRIMARY KEY,
    citizen_id TEXT NOT NULL,
    category TEXT NOT NULL,
    description TEXT NOT NULL,
    location TEXT NULL,
    contact_number TEXT NOT NULL,
    email TEXT NOT NULL,
    image_url TEXT NULL,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'resolved')),
    priority INTEGER NULL,
    assigned_level INTEGER NOT NULL DEFAULT 1,
    auto_escalated BOOLEAN NOT NULL DEFAULT 0,
    escalation_count INTEGER NOT NULL DEFAULT 0,
    last_escalated_at DATETIME NULL,
    verification_otp TEXT NULL,
    otp_expires_at DATETIME NULL,
    resolution_attempt_id TEXT NULL,
    resolution_started_at DATETIME NULL,
    ledger_id TEXT NULL,
    ledger_receipt TEXT NULL,
    created_at DATETIME NOT NULL,
    resolved_at DATETIME NULL,
    resolved_by TEXT NULL
);
CREATE INDEX IF NOT EXISTS idx_grievances_status_level_created ON grievances (status, assigned_level, created_at);
CREATE INDEX IF NOT EXISTS idx_grievances_citizen ON grievances (citizen_id)`,
	},
	{
		name: tableAuditLog,
		mysql: `
CREATE TABLE IF NOT EXISTS grievance_audit_log (
    audit_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    grievance_id VARCHAR(36) NOT NULL,
    action VARCHAR(50) NOT NULL,
    actor_type VARCHAR(20) NOT NULL,
    actor_id VARCHAR(128) NULL,
    metadata TEXT NULL COMMENT 'JSON',
    created_at DATETIME(6) NOT NULL,
    INDEX idx_grievance (grievance_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		sqlite: `
CREATE TABLE IF NOT EXISTS grievance_audit_log (
    audit_id INTEGER PRIMARY KEY AUTOINCREMENT,
    grievance_id TEXT NOT NULL,
    action TEXT NOT NULL,
    actor_type TEXT NOT NULL,
    actor_id TEXT NULL,
    metadata TEXT NULL,
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_grievance ON grievance_audit_log (grievance_id)`,
	},
	{
		name: tableReconciliation,
		mysql: `
CREATE TABLE IF NOT EXISTS ledger_reconciliation (
    id VARCHAR(36) PRIMARY KEY,
    kind ENUM('create', 'resolve') NOT NULL,
    grievance_id VARCHAR(36) NOT NULL,
    ledger_id VARCHAR(128) NOT NULL,
    payload TEXT NOT NULL COMMENT 'JSON snapshot of the grievance',
    error TEXT NOT NULL,
    status ENUM('open', 'replayed') NOT NULL DEFAULT 'open',
    created_at DATETIME(6) NOT NULL,
    replayed_at DATETIME(6) NULL,
    INDEX idx_status (status),
    INDEX idx_grievance_kind (grievance_id, kind, status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		sqlite: `
CREATE TABLE IF NOT EXISTS ledger_reconciliation (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL CHECK (kind IN ('create', 'resolve')),
    grievance_id TEXT NOT NULL,
    ledger_id TEXT NOT NULL,
    payload TEXT NOT NULL,
    error TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'replayed')),
    created_at DATETIME NOT NULL,
    replayed_at DATETIME NULL
)`,
	},
}

// InitializeDatabase ensures all tables exist, creating only missing ones, then
// adds any columns an older deployment may lack. Does not drop or recreate
// tables; does not remove data.
func InitializeDatabase(db *sql.DB, dialect Dialect) error {
	for _, t := range tables {
		exists, err := tableExists(db, dialect, t.name)
		if err != nil {
			return fmt.Errorf("failed to check if table %s exists: %w", t.name, err)
		}
		if exists {
			log.Printf("[SCHEMA] %s table exists", t.name)
			continue
		}
		if err := execAll(db, t.ddl(dialect)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.name, err)
		}
		log.Printf("[SCHEMA] created %s table", t.name)
	}
	return EnsureGrievanceColumns(db, dialect)
}

// SQL returns the full schema for a dialect. Tests load it into an
// in-memory database so they never drift from production.
func SQL(dialect Dialect) string {
	var out string
	for _, t := range tables {
		out += t.ddl(dialect) + ";\n"
	}
	return out
}

func (t tableDef) ddl(dialect Dialect) string {
	if dialect == SQLite {
		return t.sqlite
	}
	return t.mysql
}

// execAll runs a DDL block. The MySQL driver rejects multi-statement Exec
// unless multiStatements is set, so blocks are split on ";".
func execAll(db *sql.DB, block string) error {
	for _, stmt := range splitStatements(block) {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
