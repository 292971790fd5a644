// Package testutil opens databases for package tests.
//
// Every test database is loaded from schema.SQL so tests run against the
// same tables the server creates at startup.
package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"surajya/schema"
)

// OpenSQLite creates an in-memory database with the authoritative schema.
// The pool is pinned to one connection: each sqlite ":memory:" connection is
// its own database.
func OpenSQLite(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema.SQL(schema.SQLite)); err != nil {
		db.Close()
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}
