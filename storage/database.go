// Package storage persists Outcome records and an audit trail of oracle
// calls to SQLite, so a run can resume from wherever it was interrupted.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Database owns the SQLite connection and applies schema migrations on
// open.
type Database struct {
	db *sql.DB
}

// NewDatabase opens (creating if necessary) the SQLite file at dbPath and
// brings its schema up to date.
func NewDatabase(dbPath string) (*Database, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // avred runs one file at a time; avoid sqlite lock contention

	database := &Database{db: db}
	if err := database.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return database, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) DB() *sql.DB {
	return d.db
}

func (d *Database) migrate() error {
	if _, err := d.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, `CREATE TABLE IF NOT EXISTS outcomes (
			run_id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			file_size INTEGER NOT NULL,
			file_hash TEXT NOT NULL,
			is_scanned BOOLEAN NOT NULL DEFAULT 0,
			is_verified BOOLEAN NOT NULL DEFAULT 0,
			is_detected BOOLEAN NOT NULL DEFAULT 0,
			appraisal TEXT NOT NULL DEFAULT 'Unknown',
			scanner_name TEXT NOT NULL DEFAULT '',
			scanner_info TEXT NOT NULL DEFAULT '',
			scan_time DATETIME,
			payload TEXT NOT NULL DEFAULT '{}',
			updated_at DATETIME NOT NULL
		)`},
		{2, `CREATE INDEX IF NOT EXISTS idx_outcomes_file_hash ON outcomes(file_hash)`},
		{3, `CREATE INDEX IF NOT EXISTS idx_outcomes_appraisal ON outcomes(appraisal)`},
		{4, `CREATE TABLE IF NOT EXISTS oracle_calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			payload_size INTEGER NOT NULL,
			detected BOOLEAN,
			error TEXT DEFAULT '',
			duration_ms INTEGER NOT NULL,
			timestamp DATETIME NOT NULL
		)`},
		{5, `CREATE INDEX IF NOT EXISTS idx_oracle_calls_run_id ON oracle_calls(run_id)`},
		{6, `CREATE TABLE IF NOT EXISTS dead_letter (
			run_id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			category TEXT NOT NULL,
			reason TEXT NOT NULL,
			failed_at DATETIME NOT NULL
		)`},
	}

	for _, m := range migrations {
		var count int
		if err := d.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.version).Scan(&count); err != nil {
			return fmt.Errorf("check migration status: %w", err)
		}
		if count != 0 {
			continue
		}

		if _, err := d.db.Exec(m.sql); err != nil {
			low := strings.ToLower(err.Error())
			ignorable := strings.Contains(low, "duplicate column name") ||
				(strings.Contains(low, "table") && strings.Contains(low, "already exists")) ||
				(strings.Contains(low, "index") && strings.Contains(low, "already exists"))
			if !ignorable {
				return fmt.Errorf("migration %d: %w", m.version, err)
			}
		}

		if _, err := d.db.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))", m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}

	return nil
}
