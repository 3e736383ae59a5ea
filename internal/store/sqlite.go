// Package store implements SQLite persistence for tools, tool runs,
// approvals, memory items, and the vector registry.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the relational persistence layer.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection so schema and data survive across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tools (
			name TEXT PRIMARY KEY,
			category TEXT NOT NULL DEFAULT 'system',
			description TEXT,
			risk TEXT NOT NULL DEFAULT 'low',
			requires_confirm INTEGER NOT NULL DEFAULT 0,
			enabled INTEGER NOT NULL DEFAULT 1,
			schema TEXT,
			timeout_ms INTEGER NOT NULL DEFAULT 60000
		)`,
		`CREATE TABLE IF NOT EXISTS tool_runs (
			run_id TEXT PRIMARY KEY,
			tool_name TEXT NOT NULL,
			status TEXT NOT NULL,
			input TEXT,
			output TEXT,
			error TEXT,
			created_at TEXT NOT NULL,
			started_at TEXT,
			finished_at TEXT,
			duration_ms INTEGER,
			FOREIGN KEY (tool_name) REFERENCES tools(name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tool_runs_status ON tool_runs(status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tool_runs_tool ON tool_runs(tool_name, created_at)`,
		`CREATE TABLE IF NOT EXISTS approvals (
			approval_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			prompt_text TEXT NOT NULL,
			user_response TEXT,
			decision TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL,
			decided_at TEXT,
			FOREIGN KEY (run_id) REFERENCES tool_runs(run_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_approvals_decision ON approvals(decision, created_at)`,
		`CREATE TABLE IF NOT EXISTS memory_items (
			memory_id TEXT PRIMARY KEY,
			memory_type TEXT NOT NULL DEFAULT 'note',
			title TEXT,
			body TEXT NOT NULL,
			tags TEXT,
			importance INTEGER NOT NULL DEFAULT 3,
			pinned INTEGER NOT NULL DEFAULT 0,
			source TEXT NOT NULL DEFAULT 'user',
			source_ref TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			expires_at TEXT,
			access_count INTEGER NOT NULL DEFAULT 0,
			last_accessed_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_items_type ON memory_items(memory_type, updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_items_expiry ON memory_items(pinned, expires_at)`,
		`CREATE TABLE IF NOT EXISTS memory_vectors (
			vector_id TEXT PRIMARY KEY,
			memory_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			collection_name TEXT NOT NULL,
			embedding_model TEXT NOT NULL,
			dimension INTEGER NOT NULL,
			external_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (memory_id) REFERENCES memory_items(memory_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_vectors_memory ON memory_vectors(memory_id, embedding_model)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_memory_vectors_external ON memory_vectors(embedding_model, external_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// All timestamps are persisted as ISO-8601 UTC text at second precision so
// lexicographic comparison in SQL matches time ordering.

func fmtTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func fmtTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtTime(*t), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
