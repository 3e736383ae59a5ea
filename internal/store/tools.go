package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jarvishq/jarvisd/internal/domain"
)

// UpsertTool creates or replaces a tool definition.
func (s *SQLiteStore) UpsertTool(ctx context.Context, tool *domain.Tool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tools (name, category, description, risk, requires_confirm, enabled, schema, timeout_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tool.Name, tool.Category, nullString(tool.Description), tool.Risk,
		boolInt(tool.RequiresConfirm), boolInt(tool.Enabled),
		nullStringBytes(tool.Schema), tool.TimeoutMs)
	return err
}

// GetTool retrieves a tool by name regardless of its enabled flag.
// Returns nil when the tool does not exist.
func (s *SQLiteStore) GetTool(ctx context.Context, name string) (*domain.Tool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, category, description, risk, requires_confirm, enabled, schema, timeout_ms
		 FROM tools WHERE name = ?`, name)
	tool, err := scanTool(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tool, nil
}

// ListTools lists all tools ordered by category then name.
func (s *SQLiteStore) ListTools(ctx context.Context) ([]domain.Tool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, category, description, risk, requires_confirm, enabled, schema, timeout_ms
		 FROM tools ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tools []domain.Tool
	for rows.Next() {
		tool, err := scanTool(rows)
		if err != nil {
			return nil, err
		}
		tools = append(tools, *tool)
	}
	return tools, rows.Err()
}

// SetToolEnabled flips a tool's enabled flag. Operator-level edit.
func (s *SQLiteStore) SetToolEnabled(ctx context.Context, name string, enabled bool) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tools SET enabled = ? WHERE name = ?`, boolInt(enabled), name)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTool(r rowScanner) (*domain.Tool, error) {
	var tool domain.Tool
	var description, schema sql.NullString
	var requiresConfirm, enabled int
	if err := r.Scan(&tool.Name, &tool.Category, &description, &tool.Risk,
		&requiresConfirm, &enabled, &schema, &tool.TimeoutMs); err != nil {
		return nil, err
	}
	tool.Description = description.String
	tool.RequiresConfirm = requiresConfirm != 0
	tool.Enabled = enabled != 0
	if schema.Valid {
		tool.Schema = json.RawMessage(schema.String)
	}
	return &tool, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
