package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jarvishq/jarvisd/internal/domain"
)

// CreateRun inserts a new tool run row.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.ToolRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_runs (run_id, tool_name, status, input, created_at, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.ToolName, run.Status, nullStringBytes(run.Input),
		fmtTime(run.CreatedAt), fmtTimePtr(run.StartedAt))
	return err
}

// GetRun retrieves a run by ID, or nil when absent.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.ToolRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, tool_name, status, input, output, error, created_at, started_at, finished_at, duration_ms
		 FROM tool_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// TransitionRun moves a run from one status to another with a guard on the
// current persisted status. Entering running stamps started_at. Returns
// false when the guard did not match, which the caller treats as an invalid
// transition.
func (s *SQLiteStore) TransitionRun(ctx context.Context, runID string, from, to domain.RunStatus) (bool, error) {
	var res sql.Result
	var err error
	if to == domain.RunStatusRunning {
		res, err = s.db.ExecContext(ctx,
			`UPDATE tool_runs SET status = ?, started_at = COALESCE(started_at, ?) WHERE run_id = ? AND status = ?`,
			to, fmtTime(time.Now()), runID, from)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE tool_runs SET status = ? WHERE run_id = ? AND status = ?`,
			to, runID, from)
	}
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// CompleteRun finishes a run: stamps finished_at, computes duration_ms from
// the persisted started_at, and records output or error. Guarded on the
// current status so a terminal run is never touched.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, from, to domain.RunStatus, output []byte, errText string) (bool, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return false, err
	}
	if run == nil {
		return false, nil
	}

	finished := time.Now().UTC().Truncate(time.Second)
	start := run.CreatedAt
	if run.StartedAt != nil {
		start = *run.StartedAt
	}
	duration := finished.Sub(start).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tool_runs SET status = ?, output = ?, error = ?, finished_at = ?, duration_ms = ?
		 WHERE run_id = ? AND status = ?`,
		to, nullStringBytes(output), nullString(errText), fmtTime(finished), duration, runID, from)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// ListOpenRuns returns runs in a non-terminal status, oldest first. Used by
// the startup reconciliation sweep.
func (s *SQLiteStore) ListOpenRuns(ctx context.Context) ([]domain.ToolRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, tool_name, status, input, output, error, created_at, started_at, finished_at, duration_ms
		 FROM tool_runs WHERE status IN ('planned', 'needs_confirm', 'running')
		 ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRuns(rows)
}

// ListRecentRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRecentRuns(ctx context.Context, limit int) ([]domain.ToolRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, tool_name, status, input, output, error, created_at, started_at, finished_at, duration_ms
		 FROM tool_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRuns(rows)
}

func collectRuns(rows *sql.Rows) ([]domain.ToolRun, error) {
	var runs []domain.ToolRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanRun(r rowScanner) (*domain.ToolRun, error) {
	var run domain.ToolRun
	var input, output, errText, startedAt, finishedAt sql.NullString
	var createdAt string
	var durationMs sql.NullInt64
	if err := r.Scan(&run.RunID, &run.ToolName, &run.Status, &input, &output,
		&errText, &createdAt, &startedAt, &finishedAt, &durationMs); err != nil {
		return nil, err
	}
	if input.Valid {
		run.Input = json.RawMessage(input.String)
	}
	if output.Valid {
		run.Output = json.RawMessage(output.String)
	}
	run.Error = errText.String
	run.CreatedAt = parseTime(createdAt)
	run.StartedAt = parseTimePtr(startedAt)
	run.FinishedAt = parseTimePtr(finishedAt)
	if durationMs.Valid {
		run.DurationMs = &durationMs.Int64
	}
	return &run, nil
}
