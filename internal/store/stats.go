package store

import (
	"context"
)

// ToolRunCount aggregates runs for one tool.
type ToolRunCount struct {
	Count     int `json:"count"`
	Successes int `json:"successes"`
}

// RunStats is the tool-run reporting view.
type RunStats struct {
	TotalRuns   int                     `json:"total_runs"`
	SuccessRate float64                 `json:"success_rate"`
	ByTool      map[string]ToolRunCount `json:"by_tool"`
}

// GetRunStats aggregates the audit trail per tool.
func (s *SQLiteStore) GetRunStats(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{ByTool: map[string]ToolRunCount{}}

	var succeeded int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0) FROM tool_runs`).
		Scan(&stats.TotalRuns, &succeeded); err != nil {
		return nil, err
	}
	if stats.TotalRuns > 0 {
		stats.SuccessRate = float64(succeeded) / float64(stats.TotalRuns)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT tool_name, COUNT(*), SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END)
		 FROM tool_runs GROUP BY tool_name ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var c ToolRunCount
		if err := rows.Scan(&name, &c.Count, &c.Successes); err != nil {
			return nil, err
		}
		stats.ByTool[name] = c
	}
	return stats, rows.Err()
}

// MemoryStats is the memory reporting view.
type MemoryStats struct {
	Total  int            `json:"total"`
	Pinned int            `json:"pinned"`
	ByType map[string]int `json:"by_type"`
}

// GetMemoryStats aggregates the memory store by type and pin status.
func (s *SQLiteStore) GetMemoryStats(ctx context.Context) (*MemoryStats, error) {
	stats := &MemoryStats{ByType: map[string]int{}}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN pinned = 1 THEN 1 ELSE 0 END), 0) FROM memory_items`).
		Scan(&stats.Total, &stats.Pinned); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT memory_type, COUNT(*) FROM memory_items GROUP BY memory_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, err
		}
		stats.ByType[typ] = count
	}
	return stats, rows.Err()
}
