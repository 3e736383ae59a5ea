package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jarvishq/jarvisd/internal/domain"
)

// CreateApproval inserts a pending approval row for a run.
func (s *SQLiteStore) CreateApproval(ctx context.Context, approval *domain.Approval) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO approvals (approval_id, run_id, prompt_text, decision, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		approval.ApprovalID, approval.RunID, approval.PromptText,
		approval.Decision, fmtTime(approval.CreatedAt))
	return err
}

// GetApproval retrieves an approval by ID, or nil when absent.
func (s *SQLiteStore) GetApproval(ctx context.Context, approvalID string) (*domain.Approval, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT approval_id, run_id, prompt_text, user_response, decision, created_at, decided_at
		 FROM approvals WHERE approval_id = ?`, approvalID)
	approval, err := scanApproval(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return approval, nil
}

// GetApprovalByRun retrieves the approval tied to a run, or nil.
func (s *SQLiteStore) GetApprovalByRun(ctx context.Context, runID string) (*domain.Approval, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT approval_id, run_id, prompt_text, user_response, decision, created_at, decided_at
		 FROM approvals WHERE run_id = ?`, runID)
	approval, err := scanApproval(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return approval, nil
}

// DecideApprovalIfPending writes a terminal decision, guarded on the row
// still being pending. Returns false when the approval was already decided.
func (s *SQLiteStore) DecideApprovalIfPending(ctx context.Context, approvalID string, decision domain.ApprovalDecision, response string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE approvals SET decision = ?, user_response = ?, decided_at = ?
		 WHERE approval_id = ? AND decision = ?`,
		decision, nullString(response), fmtTime(time.Now()), approvalID, domain.DecisionPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// ListPendingApprovals returns undecided approvals, oldest first.
func (s *SQLiteStore) ListPendingApprovals(ctx context.Context) ([]domain.Approval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT approval_id, run_id, prompt_text, user_response, decision, created_at, decided_at
		 FROM approvals WHERE decision = 'pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var approvals []domain.Approval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, *approval)
	}
	return approvals, rows.Err()
}

// ListOverdueApprovals returns pending approvals created at or before cutoff.
func (s *SQLiteStore) ListOverdueApprovals(ctx context.Context, cutoff time.Time, limit int) ([]domain.Approval, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT approval_id, run_id, prompt_text, user_response, decision, created_at, decided_at
		 FROM approvals WHERE decision = 'pending' AND created_at <= ?
		 ORDER BY created_at ASC LIMIT ?`, fmtTime(cutoff), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var approvals []domain.Approval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, *approval)
	}
	return approvals, rows.Err()
}

func scanApproval(r rowScanner) (*domain.Approval, error) {
	var approval domain.Approval
	var response, decidedAt sql.NullString
	var createdAt string
	if err := r.Scan(&approval.ApprovalID, &approval.RunID, &approval.PromptText,
		&response, &approval.Decision, &createdAt, &decidedAt); err != nil {
		return nil, err
	}
	approval.UserResponse = response.String
	approval.CreatedAt = parseTime(createdAt)
	approval.DecidedAt = parseTimePtr(decidedAt)
	return &approval, nil
}
