package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jarvishq/jarvisd/internal/domain"
	"github.com/jarvishq/jarvisd/internal/store"
)

// Recorder owns the tool-run audit lifecycle. Every transition is validated
// against the state machine and persisted before the call returns.
type Recorder struct {
	store *store.SQLiteStore
	log   *log.Logger
}

// NewRecorder creates a run recorder over the store.
func NewRecorder(st *store.SQLiteStore, logger *log.Logger) *Recorder {
	return &Recorder{store: st, log: logger}
}

// Create inserts a new run in state planned.
func (r *Recorder) Create(ctx context.Context, toolName string, input json.RawMessage) (*domain.ToolRun, error) {
	run := &domain.ToolRun{
		RunID:     "tr_" + uuid.New().String(),
		ToolName:  toolName,
		Status:    domain.RunStatusPlanned,
		Input:     input,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		return nil, &domain.StorageError{Op: "create run", Err: err}
	}
	return run, nil
}

// Transition moves a run to a new non-final state. An illegal move is a
// ConsistencyError; the persisted status is the ground truth it is checked
// against.
func (r *Recorder) Transition(ctx context.Context, runID string, to domain.RunStatus) error {
	run, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return &domain.StorageError{Op: "get run", Err: err}
	}
	if run == nil || !domain.CanTransition(run.Status, to) {
		from := domain.RunStatus("")
		if run != nil {
			from = run.Status
		}
		return &domain.ConsistencyError{RunID: runID, From: from, To: to}
	}

	ok, err := r.store.TransitionRun(ctx, runID, run.Status, to)
	if err != nil {
		return &domain.StorageError{Op: "transition run", Err: err}
	}
	if !ok {
		// Lost a race: the row moved under us.
		return &domain.ConsistencyError{RunID: runID, From: run.Status, To: to}
	}
	return nil
}

// Finish moves a run to a terminal state, stamping finished_at and the
// duration computed from started_at.
func (r *Recorder) Finish(ctx context.Context, runID string, to domain.RunStatus, output json.RawMessage, errText string) error {
	if !to.Terminal() {
		return &domain.ConsistencyError{RunID: runID, To: to}
	}

	run, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return &domain.StorageError{Op: "get run", Err: err}
	}
	if run == nil || !domain.CanTransition(run.Status, to) {
		from := domain.RunStatus("")
		if run != nil {
			from = run.Status
		}
		return &domain.ConsistencyError{RunID: runID, From: from, To: to}
	}

	ok, err := r.store.CompleteRun(ctx, runID, run.Status, to, output, errText)
	if err != nil {
		return &domain.StorageError{Op: "complete run", Err: err}
	}
	if !ok {
		return &domain.ConsistencyError{RunID: runID, From: run.Status, To: to}
	}
	return nil
}

// Reconcile sweeps non-terminal runs left behind by a crash: anything in
// running becomes failed, anything awaiting confirmation or still planned
// becomes cancelled with its approval expired. Returns the number of rows
// repaired.
func (r *Recorder) Reconcile(ctx context.Context) (int, error) {
	open, err := r.store.ListOpenRuns(ctx)
	if err != nil {
		return 0, &domain.StorageError{Op: "list open runs", Err: err}
	}

	repaired := 0
	for _, run := range open {
		switch run.Status {
		case domain.RunStatusRunning:
			if err := r.Finish(ctx, run.RunID, domain.RunStatusFailed, nil, "interrupted: process restarted mid-execution"); err != nil {
				r.log.Warn("reconcile: failed to close run", "run_id", run.RunID, "err", err)
				continue
			}
		case domain.RunStatusPlanned, domain.RunStatusNeedsConfirm:
			if approval, err := r.store.GetApprovalByRun(ctx, run.RunID); err == nil && approval != nil {
				r.store.DecideApprovalIfPending(ctx, approval.ApprovalID, domain.DecisionExpired, "process restarted")
			}
			if err := r.Finish(ctx, run.RunID, domain.RunStatusCancelled, nil, "interrupted: process restarted before execution"); err != nil {
				r.log.Warn("reconcile: failed to cancel run", "run_id", run.RunID, "err", err)
				continue
			}
		}
		repaired++
	}
	if repaired > 0 {
		r.log.Info("reconciled orphaned tool runs", "count", repaired)
	}
	return repaired, nil
}
