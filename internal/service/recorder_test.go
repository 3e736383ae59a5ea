package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jarvishq/jarvisd/internal/domain"
)

func TestRecorderRejectsIllegalTransitions(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, testOptions{})
	seedTestTool(t, env.store, "echo", domain.RiskLow, false, true)
	rec := env.svc.Recorder()

	run, err := rec.Create(ctx, "echo", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// planned -> success skips running.
	err = rec.Finish(ctx, run.RunID, domain.RunStatusSuccess, nil, "")
	var consistencyErr *domain.ConsistencyError
	if !errors.As(err, &consistencyErr) {
		t.Fatalf("expected ConsistencyError, got %v", err)
	}

	if err := rec.Transition(ctx, run.RunID, domain.RunStatusRunning); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if err := rec.Finish(ctx, run.RunID, domain.RunStatusSuccess, json.RawMessage(`{}`), ""); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	// Terminal runs are immutable.
	err = rec.Finish(ctx, run.RunID, domain.RunStatusFailed, nil, "late failure")
	if !errors.As(err, &consistencyErr) {
		t.Fatalf("expected ConsistencyError on terminal run, got %v", err)
	}

	err = rec.Transition(ctx, "tr_missing", domain.RunStatusRunning)
	if !errors.As(err, &consistencyErr) {
		t.Fatalf("expected ConsistencyError for unknown run, got %v", err)
	}
}

func TestRecorderFinishRequiresTerminalState(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, testOptions{})
	seedTestTool(t, env.store, "echo", domain.RiskLow, false, true)
	rec := env.svc.Recorder()

	run, _ := rec.Create(ctx, "echo", json.RawMessage(`{}`))
	err := rec.Finish(ctx, run.RunID, domain.RunStatusRunning, nil, "")
	var consistencyErr *domain.ConsistencyError
	if !errors.As(err, &consistencyErr) {
		t.Fatalf("expected ConsistencyError, got %v", err)
	}
}

func TestReconcileRepairsOrphanedRuns(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, testOptions{})
	seedTestTool(t, env.store, "echo", domain.RiskLow, false, true)
	seedTestTool(t, env.store, "guarded", domain.RiskHigh, true, true)
	rec := env.svc.Recorder()

	// A run left in running by a crash.
	running, _ := rec.Create(ctx, "echo", json.RawMessage(`{}`))
	if err := rec.Transition(ctx, running.RunID, domain.RunStatusRunning); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	// A run paused on confirmation, with its approval still pending.
	paused, err := env.svc.Invoke(ctx, "guarded", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	// A finished run must be untouched.
	done, _ := rec.Create(ctx, "echo", json.RawMessage(`{}`))
	rec.Transition(ctx, done.RunID, domain.RunStatusRunning)
	rec.Finish(ctx, done.RunID, domain.RunStatusSuccess, nil, "")

	n, err := rec.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 repaired runs, got %d", n)
	}

	got, _ := env.store.GetRun(ctx, running.RunID)
	if got.Status != domain.RunStatusFailed {
		t.Fatalf("orphaned running run must fail, got %s", got.Status)
	}
	got, _ = env.store.GetRun(ctx, paused.RunID)
	if got.Status != domain.RunStatusCancelled {
		t.Fatalf("orphaned paused run must cancel, got %s", got.Status)
	}
	approval, _ := env.store.GetApproval(ctx, paused.ApprovalID)
	if approval.Decision != domain.DecisionExpired {
		t.Fatalf("orphaned approval must expire, got %s", approval.Decision)
	}
	got, _ = env.store.GetRun(ctx, done.RunID)
	if got.Status != domain.RunStatusSuccess {
		t.Fatalf("terminal run must be untouched, got %s", got.Status)
	}
}
