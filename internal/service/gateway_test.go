package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jarvishq/jarvisd/internal/domain"
)

func TestGuardedRunApprovedByPrompter(t *testing.T) {
	ctx := context.Background()
	prompter := PrompterFunc(func(ctx context.Context, promptText string) (bool, string, error) {
		return true, "go ahead", nil
	})
	env := newTestService(t, testOptions{prompter: prompter})
	seedTestTool(t, env.store, "guarded", domain.RiskHigh, true, true)

	result, err := env.svc.Invoke(ctx, "guarded", json.RawMessage(`{"target":"x"}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if result.Status != domain.RunStatusSuccess {
		t.Fatalf("approved run must execute, got %s", result.Status)
	}

	approval, _ := env.store.GetApprovalByRun(ctx, result.RunID)
	if approval == nil || approval.Decision != domain.DecisionApproved || approval.UserResponse != "go ahead" {
		t.Fatalf("approval not recorded: %+v", approval)
	}
}

func TestGuardedRunDeniedByPrompter(t *testing.T) {
	ctx := context.Background()
	prompter := PrompterFunc(func(ctx context.Context, promptText string) (bool, string, error) {
		return false, "absolutely not", nil
	})
	env := newTestService(t, testOptions{prompter: prompter})
	seedTestTool(t, env.store, "guarded", domain.RiskHigh, true, true)

	result, err := env.svc.Invoke(ctx, "guarded", json.RawMessage(`{"target":"x"}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if result.Status != domain.RunStatusCancelled {
		t.Fatalf("denied run must be cancelled, got %s", result.Status)
	}

	run, _ := env.store.GetRun(ctx, result.RunID)
	if run.Status != domain.RunStatusCancelled {
		t.Fatalf("cancellation not persisted: %+v", run)
	}
	if run.Output != nil {
		t.Fatalf("denied run must not carry output")
	}
}

func TestGuardedRunExpiresWithoutAnswer(t *testing.T) {
	ctx := context.Background()
	prompter := PrompterFunc(func(ctx context.Context, promptText string) (bool, string, error) {
		<-ctx.Done()
		return false, "", ctx.Err()
	})
	env := newTestService(t, testOptions{prompter: prompter, approval: 50 * time.Millisecond})
	seedTestTool(t, env.store, "guarded", domain.RiskHigh, true, true)

	result, err := env.svc.Invoke(ctx, "guarded", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if result.Status != domain.RunStatusCancelled {
		t.Fatalf("timed-out confirmation must cancel the run, got %s", result.Status)
	}

	approval, _ := env.store.GetApprovalByRun(ctx, result.RunID)
	if approval.Decision != domain.DecisionExpired {
		t.Fatalf("approval must be expired: %+v", approval)
	}
}

func TestResolveAndResume(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, testOptions{})
	seedTestTool(t, env.store, "guarded", domain.RiskHigh, true, true)

	pending, err := env.svc.Invoke(ctx, "guarded", json.RawMessage(`{"target":"x"}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if pending.Status != domain.RunStatusNeedsConfirm {
		t.Fatalf("expected needs_confirm, got %s", pending.Status)
	}

	approval, err := env.svc.Gateway().Resolve(ctx, pending.ApprovalID, true, "ok")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if approval.Decision != domain.DecisionApproved {
		t.Fatalf("expected approved, got %s", approval.Decision)
	}

	result, err := env.svc.ResumeRun(ctx, pending.RunID, approval.Decision)
	if err != nil {
		t.Fatalf("ResumeRun failed: %v", err)
	}
	if result.Status != domain.RunStatusSuccess {
		t.Fatalf("approved resume must execute, got %s", result.Status)
	}
}

func TestResolveAlreadyDecided(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, testOptions{})
	seedTestTool(t, env.store, "guarded", domain.RiskHigh, true, true)

	pending, _ := env.svc.Invoke(ctx, "guarded", json.RawMessage(`{}`))
	if _, err := env.svc.Gateway().Resolve(ctx, pending.ApprovalID, false, "no"); err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}

	_, err := env.svc.Gateway().Resolve(ctx, pending.ApprovalID, true, "changed my mind")
	var policyErr *domain.PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("second decision must be refused, got %v", err)
	}
}

func TestResumeDeniedLeavesRunCancelled(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, testOptions{})
	seedTestTool(t, env.store, "guarded", domain.RiskHigh, true, true)

	pending, _ := env.svc.Invoke(ctx, "guarded", json.RawMessage(`{}`))
	approval, err := env.svc.Gateway().Resolve(ctx, pending.ApprovalID, false, "no")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	result, err := env.svc.ResumeRun(ctx, pending.RunID, approval.Decision)
	if err != nil {
		t.Fatalf("ResumeRun failed: %v", err)
	}
	if result.Status != domain.RunStatusCancelled {
		t.Fatalf("denied resume must cancel, got %s", result.Status)
	}

	// A cancelled run cannot be resumed again.
	if _, err := env.svc.ResumeRun(ctx, pending.RunID, domain.DecisionApproved); err == nil {
		t.Fatalf("resuming a terminal run must fail")
	}
}

func TestExpireOverdueApprovalsCancelsRuns(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, testOptions{approval: 10 * time.Millisecond})
	seedTestTool(t, env.store, "guarded", domain.RiskHigh, true, true)

	pending, _ := env.svc.Invoke(ctx, "guarded", json.RawMessage(`{}`))
	time.Sleep(1100 * time.Millisecond) // second-resolution timestamps

	n, err := env.svc.ExpireOverdueApprovals(ctx)
	if err != nil {
		t.Fatalf("ExpireOverdueApprovals failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired approval, got %d", n)
	}

	run, _ := env.store.GetRun(ctx, pending.RunID)
	if run.Status != domain.RunStatusCancelled {
		t.Fatalf("expired approval must cancel the run, got %s", run.Status)
	}
	approval, _ := env.store.GetApproval(ctx, pending.ApprovalID)
	if approval.Decision != domain.DecisionExpired {
		t.Fatalf("approval must be expired, got %s", approval.Decision)
	}
}
