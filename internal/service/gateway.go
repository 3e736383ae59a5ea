package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jarvishq/jarvisd/internal/domain"
	"github.com/jarvishq/jarvisd/internal/store"
)

// Prompter is an operator channel that can answer a confirmation prompt
// synchronously. When nil, approvals stay pending and are resolved later
// through the HTTP decision endpoint.
type Prompter interface {
	Prompt(ctx context.Context, promptText string) (approved bool, response string, err error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, promptText string) (bool, string, error)

func (f PrompterFunc) Prompt(ctx context.Context, promptText string) (bool, string, error) {
	return f(ctx, promptText)
}

// Gateway mediates confirmation for guarded tool runs. Each guarded run gets
// exactly one approval row; the decision is recorded before execution is
// allowed to proceed.
type Gateway struct {
	store    *store.SQLiteStore
	prompter Prompter
	timeout  time.Duration
	log      *log.Logger
}

// NewGateway creates an approval gateway. prompter may be nil; guarded runs
// then stay pending until decided over HTTP.
func NewGateway(st *store.SQLiteStore, prompter Prompter, timeout time.Duration, logger *log.Logger) *Gateway {
	return &Gateway{
		store:    st,
		prompter: prompter,
		timeout:  timeout,
		log:      logger,
	}
}

// Request opens an approval for a run and returns it. The prompt text always
// names the tool and a compact rendering of its arguments so the operator
// sees exactly what was asked.
func (g *Gateway) Request(ctx context.Context, run *domain.ToolRun) (*domain.Approval, error) {
	approval := &domain.Approval{
		ApprovalID: "ap_" + uuid.New().String(),
		RunID:      run.RunID,
		PromptText: renderPrompt(run.ToolName, run.Input),
		Decision:   domain.DecisionPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := g.store.CreateApproval(ctx, approval); err != nil {
		return nil, &domain.StorageError{Op: "create approval", Err: err}
	}
	return approval, nil
}

// Await asks the operator channel for a decision and records it. A prompt
// that errors or outlives the confirmation window expires the approval. If
// the approval was decided elsewhere first, that decision wins.
func (g *Gateway) Await(ctx context.Context, approval *domain.Approval) (domain.ApprovalDecision, error) {
	deadline := g.timeout
	if deadline <= 0 {
		deadline = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	approved, response, err := g.prompter.Prompt(ctx, approval.PromptText)
	if err != nil {
		g.expire(approval.ApprovalID, "no response within confirmation window")
		return domain.DecisionExpired, nil
	}
	decision := domain.DecisionDenied
	if approved {
		decision = domain.DecisionApproved
	}
	ok, err := g.store.DecideApprovalIfPending(ctx, approval.ApprovalID, decision, response)
	if err != nil {
		return "", &domain.StorageError{Op: "decide approval", Err: err}
	}
	if !ok {
		return g.decidedState(ctx, approval.ApprovalID)
	}
	return decision, nil
}

// Resolve records an operator decision on a pending approval. It returns
// the decided approval, or a PolicyError when the approval is unknown or
// already settled.
func (g *Gateway) Resolve(ctx context.Context, approvalID string, approve bool, response string) (*domain.Approval, error) {
	decision := domain.DecisionDenied
	if approve {
		decision = domain.DecisionApproved
	}
	ok, err := g.store.DecideApprovalIfPending(ctx, approvalID, decision, response)
	if err != nil {
		return nil, &domain.StorageError{Op: "decide approval", Err: err}
	}
	if !ok {
		existing, err := g.store.GetApproval(ctx, approvalID)
		if err != nil {
			return nil, &domain.StorageError{Op: "get approval", Err: err}
		}
		if existing == nil {
			return nil, &domain.PolicyError{Reason: "approval not found"}
		}
		return nil, &domain.PolicyError{Reason: fmt.Sprintf("approval already %s", existing.Decision)}
	}

	approval, err := g.store.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, &domain.StorageError{Op: "get approval", Err: err}
	}
	return approval, nil
}

func (g *Gateway) expire(approvalID, response string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := g.store.DecideApprovalIfPending(ctx, approvalID, domain.DecisionExpired, response); err != nil {
		g.log.Warn("failed to expire approval", "approval_id", approvalID, "err", err)
	}
}

func (g *Gateway) decidedState(ctx context.Context, approvalID string) (domain.ApprovalDecision, error) {
	approval, err := g.store.GetApproval(ctx, approvalID)
	if err != nil || approval == nil {
		return domain.DecisionExpired, nil
	}
	return approval.Decision, nil
}

// renderPrompt builds the operator-facing confirmation text.
func renderPrompt(toolName string, input json.RawMessage) string {
	args := "{}"
	if len(input) > 0 {
		compact := make(map[string]any)
		if json.Unmarshal(input, &compact) == nil {
			if b, err := json.Marshal(compact); err == nil {
				args = string(b)
			}
		}
	}
	if len(args) > 300 {
		args = args[:300] + "..."
	}
	return fmt.Sprintf("Allow tool %q to run with arguments %s?", toolName, args)
}
