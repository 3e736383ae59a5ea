package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jarvishq/jarvisd/internal/domain"
	"github.com/jarvishq/jarvisd/policy"
)

// Invoke runs one tool call end to end: catalog lookup, input validation,
// policy decision, audit row, optional confirmation, execution, terminal
// transition. The returned RunResult always names a persisted run unless the
// call was refused before any side effect was possible.
func (s *Service) Invoke(ctx context.Context, toolName string, input json.RawMessage) (*domain.RunResult, error) {
	tool, err := s.store.GetTool(ctx, toolName)
	if err != nil {
		return nil, &domain.StorageError{Op: "get tool", Err: err}
	}
	if tool == nil {
		return nil, &domain.PolicyError{Tool: toolName, Reason: "unknown tool", Err: domain.ErrToolNotFound}
	}
	if !tool.Enabled {
		return nil, &domain.PolicyError{Tool: toolName, Reason: "tool is disabled", Err: domain.ErrToolDisabled}
	}
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	args, err := validateInput(tool.Schema, input)
	if err != nil {
		return nil, &domain.PolicyError{Tool: toolName, Reason: "invalid input", Err: err}
	}

	decision, err := s.policy.Evaluate(ctx, policy.Input{
		ToolName:        tool.Name,
		Risk:            string(tool.Risk),
		RequiresConfirm: tool.RequiresConfirm,
		Args:            args,
	})
	if err != nil {
		return nil, fmt.Errorf("policy evaluation: %w", err)
	}
	if decision == policy.DecisionBlock {
		return nil, &domain.PolicyError{Tool: toolName, Reason: "blocked by policy"}
	}

	run, err := s.recorder.Create(ctx, tool.Name, input)
	if err != nil {
		return nil, err
	}

	if decision == policy.DecisionRequireApproval {
		return s.invokeGuarded(ctx, tool, run)
	}

	if err := s.recorder.Transition(ctx, run.RunID, domain.RunStatusRunning); err != nil {
		return nil, err
	}
	return s.execute(ctx, tool, run.RunID)
}

// invokeGuarded pauses the run for confirmation. With an operator channel
// wired the call blocks on the decision; otherwise it returns the pending
// approval token for a later decide-and-resume.
func (s *Service) invokeGuarded(ctx context.Context, tool *domain.Tool, run *domain.ToolRun) (*domain.RunResult, error) {
	if err := s.recorder.Transition(ctx, run.RunID, domain.RunStatusNeedsConfirm); err != nil {
		return nil, err
	}
	approval, err := s.gateway.Request(ctx, run)
	if err != nil {
		return nil, err
	}

	if s.gateway.prompter == nil {
		s.log.Info("tool run awaiting confirmation", "run_id", run.RunID, "tool", tool.Name, "approval_id", approval.ApprovalID)
		return &domain.RunResult{
			RunID:      run.RunID,
			Status:     domain.RunStatusNeedsConfirm,
			ApprovalID: approval.ApprovalID,
		}, nil
	}

	decision, err := s.gateway.Await(ctx, approval)
	if err != nil {
		return nil, err
	}
	return s.afterDecision(ctx, tool, run.RunID, decision)
}

// ResumeRun picks up a run paused in needs_confirm after its approval was
// decided over HTTP. Deny and expire cancel the run; approve executes it.
func (s *Service) ResumeRun(ctx context.Context, runID string, decision domain.ApprovalDecision) (*domain.RunResult, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, &domain.StorageError{Op: "get run", Err: err}
	}
	if run == nil {
		return nil, &domain.PolicyError{Reason: "run not found"}
	}
	if run.Status != domain.RunStatusNeedsConfirm {
		return nil, &domain.ConsistencyError{RunID: runID, From: run.Status, To: domain.RunStatusRunning}
	}
	tool, err := s.store.GetTool(ctx, run.ToolName)
	if err != nil {
		return nil, &domain.StorageError{Op: "get tool", Err: err}
	}
	if tool == nil {
		return nil, &domain.PolicyError{Tool: run.ToolName, Reason: "unknown tool", Err: domain.ErrToolNotFound}
	}
	return s.afterDecision(ctx, tool, runID, decision)
}

func (s *Service) afterDecision(ctx context.Context, tool *domain.Tool, runID string, decision domain.ApprovalDecision) (*domain.RunResult, error) {
	switch decision {
	case domain.DecisionApproved:
		if err := s.recorder.Transition(ctx, runID, domain.RunStatusRunning); err != nil {
			return nil, err
		}
		return s.execute(ctx, tool, runID)
	case domain.DecisionDenied:
		return s.cancel(ctx, runID, "denied by operator")
	case domain.DecisionExpired:
		return s.cancel(ctx, runID, "confirmation window elapsed")
	default:
		return nil, &domain.ConsistencyError{RunID: runID, To: domain.RunStatusRunning}
	}
}

func (s *Service) cancel(ctx context.Context, runID, reason string) (*domain.RunResult, error) {
	if err := s.recorder.Finish(ctx, runID, domain.RunStatusCancelled, nil, reason); err != nil {
		return nil, err
	}
	s.log.Info("tool run cancelled", "run_id", runID, "reason", reason)
	return &domain.RunResult{RunID: runID, Status: domain.RunStatusCancelled, Error: reason}, nil
}

// execute runs the tool body under its timeout and records the terminal
// state. The run is in running when this is called; it always leaves in
// success or failed.
func (s *Service) execute(ctx context.Context, tool *domain.Tool, runID string) (*domain.RunResult, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, &domain.StorageError{Op: "get run", Err: err}
	}

	timeout := time.Duration(tool.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = s.cfg.ToolTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, execErr := s.safeExecute(execCtx, tool.Name, run.Input)
	if execErr != nil {
		errText := (&domain.ExecutionError{Tool: tool.Name, Err: execErr}).Error()
		if err := s.recorder.Finish(ctx, runID, domain.RunStatusFailed, nil, errText); err != nil {
			return nil, err
		}
		s.log.Warn("tool run failed", "run_id", runID, "tool", tool.Name, "err", execErr)
		return &domain.RunResult{RunID: runID, Status: domain.RunStatusFailed, Error: errText}, nil
	}

	if err := s.recorder.Finish(ctx, runID, domain.RunStatusSuccess, output, ""); err != nil {
		return nil, err
	}
	s.log.Info("tool run succeeded", "run_id", runID, "tool", tool.Name)
	return &domain.RunResult{RunID: runID, Status: domain.RunStatusSuccess, Output: output}, nil
}

// safeExecute converts an executor panic into an error so a misbehaving tool
// body cannot leave the run stuck in running.
func (s *Service) safeExecute(ctx context.Context, toolName string, input json.RawMessage) (output json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return s.registry.Execute(ctx, toolName, input)
}

// validateInput checks the input object against the tool schema's required
// list and returns the parsed arguments for policy evaluation. Full JSON
// Schema validation is out of scope; presence of required keys catches the
// common operator mistakes.
func validateInput(schema, input json.RawMessage) (map[string]interface{}, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(input, &obj); err != nil {
		return nil, fmt.Errorf("input is not a JSON object: %w", err)
	}
	if len(schema) == 0 {
		return obj, nil
	}
	var meta struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &meta); err != nil {
		return obj, nil
	}
	for _, key := range meta.Required {
		if _, ok := obj[key]; !ok {
			return nil, fmt.Errorf("missing required field %q", key)
		}
	}
	return obj, nil
}
