// Package policy evaluates the risk policy for tool invocations via OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Decision values produced by the policy.
const (
	DecisionAllow           = "allow"
	DecisionRequireApproval = "require_approval"
	DecisionBlock           = "block"
)

// Input is the policy evaluation input for one tool call.
type Input struct {
	ToolName        string                 `json:"tool_name"`
	Risk            string                 `json:"risk"`
	RequiresConfirm bool                   `json:"requires_confirm"`
	Args            map[string]interface{} `json:"args"`
}

// Engine is a prepared OPA query over the gateway policy.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles the given rego policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.gateway.decision"),
		rego.Module("gateway.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &Engine{query: query}, nil
}

// Evaluate returns allow, require_approval, or block for the given call.
// A policy that produces no decision defaults to allow.
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, error) {
	in := map[string]interface{}{
		"tool_name":        input.ToolName,
		"risk":             input.Risk,
		"requires_confirm": input.RequiresConfirm,
		"args":             input.Args,
	}
	if in["args"] == nil {
		in["args"] = map[string]interface{}{}
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, nil
	}
	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return DecisionAllow, nil
}

// DefaultPolicy gates high-risk tools and anything flagged requires_confirm
// behind operator approval.
const DefaultPolicy = `
package gateway

default decision := "allow"

decision := "require_approval" if input.requires_confirm

decision := "require_approval" if input.risk == "high"
`
