package domain

import "encoding/json"

// InvokeRequest is the body of a tool invocation call.
type InvokeRequest struct {
	Input json.RawMessage `json:"input"`
}

// RunResult is the outcome of Dispatcher.Invoke. When the run is awaiting
// confirmation and no operator channel is wired, Status is needs_confirm and
// ApprovalID carries the resume token.
type RunResult struct {
	RunID      string          `json:"run_id"`
	Status     RunStatus       `json:"status"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	ApprovalID string          `json:"approval_id,omitempty"`
}

// ApprovalDecisionRequest is the operator's decision on a pending approval.
type ApprovalDecisionRequest struct {
	Decision string `json:"decision"` // "approve" or "deny"
	Response string `json:"response,omitempty"`
}

// WriteMemoryRequest creates a memory item. Importance defaults to 3.
type WriteMemoryRequest struct {
	Type       MemoryType `json:"type,omitempty"`
	Title      string     `json:"title,omitempty"`
	Body       string     `json:"body"`
	Tags       []string   `json:"tags,omitempty"`
	Importance int        `json:"importance,omitempty"`
	Pin        bool       `json:"pin,omitempty"`
	Source     SourceKind `json:"source,omitempty"`
	SourceRef  string     `json:"source_ref,omitempty"`
	ExpiresAt  string     `json:"expires_at,omitempty"` // RFC3339
}

// UpdateMemoryRequest patches a memory item. Nil fields are left unchanged.
type UpdateMemoryRequest struct {
	Type       *MemoryType `json:"type,omitempty"`
	Title      *string     `json:"title,omitempty"`
	Body       *string     `json:"body,omitempty"`
	Tags       *[]string   `json:"tags,omitempty"`
	Importance *int        `json:"importance,omitempty"`
	ExpiresAt  *string     `json:"expires_at,omitempty"` // RFC3339, "" clears
}

// ScoredMemory is one ranked retrieval result.
type ScoredMemory struct {
	Item  MemoryItem `json:"item"`
	Score float64    `json:"score"`
}
