package domain

import (
	"encoding/json"
	"time"
)

// Tool is a registered tool's identity and policy metadata. Content is
// externally administered; the core only reads it.
type Tool struct {
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	Description     string          `json:"description,omitempty"`
	Risk            RiskTier        `json:"risk"`
	RequiresConfirm bool            `json:"requires_confirm"`
	Enabled         bool            `json:"enabled"`
	Schema          json.RawMessage `json:"schema,omitempty"`
	TimeoutMs       int             `json:"timeout_ms"`
}

// ToolRun is one attempted tool invocation. Rows are append/update-only and
// immutable once the status is terminal.
type ToolRun struct {
	RunID      string          `json:"run_id"`
	ToolName   string          `json:"tool_name"`
	Status     RunStatus       `json:"status"`
	Input      json.RawMessage `json:"input"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	DurationMs *int64          `json:"duration_ms,omitempty"`
}

// Approval is the confirmation decision tied 1:1 to a run that required it.
// Written once, terminal.
type Approval struct {
	ApprovalID   string           `json:"approval_id"`
	RunID        string           `json:"run_id"`
	PromptText   string           `json:"prompt_text"`
	UserResponse string           `json:"user_response,omitempty"`
	Decision     ApprovalDecision `json:"decision"`
	CreatedAt    time.Time        `json:"created_at"`
	DecidedAt    *time.Time       `json:"decided_at,omitempty"`
}

// MemoryItem is a typed, persisted fact/preference/note with lifecycle
// levers: importance weighs ranking, pin exempts from the expiry sweep.
type MemoryItem struct {
	MemoryID       string     `json:"memory_id"`
	Type           MemoryType `json:"type"`
	Title          string     `json:"title,omitempty"`
	Body           string     `json:"body"`
	Tags           []string   `json:"tags,omitempty"`
	Importance     int        `json:"importance"`
	Pinned         bool       `json:"pinned"`
	Source         SourceKind `json:"source"`
	SourceRef      string     `json:"source_ref,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

// VectorRef links a memory item to its embedding in the external index.
// Refs from superseded embedding models are kept for audit but excluded
// from queries.
type VectorRef struct {
	VectorID   string    `json:"vector_id"`
	MemoryID   string    `json:"memory_id"`
	Provider   string    `json:"provider"`
	Collection string    `json:"collection"`
	Model      string    `json:"embedding_model"`
	Dimension  int       `json:"dimension"`
	ExternalID string    `json:"external_id"`
	CreatedAt  time.Time `json:"created_at"`
}
