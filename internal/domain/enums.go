// Package domain defines the core domain models for the assistant backend.
package domain

// RiskTier classifies a tool's potential impact.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// ValidRiskTiers are the allowed risk tiers.
var ValidRiskTiers = map[RiskTier]bool{
	RiskLow:    true,
	RiskMedium: true,
	RiskHigh:   true,
}

// RunStatus represents the audit state of a tool run.
type RunStatus string

const (
	RunStatusPlanned      RunStatus = "planned"
	RunStatusNeedsConfirm RunStatus = "needs_confirm"
	RunStatusRunning      RunStatus = "running"
	RunStatusSuccess      RunStatus = "success"
	RunStatusFailed       RunStatus = "failed"
	RunStatusCancelled    RunStatus = "cancelled"
)

// Terminal reports whether a run in this status is immutable.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusSuccess, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// AllowedTransitions is the run state machine. A transition absent from this
// map is a programming error, not a domain condition.
var AllowedTransitions = map[RunStatus][]RunStatus{
	RunStatusPlanned:      {RunStatusNeedsConfirm, RunStatusRunning, RunStatusCancelled},
	RunStatusNeedsConfirm: {RunStatusRunning, RunStatusCancelled},
	RunStatusRunning:      {RunStatusSuccess, RunStatusFailed},
}

// CanTransition reports whether from -> to is a legal run transition.
func CanTransition(from, to RunStatus) bool {
	for _, next := range AllowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ApprovalDecision represents the outcome of a confirmation handshake.
type ApprovalDecision string

const (
	DecisionPending  ApprovalDecision = "pending"
	DecisionApproved ApprovalDecision = "approved"
	DecisionDenied   ApprovalDecision = "denied"
	DecisionExpired  ApprovalDecision = "expired"
)

// MemoryType tags a stored memory item.
type MemoryType string

const (
	MemoryTypeFact       MemoryType = "fact"
	MemoryTypePreference MemoryType = "preference"
	MemoryTypeNote       MemoryType = "note"
	MemoryTypeTask       MemoryType = "task"
)

// ValidMemoryTypes are the allowed memory type tags.
var ValidMemoryTypes = map[MemoryType]bool{
	MemoryTypeFact:       true,
	MemoryTypePreference: true,
	MemoryTypeNote:       true,
	MemoryTypeTask:       true,
}

// SourceKind records where a memory item came from.
type SourceKind string

const (
	SourceUser      SourceKind = "user"
	SourceAssistant SourceKind = "assistant"
	SourceToolRun   SourceKind = "tool_run"
	SourceWeb       SourceKind = "web"
)
