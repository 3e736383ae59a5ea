package domain

import (
	"errors"
	"fmt"
)

// Registry lookup outcomes. Disabled is deliberately distinct from NotFound:
// the dispatcher refuses both but reports them differently.
var (
	ErrToolNotFound = errors.New("tool not found")
	ErrToolDisabled = errors.New("tool disabled")
)

// PolicyError is a non-retryable refusal: unknown/disabled tool, malformed
// input, or a denied/expired confirmation.
type PolicyError struct {
	Tool   string
	Reason string
	Err    error
}

func (e *PolicyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("policy refused %s: %s: %v", e.Tool, e.Reason, e.Err)
	}
	return fmt.Sprintf("policy refused %s: %s", e.Tool, e.Reason)
}

func (e *PolicyError) Unwrap() error { return e.Err }

// ExecutionError wraps a tool execute failure. The underlying error text is
// preserved verbatim for audit.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ConsistencyError signals an invalid run state transition. It is a
// programming defect in the calling code path, never a domain condition.
type ConsistencyError struct {
	RunID string
	From  RunStatus
	To    RunStatus
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("invalid transition for run %s: %s -> %s", e.RunID, e.From, e.To)
}

// StorageError marks a persistence failure. Always fatal and surfaced: an
// unrecorded audit row violates the system's core guarantee.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
