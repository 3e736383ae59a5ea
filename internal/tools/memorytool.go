package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jarvishq/jarvisd/internal/domain"
)

// MemoryAPI is the slice of the memory service the builtin memory tools
// need. Declared here so the executors stay decoupled from the service
// package.
type MemoryAPI interface {
	WriteMemory(ctx context.Context, req domain.WriteMemoryRequest) (*domain.MemoryItem, error)
	QueryMemories(ctx context.Context, typ domain.MemoryType, tag, text string, minImportance, limit int) ([]domain.MemoryItem, error)
	PinMemory(ctx context.Context, memoryID string) error
	ForgetMemory(ctx context.Context, memoryID string) error
}

type memoryQueryInput struct {
	Query         string `json:"query,omitempty"`
	Type          string `json:"type,omitempty"`
	Tag           string `json:"tag,omitempty"`
	MinImportance int    `json:"min_importance,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

type memoryIDInput struct {
	MemoryID string `json:"memory_id"`
}

// RegisterMemoryExecutors wires the memory lifecycle tools onto the
// registry.
func RegisterMemoryExecutors(r *Registry, mem MemoryAPI) {
	r.MustRegister("memory_write", func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		var req domain.WriteMemoryRequest
		if err := json.Unmarshal(input, &req); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		if req.Body == "" {
			return nil, fmt.Errorf("body is required")
		}
		item, err := mem.WriteMemory(ctx, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"memory_id": item.MemoryID})
	})

	r.MustRegister("memory_query", func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		var in memoryQueryInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		items, err := mem.QueryMemories(ctx, domain.MemoryType(in.Type), in.Tag, in.Query, in.MinImportance, in.Limit)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{"count": len(items), "memories": items})
	})

	r.MustRegister("memory_pin", func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		var in memoryIDInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		if err := mem.PinMemory(ctx, in.MemoryID); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"memory_id": in.MemoryID, "status": "pinned"})
	})

	r.MustRegister("memory_forget", func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		var in memoryIDInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		if err := mem.ForgetMemory(ctx, in.MemoryID); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"memory_id": in.MemoryID, "status": "deleted"})
	})
}
