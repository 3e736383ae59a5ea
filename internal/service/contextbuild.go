package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jarvishq/jarvisd/internal/domain"
)

// ContextBlock is one memory rendered for prompt injection.
type ContextBlock struct {
	MemoryID string  `json:"memory_id"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// AssembledContext is the budget-bounded context for one query.
type AssembledContext struct {
	Query     string         `json:"query"`
	Blocks    []ContextBlock `json:"blocks"`
	CharsUsed int            `json:"chars_used"`
	Budget    int            `json:"budget"`
}

// BuildContext retrieves the best memories for the query and packs them
// greedily into the character budget, best score first. An item that does
// not fit is skipped whole, never truncated, so lower-scored items may
// still fill the remaining room.
func (s *Service) BuildContext(ctx context.Context, query string, budget int) (*AssembledContext, error) {
	if budget <= 0 {
		budget = 2000
	}
	k := s.cfg.ContextSearchK
	if k <= 0 {
		k = defaultSearchK
	}

	scored, err := s.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	out := &AssembledContext{Query: query, Blocks: []ContextBlock{}, Budget: budget}
	for _, sm := range scored {
		text := renderBlock(&sm.Item)
		if out.CharsUsed+len(text) > budget {
			continue
		}
		out.Blocks = append(out.Blocks, ContextBlock{
			MemoryID: sm.Item.MemoryID,
			Score:    sm.Score,
			Text:     text,
		})
		out.CharsUsed += len(text)
	}
	return out, nil
}

func renderBlock(item *domain.MemoryItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s", item.Type)
	if item.Pinned {
		b.WriteString(", pinned")
	}
	b.WriteString("] ")
	if item.Title != "" {
		b.WriteString(item.Title)
		b.WriteString(": ")
	}
	b.WriteString(item.Body)
	if len(item.Tags) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(item.Tags, ", "))
	}
	return b.String()
}
