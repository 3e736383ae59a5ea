package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type queryInput struct {
	Action   string            `json:"action"`
	Template string            `json:"template,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
}

// NewQueryExecutor returns the domain-query generator. It renders operator
// maintained templates with parameter substitution; it never connects to
// the target system.
func NewQueryExecutor(templates map[string]string) ExecutorFunc {
	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		var in queryInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}

		switch strings.ToLower(in.Action) {
		case "", "templates", "list":
			names := make([]string, 0, len(templates))
			for name := range templates {
				names = append(names, name)
			}
			sort.Strings(names)
			return json.Marshal(map[string]interface{}{"templates": names})

		case "query", "generate":
			if in.Template == "" {
				return nil, fmt.Errorf("template is required")
			}
			raw, ok := templates[in.Template]
			if !ok {
				return nil, fmt.Errorf("unknown template: %s", in.Template)
			}
			rendered := raw
			for key, val := range in.Params {
				rendered = strings.ReplaceAll(rendered, "{"+key+"}", val)
			}
			return json.Marshal(map[string]interface{}{
				"template": in.Template,
				"query":    strings.TrimSpace(rendered),
			})

		default:
			return nil, fmt.Errorf("unknown action: %s", in.Action)
		}
	}
}
