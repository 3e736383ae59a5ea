package tools

import (
	"context"
	"encoding/json"
	"testing"
)

func testTemplates() map[string]string {
	return map[string]string{
		"weather": "weather in {city}",
		"define":  "define {term}",
	}
}

func TestQueryExecutorListsTemplates(t *testing.T) {
	exec := NewQueryExecutor(testTemplates())

	out, err := exec(context.Background(), json.RawMessage(`{"action":"templates"}`))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	var result struct {
		Templates []string `json:"templates"`
	}
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("invalid output: %v", err)
	}
	if len(result.Templates) != 2 || result.Templates[0] != "define" {
		t.Fatalf("unexpected templates: %v", result.Templates)
	}
}

func TestQueryExecutorRendersTemplate(t *testing.T) {
	exec := NewQueryExecutor(testTemplates())

	out, err := exec(context.Background(),
		json.RawMessage(`{"action":"query","template":"weather","params":{"city":"Oslo"}}`))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	var result struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("invalid output: %v", err)
	}
	if result.Query != "weather in Oslo" {
		t.Fatalf("unexpected query: %q", result.Query)
	}
}

func TestQueryExecutorUnknownTemplate(t *testing.T) {
	exec := NewQueryExecutor(testTemplates())

	if _, err := exec(context.Background(), json.RawMessage(`{"action":"query","template":"nope"}`)); err == nil {
		t.Fatalf("unknown template must be rejected")
	}
}

func TestQueryExecutorUnknownAction(t *testing.T) {
	exec := NewQueryExecutor(testTemplates())

	if _, err := exec(context.Background(), json.RawMessage(`{"action":"drop"}`)); err == nil {
		t.Fatalf("unknown action must be rejected")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	noop := func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return nil, nil
	}
	if err := r.Register("echo", noop); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("echo", noop); err == nil {
		t.Fatalf("duplicate registration must fail")
	}
	if _, err := r.Execute(context.Background(), "missing", nil); err == nil {
		t.Fatalf("missing executor must fail")
	}
}
