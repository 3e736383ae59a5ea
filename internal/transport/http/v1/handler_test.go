package v1

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jarvishq/jarvisd/internal/config"
	"github.com/jarvishq/jarvisd/internal/service"
	"github.com/jarvishq/jarvisd/internal/store"
	"github.com/jarvishq/jarvisd/internal/tools"
	"github.com/jarvishq/jarvisd/policy"
	"github.com/jarvishq/jarvisd/tests/helpers"
)

func newTestHandler(t *testing.T) (*Handler, *store.SQLiteStore) {
	t.Helper()

	st := helpers.NewTestSQLiteStore(t)

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("failed to create policy engine: %v", err)
	}

	registry := tools.NewRegistry()
	registry.MustRegister("queries", tools.NewQueryExecutor(map[string]string{"weather": "weather in {city}"}))
	registry.MustRegister("shell", func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"output":"ok"}`), nil
	})
	registry.MustRegister("device", func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"done":true}`), nil
	})

	cfg := &config.Config{
		ToolTimeout:     5 * time.Second,
		ApprovalTimeout: time.Minute,
		ContextSearchK:  8,
	}
	svc := service.New(st, registry, engine, nil, nil, nil, cfg, log.New(io.Discard))
	tools.RegisterMemoryExecutors(registry, svc)

	if err := svc.SeedTools(context.Background()); err != nil {
		t.Fatalf("failed to seed tools: %v", err)
	}
	return NewHandler(svc), st
}
