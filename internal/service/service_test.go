package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jarvishq/jarvisd/internal/config"
	"github.com/jarvishq/jarvisd/internal/domain"
	"github.com/jarvishq/jarvisd/internal/store"
	"github.com/jarvishq/jarvisd/internal/tools"
	"github.com/jarvishq/jarvisd/internal/vector"
	"github.com/jarvishq/jarvisd/policy"
)

// fakeEmbedder returns a canned vector for every text.
type fakeEmbedder struct {
	fail bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (vector.Vector, error) {
	if f.fail {
		return nil, errors.New("provider unavailable")
	}
	return vector.Vector{1, 0, 0, 0}, nil
}

func (f *fakeEmbedder) Dims() int     { return 4 }
func (f *fakeEmbedder) Model() string { return "test-model" }

// fakeIndex records writes and answers queries with preset neighbors.
type fakeIndex struct {
	neighbors []vector.Neighbor
	upserts   map[string]vector.Vector
	deleted   []string
	queryErr  error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{upserts: map[string]vector.Vector{}}
}

func (f *fakeIndex) Upsert(ctx context.Context, collection, externalID string, vec vector.Vector) error {
	f.upserts[externalID] = vec
	return nil
}

func (f *fakeIndex) Delete(ctx context.Context, collection, externalID string) error {
	f.deleted = append(f.deleted, externalID)
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, collection string, vec vector.Vector, k int) ([]vector.Neighbor, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.neighbors) > k {
		return f.neighbors[:k], nil
	}
	return f.neighbors, nil
}

type testEnv struct {
	svc   *Service
	store *store.SQLiteStore
	index *fakeIndex
}

type testOptions struct {
	embedder vector.Embedder
	index    vector.Index
	prompter Prompter
	approval time.Duration
}

func newTestService(t *testing.T, opts testOptions) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	eng, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("failed to create policy engine: %v", err)
	}

	registry := tools.NewRegistry()
	registry.MustRegister("echo", func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return input, nil
	})
	registry.MustRegister("boom", func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("kaboom")
	})
	registry.MustRegister("guarded", func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"done":true}`), nil
	})

	approval := opts.approval
	if approval == 0 {
		approval = time.Second
	}
	cfg := &config.Config{
		ToolTimeout:     5 * time.Second,
		ApprovalTimeout: approval,
		SweepInterval:   time.Minute,
		ContextSearchK:  8,
	}

	logger := log.New(io.Discard)
	svc := New(st, registry, eng, opts.embedder, opts.index, opts.prompter, cfg, logger)
	tools.RegisterMemoryExecutors(registry, svc)

	env := &testEnv{svc: svc, store: st}
	if fi, ok := opts.index.(*fakeIndex); ok {
		env.index = fi
	}
	return env
}

func seedTestTool(t *testing.T, st *store.SQLiteStore, name string, risk domain.RiskTier, confirm, enabled bool, required ...string) {
	t.Helper()
	schema := map[string]any{"type": "object"}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)
	tool := &domain.Tool{
		Name:            name,
		Category:        "test",
		Risk:            risk,
		RequiresConfirm: confirm,
		Enabled:         enabled,
		Schema:          raw,
		TimeoutMs:       2000,
	}
	if err := st.UpsertTool(context.Background(), tool); err != nil {
		t.Fatalf("UpsertTool failed: %v", err)
	}
}
