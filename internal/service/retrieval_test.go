package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/jarvishq/jarvisd/internal/domain"
	"github.com/jarvishq/jarvisd/internal/vector"
)

func writeTestMemory(t *testing.T, env *testEnv, req domain.WriteMemoryRequest) *domain.MemoryItem {
	t.Helper()
	item, err := env.svc.WriteMemory(context.Background(), req)
	if err != nil {
		t.Fatalf("WriteMemory failed: %v", err)
	}
	return item
}

func TestSearchRequiresQuery(t *testing.T) {
	env := newTestService(t, testOptions{})
	if _, err := env.svc.Search(context.Background(), "   ", 5); err == nil {
		t.Fatalf("blank query must be refused")
	}
}

func TestSearchLexicalOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, testOptions{})

	writeTestMemory(t, env, domain.WriteMemoryRequest{Body: "the wifi password is hunter2", Tags: []string{"home"}})
	writeTestMemory(t, env, domain.WriteMemoryRequest{Body: "water the plants on friday"})

	results, err := env.svc.Search(ctx, "wifi password", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(results))
	}
	if results[0].Item.Body != "the wifi password is hunter2" {
		t.Fatalf("wrong item ranked first: %+v", results[0].Item)
	}
}

func TestSearchHybridRanking(t *testing.T) {
	ctx := context.Background()
	index := newFakeIndex()
	env := newTestService(t, testOptions{embedder: &fakeEmbedder{}, index: index})

	// Full lexical match, top importance, pinned.
	itemA := writeTestMemory(t, env, domain.WriteMemoryRequest{
		Body:       "espresso machine descaling steps",
		Importance: 5,
		Pin:        true,
	})
	// No lexical overlap; ranked only by the semantic channel.
	itemB := writeTestMemory(t, env, domain.WriteMemoryRequest{
		Body:       "favorite coffee is a flat white",
		Importance: 2,
	})

	refB, err := env.store.GetVectorRef(ctx, itemB.MemoryID, "test-model")
	if err != nil || refB == nil {
		t.Fatalf("vector ref for B missing: %v", err)
	}
	index.neighbors = []vector.Neighbor{{ExternalID: refB.ExternalID, Score: 0.9}}

	results, err := env.svc.Search(ctx, "espresso machine descaling steps", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Item.MemoryID != itemA.MemoryID {
		t.Fatalf("pinned exact match must rank first, got %s", results[0].Item.MemoryID)
	}

	// A: 1.0 * (0.8 + 0.05*5) + 0.05 = 1.10
	if math.Abs(results[0].Score-1.10) > 1e-9 {
		t.Fatalf("unexpected score for A: %v", results[0].Score)
	}
	// B: 0.9 * (0.8 + 0.05*2) = 0.81
	if math.Abs(results[1].Score-0.81) > 1e-9 {
		t.Fatalf("unexpected score for B: %v", results[1].Score)
	}
}

func TestFuseMonotonicInChannelScores(t *testing.T) {
	item := &domain.MemoryItem{Importance: 3}

	// Raising either raw channel score never lowers the fused score,
	// including when a channel goes from absent to barely present.
	steps := []float64{0, 0.001, 0.1, 0.5, 0.9, 1.0}
	for _, semantic := range steps {
		prev := -1.0
		for _, lexical := range steps {
			got := fuse(lexical, semantic, item)
			if got < prev {
				t.Fatalf("fused score dropped when lexical rose to %v (semantic %v): %v < %v",
					lexical, semantic, got, prev)
			}
			prev = got
		}
	}
	for _, lexical := range steps {
		prev := -1.0
		for _, semantic := range steps {
			got := fuse(lexical, semantic, item)
			if got < prev {
				t.Fatalf("fused score dropped when semantic rose to %v (lexical %v): %v < %v",
					semantic, lexical, got, prev)
			}
			prev = got
		}
	}

	// A semantic-only item gaining a weak lexical hit keeps its score.
	factor := 0.8 + 0.05*float64(item.Importance)
	alone := fuse(0, 0.9, item)
	if math.Abs(alone-0.9*factor) > 1e-9 {
		t.Fatalf("single-channel score wrong: %v", alone)
	}
	if both := fuse(0.001, 0.9, item); both < alone {
		t.Fatalf("weak lexical hit lowered the score: %v < %v", both, alone)
	}
}

func TestSearchDegradesWhenProviderFails(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, testOptions{embedder: &fakeEmbedder{fail: true}, index: newFakeIndex()})

	writeTestMemory(t, env, domain.WriteMemoryRequest{Body: "backup runs at midnight"})

	results, err := env.svc.Search(ctx, "backup midnight", 5)
	if err != nil {
		t.Fatalf("provider failure must degrade, not error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("lexical channel must still serve results, got %d", len(results))
	}
}

func TestSearchDeterministicTieBreak(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, testOptions{})

	// Identical timestamps force the memory_id tie-break.
	now := time.Now().UTC().Truncate(time.Second)
	for _, id := range []string{"mem_a", "mem_b"} {
		item := &domain.MemoryItem{
			MemoryID:   id,
			Type:       domain.MemoryTypeNote,
			Body:       "trains depart hourly",
			Importance: 3,
			Source:     domain.SourceUser,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := env.store.InsertMemory(ctx, item); err != nil {
			t.Fatalf("InsertMemory failed: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		results, err := env.svc.Search(ctx, "trains depart", 5)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		if results[0].Item.MemoryID != "mem_a" {
			t.Fatalf("tie-break not deterministic on pass %d: got %s", i, results[0].Item.MemoryID)
		}
	}
}

func TestSearchTruncatesToK(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, testOptions{})

	for i := 0; i < 5; i++ {
		writeTestMemory(t, env, domain.WriteMemoryRequest{Body: "meeting notes from standup"})
	}

	results, err := env.svc.Search(ctx, "meeting notes", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
}

func TestSearchRecordsAccess(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, testOptions{})

	item := writeTestMemory(t, env, domain.WriteMemoryRequest{Body: "gym on tuesdays"})

	if _, err := env.svc.Search(ctx, "gym", 5); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	got, _ := env.store.GetMemory(ctx, item.MemoryID)
	if got.AccessCount != 1 {
		t.Fatalf("retrieval must record access, count=%d", got.AccessCount)
	}
}
