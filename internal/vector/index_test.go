package vector

import (
	"context"
	"math"
	"testing"
)

func newTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := NewSQLiteIndex(":memory:")
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestIndexQueryOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	vectors := map[string]Vector{
		"exact":      {1, 0, 0, 0},
		"close":      {0.9, 0.1, 0, 0},
		"orthogonal": {0, 1, 0, 0},
	}
	for id, vec := range vectors {
		if err := idx.Upsert(ctx, "memories", id, vec); err != nil {
			t.Fatalf("Upsert %s failed: %v", id, err)
		}
	}

	neighbors, err := idx.Query(ctx, "memories", Vector{1, 0, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(neighbors) != 3 {
		t.Fatalf("expected 3 neighbors, got %d", len(neighbors))
	}
	if neighbors[0].ExternalID != "exact" || neighbors[1].ExternalID != "close" {
		t.Fatalf("wrong order: %+v", neighbors)
	}
	if math.Abs(float64(neighbors[0].Score)-1.0) > 1e-5 {
		t.Fatalf("exact match must score 1.0, got %v", neighbors[0].Score)
	}
}

func TestIndexQueryRespectsK(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := idx.Upsert(ctx, "memories", id, Vector{1, 0, 0, 0}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	neighbors, err := idx.Query(ctx, "memories", Vector{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(neighbors))
	}
	// Equal scores: ascending external id keeps results stable.
	if neighbors[0].ExternalID != "a" || neighbors[1].ExternalID != "b" {
		t.Fatalf("unstable tie order: %+v", neighbors)
	}
}

func TestIndexUpsertReplacesAndDelete(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	if err := idx.Upsert(ctx, "memories", "a", Vector{0, 1, 0, 0}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := idx.Upsert(ctx, "memories", "a", Vector{1, 0, 0, 0}); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	neighbors, _ := idx.Query(ctx, "memories", Vector{1, 0, 0, 0}, 10)
	if len(neighbors) != 1 || math.Abs(float64(neighbors[0].Score)-1.0) > 1e-5 {
		t.Fatalf("upsert must replace in place: %+v", neighbors)
	}

	if err := idx.Delete(ctx, "memories", "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	neighbors, _ = idx.Query(ctx, "memories", Vector{1, 0, 0, 0}, 10)
	if len(neighbors) != 0 {
		t.Fatalf("deleted vector still returned: %+v", neighbors)
	}
}

func TestVectorEncodingRoundTrip(t *testing.T) {
	vec := Vector{0.25, -1.5, 3.75, 0}
	got := decodeVector(encodeVector(vec), len(vec))
	for i := range vec {
		if vec[i] != got[i] {
			t.Fatalf("round trip mismatch at %d: %v != %v", i, vec[i], got[i])
		}
	}
}

func TestIndexCollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	if err := idx.Upsert(ctx, "memories", "a", Vector{1, 0}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	neighbors, err := idx.Query(ctx, "other", Vector{1, 0}, 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(neighbors) != 0 {
		t.Fatalf("collections must not leak: %+v", neighbors)
	}
}
