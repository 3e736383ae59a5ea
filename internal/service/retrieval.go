package service

import (
	"context"
	"sort"
	"strings"

	"github.com/jarvishq/jarvisd/internal/domain"
)

// Fusion weights. Semantic dominates when both channels score an item;
// importance scales the fused score and pinning adds a flat boost so a
// pinned, high-importance exact match outranks a semantically closer but
// low-importance one.
const (
	semanticWeight     = 0.7
	lexicalWeight      = 0.3
	importanceBase     = 0.8
	importanceStep     = 0.05
	pinBoost           = 0.05
	defaultSearchK     = 8
	semanticOversample = 4
)

// Search runs hybrid retrieval: a lexical pass over live items plus a
// semantic pass against the vector index, fused per item. When no embedding
// provider is wired, or the provider errors, the result is lexical-only.
func (s *Service) Search(ctx context.Context, query string, k int) ([]domain.ScoredMemory, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &domain.PolicyError{Reason: "query is required"}
	}
	if k <= 0 {
		k = defaultSearchK
	}

	items, err := s.store.AllLiveMemories(ctx)
	if err != nil {
		return nil, &domain.StorageError{Op: "list live memories", Err: err}
	}
	if len(items) == 0 {
		return []domain.ScoredMemory{}, nil
	}

	lexical := make(map[string]float64, len(items))
	terms := tokenize(query)
	for _, item := range items {
		if score := lexicalScore(terms, &item); score > 0 {
			lexical[item.MemoryID] = score
		}
	}

	semantic := s.semanticScores(ctx, query, k)

	byID := make(map[string]*domain.MemoryItem, len(items))
	for i := range items {
		byID[items[i].MemoryID] = &items[i]
	}

	seen := make(map[string]bool, len(lexical)+len(semantic))
	results := make([]domain.ScoredMemory, 0, len(lexical)+len(semantic))
	for id := range lexical {
		seen[id] = true
	}
	for id := range semantic {
		seen[id] = true
	}
	for id := range seen {
		item, ok := byID[id]
		if !ok {
			// Semantic hit whose row expired between the index query and
			// the liveness read.
			continue
		}
		results = append(results, domain.ScoredMemory{
			Item:  *item,
			Score: fuse(lexical[id], semantic[id], item),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Item.UpdatedAt.Equal(results[j].Item.UpdatedAt) {
			return results[i].Item.UpdatedAt.After(results[j].Item.UpdatedAt)
		}
		return results[i].Item.MemoryID < results[j].Item.MemoryID
	})
	if len(results) > k {
		results = results[:k]
	}

	for _, r := range results {
		if err := s.store.TouchMemory(ctx, r.Item.MemoryID); err != nil {
			s.log.Warn("failed to touch memory", "memory_id", r.Item.MemoryID, "err", err)
		}
	}
	return results, nil
}

// fuse combines channel scores with the importance factor and pin boost.
// The base is floored at each raw channel score, so an item present in
// one channel is scored on that channel alone rather than penalized for
// missing the other, and gaining a weak second channel never lowers it.
func fuse(lexical, semantic float64, item *domain.MemoryItem) float64 {
	base := semanticWeight*semantic + lexicalWeight*lexical
	if semantic > base {
		base = semantic
	}
	if lexical > base {
		base = lexical
	}
	score := base * (importanceBase + importanceStep*float64(item.Importance))
	if item.Pinned {
		score += pinBoost
	}
	return score
}

// semanticScores queries the vector index and maps external IDs back to
// memory IDs. Any failure degrades to an empty map.
func (s *Service) semanticScores(ctx context.Context, query string, k int) map[string]float64 {
	if s.embedder == nil || s.index == nil {
		return nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.log.Warn("query embedding failed, falling back to lexical-only", "err", err)
		return nil
	}

	neighbors, err := s.index.Query(ctx, vectorCollection, vec, k*semanticOversample)
	if err != nil {
		s.log.Warn("vector query failed, falling back to lexical-only", "err", err)
		return nil
	}
	if len(neighbors) == 0 {
		return nil
	}

	externalIDs := make([]string, len(neighbors))
	for i, n := range neighbors {
		externalIDs[i] = n.ExternalID
	}
	mapping, err := s.store.ResolveExternalIDs(ctx, s.embedder.Model(), externalIDs)
	if err != nil {
		s.log.Warn("vector ref resolution failed, falling back to lexical-only", "err", err)
		return nil
	}

	scores := make(map[string]float64, len(neighbors))
	for _, n := range neighbors {
		memoryID, ok := mapping[n.ExternalID]
		if !ok {
			continue
		}
		score := float64(n.Score)
		if score < 0 {
			score = 0
		} else if score > 1 {
			score = 1
		}
		scores[memoryID] = score
	}
	return scores
}

// lexicalScore is the fraction of query terms found in the item's title,
// body, or tags. Case-insensitive substring match per term.
func lexicalScore(terms []string, item *domain.MemoryItem) float64 {
	if len(terms) == 0 {
		return 0
	}
	haystack := strings.ToLower(item.Title + " " + item.Body + " " + strings.Join(item.Tags, " "))
	matched := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()")
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}
