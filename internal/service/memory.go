package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/jarvishq/jarvisd/internal/domain"
	"github.com/jarvishq/jarvisd/internal/store"
)

// WriteMemory stores a new memory item and, when an embedding provider is
// wired, indexes it for semantic retrieval. Embedding failure never fails
// the write.
func (s *Service) WriteMemory(ctx context.Context, req domain.WriteMemoryRequest) (*domain.MemoryItem, error) {
	if strings.TrimSpace(req.Body) == "" {
		return nil, &domain.PolicyError{Tool: "memory_write", Reason: "body is required"}
	}

	now := time.Now().UTC()
	item := &domain.MemoryItem{
		MemoryID:   "mem_" + strings.ToLower(ulid.Make().String()),
		Type:       req.Type,
		Title:      req.Title,
		Body:       req.Body,
		Tags:       req.Tags,
		Importance: req.Importance,
		Pinned:     req.Pin,
		Source:     req.Source,
		SourceRef:  req.SourceRef,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if item.Type == "" {
		item.Type = domain.MemoryTypeNote
	}
	if !domain.ValidMemoryTypes[item.Type] {
		return nil, &domain.PolicyError{Tool: "memory_write", Reason: "memory type must be one of fact, preference, note, task"}
	}
	if item.Importance == 0 {
		item.Importance = 3
	}
	if item.Importance < 1 || item.Importance > 5 {
		return nil, &domain.PolicyError{Tool: "memory_write", Reason: "importance must be between 1 and 5"}
	}
	if item.Source == "" {
		item.Source = domain.SourceUser
	}
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return nil, &domain.PolicyError{Tool: "memory_write", Reason: "expires_at must be RFC3339", Err: err}
		}
		tt := t.UTC()
		item.ExpiresAt = &tt
	}

	if err := s.store.InsertMemory(ctx, item); err != nil {
		return nil, &domain.StorageError{Op: "insert memory", Err: err}
	}

	s.indexMemory(ctx, item)
	return item, nil
}

// UpdateMemory patches an item and re-indexes it when its text changed.
func (s *Service) UpdateMemory(ctx context.Context, memoryID string, req domain.UpdateMemoryRequest) (*domain.MemoryItem, error) {
	var u store.MemoryUpdate
	reindex := false

	if req.Type != nil {
		if !domain.ValidMemoryTypes[*req.Type] {
			return nil, &domain.PolicyError{Reason: "memory type must be one of fact, preference, note, task"}
		}
		u.Type = req.Type
	}
	if req.Title != nil {
		u.Title = req.Title
		reindex = true
	}
	if req.Body != nil {
		if strings.TrimSpace(*req.Body) == "" {
			return nil, &domain.PolicyError{Reason: "body cannot be emptied"}
		}
		u.Body = req.Body
		reindex = true
	}
	if req.Tags != nil {
		u.Tags = req.Tags
		reindex = true
	}
	if req.Importance != nil {
		if *req.Importance < 1 || *req.Importance > 5 {
			return nil, &domain.PolicyError{Reason: "importance must be between 1 and 5"}
		}
		u.Importance = req.Importance
	}
	if req.ExpiresAt != nil {
		if *req.ExpiresAt == "" {
			var cleared *time.Time
			u.ExpiresAt = &cleared
		} else {
			t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
			if err != nil {
				return nil, &domain.PolicyError{Reason: "expires_at must be RFC3339", Err: err}
			}
			tt := t.UTC()
			p := &tt
			u.ExpiresAt = &p
		}
	}

	ok, err := s.store.UpdateMemory(ctx, memoryID, u)
	if err != nil {
		return nil, &domain.StorageError{Op: "update memory", Err: err}
	}
	if !ok {
		return nil, &domain.PolicyError{Reason: "memory not found"}
	}

	item, err := s.store.GetMemory(ctx, memoryID)
	if err != nil {
		return nil, &domain.StorageError{Op: "get memory", Err: err}
	}
	if reindex && item != nil {
		s.indexMemory(ctx, item)
	}
	return item, nil
}

// GetMemory fetches one item and records the access.
func (s *Service) GetMemory(ctx context.Context, memoryID string) (*domain.MemoryItem, error) {
	item, err := s.store.GetMemory(ctx, memoryID)
	if err != nil {
		return nil, &domain.StorageError{Op: "get memory", Err: err}
	}
	if item == nil {
		return nil, nil
	}
	if err := s.store.TouchMemory(ctx, memoryID); err != nil {
		s.log.Warn("failed to touch memory", "memory_id", memoryID, "err", err)
	}
	return item, nil
}

// QueryMemories is the structured (non-ranked) listing used by the
// memory_query tool and the list endpoint.
func (s *Service) QueryMemories(ctx context.Context, typ domain.MemoryType, tag, text string, minImportance, limit int) ([]domain.MemoryItem, error) {
	items, err := s.store.QueryMemories(ctx, store.MemoryQuery{
		Type:          typ,
		Tag:           tag,
		Text:          text,
		MinImportance: minImportance,
		Limit:         limit,
	})
	if err != nil {
		return nil, &domain.StorageError{Op: "query memories", Err: err}
	}
	return items, nil
}

// PinMemory marks an item as never-expiring. Pinning twice is a no-op.
func (s *Service) PinMemory(ctx context.Context, memoryID string) error {
	ok, err := s.store.PinMemory(ctx, memoryID)
	if err != nil {
		return &domain.StorageError{Op: "pin memory", Err: err}
	}
	if !ok {
		return &domain.PolicyError{Tool: "memory_pin", Reason: "memory not found"}
	}
	return nil
}

// ForgetMemory deletes an item, its vector refs (by cascade), and its
// entries in the external index. Index cleanup is best effort.
func (s *Service) ForgetMemory(ctx context.Context, memoryID string) error {
	refs, err := s.store.ListVectorRefs(ctx, memoryID)
	if err != nil {
		return &domain.StorageError{Op: "list vector refs", Err: err}
	}

	ok, err := s.store.DeleteMemory(ctx, memoryID)
	if err != nil {
		return &domain.StorageError{Op: "delete memory", Err: err}
	}
	if !ok {
		return &domain.PolicyError{Tool: "memory_forget", Reason: "memory not found"}
	}

	if s.index != nil {
		for _, ref := range refs {
			if err := s.index.Delete(ctx, ref.Collection, ref.ExternalID); err != nil {
				s.log.Warn("failed to remove vector", "memory_id", memoryID, "external_id", ref.ExternalID, "err", err)
			}
		}
	}
	return nil
}

// SweepExpiredMemories removes every non-pinned item past its expiry and
// cleans up its vectors. Returns the number of items removed.
func (s *Service) SweepExpiredMemories(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	expired, err := s.store.ListExpiredMemories(ctx, now)
	if err != nil {
		return 0, &domain.StorageError{Op: "list expired memories", Err: err}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	if s.index != nil {
		for _, item := range expired {
			refs, err := s.store.ListVectorRefs(ctx, item.MemoryID)
			if err != nil {
				s.log.Warn("failed to list vector refs for expired item", "memory_id", item.MemoryID, "err", err)
				continue
			}
			for _, ref := range refs {
				if err := s.index.Delete(ctx, ref.Collection, ref.ExternalID); err != nil {
					s.log.Warn("failed to remove vector for expired item", "memory_id", item.MemoryID, "err", err)
				}
			}
		}
	}

	n, err := s.store.SweepExpired(ctx, now)
	if err != nil {
		return 0, &domain.StorageError{Op: "sweep expired memories", Err: err}
	}
	if n > 0 {
		s.log.Info("swept expired memories", "count", n)
	}
	return int(n), nil
}

// indexMemory embeds the item text and records the vector ref. A provider
// failure degrades to lexical-only retrieval for this item.
func (s *Service) indexMemory(ctx context.Context, item *domain.MemoryItem) {
	if s.embedder == nil || s.index == nil {
		return
	}

	vec, err := s.embedder.Embed(ctx, embeddingText(item))
	if err != nil {
		s.log.Warn("embedding failed, item stays lexical-only", "memory_id", item.MemoryID, "err", err)
		return
	}

	ref, err := s.store.GetVectorRef(ctx, item.MemoryID, s.embedder.Model())
	if err != nil {
		s.log.Warn("failed to look up vector ref", "memory_id", item.MemoryID, "err", err)
		return
	}
	externalID := "vec_" + uuid.New().String()
	if ref != nil {
		externalID = ref.ExternalID
	}

	if err := s.index.Upsert(ctx, vectorCollection, externalID, vec); err != nil {
		s.log.Warn("failed to upsert vector", "memory_id", item.MemoryID, "err", err)
		return
	}
	if ref == nil {
		err = s.store.UpsertVectorRef(ctx, &domain.VectorRef{
			VectorID:   "vr_" + uuid.New().String(),
			MemoryID:   item.MemoryID,
			Provider:   "local",
			Collection: vectorCollection,
			Model:      s.embedder.Model(),
			Dimension:  s.embedder.Dims(),
			ExternalID: externalID,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			s.log.Warn("failed to record vector ref", "memory_id", item.MemoryID, "err", err)
		}
	}
}

// embeddingText is the canonical text representation indexed for an item.
func embeddingText(item *domain.MemoryItem) string {
	parts := make([]string, 0, 3)
	if item.Title != "" {
		parts = append(parts, item.Title)
	}
	parts = append(parts, item.Body)
	if len(item.Tags) > 0 {
		parts = append(parts, strings.Join(item.Tags, " "))
	}
	return strings.Join(parts, "\n")
}
