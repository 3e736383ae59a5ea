package service

import (
	"context"

	"github.com/jarvishq/jarvisd/internal/domain"
	"github.com/jarvishq/jarvisd/internal/store"
)

// Stats is the operational snapshot served by the stats endpoint.
type Stats struct {
	Runs    store.RunStats    `json:"runs"`
	Memory  store.MemoryStats `json:"memory"`
	Vectors int               `json:"vectors"`
}

// GetStats aggregates run, memory, and vector counters.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	runs, err := s.store.GetRunStats(ctx)
	if err != nil {
		return nil, &domain.StorageError{Op: "run stats", Err: err}
	}
	memory, err := s.store.GetMemoryStats(ctx)
	if err != nil {
		return nil, &domain.StorageError{Op: "memory stats", Err: err}
	}

	vectors := 0
	if s.embedder != nil {
		n, err := s.store.CountVectorRefs(ctx, s.embedder.Model())
		if err != nil {
			return nil, &domain.StorageError{Op: "vector stats", Err: err}
		}
		vectors = n
	}

	return &Stats{Runs: *runs, Memory: *memory, Vectors: vectors}, nil
}
