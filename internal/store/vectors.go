package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jarvishq/jarvisd/internal/domain"
)

// UpsertVectorRef registers (or replaces) the embedding linkage for a memory
// item under one embedding model. Refs for other models are untouched so
// superseded generations remain auditable.
func (s *SQLiteStore) UpsertVectorRef(ctx context.Context, ref *domain.VectorRef) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO memory_vectors
		 (vector_id, memory_id, provider, collection_name, embedding_model, dimension, external_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.VectorID, ref.MemoryID, ref.Provider, ref.Collection,
		ref.Model, ref.Dimension, ref.ExternalID, fmtTime(ref.CreatedAt))
	return err
}

// GetVectorRef returns the ref linking a memory item to the given embedding
// model, or nil when the item has not been embedded under that model.
func (s *SQLiteStore) GetVectorRef(ctx context.Context, memoryID, model string) (*domain.VectorRef, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT vector_id, memory_id, provider, collection_name, embedding_model, dimension, external_id, created_at
		 FROM memory_vectors WHERE memory_id = ? AND embedding_model = ?`, memoryID, model)
	ref, err := scanVectorRef(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// ListVectorRefs returns every ref for a memory item across all models.
func (s *SQLiteStore) ListVectorRefs(ctx context.Context, memoryID string) ([]domain.VectorRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vector_id, memory_id, provider, collection_name, embedding_model, dimension, external_id, created_at
		 FROM memory_vectors WHERE memory_id = ?`, memoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []domain.VectorRef
	for rows.Next() {
		ref, err := scanVectorRef(rows)
		if err != nil {
			return nil, err
		}
		refs = append(refs, *ref)
	}
	return refs, rows.Err()
}

// ResolveExternalIDs maps external index ids back to memory ids for the
// active embedding model. Unknown ids are simply absent from the result.
func (s *SQLiteStore) ResolveExternalIDs(ctx context.Context, model string, externalIDs []string) (map[string]string, error) {
	if len(externalIDs) == 0 {
		return map[string]string{}, nil
	}

	placeholders := make([]string, len(externalIDs))
	args := make([]interface{}, 0, len(externalIDs)+1)
	args = append(args, model)
	for i, id := range externalIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT external_id, memory_id FROM memory_vectors
		 WHERE embedding_model = ? AND external_id IN (%s)`,
		strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resolved := make(map[string]string)
	for rows.Next() {
		var externalID, memoryID string
		if err := rows.Scan(&externalID, &memoryID); err != nil {
			return nil, err
		}
		resolved[externalID] = memoryID
	}
	return resolved, rows.Err()
}

// CountVectorRefs returns the number of registered embeddings for a model.
func (s *SQLiteStore) CountVectorRefs(ctx context.Context, model string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memory_vectors WHERE embedding_model = ?`, model).Scan(&count)
	return count, err
}

func scanVectorRef(r rowScanner) (*domain.VectorRef, error) {
	var ref domain.VectorRef
	var createdAt string
	if err := r.Scan(&ref.VectorID, &ref.MemoryID, &ref.Provider, &ref.Collection,
		&ref.Model, &ref.Dimension, &ref.ExternalID, &createdAt); err != nil {
		return nil, err
	}
	ref.CreatedAt = parseTime(createdAt)
	return &ref, nil
}
