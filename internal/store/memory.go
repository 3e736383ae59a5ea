package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jarvishq/jarvisd/internal/domain"
)

// InsertMemory persists a new memory item.
func (s *SQLiteStore) InsertMemory(ctx context.Context, item *domain.MemoryItem) error {
	tags, _ := json.Marshal(item.Tags)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_items
		 (memory_id, memory_type, title, body, tags, importance, pinned, source, source_ref,
		  created_at, updated_at, expires_at, access_count, last_accessed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.MemoryID, item.Type, nullString(item.Title), item.Body, string(tags),
		item.Importance, boolInt(item.Pinned), item.Source, nullString(item.SourceRef),
		fmtTime(item.CreatedAt), fmtTime(item.UpdatedAt), fmtTimePtr(item.ExpiresAt),
		item.AccessCount, fmtTimePtr(item.LastAccessedAt))
	return err
}

// GetMemory retrieves a memory item by ID, or nil when absent.
func (s *SQLiteStore) GetMemory(ctx context.Context, memoryID string) (*domain.MemoryItem, error) {
	row := s.db.QueryRowContext(ctx, memorySelect+` WHERE memory_id = ?`, memoryID)
	item, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// MemoryUpdate holds the mutable fields of a memory item. Nil fields are
// left unchanged; a non-nil ExpiresAt pointing at the zero time clears the
// expiry.
type MemoryUpdate struct {
	Type       *domain.MemoryType
	Title      *string
	Body       *string
	Tags       *[]string
	Importance *int
	ExpiresAt  **time.Time
}

// UpdateMemory patches a memory item and bumps updated_at. Returns false
// when the item does not exist or nothing was changed.
func (s *SQLiteStore) UpdateMemory(ctx context.Context, memoryID string, u MemoryUpdate) (bool, error) {
	var sets []string
	var args []interface{}

	if u.Type != nil {
		sets = append(sets, "memory_type = ?")
		args = append(args, *u.Type)
	}
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, nullString(*u.Title))
	}
	if u.Body != nil {
		sets = append(sets, "body = ?")
		args = append(args, *u.Body)
	}
	if u.Tags != nil {
		tags, _ := json.Marshal(*u.Tags)
		sets = append(sets, "tags = ?")
		args = append(args, string(tags))
	}
	if u.Importance != nil {
		sets = append(sets, "importance = ?")
		args = append(args, *u.Importance)
	}
	if u.ExpiresAt != nil {
		sets = append(sets, "expires_at = ?")
		args = append(args, fmtTimePtr(*u.ExpiresAt))
	}
	if len(sets) == 0 {
		return false, nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, fmtTime(time.Now()), memoryID)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE memory_items SET %s WHERE memory_id = ?`, strings.Join(sets, ", ")),
		args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// PinMemory sets the pin flag. Idempotent: re-pinning a pinned item leaves
// the row unchanged, including updated_at, but still reports success.
func (s *SQLiteStore) PinMemory(ctx context.Context, memoryID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memory_items
		 SET updated_at = CASE WHEN pinned = 0 THEN ? ELSE updated_at END, pinned = 1
		 WHERE memory_id = ?`,
		fmtTime(time.Now()), memoryID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// DeleteMemory hard-deletes a memory item. Vector registry rows cascade.
func (s *SQLiteStore) DeleteMemory(ctx context.Context, memoryID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memory_items WHERE memory_id = ?`, memoryID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// TouchMemory bumps access bookkeeping for a read.
func (s *SQLiteStore) TouchMemory(ctx context.Context, memoryID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE memory_items SET access_count = access_count + 1, last_accessed_at = ? WHERE memory_id = ?`,
		fmtTime(time.Now()), memoryID)
	return err
}

// MemoryQuery filters the lexical listing scan. Ranking is the retrieval
// engine's job; this is substring/tag-membership filtering only.
type MemoryQuery struct {
	Type          domain.MemoryType
	Tag           string
	Text          string
	MinImportance int
	Limit         int
}

// QueryMemories lists live (unexpired-or-pinned) items matching the filter,
// ordered by importance then recency.
func (s *SQLiteStore) QueryMemories(ctx context.Context, q MemoryQuery) ([]domain.MemoryItem, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	where := []string{"(expires_at IS NULL OR expires_at > ? OR pinned = 1)"}
	args := []interface{}{fmtTime(time.Now())}

	if q.Type != "" {
		where = append(where, "memory_type = ?")
		args = append(args, q.Type)
	}
	if q.Tag != "" {
		where = append(where, "tags LIKE ?")
		args = append(args, "%"+q.Tag+"%")
	}
	if q.Text != "" {
		where = append(where, "(body LIKE ? OR title LIKE ?)")
		args = append(args, "%"+q.Text+"%", "%"+q.Text+"%")
	}
	if q.MinImportance > 0 {
		where = append(where, "importance >= ?")
		args = append(args, q.MinImportance)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`%s WHERE %s ORDER BY importance DESC, updated_at DESC LIMIT ?`,
		memorySelect, strings.Join(where, " AND ")), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemories(rows)
}

// AllLiveMemories returns every item that has not expired (or is pinned).
// The retrieval engine's lexical pass scans these.
func (s *SQLiteStore) AllLiveMemories(ctx context.Context) ([]domain.MemoryItem, error) {
	rows, err := s.db.QueryContext(ctx,
		memorySelect+` WHERE expires_at IS NULL OR expires_at > ? OR pinned = 1`,
		fmtTime(time.Now()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemories(rows)
}

// ListExpiredMemories returns non-pinned items whose expiry is at or before
// now. The sweep resolves these to IDs first so the external index can be
// notified before the rows disappear.
func (s *SQLiteStore) ListExpiredMemories(ctx context.Context, now time.Time) ([]domain.MemoryItem, error) {
	rows, err := s.db.QueryContext(ctx,
		memorySelect+` WHERE pinned = 0 AND expires_at IS NOT NULL AND expires_at <= ?`,
		fmtTime(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemories(rows)
}

// SweepExpired deletes all non-pinned items expired at or before now and
// returns the count removed.
func (s *SQLiteStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memory_items WHERE pinned = 0 AND expires_at IS NOT NULL AND expires_at <= ?`,
		fmtTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const memorySelect = `SELECT memory_id, memory_type, title, body, tags, importance, pinned,
	source, source_ref, created_at, updated_at, expires_at, access_count, last_accessed_at
	FROM memory_items`

func collectMemories(rows *sql.Rows) ([]domain.MemoryItem, error) {
	var items []domain.MemoryItem
	for rows.Next() {
		item, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanMemory(r rowScanner) (*domain.MemoryItem, error) {
	var item domain.MemoryItem
	var title, tags, sourceRef, expiresAt, lastAccessedAt sql.NullString
	var createdAt, updatedAt string
	var pinned int
	if err := r.Scan(&item.MemoryID, &item.Type, &title, &item.Body, &tags,
		&item.Importance, &pinned, &item.Source, &sourceRef,
		&createdAt, &updatedAt, &expiresAt, &item.AccessCount, &lastAccessedAt); err != nil {
		return nil, err
	}
	item.Title = title.String
	if tags.Valid && tags.String != "" && tags.String != "null" {
		json.Unmarshal([]byte(tags.String), &item.Tags)
	}
	item.Pinned = pinned != 0
	item.SourceRef = sourceRef.String
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	item.ExpiresAt = parseTimePtr(expiresAt)
	item.LastAccessedAt = parseTimePtr(lastAccessedAt)
	return &item, nil
}
