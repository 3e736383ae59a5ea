package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/viterin/vek/vek32"
)

// Neighbor is one nearest-neighbor hit. Score is cosine similarity in
// [-1, 1].
type Neighbor struct {
	ExternalID string  `json:"external_id"`
	Score      float32 `json:"score"`
}

// Index is the vector similarity service consumed by the retrieval engine.
// Treated as an opaque external collaborator.
type Index interface {
	Upsert(ctx context.Context, collection, externalID string, vec Vector) error
	Delete(ctx context.Context, collection, externalID string) error
	Query(ctx context.Context, collection string, vec Vector, k int) ([]Neighbor, error)
}

// SQLiteIndex is a brute-force cosine index persisted in its own SQLite
// file, independent of the main store.
type SQLiteIndex struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteIndex opens (and migrates) the index database at dsn.
func NewSQLiteIndex(dsn string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS vectors (
		collection TEXT NOT NULL,
		external_id TEXT NOT NULL,
		dims INTEGER NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (collection, external_id)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate index database: %w", err)
	}
	return &SQLiteIndex{db: db}, nil
}

// Close closes the index database.
func (x *SQLiteIndex) Close() error {
	return x.db.Close()
}

func (x *SQLiteIndex) Upsert(ctx context.Context, collection, externalID string, vec Vector) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty vector")
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	_, err := x.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO vectors (collection, external_id, dims, data) VALUES (?, ?, ?, ?)`,
		collection, externalID, len(vec), encodeVector(vec))
	return err
}

func (x *SQLiteIndex) Delete(ctx context.Context, collection, externalID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, err := x.db.ExecContext(ctx,
		`DELETE FROM vectors WHERE collection = ? AND external_id = ?`, collection, externalID)
	return err
}

// Query scans the collection and returns the k most cosine-similar vectors.
func (x *SQLiteIndex) Query(ctx context.Context, collection string, vec Vector, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	rows, err := x.db.QueryContext(ctx,
		`SELECT external_id, dims, data FROM vectors WHERE collection = ?`, collection)
	if err != nil {
		x.mu.RUnlock()
		return nil, err
	}

	var neighbors []Neighbor
	for rows.Next() {
		var externalID string
		var dims int
		var data []byte
		if err := rows.Scan(&externalID, &dims, &data); err != nil {
			rows.Close()
			x.mu.RUnlock()
			return nil, err
		}
		if dims != len(vec) {
			continue
		}
		candidate := decodeVector(data, dims)
		neighbors = append(neighbors, Neighbor{
			ExternalID: externalID,
			Score:      vek32.CosineSimilarity(vec, candidate),
		})
	}
	closeErr := rows.Err()
	rows.Close()
	x.mu.RUnlock()
	if closeErr != nil {
		return nil, closeErr
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Score != neighbors[j].Score {
			return neighbors[i].Score > neighbors[j].Score
		}
		return neighbors[i].ExternalID < neighbors[j].ExternalID
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

func encodeVector(vec Vector) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte, dims int) Vector {
	vec := make(Vector, dims)
	for i := 0; i < dims && i*4+4 <= len(data); i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}
