// Package store persists the chunk store (SQLite) and the vector store
// (row-aligned gob matrix).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/docfuse/internal/chunk"
	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
)

const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	ordinal      INTEGER PRIMARY KEY,
	source_id    TEXT    NOT NULL,
	start_offset INTEGER NOT NULL,
	end_offset   INTEGER NOT NULL,
	text         TEXT    NOT NULL,
	metadata     TEXT    NOT NULL DEFAULT '{}',
	UNIQUE (source_id, start_offset)
);
CREATE TABLE IF NOT EXISTS store_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Params records how the stored chunks were produced.
type Params struct {
	ChunkSize int
	StepSize  int
	UpdatedAt time.Time
}

// Stats summarizes the stored chunks.
type Stats struct {
	Chunks        int
	Sources       int
	AvgChunkChars float64
}

// ChunkStore is the system of record for chunk identity. Chunks are kept
// in emission order and (source_id, start_offset) is unique.
type ChunkStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// validateIntegrity checks an existing database file before it is opened
// for writing.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// OpenChunkStore opens or creates the store at path. An empty path opens
// an in-memory store. A corrupted file is removed and recreated empty; the
// next ingest repopulates it.
func OpenChunkStore(path string) (*ChunkStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fuseerr.IOError("create chunk store directory", err)
		}

		if err := validateIntegrity(path); err != nil {
			slog.Warn("chunk_store_corrupted",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				return nil, fuseerr.New(fuseerr.ErrCodeCorruptStore, "chunk store corrupted and cannot be removed", rmErr).
					WithDetail("path", path)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fuseerr.IOError("open chunk store", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fuseerr.IOError("set pragma", err)
		}
	}

	if _, err := db.Exec(chunkSchema); err != nil {
		_ = db.Close()
		return nil, fuseerr.IOError("create chunk schema", err)
	}

	return &ChunkStore{db: db, path: path}, nil
}

// Path returns the database path ("" for in-memory stores).
func (s *ChunkStore) Path() string { return s.path }

// Replace swaps the stored chunk set for chunks in one transaction.
// Readers never see a partially written set.
func (s *ChunkStore) Replace(ctx context.Context, chunks []chunk.Chunk, params Params) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("chunk store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks
		(ordinal, source_id, start_offset, end_offset, text, metadata) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", c.ID, err)
		}
		if c.Metadata == nil {
			meta = []byte("{}")
		}
		if _, err := stmt.ExecContext(ctx, i, c.ID.SourceID, c.ID.Start, c.End, c.Text, string(meta)); err != nil {
			return fuseerr.InvalidParameter("insert chunk %s: %v", c.ID, err)
		}
	}

	if params.UpdatedAt.IsZero() {
		params.UpdatedAt = time.Now()
	}
	meta := map[string]string{
		"chunk_size": strconv.Itoa(params.ChunkSize),
		"step_size":  strconv.Itoa(params.StepSize),
		"updated_at": params.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO store_meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
			return fmt.Errorf("write store meta: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}

	slog.Debug("chunk store replaced",
		slog.Int("chunks", len(chunks)),
		slog.Int("chunk_size", params.ChunkSize),
		slog.Int("step_size", params.StepSize))
	return nil
}

// All returns every chunk in emission order.
func (s *ChunkStore) All(ctx context.Context) ([]chunk.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("chunk store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, start_offset, end_offset, text, metadata FROM chunks ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	chunks := []chunk.Chunk{}
	for rows.Next() {
		var c chunk.Chunk
		var meta string
		if err := rows.Scan(&c.ID.SourceID, &c.ID.Start, &c.End, &c.Text, &meta); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Metadata = map[string]string{}
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fuseerr.New(fuseerr.ErrCodeCorruptStore, "decode chunk metadata", err).
				WithDetail("chunk", c.ID.String())
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Count returns the number of stored chunks.
func (s *ChunkStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("chunk store is closed")
	}

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Params returns the parameters of the last Replace. ok is false when the
// store has never been written.
func (s *ChunkStore) Params(ctx context.Context) (p Params, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Params{}, false, fmt.Errorf("chunk store is closed")
	}

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM store_meta")
	if err != nil {
		return Params{}, false, fmt.Errorf("query store meta: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Params{}, false, fmt.Errorf("scan store meta: %w", err)
		}
		ok = true
		switch k {
		case "chunk_size":
			p.ChunkSize, _ = strconv.Atoi(v)
		case "step_size":
			p.StepSize, _ = strconv.Atoi(v)
		case "updated_at":
			p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, v)
		}
	}
	return p, ok, rows.Err()
}

// Stats returns chunk and source counts and the mean chunk length.
func (s *ChunkStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Stats{}, fmt.Errorf("chunk store is closed")
	}

	var st Stats
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT source_id), AVG(end_offset - start_offset) FROM chunks`).
		Scan(&st.Chunks, &st.Sources, &avg)
	if err != nil {
		return Stats{}, fmt.Errorf("chunk stats: %w", err)
	}
	st.AvgChunkChars = avg.Float64
	return st, nil
}

// Close closes the database. Further calls return an error.
func (s *ChunkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
