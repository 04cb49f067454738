package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Aman-CERP/docfuse/internal/chunk"
	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
	"github.com/Aman-CERP/docfuse/internal/index"
)

const vectorFileVersion = 1

// vectorFile is the on-disk layout. Row i of Rows belongs to IDs[i] and
// was computed from text whose hash is Hashes[i].
type vectorFile struct {
	Version int
	Model   string
	Dim     int
	IDs     []string
	Hashes  []string
	Rows    [][]float32
	SavedAt time.Time
}

// VectorStore is the persisted embedding matrix, row-aligned with the chunk
// store's emission order at the time it was written.
type VectorStore struct {
	mu     sync.RWMutex
	path   string
	model  string
	dim    int
	ids    []chunk.ID
	hashes []string
	rows   [][]float32
	pos    map[chunk.ID]int
}

var _ index.VectorCache = (*VectorStore)(nil)

// OpenVectorStore loads the matrix at path. A missing file yields an empty
// store; an unreadable one is logged and treated as empty, which the
// consistency manager then reports as stale. An empty path keeps the store
// in memory only.
func OpenVectorStore(path string) (*VectorStore, error) {
	s := &VectorStore{path: path, pos: map[chunk.ID]int{}}
	if path == "" {
		return s, nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fuseerr.IOError("open vector store", err)
	}
	defer f.Close()

	var vf vectorFile
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&vf); err != nil {
		slog.Warn("vector_store_unreadable",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return s, nil
	}
	if err := s.load(vf); err != nil {
		slog.Warn("vector_store_invalid",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return &VectorStore{path: path, pos: map[chunk.ID]int{}}, nil
	}
	return s, nil
}

func (s *VectorStore) load(vf vectorFile) error {
	if vf.Version != vectorFileVersion {
		return fmt.Errorf("unsupported vector file version %d", vf.Version)
	}
	if len(vf.IDs) != len(vf.Rows) || len(vf.Hashes) != len(vf.Rows) {
		return fmt.Errorf("vector file has %d ids, %d hashes, %d rows", len(vf.IDs), len(vf.Hashes), len(vf.Rows))
	}
	ids := make([]chunk.ID, len(vf.IDs))
	for i, raw := range vf.IDs {
		id, err := chunk.ParseID(raw)
		if err != nil {
			return err
		}
		ids[i] = id
	}
	s.set(vf.Model, vf.Dim, ids, vf.Hashes, vf.Rows)
	return nil
}

// must be called with mu held or before the store is shared
func (s *VectorStore) set(model string, dim int, ids []chunk.ID, hashes []string, rows [][]float32) {
	s.model, s.dim, s.ids, s.hashes, s.rows = model, dim, ids, hashes, rows
	s.pos = make(map[chunk.ID]int, len(ids))
	for i, id := range ids {
		s.pos[id] = i
	}
}

// Len returns the number of rows.
func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Lookup returns the content hash stored for id.
func (s *VectorStore) Lookup(id chunk.ID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.pos[id]
	if !ok {
		return "", false
	}
	return s.hashes[i], true
}

// Model returns the embedding model that produced the rows.
func (s *VectorStore) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Dimensions returns the row length.
func (s *VectorStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Rows returns the ids and vectors in row order. The slices are shared and
// must not be modified.
func (s *VectorStore) Rows() ([]chunk.ID, [][]float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ids, s.rows
}

// Discard drops all rows and deletes the file.
func (s *VectorStore) Discard(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.set("", 0, nil, nil, nil)
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fuseerr.IOError("remove vector store", err)
	}
	slog.Info("vector store discarded", slog.String("path", s.path))
	return nil
}

// Replace stores a complete matrix for chunks, row i for chunks[i], and
// writes it to disk atomically.
func (s *VectorStore) Replace(_ context.Context, model string, chunks []chunk.Chunk, rows [][]float32) error {
	if len(chunks) != len(rows) {
		return fuseerr.CountMismatch(len(chunks), len(rows))
	}
	dim := 0
	if len(rows) > 0 {
		dim = len(rows[0])
	}
	ids := make([]chunk.ID, len(chunks))
	hashes := make([]string, len(chunks))
	for i, c := range chunks {
		if len(rows[i]) != dim {
			return fuseerr.DimensionMismatch(dim, len(rows[i])).WithDetail("row", c.ID.String())
		}
		ids[i] = c.ID
		hashes[i] = c.Hash()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path != "" {
		vf := vectorFile{
			Version: vectorFileVersion,
			Model:   model,
			Dim:     dim,
			IDs:     make([]string, len(ids)),
			Hashes:  hashes,
			Rows:    rows,
			SavedAt: time.Now(),
		}
		for i, id := range ids {
			vf.IDs[i] = id.String()
		}
		if err := writeAtomic(s.path, vf); err != nil {
			return err
		}
	}

	s.set(model, dim, ids, hashes, rows)
	return nil
}

// writeAtomic encodes vf to a temp file and renames it over path.
func writeAtomic(path string, vf vectorFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fuseerr.IOError("create vector store directory", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fuseerr.IOError("create vector file", err)
	}

	w := bufio.NewWriter(f)
	if err := gob.NewEncoder(w).Encode(vf); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode vectors: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush vectors: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close vector file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename vector file: %w", err)
	}
	return nil
}
