package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
)

func sampleRows() [][]float32 {
	return [][]float32{{1, 0}, {0, 1}, {0.5, 0.5}}
}

func TestVectorStore_MissingFileIsEmpty(t *testing.T) {
	s, err := OpenVectorStore(filepath.Join(t.TempDir(), "vectors.gob"))
	require.NoError(t, err)
	assert.Zero(t, s.Len())
	assert.Zero(t, s.Dimensions())
}

func TestVectorStore_ReplaceAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "vectors.gob")
	chunks := sampleChunks()

	s, err := OpenVectorStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Replace(ctx, "static", chunks, sampleRows()))
	assert.Equal(t, 3, s.Len())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	reloaded, err := OpenVectorStore(path)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Len())
	assert.Equal(t, "static", reloaded.Model())
	assert.Equal(t, 2, reloaded.Dimensions())

	hash, ok := reloaded.Lookup(chunks[1].ID)
	require.True(t, ok)
	assert.Equal(t, chunks[1].Hash(), hash)

	ids, rows := reloaded.Rows()
	assert.Equal(t, chunks[2].ID, ids[2])
	assert.Equal(t, []float32{0.5, 0.5}, rows[2])
}

func TestVectorStore_ReplaceValidates(t *testing.T) {
	ctx := context.Background()
	s, err := OpenVectorStore("")
	require.NoError(t, err)

	err = s.Replace(ctx, "m", sampleChunks(), sampleRows()[:2])
	assert.ErrorIs(t, err, fuseerr.ErrCountMismatch)

	rows := sampleRows()
	rows[1] = []float32{1, 2, 3}
	err = s.Replace(ctx, "m", sampleChunks(), rows)
	assert.ErrorIs(t, err, fuseerr.ErrDimensionMismatch)
	assert.Zero(t, s.Len())
}

func TestVectorStore_Discard(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.gob")
	s, err := OpenVectorStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Replace(ctx, "m", sampleChunks(), sampleRows()))

	require.NoError(t, s.Discard(ctx))
	assert.Zero(t, s.Len())
	_, ok := s.Lookup(sampleChunks()[0].ID)
	assert.False(t, ok)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// discarding twice is fine
	require.NoError(t, s.Discard(ctx))
}

func TestVectorStore_CorruptFileLoadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.gob")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	s, err := OpenVectorStore(path)
	require.NoError(t, err)
	assert.Zero(t, s.Len())
}
