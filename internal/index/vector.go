package index

import (
	"math"
	"sync/atomic"

	"github.com/Aman-CERP/docfuse/internal/chunk"
	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
)

// VectorSearcher is implemented by the exact and approximate vector indexes.
type VectorSearcher interface {
	Build(ids []chunk.ID, vectors [][]float32) error
	Search(query []float32, k int) ([]Result, error)
	Dimensions() int
	Len() int
}

// VectorIndex is an exact nearest-neighbor index using normalized dot
// products over a flat row-major matrix.
type VectorIndex struct {
	state atomic.Pointer[flatVectors]
}

var _ VectorSearcher = (*VectorIndex)(nil)

type flatVectors struct {
	ids  []chunk.ID
	dim  int
	data []float32 // len(ids)*dim, rows L2-normalized
}

func (f *flatVectors) row(i int) []float32 {
	return f.data[i*f.dim : (i+1)*f.dim]
}

// NewVectorIndex returns an unbuilt index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{}
}

// Build stores one vector per id, row i belonging to ids[i]. The previous
// snapshot stays in place when the input is rejected.
func (ix *VectorIndex) Build(ids []chunk.ID, vectors [][]float32) error {
	flat, err := flatten(ids, vectors)
	if err != nil {
		return err
	}
	ix.state.Store(flat)
	return nil
}

// Search returns the k rows most similar to query, best first, ties in
// emission order. Zero vectors score 0 against everything.
func (ix *VectorIndex) Search(query []float32, k int) ([]Result, error) {
	st := ix.state.Load()
	if st == nil {
		return nil, fuseerr.IndexNotReady("vector")
	}
	if len(st.ids) == 0 || k <= 0 {
		return []Result{}, nil
	}
	if len(query) != st.dim {
		return nil, fuseerr.DimensionMismatch(st.dim, len(query))
	}

	q := normalized(query)
	results := make([]Result, len(st.ids))
	for i := range st.ids {
		results[i] = Result{ID: st.ids[i], Ordinal: i, Score: dot(q, st.row(i)), Source: SourceSemantic}
	}
	return topK(results, k), nil
}

// Dimensions returns the vector length, or 0 before the first build.
func (ix *VectorIndex) Dimensions() int {
	if st := ix.state.Load(); st != nil {
		return st.dim
	}
	return 0
}

// Len returns the number of stored vectors.
func (ix *VectorIndex) Len() int {
	if st := ix.state.Load(); st != nil {
		return len(st.ids)
	}
	return 0
}

// Ready reports whether Build has completed at least once.
func (ix *VectorIndex) Ready() bool { return ix.state.Load() != nil }

// flatten validates the input and copies it into a normalized matrix.
func flatten(ids []chunk.ID, vectors [][]float32) (*flatVectors, error) {
	if len(ids) != len(vectors) {
		return nil, fuseerr.CountMismatch(len(ids), len(vectors))
	}

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return nil, fuseerr.InvalidParameter("vectors must not be empty")
		}
	}

	seen := make(map[chunk.ID]struct{}, len(ids))
	data := make([]float32, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fuseerr.DimensionMismatch(dim, len(v)).WithDetail("row", ids[i].String())
		}
		if _, dup := seen[ids[i]]; dup {
			return nil, fuseerr.InvalidParameter("duplicate chunk id %s", ids[i])
		}
		seen[ids[i]] = struct{}{}
		data = append(data, normalized(v)...)
	}

	return &flatVectors{ids: append([]chunk.ID(nil), ids...), dim: dim, data: data}, nil
}

// normalized returns an L2-normalized copy. A zero vector stays zero.
func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
