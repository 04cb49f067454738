package index

import (
	"sync/atomic"

	"github.com/coder/hnsw"

	"github.com/Aman-CERP/docfuse/internal/chunk"
	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
)

// HNSWConfig tunes the approximate index.
type HNSWConfig struct {
	M        int // Max neighbors per node
	EfSearch int // Candidate list size during search
}

// DefaultHNSWConfig returns the settings used for corpora in the tens of
// thousands of chunks.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{M: 16, EfSearch: 64}
}

// HNSWIndex answers vector queries through an HNSW graph and re-scores the
// candidates exactly, so scores match VectorIndex for every row it returns.
// Zero vectors are kept out of the graph and only fill up short result
// lists with their score of 0.
type HNSWIndex struct {
	cfg   HNSWConfig
	state atomic.Pointer[hnswState]
}

var _ VectorSearcher = (*HNSWIndex)(nil)

type hnswState struct {
	flat  *flatVectors
	graph *hnsw.Graph[uint64]
}

// NewHNSWIndex returns an unbuilt index.
func NewHNSWIndex(cfg HNSWConfig) *HNSWIndex {
	def := DefaultHNSWConfig()
	if cfg.M <= 0 {
		cfg.M = def.M
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = def.EfSearch
	}
	return &HNSWIndex{cfg: cfg}
}

// Build validates the vectors like VectorIndex.Build and inserts every
// non-zero row into a fresh graph keyed by row number.
func (ix *HNSWIndex) Build(ids []chunk.ID, vectors [][]float32) error {
	flat, err := flatten(ids, vectors)
	if err != nil {
		return err
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = ix.cfg.M
	graph.EfSearch = ix.cfg.EfSearch
	graph.Ml = 0.25

	nodes := make([]hnsw.Node[uint64], 0, len(ids))
	for i := range ids {
		row := flat.row(i)
		if isZero(row) {
			continue
		}
		nodes = append(nodes, hnsw.MakeNode(uint64(i), hnsw.Vector(row)))
	}
	if len(nodes) > 0 {
		graph.Add(nodes...)
	}

	ix.state.Store(&hnswState{flat: flat, graph: graph})
	return nil
}

// Search returns up to k approximate nearest rows, best first.
func (ix *HNSWIndex) Search(query []float32, k int) ([]Result, error) {
	st := ix.state.Load()
	if st == nil {
		return nil, fuseerr.IndexNotReady("vector")
	}
	n := len(st.flat.ids)
	if n == 0 || k <= 0 {
		return []Result{}, nil
	}
	if len(query) != st.flat.dim {
		return nil, fuseerr.DimensionMismatch(st.flat.dim, len(query))
	}

	q := normalized(query)
	k = min(k, n)
	picked := make(map[int]struct{}, k)
	results := make([]Result, 0, k)

	if !isZero(q) && st.graph.Len() > 0 {
		for _, node := range st.graph.Search(hnsw.Vector(q), min(2*k, st.graph.Len())) {
			i := int(node.Key)
			picked[i] = struct{}{}
			results = append(results, Result{ID: st.flat.ids[i], Ordinal: i, Score: dot(q, st.flat.row(i)), Source: SourceSemantic})
		}
	}

	// The graph may return fewer rows than asked for; top up in emission order.
	for i := 0; len(results) < k && i < n; i++ {
		if _, ok := picked[i]; ok {
			continue
		}
		results = append(results, Result{ID: st.flat.ids[i], Ordinal: i, Score: dot(q, st.flat.row(i)), Source: SourceSemantic})
	}

	return topK(results, k), nil
}

// Dimensions returns the vector length, or 0 before the first build.
func (ix *HNSWIndex) Dimensions() int {
	if st := ix.state.Load(); st != nil {
		return st.flat.dim
	}
	return 0
}

// Len returns the number of stored vectors, zero vectors included.
func (ix *HNSWIndex) Len() int {
	if st := ix.state.Load(); st != nil {
		return len(st.flat.ids)
	}
	return 0
}

// NewVectorSearcher picks the backend by name: "exact" or "hnsw".
func NewVectorSearcher(backend string, cfg HNSWConfig) (VectorSearcher, error) {
	switch backend {
	case "", "exact":
		return NewVectorIndex(), nil
	case "hnsw":
		return NewHNSWIndex(cfg), nil
	default:
		return nil, fuseerr.InvalidParameter("unknown vector backend %q", backend)
	}
}
