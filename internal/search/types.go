package search

import (
	"context"
	"time"

	"github.com/Aman-CERP/docfuse/internal/chunk"
	"github.com/Aman-CERP/docfuse/internal/index"
)

// Mode selects which rankings a query uses.
type Mode string

const (
	ModeHybrid   Mode = "hybrid"
	ModeLexical  Mode = "lexical"
	ModeSemantic Mode = "semantic"
)

// ParseMode validates a mode name. Empty means hybrid.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeHybrid:
		return ModeHybrid, true
	case ModeLexical, ModeSemantic:
		return Mode(s), true
	default:
		return "", false
	}
}

// Weights sets the share of each ranking in the fused score.
type Weights struct {
	Lexical  float64
	Semantic float64
}

// DefaultWeights weighs both rankings equally.
func DefaultWeights() Weights {
	return Weights{Lexical: 0.5, Semantic: 0.5}
}

// Options configures one query. Zero values take the engine defaults.
type Options struct {
	NumResults int
	Weights    *Weights
	Mode       Mode
}

// Hit is one entry of the ranked answer.
type Hit struct {
	Rank    int // 1-based
	ID      chunk.ID
	Score   float64
	Source  index.Source
	Snippet string
	Chunk   chunk.Chunk
}

// Response is a query answer. Mode is the mode actually served, which is
// lexical when the semantic side was unavailable.
type Response struct {
	Query    string
	Mode     Mode
	Hits     []Hit
	Warnings []string
	Took     time.Duration
}

// QueryEmbedder turns query text into a vector in the index's space.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Snapshot pairs a chunk set with the indexes built over it. Snapshots are
// never modified after they are handed to Engine.Swap.
type Snapshot struct {
	Chunks  []chunk.Chunk
	Lexical *index.TermIndex
	// Semantic is nil while the vector store is stale.
	Semantic index.VectorSearcher
	Model    string
	BuiltAt  time.Time
}

// HasSemantic reports whether vector search is available.
func (s *Snapshot) HasSemantic() bool {
	return s != nil && s.Semantic != nil
}
