package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
	"github.com/Aman-CERP/docfuse/internal/index"
)

// EngineConfig holds query defaults.
type EngineConfig struct {
	NumResults int
	Weights    Weights
	// CandidateMultiplier scales how many results each ranking contributes
	// to fusion, relative to NumResults.
	CandidateMultiplier int
	SnippetLength       int
}

// DefaultEngineConfig returns the engine defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		NumResults:          5,
		Weights:             DefaultWeights(),
		CandidateMultiplier: 2,
		SnippetLength:       DefaultSnippetLength,
	}
}

// Engine serves queries from the current Snapshot. Swap replaces the
// snapshot atomically; a query reads the pointer once and runs to the end
// on that snapshot.
type Engine struct {
	cfg      EngineConfig
	embedder QueryEmbedder
	breaker  *fuseerr.CircuitBreaker
	snap     atomic.Pointer[Snapshot]
}

// NewEngine creates an engine. embedder may be nil for lexical-only use.
func NewEngine(embedder QueryEmbedder, cfg EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if cfg.NumResults <= 0 {
		cfg.NumResults = def.NumResults
	}
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = def.CandidateMultiplier
	}
	if cfg.SnippetLength <= 0 {
		cfg.SnippetLength = def.SnippetLength
	}
	return &Engine{
		cfg:      cfg,
		embedder: embedder,
		breaker:  fuseerr.NewCircuitBreaker("query-embedder"),
	}
}

// Swap installs s and returns the previous snapshot.
func (e *Engine) Swap(s *Snapshot) *Snapshot {
	return e.snap.Swap(s)
}

// Snapshot returns the current snapshot, or nil before the first Swap.
func (e *Engine) Snapshot() *Snapshot {
	return e.snap.Load()
}

// Search runs the query against both indexes in parallel and fuses the
// rankings. When the semantic side is unavailable (stale vectors, no
// embedder, embedding failure) the lexical ranking is returned alone and a
// warning is attached.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fuseerr.New(fuseerr.ErrCodeQueryEmpty, "query is empty", nil)
	}

	snap := e.snap.Load()
	if snap == nil || snap.Lexical == nil {
		return nil, fuseerr.IndexNotReady("search")
	}

	opts = e.applyDefaults(opts)
	candidates := opts.NumResults * e.cfg.CandidateMultiplier
	resp := &Response{Query: query, Mode: opts.Mode}

	wantLexical := opts.Mode != ModeSemantic
	wantSemantic := opts.Mode != ModeLexical
	if wantSemantic && !snap.HasSemantic() {
		resp.Warnings = append(resp.Warnings, "semantic index unavailable, vectors are stale or missing")
		wantSemantic = false
	}
	if wantSemantic && e.embedder == nil {
		resp.Warnings = append(resp.Warnings, "no query embedder configured")
		wantSemantic = false
	}

	var lexical, semantic []index.Result
	var lexErr, semErr error

	g, gctx := errgroup.WithContext(ctx)
	if wantLexical || !wantSemantic {
		g.Go(func() error {
			lexical, lexErr = snap.Lexical.Search(query, candidates)
			return nil
		})
	}
	if wantSemantic {
		g.Go(func() error {
			semantic, semErr = e.semanticSearch(gctx, snap, query, candidates)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if lexErr != nil && (semErr != nil || !wantSemantic) {
		return nil, errors.Join(lexErr, semErr)
	}
	if semErr != nil {
		slog.Warn("semantic search failed, serving lexical results",
			slog.String("error", semErr.Error()))
		resp.Warnings = append(resp.Warnings, "semantic search failed: "+semErr.Error())
		wantSemantic = false
	}

	var ranked []index.Result
	switch {
	case wantSemantic && wantLexical && lexErr == nil:
		ranked = Merge(lexical, semantic, opts.NumResults, opts.Weights.Lexical, opts.Weights.Semantic)
	case wantSemantic:
		ranked = truncate(semantic, opts.NumResults)
		resp.Mode = ModeSemantic
	default:
		ranked = truncate(lexical, opts.NumResults)
		resp.Mode = ModeLexical
	}

	resp.Hits = e.toHits(snap, ranked)
	resp.Took = time.Since(start)

	slog.Debug("search completed",
		slog.String("mode", string(resp.Mode)),
		slog.Int("lexical", len(lexical)),
		slog.Int("semantic", len(semantic)),
		slog.Int("hits", len(resp.Hits)),
		slog.Duration("took", resp.Took))

	return resp, nil
}

func (e *Engine) semanticSearch(ctx context.Context, snap *Snapshot, query string, k int) ([]index.Result, error) {
	var vec []float32
	err := e.breaker.Execute(func() error {
		var embedErr error
		vec, embedErr = e.embedder.Embed(ctx, query)
		return embedErr
	})
	if err != nil {
		return nil, err
	}
	return snap.Semantic.Search(vec, k)
}

func (e *Engine) applyDefaults(opts Options) Options {
	if opts.NumResults <= 0 {
		opts.NumResults = e.cfg.NumResults
	}
	if opts.Weights == nil {
		w := e.cfg.Weights
		opts.Weights = &w
	}
	if opts.Mode == "" {
		opts.Mode = ModeHybrid
	}
	return opts
}

func (e *Engine) toHits(snap *Snapshot, ranked []index.Result) []Hit {
	hits := make([]Hit, 0, len(ranked))
	for _, r := range ranked {
		if r.Ordinal < 0 || r.Ordinal >= len(snap.Chunks) {
			continue
		}
		c := snap.Chunks[r.Ordinal]
		hits = append(hits, Hit{
			Rank:    len(hits) + 1,
			ID:      r.ID,
			Score:   r.Score,
			Source:  r.Source,
			Snippet: Snippet(c.Text, e.cfg.SnippetLength),
			Chunk:   c,
		})
	}
	return hits
}

func truncate(results []index.Result, k int) []index.Result {
	if len(results) > k {
		return results[:k]
	}
	return results
}
