// Package ingest turns a docs directory into a searchable snapshot: load,
// chunk, persist, validate vectors, build indexes, swap.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docfuse/internal/chunk"
	"github.com/Aman-CERP/docfuse/internal/config"
	"github.com/Aman-CERP/docfuse/internal/embed"
	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
	"github.com/Aman-CERP/docfuse/internal/index"
	"github.com/Aman-CERP/docfuse/internal/loader"
	"github.com/Aman-CERP/docfuse/internal/search"
	"github.com/Aman-CERP/docfuse/internal/store"
)

// Dependencies are the collaborators a Pipeline drives.
type Dependencies struct {
	// Config is the loaded configuration (required).
	Config *config.Config

	// Chunks is the chunk store (required).
	Chunks *store.ChunkStore

	// Vectors is the persisted vector store (required).
	Vectors *store.VectorStore

	// Engine receives each rebuilt snapshot (required).
	Engine *search.Engine

	// Embedder regenerates stale vectors. Nil serves lexical search only.
	Embedder embed.Embedder

	// Lock serializes ingests across processes. Optional.
	Lock *store.DirLock

	// Progress reports embedding progress during regeneration. Optional.
	Progress func(done, total int)
}

// Report describes one Ingest or Refresh.
type Report struct {
	RunID       string
	Documents   int
	Skipped     []loader.Skipped
	Chunks      int
	Vectors     int
	VectorState index.State
	Regenerated bool
	Semantic    bool
	Duration    time.Duration
	// VectorErr is set when the vector side could not be made consistent.
	// The snapshot then serves lexical search only.
	VectorErr error
}

// Pipeline owns the ingest and refresh flow. Runs are serialized.
type Pipeline struct {
	cfg         *config.Config
	chunks      *store.ChunkStore
	vectors     *store.VectorStore
	engine      *search.Engine
	embedder    embed.Embedder
	lock        *store.DirLock
	chunker     *chunk.Chunker
	consistency *index.ConsistencyManager

	mu sync.Mutex
}

// New validates deps and builds a Pipeline.
func New(deps Dependencies) (*Pipeline, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Chunks == nil {
		return nil, fmt.Errorf("chunk store is required")
	}
	if deps.Vectors == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("search engine is required")
	}

	chunker, err := NewChunker(deps.Config)
	if err != nil {
		return nil, err
	}

	var regen index.Regenerator
	if deps.Embedder != nil {
		r := embed.NewRegenerator(deps.Embedder, deps.Vectors, deps.Config.Embeddings.BatchSize)
		r.Progress = deps.Progress
		regen = r
	}

	return &Pipeline{
		cfg:      deps.Config,
		chunks:   deps.Chunks,
		vectors:  deps.Vectors,
		engine:   deps.Engine,
		embedder: deps.Embedder,
		lock:     deps.Lock,
		chunker:  chunker,
		consistency: index.NewConsistencyManager(regen,
			index.WithContentCheck(deps.Config.Vectors.ContentCheck)),
	}, nil
}

// NewChunker builds the chunker described by cfg.
func NewChunker(cfg *config.Config) (*chunk.Chunker, error) {
	hints, err := chunk.HintsByName(cfg.Chunking.Hints)
	if err != nil {
		return nil, fuseerr.InvalidParameter("%v", err)
	}
	rules := make([]chunk.Rule, 0, len(cfg.Tagging.Rules))
	for _, r := range cfg.Tagging.Rules {
		rules = append(rules, chunk.Rule{Category: r.Category, Topic: r.Topic, Keywords: r.Keywords})
	}
	return chunk.New(cfg.Chunking.ChunkSize, cfg.Chunking.StepSize,
		chunk.WithHints(hints),
		chunk.WithTagger(chunk.NewRuleTagger(rules)))
}

// Consistency exposes the manager for status reporting.
func (p *Pipeline) Consistency() *index.ConsistencyManager { return p.consistency }

// Ingest reloads every document under docsRoot, replaces the chunk store
// and refreshes the indexes.
func (p *Pipeline) Ingest(ctx context.Context, docsRoot string) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lock != nil {
		if err := p.lock.TryLock(); err != nil {
			return nil, err
		}
		defer func() {
			if err := p.lock.Unlock(); err != nil {
				slog.Warn("release ingest lock failed", slog.String("error", err.Error()))
			}
		}()
	}

	start := time.Now()
	runID := uuid.NewString()
	slog.Info("ingest started", slog.String("run_id", runID), slog.String("root", docsRoot))

	loaded, err := loader.Load(ctx, docsRoot, loader.Options{
		Extensions: p.cfg.Paths.Extensions,
		Exclude:    p.cfg.Paths.Exclude,
	})
	if err != nil {
		return nil, err
	}

	chunks, err := p.chunkAll(ctx, loaded.Documents)
	if err != nil {
		return nil, err
	}

	params := store.Params{
		ChunkSize: p.chunker.Size(),
		StepSize:  p.chunker.Step(),
		UpdatedAt: time.Now(),
	}
	if err := p.chunks.Replace(ctx, chunks, params); err != nil {
		return nil, err
	}

	report, err := p.refresh(ctx, runID)
	if err != nil {
		return nil, err
	}
	report.Documents = len(loaded.Documents)
	report.Skipped = loaded.Skipped
	report.Duration = time.Since(start)

	slog.Info("ingest completed",
		slog.String("run_id", runID),
		slog.Int("documents", report.Documents),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("chunks", report.Chunks),
		slog.String("vectors", report.VectorState.String()),
		slog.Duration("duration", report.Duration))
	return report, nil
}

// chunkAll chunks documents in parallel. Output keeps document order.
func (p *Pipeline) chunkAll(ctx context.Context, docs []chunk.Document) ([]chunk.Chunk, error) {
	perDoc := make([][]chunk.Chunk, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := p.chunker.Chunk(doc)
			if err != nil {
				return fmt.Errorf("chunk %s: %w", doc.SourceID, err)
			}
			perDoc[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, cs := range perDoc {
		total += len(cs)
	}
	chunks := make([]chunk.Chunk, 0, total)
	for _, cs := range perDoc {
		chunks = append(chunks, cs...)
	}
	return chunks, nil
}

// Refresh rebuilds the indexes from the stores without reloading
// documents. It is what `serve` runs at startup.
func (p *Pipeline) Refresh(ctx context.Context) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	report, err := p.refresh(ctx, uuid.NewString())
	if err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)
	return report, nil
}

func (p *Pipeline) refresh(ctx context.Context, runID string) (*Report, error) {
	chunks, err := p.chunks.All(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{RunID: runID, Chunks: len(chunks), VectorState: index.Stale}

	lexical := index.NewTermIndex()
	if err := lexical.Build(chunks); err != nil {
		return nil, fuseerr.New(fuseerr.ErrCodeIndexFailed, "build term index", err)
	}

	snap := &search.Snapshot{Chunks: chunks, Lexical: lexical, BuiltAt: time.Now()}

	if p.embedder != nil {
		semantic, err := p.buildSemantic(ctx, chunks, report)
		switch {
		case err != nil:
			report.VectorErr = err
			slog.Warn("serving lexical search only",
				slog.String("run_id", runID),
				slog.String("error", err.Error()))
		case semantic != nil:
			snap.Semantic = semantic
			snap.Model = p.vectors.Model()
			report.Semantic = true
		}
	}
	report.Vectors = p.vectors.Len()

	p.engine.Swap(snap)
	return report, nil
}

// buildSemantic validates the vector store, regenerating it at most once
// when stale, and builds the vector index over it. A store still stale
// after that regeneration is an error; it is not regenerated again.
func (p *Pipeline) buildSemantic(ctx context.Context, chunks []chunk.Chunk, report *Report) (index.VectorSearcher, error) {
	model := p.embedder.ModelName()
	if p.vectors.Len() > 0 && p.vectors.Model() != model {
		slog.Info("embedding model changed, discarding vectors",
			slog.String("stored", p.vectors.Model()),
			slog.String("current", model))
		if err := p.vectors.Discard(ctx); err != nil {
			return nil, err
		}
	}

	res, err := p.consistency.Validate(ctx, chunks, p.vectors)
	if err != nil {
		report.VectorState = index.Stale
		return nil, err
	}
	if res.Regenerated {
		report.Regenerated = true
		res = p.consistency.Confirm(chunks, p.vectors)
	}
	report.VectorState = res.State
	switch {
	case res.State == index.Consistent:
	case report.Regenerated:
		return nil, fuseerr.New(fuseerr.ErrCodeRegenerationFailed, "vector store still stale after regeneration", nil).
			WithDetail("missing", strconv.Itoa(res.Missing)).
			WithDetail("changed", strconv.Itoa(res.Changed))
	default:
		return nil, nil
	}

	ids, rows := p.alignedRows(chunks)
	searcher, err := index.NewVectorSearcher(p.cfg.Vectors.Backend, index.HNSWConfig{
		M:        p.cfg.Vectors.HNSWM,
		EfSearch: p.cfg.Vectors.HNSWEfSearch,
	})
	if err != nil {
		return nil, err
	}
	if err := searcher.Build(ids, rows); err != nil {
		return nil, fuseerr.New(fuseerr.ErrCodeIndexFailed, "build vector index", err)
	}
	return searcher, nil
}

// alignedRows orders stored rows by chunk ordinal, so a vector result's
// ordinal addresses the same chunk as a term result's.
func (p *Pipeline) alignedRows(chunks []chunk.Chunk) ([]chunk.ID, [][]float32) {
	storedIDs, storedRows := p.vectors.Rows()
	byID := make(map[chunk.ID][]float32, len(storedIDs))
	for i, id := range storedIDs {
		byID[id] = storedRows[i]
	}

	ids := make([]chunk.ID, len(chunks))
	rows := make([][]float32, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		rows[i] = byID[c.ID]
	}
	return ids, rows
}
