package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/docfuse/internal/config"
	"github.com/Aman-CERP/docfuse/internal/embed"
	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
	"github.com/Aman-CERP/docfuse/internal/index"
	"github.com/Aman-CERP/docfuse/internal/search"
	"github.com/Aman-CERP/docfuse/internal/store"
)

// File names inside the data directory.
const (
	ChunkDBFile    = "chunks.db"
	VectorFileName = "vectors.gob"
)

// OpenOptions tunes Open.
type OpenOptions struct {
	// Lexical skips the embedder entirely.
	Lexical bool
	// InMemory keeps both stores in memory (tests, one-shot runs).
	InMemory bool
	// Progress is forwarded to the regenerator.
	Progress func(done, total int)
}

// Service bundles the stores, embedder, engine and pipeline for one
// project root.
type Service struct {
	Config   *config.Config
	Root     string
	DocsDir  string
	DataDir  string
	Chunks   *store.ChunkStore
	Vectors  *store.VectorStore
	Embedder embed.Embedder
	Engine   *search.Engine
	Pipeline *Pipeline
}

// Status is the index summary shown by `docfuse status` and the
// index_status tool.
type Status struct {
	DocsDir       string    `json:"docs_dir"`
	Documents     int       `json:"documents"`
	Chunks        int       `json:"chunks"`
	AvgChunkChars float64   `json:"avg_chunk_chars"`
	ChunkSize     int       `json:"chunk_size"`
	StepSize      int       `json:"step_size"`
	UpdatedAt     time.Time `json:"updated_at"`
	Vectors       int       `json:"vectors"`
	Model         string    `json:"model,omitempty"`
	Dimensions    int       `json:"dimensions"`
	VectorState   string    `json:"vector_state"`
	Semantic      bool      `json:"semantic"`
	Backend       string    `json:"backend"`
}

// Open wires a Service for root using cfg.
func Open(ctx context.Context, cfg *config.Config, root string, opts OpenOptions) (*Service, error) {
	s := &Service{
		Config:  cfg,
		Root:    root,
		DocsDir: cfg.DocsDir(root),
		DataDir: cfg.DataDir(root),
	}

	chunkPath, vectorPath := "", ""
	if !opts.InMemory {
		if err := os.MkdirAll(s.DataDir, 0o755); err != nil {
			return nil, fuseerr.IOError("create data directory", err)
		}
		chunkPath = filepath.Join(s.DataDir, ChunkDBFile)
		vectorPath = filepath.Join(s.DataDir, VectorFileName)
	}

	var err error
	if s.Chunks, err = store.OpenChunkStore(chunkPath); err != nil {
		return nil, err
	}
	if s.Vectors, err = store.OpenVectorStore(vectorPath); err != nil {
		_ = s.Chunks.Close()
		return nil, err
	}

	if !opts.Lexical {
		emb, err := newEmbedder(ctx, cfg)
		if err != nil {
			_ = s.Chunks.Close()
			return nil, err
		}
		s.Embedder = emb
	}

	var queryEmbedder search.QueryEmbedder
	if s.Embedder != nil {
		queryEmbedder = s.Embedder
	}
	s.Engine = search.NewEngine(queryEmbedder, search.EngineConfig{
		NumResults: cfg.Search.NumResults,
		Weights: search.Weights{
			Lexical:  cfg.Search.LexicalWeight,
			Semantic: cfg.Search.SemanticWeight,
		},
		CandidateMultiplier: cfg.Search.CandidateMultiplier,
		SnippetLength:       cfg.Search.SnippetLength,
	})

	deps := Dependencies{
		Config:   cfg,
		Chunks:   s.Chunks,
		Vectors:  s.Vectors,
		Engine:   s.Engine,
		Embedder: s.Embedder,
		Progress: opts.Progress,
	}
	if !opts.InMemory {
		deps.Lock = store.NewDirLock(s.DataDir)
	}
	if s.Pipeline, err = New(deps); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	provider, err := embed.ParseProvider(cfg.Embeddings.Provider)
	if err != nil {
		return nil, fuseerr.InvalidParameter("%v", err)
	}
	inner, err := embed.New(ctx, embed.Options{
		Provider:          provider,
		Model:             cfg.Embeddings.Model,
		Host:              cfg.Embeddings.OllamaHost,
		Dimensions:        cfg.Embeddings.Dimensions,
		BatchSize:         cfg.Embeddings.BatchSize,
		Timeout:           cfg.EmbeddingTimeout(),
		RequestsPerSecond: cfg.Embeddings.RequestsPerSecond,
		Fallback:          cfg.Embeddings.Fallback,
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("embedder ready",
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))
	return embed.NewCachedEmbedder(inner, cfg.Embeddings.CacheSize), nil
}

// Status summarizes the stores and the served snapshot.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	stats, err := s.Chunks.Stats(ctx)
	if err != nil {
		return nil, err
	}
	params, _, err := s.Chunks.Params(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{
		DocsDir:       s.DocsDir,
		Documents:     stats.Sources,
		Chunks:        stats.Chunks,
		AvgChunkChars: stats.AvgChunkChars,
		ChunkSize:     params.ChunkSize,
		StepSize:      params.StepSize,
		UpdatedAt:     params.UpdatedAt,
		Vectors:       s.Vectors.Len(),
		Model:         s.Vectors.Model(),
		Dimensions:    s.Vectors.Dimensions(),
		VectorState:   s.Pipeline.Consistency().State().String(),
		Backend:       s.Config.Vectors.Backend,
	}
	if snap := s.Engine.Snapshot(); snap != nil {
		st.Semantic = snap.HasSemantic()
	}
	if s.Embedder == nil {
		st.VectorState = "disabled"
	}
	return st, nil
}

// Check runs a side-effect free consistency check of the stores.
func (s *Service) Check(ctx context.Context) (*index.CheckResult, error) {
	chunks, err := s.Chunks.All(ctx)
	if err != nil {
		return nil, err
	}
	return s.Pipeline.Consistency().Check(chunks, s.Vectors), nil
}

// Close releases the embedder and the chunk store.
func (s *Service) Close() error {
	var errs []error
	if s.Embedder != nil {
		errs = append(errs, s.Embedder.Close())
	}
	if s.Chunks != nil {
		errs = append(errs, s.Chunks.Close())
	}
	return errors.Join(errs...)
}
