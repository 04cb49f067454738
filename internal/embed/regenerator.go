package embed

import (
	"context"
	"log/slog"
	"time"

	"github.com/Aman-CERP/docfuse/internal/chunk"
	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
	"github.com/Aman-CERP/docfuse/internal/index"
)

// VectorWriter persists a complete, row-aligned vector matrix.
type VectorWriter interface {
	Replace(ctx context.Context, model string, chunks []chunk.Chunk, rows [][]float32) error
}

// Regenerator serves regeneration requests by embedding every chunk of
// the request and writing the result as one matrix. Nothing is written
// unless every batch succeeds.
type Regenerator struct {
	embedder  Embedder
	store     VectorWriter
	batchSize int

	// Progress, when set, is called after each batch.
	Progress func(done, total int)
}

var _ index.Regenerator = (*Regenerator)(nil)

// NewRegenerator returns a Regenerator writing to store.
func NewRegenerator(embedder Embedder, store VectorWriter, batchSize int) *Regenerator {
	if batchSize < MinBatchSize {
		batchSize = DefaultBatchSize
	}
	return &Regenerator{embedder: embedder, store: store, batchSize: batchSize}
}

// Regenerate embeds req.Chunks in emission order.
func (r *Regenerator) Regenerate(ctx context.Context, req index.RegenerationRequest) error {
	start := time.Now()
	total := len(req.Chunks)
	rows := make([][]float32, 0, total)

	for from := 0; from < total; from += r.batchSize {
		to := min(from+r.batchSize, total)
		texts := make([]string, 0, to-from)
		for _, c := range req.Chunks[from:to] {
			texts = append(texts, c.EmbeddingText())
		}

		vecs, err := r.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(vecs) != len(texts) {
			return fuseerr.CountMismatch(len(texts), len(vecs))
		}
		rows = append(rows, vecs...)

		if r.Progress != nil {
			r.Progress(to, total)
		}
	}

	if err := r.store.Replace(ctx, r.embedder.ModelName(), req.Chunks, rows); err != nil {
		return err
	}

	slog.Info("vectors regenerated",
		slog.String("request_id", req.ID),
		slog.String("reason", req.Reason),
		slog.Int("chunks", total),
		slog.String("model", r.embedder.ModelName()),
		slog.Duration("duration", time.Since(start)))
	return nil
}
