package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
)

// Ollama defaults.
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"

	// DefaultRequestsPerSecond caps calls to the local model server so a
	// large ingest does not starve interactive queries.
	DefaultRequestsPerSecond = 20
)

// OllamaConfig configures OllamaEmbedder.
type OllamaConfig struct {
	Host  string
	Model string

	// Dimensions overrides detection. Zero probes the server once.
	Dimensions int

	BatchSize int
	Timeout   time.Duration

	// RequestsPerSecond and Burst shape outgoing requests. Zero uses the
	// defaults; a negative rate disables limiting.
	RequestsPerSecond float64
	Burst             int

	Retry fuseerr.RetryConfig

	// SkipProbe leaves Dimensions unset until the first response.
	SkipProbe bool
}

// DefaultOllamaConfig returns a config for a local Ollama server.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:              DefaultOllamaHost,
		Model:             DefaultOllamaModel,
		BatchSize:         DefaultBatchSize,
		Timeout:           DefaultTimeout,
		RequestsPerSecond: DefaultRequestsPerSecond,
		Burst:             1,
		Retry:             fuseerr.DefaultRetryConfig(),
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// statusError is a non-200 reply. 4xx replies are not retried.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("embedding failed with status %d: %s", e.status, e.body)
}

// OllamaEmbedder calls Ollama's /api/embed endpoint.
type OllamaEmbedder struct {
	client  *http.Client
	cfg     OllamaConfig
	limiter *rate.Limiter

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an embedder and, unless SkipProbe is set,
// embeds a probe string to learn the vector length. A server that cannot
// be reached is a network error.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	def := DefaultOllamaConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.BatchSize < MinBatchSize {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = def.Retry
	}
	cfg.Retry.ShouldRetry = retryable

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	e := &OllamaEmbedder{
		client:  &http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: 4, IdleConnTimeout: 10 * time.Second}},
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		dims:    cfg.Dimensions,
	}

	if e.dims == 0 && !cfg.SkipProbe {
		vecs, err := e.embedBatch(ctx, []string{"dimension probe"})
		if err != nil {
			return nil, fuseerr.NetworkError("cannot reach Ollama embedding server", err).
				WithDetail("host", cfg.Host).
				WithDetail("model", cfg.Model).
				WithSuggestion("Start Ollama and pull the model, or set embeddings.provider: static")
		}
		slog.Debug("embedding dimensions detected",
			slog.String("model", cfg.Model),
			slog.Int("dimensions", len(vecs[0])))
	}
	return e, nil
}

// Embed embeds one text. Blank text yields the zero vector once the
// dimension is known.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in BatchSize requests. Blank inputs are not sent
// and get the zero vector.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.isClosed() {
		return nil, fmt.Errorf("embedder is closed")
	}

	out := make([][]float32, len(texts))
	var idx []int
	var pending []string
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		idx = append(idx, i)
		pending = append(pending, t)
	}

	for start := 0; start < len(pending); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(pending))
		vecs, err := e.embedBatch(ctx, pending[start:end])
		if err != nil {
			return nil, err
		}
		for j, v := range vecs {
			out[idx[start+j]] = v
		}
	}

	dims := e.Dimensions()
	for i := range out {
		if out[i] == nil {
			out[i] = make([]float32, dims)
		}
	}
	return out, nil
}

// embedBatch sends one request with retry and rate limiting.
func (e *OllamaEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	attempt := 0
	vecs, err := fuseerr.RetryWithResult(ctx, e.cfg.Retry, func() ([][]float32, error) {
		attempt++
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		vecs, err := e.post(ctx, texts)
		if err != nil {
			slog.Debug("embedding_attempt_failed",
				slog.Int("attempt", attempt),
				slog.Int("texts", len(texts)),
				slog.String("error", err.Error()))
		}
		return vecs, err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fuseerr.New(fuseerr.ErrCodeEmbeddingFailed, "embedding request failed", err).
			WithDetail("model", e.cfg.Model)
	}

	e.mu.Lock()
	if e.dims == 0 && len(vecs) > 0 {
		e.dims = len(vecs[0])
	}
	e.mu.Unlock()
	return vecs, nil
}

func (e *OllamaEmbedder) post(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.cfg.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(b))}
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fuseerr.CountMismatch(len(texts), len(result.Embeddings))
	}

	dims := e.Dimensions()
	vecs := make([][]float32, len(result.Embeddings))
	for i, row := range result.Embeddings {
		if dims != 0 && len(row) != dims {
			return nil, fuseerr.DimensionMismatch(dims, len(row))
		}
		v := make([]float32, len(row))
		for j, x := range row {
			v[j] = float32(x)
		}
		vecs[i] = normalizeVector(v)
	}
	return vecs, nil
}

// retryable skips client errors and validation failures.
func retryable(err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.status >= 500 || se.status == http.StatusTooManyRequests
	}
	switch fuseerr.GetCode(err) {
	case fuseerr.ErrCodeDimensionMismatch, fuseerr.ErrCodeCountMismatch:
		return false
	}
	return !errors.Is(err, context.Canceled)
}

func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

func (e *OllamaEmbedder) ModelName() string { return e.cfg.Model }

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}

func (e *OllamaEmbedder) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}
