package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
)

// fakeOllama answers /api/embed with 3-dimensional vectors. failFirst
// requests return 503 before it starts answering.
func fakeOllama(t *testing.T, failFirst int32, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		if n <= failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		resp := ollamaEmbedResponse{Model: req.Model}
		for i := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float64{float64(i + 1), 0, 0})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testOllamaConfig(host string) OllamaConfig {
	cfg := DefaultOllamaConfig()
	cfg.Host = host
	cfg.Model = "test-model"
	cfg.BatchSize = 2
	cfg.RequestsPerSecond = -1
	cfg.Retry = fuseerr.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	return cfg
}

func TestOllamaEmbedder_ProbesDimensions(t *testing.T) {
	srv, _ := fakeOllama(t, 0, 0)
	e, err := NewOllamaEmbedder(context.Background(), testOllamaConfig(srv.URL))
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, 3, e.Dimensions())
	assert.Equal(t, "test-model", e.ModelName())
}

func TestOllamaEmbedder_BatchesAndKeepsOrder(t *testing.T) {
	srv, calls := fakeOllama(t, 0, 0)
	cfg := testOllamaConfig(srv.URL)
	cfg.Dimensions = 3
	e, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", " ", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 4)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []float32{1, 0, 0}, vecs[0])
	assert.Equal(t, []float32{0, 0, 0}, vecs[1])
	assert.Equal(t, []float32{1, 0, 0}, vecs[2])
	assert.Equal(t, []float32{1, 0, 0}, vecs[3])
}

func TestOllamaEmbedder_RetriesServerErrors(t *testing.T) {
	srv, calls := fakeOllama(t, 2, 0)
	cfg := testOllamaConfig(srv.URL)
	cfg.Dimensions = 3
	e, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)

	v, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, v, 3)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOllamaEmbedder_ClientErrorNotRetried(t *testing.T) {
	srv, calls := fakeOllama(t, 0, http.StatusNotFound)
	cfg := testOllamaConfig(srv.URL)
	cfg.Dimensions = 3
	e, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, fuseerr.ErrCodeEmbeddingFailed, fuseerr.GetCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestOllamaEmbedder_UnreachableIsNetworkError(t *testing.T) {
	srv, _ := fakeOllama(t, 0, 0)
	url := srv.URL
	srv.Close()

	_, err := NewOllamaEmbedder(context.Background(), testOllamaConfig(url))
	require.Error(t, err)
	assert.Equal(t, fuseerr.ErrCodeNetworkUnavailable, fuseerr.GetCode(err))
}

func TestNew_FallsBackToStatic(t *testing.T) {
	srv, _ := fakeOllama(t, 0, http.StatusInternalServerError)
	opts := Options{Provider: ProviderOllama, Host: srv.URL, RequestsPerSecond: -1, Fallback: true}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	e, err := New(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, "static", e.ModelName())
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider("")
	require.NoError(t, err)
	assert.Equal(t, ProviderStatic, p)

	p, err = ParseProvider(" Ollama ")
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, p)

	_, err = ParseProvider("mlx")
	assert.Error(t, err)
}
