package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docfuse/internal/chunk"
	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
	"github.com/Aman-CERP/docfuse/internal/index"
)

// fakeEmbedder maps known queries to vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
	mu      sync.Mutex
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

var engineCorpus = []string{
	"Configure the retry policy for webhook deliveries.",
	"Rotate API keys from the dashboard settings page.",
	"Webhook signatures use HMAC with a shared secret.",
	"Rate limits apply per API key and per endpoint.",
}

func buildSnapshot(t *testing.T, withVectors bool) *Snapshot {
	t.Helper()
	chunks := make([]chunk.Chunk, len(engineCorpus))
	ids := make([]chunk.ID, len(engineCorpus))
	for i, text := range engineCorpus {
		chunks[i] = chunk.Chunk{ID: chunk.ID{SourceID: "api.md", Start: i * 60}, End: i*60 + len(text), Text: text}
		ids[i] = chunks[i].ID
	}

	lexical := index.NewTermIndex()
	require.NoError(t, lexical.Build(chunks))
	snap := &Snapshot{Chunks: chunks, Lexical: lexical}

	if withVectors {
		semantic := index.NewVectorIndex()
		require.NoError(t, semantic.Build(ids, [][]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0.9, 0.1, 0},
			{0, 0.8, 0.2},
		}))
		snap.Semantic = semantic
	}
	return snap
}

func TestEngine_SearchBeforeSwap(t *testing.T) {
	e := NewEngine(nil, DefaultEngineConfig())

	_, err := e.Search(context.Background(), "webhook", Options{})

	assert.ErrorIs(t, err, fuseerr.ErrIndexNotReady)
}

func TestEngine_EmptyQuery(t *testing.T) {
	e := NewEngine(nil, DefaultEngineConfig())
	e.Swap(buildSnapshot(t, false))

	_, err := e.Search(context.Background(), "   ", Options{})

	assert.ErrorIs(t, err, fuseerr.ErrQueryEmpty)
}

func TestEngine_HybridFusesBothRankings(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"webhook retries": {1, 0, 0}}}
	e := NewEngine(emb, DefaultEngineConfig())
	e.Swap(buildSnapshot(t, true))

	resp, err := e.Search(context.Background(), "webhook retries", Options{NumResults: 3})

	require.NoError(t, err)
	assert.Equal(t, ModeHybrid, resp.Mode)
	assert.Empty(t, resp.Warnings)
	require.Len(t, resp.Hits, 3)
	for i, h := range resp.Hits {
		assert.Equal(t, i+1, h.Rank)
		assert.Equal(t, index.SourceFused, h.Source)
		assert.Equal(t, h.Chunk.Text, h.Snippet)
	}
	// Chunk 0 is the best semantic match and a lexical match.
	assert.Equal(t, 0, hitStarts(resp.Hits)[0])
	assert.Equal(t, 1, emb.calls)
}

func hitStarts(hits []Hit) []int {
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.ID.Start / 60
	}
	return out
}

func TestEngine_StaleVectorsDegradeToLexical(t *testing.T) {
	emb := &fakeEmbedder{}
	e := NewEngine(emb, DefaultEngineConfig())
	e.Swap(buildSnapshot(t, false))

	resp, err := e.Search(context.Background(), "webhook", Options{})

	require.NoError(t, err)
	assert.Equal(t, ModeLexical, resp.Mode)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "semantic index unavailable")
	assert.ElementsMatch(t, []int{0, 2}, hitStarts(resp.Hits))
	assert.Equal(t, index.SourceLexical, resp.Hits[0].Source)
	assert.Equal(t, 0, emb.calls)
}

func TestEngine_EmbedderFailureDegradesToLexical(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("connection refused")}
	e := NewEngine(emb, DefaultEngineConfig())
	e.Swap(buildSnapshot(t, true))

	resp, err := e.Search(context.Background(), "api key", Options{})

	require.NoError(t, err)
	assert.Equal(t, ModeLexical, resp.Mode)
	require.NotEmpty(t, resp.Warnings)
	assert.Contains(t, resp.Warnings[0], "connection refused")
	assert.ElementsMatch(t, []int{1, 3}, hitStarts(resp.Hits))
}

func TestEngine_Modes(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"dashboard": {0, 1, 0}}}
	e := NewEngine(emb, DefaultEngineConfig())
	e.Swap(buildSnapshot(t, true))

	resp, err := e.Search(context.Background(), "dashboard", Options{Mode: ModeSemantic, NumResults: 2})
	require.NoError(t, err)
	assert.Equal(t, ModeSemantic, resp.Mode)
	assert.Equal(t, []int{1, 3}, hitStarts(resp.Hits))
	assert.Equal(t, index.SourceSemantic, resp.Hits[0].Source)

	resp, err = e.Search(context.Background(), "dashboard", Options{Mode: ModeLexical})
	require.NoError(t, err)
	assert.Equal(t, ModeLexical, resp.Mode)
	assert.Equal(t, []int{1}, hitStarts(resp.Hits))
	assert.Equal(t, 1, emb.calls)
}

func TestEngine_LexicalWeightOnlyMatchesLexicalOrder(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"api key webhook": {0, 0, 1}}}
	e := NewEngine(emb, DefaultEngineConfig())
	e.Swap(buildSnapshot(t, true))

	lexOnly, err := e.Search(context.Background(), "api key webhook", Options{Mode: ModeLexical, NumResults: 4})
	require.NoError(t, err)
	fused, err := e.Search(context.Background(), "api key webhook", Options{NumResults: len(lexOnly.Hits), Weights: &Weights{Lexical: 1}})
	require.NoError(t, err)

	assert.Equal(t, hitStarts(lexOnly.Hits), hitStarts(fused.Hits))
}

func TestEngine_SwapIsAtomicForReaders(t *testing.T) {
	e := NewEngine(nil, DefaultEngineConfig())
	first := buildSnapshot(t, false)
	e.Swap(first)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				resp, err := e.Search(context.Background(), "webhook", Options{})
				assert.NoError(t, err)
				assert.NotEmpty(t, resp.Hits)
			}
		}()
	}
	for range 20 {
		e.Swap(buildSnapshot(t, false))
	}
	wg.Wait()

	old := e.Swap(nil)
	assert.NotNil(t, old)
	assert.Nil(t, e.Snapshot())
}

func TestEngine_SnippetTruncation(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.SnippetLength = 10
	e := NewEngine(nil, cfg)
	e.Swap(buildSnapshot(t, false))

	resp, err := e.Search(context.Background(), "HMAC", Options{})

	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "Webhook si...", resp.Hits[0].Snippet)
	assert.True(t, strings.HasPrefix(resp.Hits[0].Chunk.Text, "Webhook si"))
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("")
	assert.True(t, ok)
	assert.Equal(t, ModeHybrid, m)

	m, ok = ParseMode("lexical")
	assert.True(t, ok)
	assert.Equal(t, ModeLexical, m)

	_, ok = ParseMode("bm25")
	assert.False(t, ok)
}
