package index

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docfuse/internal/chunk"
	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
)

func makeChunks(texts ...string) []chunk.Chunk {
	chunks := make([]chunk.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = chunk.Chunk{ID: chunk.ID{SourceID: "doc.md", Start: i * 100}, End: i*100 + len(text), Text: text}
	}
	return chunks
}

func TestTokenize(t *testing.T) {
	stop := BuildStopWordMap(EnglishStopWords)

	got := Tokenize("The Rate-Limit (v2) is 100/req, a x!", stop)

	assert.Equal(t, []string{"rate", "limit", "v2", "100", "req"}, got)
}

func TestTermIndex_SearchBeforeBuild(t *testing.T) {
	ix := NewTermIndex()

	_, err := ix.Search("anything", 3)

	assert.ErrorIs(t, err, fuseerr.ErrIndexNotReady)
	assert.False(t, ix.Ready())
}

func TestTermIndex_RanksRareTermsHigher(t *testing.T) {
	// Given: "install" appears everywhere, "webhook" only once
	ix := NewTermIndex()
	require.NoError(t, ix.Build(makeChunks(
		"install the package and configure logging",
		"install webhook handlers for events",
		"install the cli tool",
	)))

	// When: searching for both words
	results, err := ix.Search("install webhook", 3)

	// Then: the webhook chunk leads, the others match on "install" alone
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []int{1, 2, 0}, []int{results[0].Ordinal, results[1].Ordinal, results[2].Ordinal})
	assert.Equal(t, SourceLexical, results[0].Source)

	common := math.Log(4.0 / 3.0) // install, df = N = 3
	rare := math.Log(4.0)         // df = 1
	query := math.Sqrt(common*common + rare*rare)
	want := (common*common + rare*rare) / (query * math.Sqrt(common*common+3*rare*rare))
	assert.InDelta(t, want, results[0].Score, 1e-9)
	assert.Greater(t, results[0].Score, 2*results[1].Score)
}

func TestTermIndex_SingleChunkCorpus(t *testing.T) {
	ix := NewTermIndex()
	require.NoError(t, ix.Build(makeChunks("kubernetes pods schedule nodes")))

	results, err := ix.Search("kubernetes pods", 5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Ordinal)
	// Every term has df = N = 1, so all weigh ln 2: two of four terms match.
	assert.InDelta(t, 1/math.Sqrt(2), results[0].Score, 1e-9)
}

func TestTermIndex_TermInEveryChunkStillMatches(t *testing.T) {
	ix := NewTermIndex()
	require.NoError(t, ix.Build(makeChunks(
		"kubernetes deployments roll out",
		"kubernetes services expose pods",
	)))

	results, err := ix.Search("kubernetes", 5)

	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Greater(t, r.Score, 0.0)
	}
	assert.Equal(t, 0, results[0].Ordinal)
}

func TestTermIndex_AtMostKSortedNonIncreasing(t *testing.T) {
	texts := make([]string, 0, 30)
	for i := range 30 {
		texts = append(texts, fmt.Sprintf("alpha beta %s gamma%d", repeat("delta ", i%5), i))
	}
	ix := NewTermIndex()
	require.NoError(t, ix.Build(makeChunks(texts...)))

	for _, k := range []int{1, 3, 10, 50} {
		results, err := ix.Search("delta gamma7", k)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(results), k)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	}
}

func repeat(s string, n int) string {
	out := ""
	for range n {
		out += s
	}
	return out
}

func TestTermIndex_TiesBrokenByEmissionOrder(t *testing.T) {
	ix := NewTermIndex()
	require.NoError(t, ix.Build(makeChunks(
		"unrelated words here",
		"kafka consumer groups",
		"something else entirely",
		"kafka consumer groups",
		"kafka consumer groups",
	)))

	results, err := ix.Search("kafka", 10)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []int{1, 3, 4}, []int{results[0].Ordinal, results[1].Ordinal, results[2].Ordinal})
	assert.Equal(t, results[0].Score, results[2].Score)
}

func TestTermIndex_StopWordsAndUnknownTermsScoreNothing(t *testing.T) {
	ix := NewTermIndex()
	require.NoError(t, ix.Build(makeChunks("the cat sat", "a dog ran")))

	for _, q := range []string{"the", "zebra", "", "!!!"} {
		results, err := ix.Search(q, 5)
		require.NoError(t, err)
		assert.Empty(t, results, q)
	}
}

func TestTermIndex_BuildReplacesState(t *testing.T) {
	ix := NewTermIndex()
	require.NoError(t, ix.Build(makeChunks("postgres replication", "mysql tuning")))
	require.Equal(t, 2, ix.Len())

	require.NoError(t, ix.Build(makeChunks("redis eviction")))

	assert.Equal(t, 1, ix.Len())
	results, err := ix.Search("postgres", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 2, ix.VocabularySize())
}

func TestTermIndex_DuplicateIDsKeepPreviousSnapshot(t *testing.T) {
	ix := NewTermIndex()
	require.NoError(t, ix.Build(makeChunks("original content", "more content")))

	dup := makeChunks("a b", "c d")
	dup[1].ID = dup[0].ID
	err := ix.Build(dup)

	assert.ErrorIs(t, err, fuseerr.ErrInvalidParameter)
	results, err := ix.Search("original", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Ordinal)
}

func TestTermIndex_EmptyBuildAndZeroK(t *testing.T) {
	ix := NewTermIndex()
	require.NoError(t, ix.Build(nil))

	results, err := ix.Search("anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, ix.Build(makeChunks("text one", "text two")))
	results, err = ix.Search("one", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTermIndex_CustomStopWords(t *testing.T) {
	ix := NewTermIndex(WithStopWords([]string{"kafka"}))
	require.NoError(t, ix.Build(makeChunks("kafka topics", "the broker")))

	results, err := ix.Search("kafka", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = ix.Search("the broker", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Ordinal)
}

func TestTermIndex_ConcurrentSearchDuringRebuild(t *testing.T) {
	ix := NewTermIndex()
	require.NoError(t, ix.Build(makeChunks("grpc streaming", "http routing")))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				results, err := ix.Search("grpc", 2)
				assert.NoError(t, err)
				assert.Len(t, results, 1)
			}
		}()
	}
	for range 20 {
		require.NoError(t, ix.Build(makeChunks("grpc streaming", "http routing", "tls setup")))
	}
	wg.Wait()
}
