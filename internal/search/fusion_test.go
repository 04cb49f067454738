package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docfuse/internal/chunk"
	"github.com/Aman-CERP/docfuse/internal/index"
)

// ranked builds a result list from ordinals, best first.
func ranked(source index.Source, ordinals ...int) []index.Result {
	out := make([]index.Result, len(ordinals))
	for i, o := range ordinals {
		out[i] = index.Result{
			ID:      chunk.ID{SourceID: "f.md", Start: o * 1000},
			Ordinal: o,
			Score:   1 / float64(i+1),
			Source:  source,
		}
	}
	return out
}

func ordinals(results []index.Result) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.Ordinal
	}
	return out
}

func TestMerge_LexicalOnlyWeightReproducesLexicalOrder(t *testing.T) {
	lexical := ranked(index.SourceLexical, 4, 0, 7, 2, 9)
	semantic := ranked(index.SourceSemantic, 9, 2, 5, 1)

	fused := Merge(lexical, semantic, len(lexical), 1, 0)

	assert.Equal(t, ordinals(lexical), ordinals(fused))
}

func TestMerge_SemanticOnlyWeightReproducesSemanticOrder(t *testing.T) {
	lexical := ranked(index.SourceLexical, 4, 0, 7)
	semantic := ranked(index.SourceSemantic, 9, 2, 5, 1)

	fused := Merge(lexical, semantic, len(semantic), 0, 1)

	assert.Equal(t, ordinals(semantic), ordinals(fused))
}

func TestMerge_PositionalScores(t *testing.T) {
	// Given: chunk 3 is first lexically and second semantically
	lexical := ranked(index.SourceLexical, 3, 8)
	semantic := ranked(index.SourceSemantic, 6, 3, 1, 2)

	// When: merging with equal weights
	fused := Merge(lexical, semantic, 10, 0.5, 0.5)

	// Then: 3 scores 0.5*1 + 0.5*0.75, found by both rankings
	require.Len(t, fused, 5)
	assert.Equal(t, 3, fused[0].Ordinal)
	assert.InDelta(t, 0.875, fused[0].Score, 1e-12)
	assert.Equal(t, index.SourceFused, fused[0].Source)

	// 6: 0.5*1 = 0.5; 8: 0.5*0.5 = 0.25; 1: 0.5*0.5 = 0.25; 2: 0.5*0.25
	assert.Equal(t, []int{3, 6, 8, 1, 2}, ordinals(fused))
	assert.InDelta(t, 0.5, fused[1].Score, 1e-12)
	assert.InDelta(t, 0.125, fused[4].Score, 1e-12)
}

func TestMerge_TieBreaksByBestRankThenEmissionOrder(t *testing.T) {
	// 5 is rank 0 lexically, 2 is rank 0 semantically: equal scores and
	// equal best rank, so emission order decides.
	lexical := ranked(index.SourceLexical, 5, 4)
	semantic := ranked(index.SourceSemantic, 2, 9)

	fused := Merge(lexical, semantic, 4, 0.5, 0.5)

	assert.Equal(t, []int{2, 5, 4, 9}, ordinals(fused))

	// Unequal list lengths: 7 (rank 1 of 2) and 1 (rank 2 of 4) both weigh
	// 0.5; 7 reached the better rank.
	lexical = ranked(index.SourceLexical, 0, 7)
	semantic = ranked(index.SourceSemantic, 3, 6, 1, 8)

	fused = Merge(lexical, semantic, 10, 1, 1)

	assert.Equal(t, []int{0, 3, 6, 7, 1, 8}, ordinals(fused))
}

func TestMerge_DeduplicatesByChunkID(t *testing.T) {
	lexical := ranked(index.SourceLexical, 1, 1, 2)
	semantic := ranked(index.SourceSemantic, 2, 1)

	fused := Merge(lexical, semantic, 10, 0.5, 0.5)

	assert.ElementsMatch(t, []int{1, 2}, ordinals(fused))
	assert.Len(t, fused, 2)
}

func TestMerge_EdgeCases(t *testing.T) {
	assert.Empty(t, Merge(nil, nil, 5, 0.5, 0.5))
	assert.NotNil(t, Merge(nil, nil, 5, 0.5, 0.5))
	assert.Empty(t, Merge(ranked(index.SourceLexical, 1), nil, 0, 1, 0))

	onlySemantic := Merge(nil, ranked(index.SourceSemantic, 4, 2), 1, 0.5, 0.5)
	require.Len(t, onlySemantic, 1)
	assert.Equal(t, 4, onlySemantic[0].Ordinal)
	assert.InDelta(t, 0.5, onlySemantic[0].Score, 1e-12)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", Snippet("short", 600))
	assert.Equal(t, "abc...", Snippet("abcdef", 3))
	assert.Equal(t, "äöü...", Snippet("äöüß", 3))
	assert.Equal(t, "abc", Snippet("abc", 3))
	assert.Equal(t, "", Snippet("abc", 0))
}
