package index

import (
	"cmp"
	"slices"

	"github.com/Aman-CERP/docfuse/internal/chunk"
)

// Source tells which ranking produced a result.
type Source string

const (
	SourceLexical  Source = "lexical"
	SourceSemantic Source = "semantic"
	SourceFused    Source = "fused"
)

// Result is one ranked chunk.
type Result struct {
	ID chunk.ID
	// Ordinal is the chunk's emission order in the chunk store. It breaks
	// score ties.
	Ordinal int
	Score   float64
	Source  Source
}

// compareResults orders by descending score, then ascending ordinal.
func compareResults(a, b Result) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.Ordinal, b.Ordinal)
}

// topK sorts results in place and truncates to k.
func topK(results []Result, k int) []Result {
	slices.SortFunc(results, compareResults)
	if len(results) > k {
		results = results[:k]
	}
	return results
}
