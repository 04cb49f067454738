// Package search answers queries against the current index snapshot and
// fuses lexical and semantic rankings by position.
package search

import (
	"cmp"
	"slices"

	"github.com/Aman-CERP/docfuse/internal/chunk"
	"github.com/Aman-CERP/docfuse/internal/index"
)

// fusedEntry accumulates one chunk's contributions during Merge.
type fusedEntry struct {
	id       chunk.ID
	ordinal  int
	score    float64
	bestRank int
}

// Merge combines a lexical and a semantic ranking into one list of at most k
// results.
//
// In a list of length n, the result at 0-based rank r carries the positional
// weight (n-r)/n. A chunk's fused score is
//
//	lexicalWeight*w_lexical + semanticWeight*w_semantic
//
// where a list the chunk is absent from contributes 0. Raw scores are not
// used: TF-IDF cosine and embedding similarity live on different scales.
//
// Results are deduplicated by chunk id and ordered by fused score, then by
// the best rank the chunk reached in either list, then by emission order.
// The weights are not required to sum to 1.
func Merge(lexical, semantic []index.Result, k int, lexicalWeight, semanticWeight float64) []index.Result {
	if k <= 0 || (len(lexical) == 0 && len(semantic) == 0) {
		return []index.Result{}
	}

	scores := make(map[chunk.ID]*fusedEntry, len(lexical)+len(semantic))
	accumulate(scores, lexical, lexicalWeight)
	accumulate(scores, semantic, semanticWeight)

	entries := make([]*fusedEntry, 0, len(scores))
	for _, e := range scores {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, compareFused)

	if len(entries) > k {
		entries = entries[:k]
	}
	out := make([]index.Result, len(entries))
	for i, e := range entries {
		out[i] = index.Result{ID: e.id, Ordinal: e.ordinal, Score: e.score, Source: index.SourceFused}
	}
	return out
}

// accumulate adds one list's positional weights. Repeats of a chunk within
// the same list count once, at their first rank.
func accumulate(scores map[chunk.ID]*fusedEntry, list []index.Result, weight float64) {
	n := float64(len(list))
	seen := make(map[chunk.ID]struct{}, len(list))
	for rank, r := range list {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}

		e, ok := scores[r.ID]
		if !ok {
			e = &fusedEntry{id: r.ID, ordinal: r.Ordinal, bestRank: rank}
			scores[r.ID] = e
		}
		e.score += weight * (n - float64(rank)) / n
		e.bestRank = min(e.bestRank, rank)
		e.ordinal = min(e.ordinal, r.Ordinal)
	}
}

func compareFused(a, b *fusedEntry) int {
	if c := cmp.Compare(b.score, a.score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.bestRank, b.bestRank); c != 0 {
		return c
	}
	return cmp.Compare(a.ordinal, b.ordinal)
}
