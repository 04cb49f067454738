package index

import (
	"math"
	"slices"
	"sync/atomic"

	"github.com/Aman-CERP/docfuse/internal/chunk"
	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
)

// TermIndex ranks chunks by cosine similarity of TF-IDF vectors.
//
// A term's weight in a chunk is its count in the chunk times
// ln((1+N)/df), where N is the number of chunks and df the number of
// chunks containing the term. The weight is always positive: a term
// present in every chunk weighs ln(1+1/N), which tends to zero as the
// corpus grows, so a single-chunk corpus still ranks.
type TermIndex struct {
	stopWords map[string]struct{}
	state     atomic.Pointer[termState]
}

type termState struct {
	ids      []chunk.ID
	vocab    map[string]int
	idf      []float64
	postings [][]posting // indexed by term id
}

// posting holds a chunk's L2-normalized weight for one term.
type posting struct {
	doc    int32
	weight float64
}

// TermOption configures a TermIndex.
type TermOption func(*TermIndex)

// WithStopWords replaces the default English stoplist.
func WithStopWords(words []string) TermOption {
	return func(ix *TermIndex) { ix.stopWords = BuildStopWordMap(words) }
}

// NewTermIndex returns an unbuilt index.
func NewTermIndex(opts ...TermOption) *TermIndex {
	ix := &TermIndex{stopWords: BuildStopWordMap(EnglishStopWords)}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Build replaces the index contents with chunks, in order. Duplicate chunk
// ids fail the build and leave the previous snapshot in place.
func (ix *TermIndex) Build(chunks []chunk.Chunk) error {
	n := len(chunks)
	ids := make([]chunk.ID, n)
	seen := make(map[chunk.ID]struct{}, n)
	vocab := make(map[string]int)
	var df []int
	counts := make([]map[int]int, n)

	for i, c := range chunks {
		if _, dup := seen[c.ID]; dup {
			return fuseerr.InvalidParameter("duplicate chunk id %s", c.ID)
		}
		seen[c.ID] = struct{}{}
		ids[i] = c.ID

		tf := make(map[int]int)
		for _, tok := range Tokenize(c.Text, ix.stopWords) {
			id, ok := vocab[tok]
			if !ok {
				id = len(vocab)
				vocab[tok] = id
				df = append(df, 0)
			}
			if tf[id] == 0 {
				df[id]++
			}
			tf[id]++
		}
		counts[i] = tf
	}

	idf := make([]float64, len(vocab))
	for t, d := range df {
		idf[t] = math.Log(float64(1+n) / float64(d))
	}

	postings := make([][]posting, len(vocab))
	for doc, tf := range counts {
		terms := sortedTerms(tf)
		var norm float64
		for _, t := range terms {
			w := float64(tf[t]) * idf[t]
			norm += w * w
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		for _, t := range terms {
			if w := float64(tf[t]) * idf[t]; w > 0 {
				postings[t] = append(postings[t], posting{doc: int32(doc), weight: w / norm})
			}
		}
	}

	ix.state.Store(&termState{ids: ids, vocab: vocab, idf: idf, postings: postings})
	return nil
}

// Search returns up to k chunks with positive similarity to query, best
// first, ties in emission order.
func (ix *TermIndex) Search(query string, k int) ([]Result, error) {
	st := ix.state.Load()
	if st == nil {
		return nil, fuseerr.IndexNotReady("term")
	}
	if k <= 0 || len(st.ids) == 0 {
		return []Result{}, nil
	}

	qtf := make(map[int]int)
	for _, tok := range Tokenize(query, ix.stopWords) {
		if id, ok := st.vocab[tok]; ok {
			qtf[id]++
		}
	}

	qterms := sortedTerms(qtf)
	var qnorm float64
	for _, t := range qterms {
		w := float64(qtf[t]) * st.idf[t]
		qnorm += w * w
	}
	if qnorm == 0 {
		return []Result{}, nil
	}
	qnorm = math.Sqrt(qnorm)

	scores := make([]float64, len(st.ids))
	for _, t := range qterms {
		qw := float64(qtf[t]) * st.idf[t] / qnorm
		for _, p := range st.postings[t] {
			scores[p.doc] += qw * p.weight
		}
	}

	results := make([]Result, 0, min(k*4, len(scores)))
	for doc, s := range scores {
		if s > 0 {
			results = append(results, Result{ID: st.ids[doc], Ordinal: doc, Score: s, Source: SourceLexical})
		}
	}
	return topK(results, k), nil
}

// sortedTerms fixes the summation order so equal chunks get bit-identical
// weights and ties fall through to emission order.
func sortedTerms(tf map[int]int) []int {
	terms := make([]int, 0, len(tf))
	for t := range tf {
		terms = append(terms, t)
	}
	slices.Sort(terms)
	return terms
}

// Ready reports whether Build has completed at least once.
func (ix *TermIndex) Ready() bool { return ix.state.Load() != nil }

// Len returns the number of indexed chunks.
func (ix *TermIndex) Len() int {
	if st := ix.state.Load(); st != nil {
		return len(st.ids)
	}
	return 0
}

// VocabularySize returns the number of distinct terms.
func (ix *TermIndex) VocabularySize() int {
	if st := ix.state.Load(); st != nil {
		return len(st.vocab)
	}
	return 0
}
