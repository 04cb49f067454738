package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// Mixing weights for the hashed features.
const (
	wordWeight    = 0.7
	trigramWeight = 0.3
	trigramSize   = 3
)

// StaticEmbedder hashes words and character trigrams into a fixed number of
// buckets. It needs no network or model download and is deterministic,
// which makes it the offline default and the embedder used in tests.
type StaticEmbedder struct {
	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder returns an embedder producing StaticDimensions-length
// vectors.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{dims: StaticDimensions}
}

// NewStaticEmbedderWithDimensions returns an embedder with dims buckets.
func NewStaticEmbedderWithDimensions(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed hashes text. Blank text yields the zero vector.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.isClosed() {
		return nil, fmt.Errorf("embedder is closed")
	}

	vec := make([]float32, e.dims)
	text = strings.TrimSpace(text)
	if text == "" {
		return vec, nil
	}

	for _, w := range words(text) {
		vec[bucket(w, e.dims)] += wordWeight
	}
	for _, g := range trigrams(text) {
		vec[bucket(g, e.dims)] += trigramWeight
	}
	return normalizeVector(vec), nil
}

// EmbedBatch embeds each text in order.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the number of hash buckets.
func (e *StaticEmbedder) Dimensions() int { return e.dims }

// ModelName encodes the bucket count so a dimension change reads as a
// model change.
func (e *StaticEmbedder) ModelName() string {
	if e.dims == StaticDimensions {
		return "static"
	}
	return fmt.Sprintf("static-%d", e.dims)
}

// Close marks the embedder closed.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *StaticEmbedder) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

// words lowercases text and splits it into letter/digit runs, further
// splitting identifiers such as rateLimit or max_tokens.
func words(text string) []string {
	var out []string
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	for _, f := range fields {
		for _, part := range strings.Split(f, "_") {
			for _, w := range splitCamel(part) {
				out = append(out, strings.ToLower(w))
			}
		}
	}
	return out
}

// splitCamel breaks a camelCase or PascalCase word. Acronym runs stay
// together: "HTTPServer" gives "HTTP", "Server".
func splitCamel(s string) []string {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	var out []string
	start := 0
	for i := 1; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			continue
		}
		prevLower := unicode.IsLower(runes[i-1])
		nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
		if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
			out = append(out, string(runes[start:i]))
			start = i
		}
	}
	return append(out, string(runes[start:]))
}

// trigrams returns the sliding character trigrams of the lowercased
// letters and digits of text.
func trigrams(text string) []string {
	var b []rune
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b = append(b, r)
		}
	}
	if len(b) < trigramSize {
		return nil
	}
	out := make([]string, 0, len(b)-trigramSize+1)
	for i := 0; i+trigramSize <= len(b); i++ {
		out = append(out, string(b[i:i+trigramSize]))
	}
	return out
}

func bucket(s string, n int) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(n))
}
