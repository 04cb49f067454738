package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// Window defaults, in code points.
const (
	DefaultChunkSize = 2000
	DefaultStepSize  = 1000
)

// Metadata keys the chunker sets on every chunk.
const (
	MetaFilename = "filename"
	MetaCategory = "category"
	MetaTopic    = "topic"
)

// Document is a source text handed to the chunker.
type Document struct {
	SourceID string            // Slash-separated path relative to the corpus root
	Text     string            // Body text, frontmatter removed
	Metadata map[string]string // Frontmatter scalars, copied onto each chunk
}

// ID identifies a chunk by its source document and start offset.
// It is comparable and used directly as a map key.
type ID struct {
	SourceID string
	Start    int
}

// String renders the id as "source@start".
func (id ID) String() string {
	return id.SourceID + "@" + strconv.Itoa(id.Start)
}

// ParseID is the inverse of ID.String.
func ParseID(s string) (ID, error) {
	i := strings.LastIndexByte(s, '@')
	if i <= 0 {
		return ID{}, fmt.Errorf("invalid chunk id %q", s)
	}
	start, err := strconv.Atoi(s[i+1:])
	if err != nil || start < 0 {
		return ID{}, fmt.Errorf("invalid chunk id %q", s)
	}
	return ID{SourceID: s[:i], Start: start}, nil
}

// Chunk is a contiguous window of a document. Offsets are code points into
// Document.Text with 0 <= ID.Start < End <= len.
type Chunk struct {
	ID       ID
	End      int
	Text     string
	Metadata map[string]string
}

// Start returns the start offset.
func (c Chunk) Start() int { return c.ID.Start }

// Category returns the tagger category, if any.
func (c Chunk) Category() string { return c.Metadata[MetaCategory] }

// Topic returns the tagger topic, if any.
func (c Chunk) Topic() string { return c.Metadata[MetaTopic] }

// EmbeddingText is the text handed to the embedding model: category and
// topic tags prefixed to the chunk text.
func (c Chunk) EmbeddingText() string {
	return strings.TrimSpace(strings.Join([]string{c.Category(), c.Topic(), c.Text}, " "))
}

// Hash fingerprints the embedding text. Vector rows remember it so a row
// computed for a different window under the same ID is detected.
func (c Chunk) Hash() string {
	sum := sha256.Sum256([]byte(c.EmbeddingText()))
	return hex.EncodeToString(sum[:])[:16]
}

// Clone returns a copy with its own metadata map.
func (c Chunk) Clone() Chunk {
	c.Metadata = maps.Clone(c.Metadata)
	return c
}
