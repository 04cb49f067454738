package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/docfuse/internal/chunk"
	"github.com/Aman-CERP/docfuse/internal/index"
	"github.com/Aman-CERP/docfuse/internal/search"
)

func hit(rank int, source string, start int, snippet string) search.Hit {
	id := chunk.ID{SourceID: source, Start: start}
	return search.Hit{
		Rank:    rank,
		ID:      id,
		Score:   1 / float64(rank),
		Source:  index.SourceFused,
		Snippet: snippet,
		Chunk: chunk.Chunk{
			ID:   id,
			Text: snippet,
			Metadata: map[string]string{
				chunk.MetaFilename: source,
				chunk.MetaCategory: "guides",
				chunk.MetaTopic:    "Setup",
			},
		},
	}
}

func TestFormatSearchResults(t *testing.T) {
	resp := &search.Response{
		Query: "install",
		Hits: []search.Hit{
			hit(1, "guides/setup.md", 0, "Run the installer."),
			hit(2, "faq.md", 1000, "See setup."),
		},
	}

	want := "Source 1 [guides/setup.md]\nRun the installer.\n\n" +
		"Source 2 [faq.md]\nSee setup.\n"
	assert.Equal(t, want, FormatSearchResults(resp))
}

func TestFormatSearchResults_Warnings(t *testing.T) {
	resp := &search.Response{
		Query:    "install",
		Hits:     []search.Hit{hit(1, "a.md", 0, "text")},
		Warnings: []string{"semantic index unavailable"},
	}
	assert.Contains(t, FormatSearchResults(resp), "Note: semantic index unavailable\n\nSource 1 [a.md]")
}

func TestFormatSearchResults_Empty(t *testing.T) {
	assert.Equal(t, `No results found for "nothing"`, FormatSearchResults(&search.Response{Query: "nothing"}))
}

func TestFormatSearchResults_FilenameFallsBackToSourceID(t *testing.T) {
	h := hit(1, "a.md", 0, "text")
	h.Chunk.Metadata = nil
	out := FormatSearchResults(&search.Response{Hits: []search.Hit{h}})
	assert.Contains(t, out, "Source 1 [a.md]")
}

func TestToSearchOutput(t *testing.T) {
	resp := &search.Response{
		Query: "install",
		Mode:  search.ModeHybrid,
		Hits:  []search.Hit{hit(1, "guides/setup.md", 1000, "Run it.")},
	}
	out := ToSearchOutput(resp)

	assert.Equal(t, "hybrid", out.Mode)
	assert.Len(t, out.Results, 1)
	r := out.Results[0]
	assert.Equal(t, "guides/setup.md@1000", r.ID)
	assert.Equal(t, "guides", r.Category)
	assert.Equal(t, "Setup", r.Topic)
	assert.Equal(t, "fused", r.Source)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 5, clampLimit(0, 5, 1, 50))
	assert.Equal(t, 50, clampLimit(500, 5, 1, 50))
	assert.Equal(t, 7, clampLimit(7, 5, 1, 50))
}
