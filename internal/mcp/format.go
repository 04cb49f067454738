package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/docfuse/internal/chunk"
	"github.com/Aman-CERP/docfuse/internal/search"
)

// FormatSearchResults renders hits as numbered sources an agent can cite.
func FormatSearchResults(resp *search.Response) string {
	if resp == nil || len(resp.Hits) == 0 {
		q := ""
		if resp != nil {
			q = resp.Query
		}
		return fmt.Sprintf("No results found for \"%s\"", q)
	}

	var sb strings.Builder
	for _, w := range resp.Warnings {
		fmt.Fprintf(&sb, "Note: %s\n\n", w)
	}
	for i, h := range resp.Hits {
		fmt.Fprintf(&sb, "Source %d [%s]\n", i+1, filename(h))
		sb.WriteString(h.Snippet)
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// ToSearchOutput converts an engine response to the tool's structured form.
func ToSearchOutput(resp *search.Response) SearchOutput {
	out := SearchOutput{
		Query:    resp.Query,
		Mode:     string(resp.Mode),
		Results:  make([]SearchResult, 0, len(resp.Hits)),
		Warnings: resp.Warnings,
	}
	for _, h := range resp.Hits {
		out.Results = append(out.Results, SearchResult{
			Rank:     h.Rank,
			ID:       h.ID.String(),
			Filename: filename(h),
			Category: h.Chunk.Category(),
			Topic:    h.Chunk.Topic(),
			Score:    h.Score,
			Source:   string(h.Source),
			Snippet:  h.Snippet,
		})
	}
	return out
}

func filename(h search.Hit) string {
	if f := h.Chunk.Metadata[chunk.MetaFilename]; f != "" {
		return f
	}
	return h.ID.SourceID
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, lo, hi int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < lo {
		return lo
	}
	if limit > hi {
		return hi
	}
	return limit
}
