package chunk

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// HintFunc proposes cut positions (code point offsets) for a text.
type HintFunc func(text string) []int

// MarkdownHints proposes cuts at the start of headings and of paragraphs
// that follow a blank line. Lines inside fenced code blocks are never cut.
func MarkdownHints(text string) []int {
	var hints []int
	offset := 0
	prevBlank := false
	inFence := false

	for _, line := range strings.SplitAfter(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			if !inFence && offset > 0 && (prevBlank || isHeading(trimmed)) {
				hints = append(hints, offset)
			}
			inFence = !inFence
		} else if !inFence && offset > 0 && trimmed != "" {
			if isHeading(trimmed) || prevBlank {
				hints = append(hints, offset)
			}
		}

		prevBlank = trimmed == ""
		offset += utf8.RuneCountInString(line)
	}
	return hints
}

func isHeading(line string) bool {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	return level >= 1 && level <= 6 && (level == len(line) || line[level] == ' ')
}

// HintsByName resolves a configured boundary strategy.
func HintsByName(name string) (HintFunc, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "markdown":
		return MarkdownHints, nil
	default:
		return nil, fmt.Errorf("unknown boundary strategy %q", name)
	}
}
