package loader

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const fence = "---"

// splitFrontmatter separates a leading "---" fenced YAML block from the
// body. Text without a complete block is returned unchanged as the body.
func splitFrontmatter(text string) (front, body string, ok bool) {
	text = strings.TrimPrefix(text, "\uFEFF")
	first, rest, found := strings.Cut(text, "\n")
	if !found || strings.TrimRight(first, " \t\r") != fence {
		return "", text, false
	}

	offset := 0
	for offset <= len(rest) {
		line, next, more := strings.Cut(rest[offset:], "\n")
		if strings.TrimRight(line, " \t\r") == fence {
			front = rest[:offset]
			if more {
				return front, next, true
			}
			return front, "", true
		}
		if !more {
			break
		}
		offset += len(line) + 1
	}
	return "", text, false
}

// parseFrontmatter decodes the YAML block and keeps scalar values as
// strings. Lists are joined with ", "; nested maps are dropped.
func parseFrontmatter(front string) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(front), &raw); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}

	meta := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil, map[string]any:
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				if _, nested := item.(map[string]any); nested {
					continue
				}
				parts = append(parts, fmt.Sprint(item))
			}
			meta[k] = strings.Join(parts, ", ")
		default:
			meta[k] = fmt.Sprint(val)
		}
	}
	return meta, nil
}
