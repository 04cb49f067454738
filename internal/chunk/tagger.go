package chunk

import (
	"path"
	"strings"
	"unicode"
)

// Tagger classifies a chunk into a category and topic. Implementations must
// be safe for concurrent use.
type Tagger interface {
	Classify(text, filename string) (category, topic string)
}

// TaggerFunc adapts a function to Tagger.
type TaggerFunc func(text, filename string) (string, string)

// Classify calls f.
func (f TaggerFunc) Classify(text, filename string) (string, string) { return f(text, filename) }

// Rule maps keywords to a category and optional topic.
type Rule struct {
	Category string
	Topic    string
	Keywords []string
}

// RuleTagger applies the first rule with a keyword found in the chunk text
// (case-insensitive). Without a match, the category is the top-level
// directory of the filename and the topic is derived from the file name.
type RuleTagger struct {
	rules []Rule
}

// NewRuleTagger lowercases rule keywords once up front.
func NewRuleTagger(rules []Rule) *RuleTagger {
	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		if r.Category == "" || len(kws) == 0 {
			continue
		}
		normalized = append(normalized, Rule{Category: r.Category, Topic: r.Topic, Keywords: kws})
	}
	return &RuleTagger{rules: normalized}
}

// Classify implements Tagger.
func (t *RuleTagger) Classify(text, filename string) (string, string) {
	topic := TopicFromFilename(filename)
	lower := strings.ToLower(text)
	for _, r := range t.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				if r.Topic != "" {
					return r.Category, r.Topic
				}
				return r.Category, topic
			}
		}
	}
	return CategoryFromFilename(filename), topic
}

// CategoryFromFilename returns the first path segment, or "general" for
// files at the corpus root.
func CategoryFromFilename(filename string) string {
	dir, _, found := strings.Cut(path.Clean(filename), "/")
	if !found || dir == "" || dir == "." {
		return "general"
	}
	return dir
}

// TopicFromFilename turns "guides/getting-started.md" into "Getting Started".
func TopicFromFilename(filename string) string {
	base := path.Base(filename)
	base = strings.TrimSuffix(base, path.Ext(base))
	words := strings.FieldsFunc(base, func(r rune) bool { return r == '-' || r == '_' || r == ' ' || r == '.' })
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
