package search

// DefaultSnippetLength is the number of code points shown per hit.
const DefaultSnippetLength = 600

// Snippet returns the first n code points of text, with "..." appended when
// text was cut.
func Snippet(text string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i] + "..."
		}
		count++
	}
	return text
}
