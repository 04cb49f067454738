package chunk

import (
	"slices"

	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
)

// ValidateWindow checks chunk and step sizes: size > 0 and 0 < step <= size.
func ValidateWindow(size, step int) error {
	if size <= 0 {
		return fuseerr.InvalidParameter("chunk_size must be > 0, got %d", size)
	}
	if step <= 0 {
		return fuseerr.InvalidParameter("step_size must be > 0, got %d", step)
	}
	if step > size {
		return fuseerr.InvalidParameter("step_size (%d) must not exceed chunk_size (%d)", step, size)
	}
	return nil
}

// Split cuts doc into windows of size code points, each starting step after
// the previous one. The window that reaches the end of the text is the last.
//
// hints are optional cut positions. A window end snaps back to the largest
// hint in [start+step, nominal end], so the next window still starts inside
// the current one and the windows keep covering the text without gaps.
//
// Every chunk gets a copy of doc.Metadata.
func Split(doc Document, size, step int, hints []int) ([]Chunk, error) {
	if err := ValidateWindow(size, step); err != nil {
		return nil, err
	}

	runes := []rune(doc.Text)
	n := len(runes)
	if n == 0 {
		return []Chunk{}, nil
	}

	cuts := normalizeHints(hints, n)
	chunks := make([]Chunk, 0, n/step+1)

	for offset := 0; ; offset += step {
		end := min(offset+size, n)
		if end < n {
			end = snapEnd(cuts, offset+step, end)
		}

		meta := make(map[string]string, len(doc.Metadata)+3)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		chunks = append(chunks, Chunk{
			ID:       ID{SourceID: doc.SourceID, Start: offset},
			End:      end,
			Text:     string(runes[offset:end]),
			Metadata: meta,
		})

		if end == n {
			break
		}
	}

	return chunks, nil
}

// normalizeHints returns sorted, unique hints strictly inside (0, n).
func normalizeHints(hints []int, n int) []int {
	if len(hints) == 0 {
		return nil
	}
	cuts := make([]int, 0, len(hints))
	for _, h := range hints {
		if h > 0 && h < n {
			cuts = append(cuts, h)
		}
	}
	slices.Sort(cuts)
	return slices.Compact(cuts)
}

// snapEnd returns the largest cut in [lo, end], or end if there is none.
func snapEnd(cuts []int, lo, end int) int {
	i, found := slices.BinarySearch(cuts, end)
	if found {
		return end
	}
	if i > 0 && cuts[i-1] >= lo {
		return cuts[i-1]
	}
	return end
}
