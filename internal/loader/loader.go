// Package loader reads a documentation tree into documents for chunking.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Aman-CERP/docfuse/internal/chunk"
	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
)

// IgnoreFile holds extra exclude patterns at the root of a docs tree.
const IgnoreFile = ".docfuseignore"

// DefaultMaxFileSize skips files larger than 10 MiB.
const DefaultMaxFileSize int64 = 10 << 20

// DefaultExtensions are the file types loaded when none are configured.
var DefaultExtensions = []string{".md", ".mdx"}

// defaultExcludes are always skipped.
var defaultExcludes = []string{"node_modules/", ".*/"}

// Options controls which files are loaded.
type Options struct {
	// Extensions to include, with the leading dot.
	Extensions []string

	// Exclude holds gitignore-style patterns relative to the root.
	Exclude []string

	MaxFileSize int64
}

// Skipped records a file that matched but could not be loaded.
type Skipped struct {
	SourceID string
	Reason   string
}

// Result is the outcome of a Load.
type Result struct {
	Documents []chunk.Document
	Skipped   []Skipped
}

// Load walks root and returns one Document per matching file, sorted by
// source id. Files that cannot be read or parsed are logged and reported
// in Skipped rather than failing the load.
func Load(ctx context.Context, root string, opts Options) (*Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fuseerr.New(fuseerr.ErrCodeInvalidPath, "resolve docs root", err).WithDetail("path", root)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fuseerr.New(fuseerr.ErrCodeFileNotFound, "docs root not found", err).WithDetail("path", root)
	}
	if !info.IsDir() {
		return nil, fuseerr.New(fuseerr.ErrCodeInvalidPath, "docs root is not a directory", nil).WithDetail("path", root)
	}

	m, err := NewMatcher(absRoot, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{Documents: []chunk.Document{}}
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return nil
		}

		rel, err := filepath.Rel(absRoot, p)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if !m.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !m.Match(rel, false) {
			return nil
		}

		doc, reason := readDocument(p, rel, m.maxSize)
		if reason != "" {
			slog.Warn("document skipped",
				slog.String("source_id", rel),
				slog.String("reason", reason))
			res.Skipped = append(res.Skipped, Skipped{SourceID: rel, Reason: reason})
			return nil
		}
		res.Documents = append(res.Documents, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(res.Documents, func(i, j int) bool {
		return res.Documents[i].SourceID < res.Documents[j].SourceID
	})

	slog.Debug("documents loaded",
		slog.String("root", absRoot),
		slog.Int("documents", len(res.Documents)),
		slog.Int("skipped", len(res.Skipped)))
	return res, nil
}

// Matcher decides which paths under a docs root are loaded.
type Matcher struct {
	exts    []string
	maxSize int64
	ex      *Excluder
}

// NewMatcher applies opts' defaults and reads the root's IgnoreFile.
func NewMatcher(root string, opts Options) (*Matcher, error) {
	m := &Matcher{exts: opts.Extensions, maxSize: opts.MaxFileSize, ex: NewExcluder(defaultExcludes...)}
	if len(m.exts) == 0 {
		m.exts = DefaultExtensions
	}
	if m.maxSize <= 0 {
		m.maxSize = DefaultMaxFileSize
	}
	for _, p := range opts.Exclude {
		m.ex.Add(p)
	}
	if err := m.ex.AddFile(filepath.Join(root, IgnoreFile)); err != nil {
		return nil, fuseerr.IOError("read "+IgnoreFile, err)
	}
	return m, nil
}

// Match reports whether rel (slash-separated, relative to the root) is
// loaded, or for a directory, whether it is descended into.
func (m *Matcher) Match(rel string, isDir bool) bool {
	if m.ex.Excluded(rel, isDir) {
		return false
	}
	return isDir || hasExtension(rel, m.exts)
}

// readDocument returns the document or a non-empty skip reason.
func readDocument(path, rel string, maxSize int64) (chunk.Document, string) {
	info, err := os.Stat(path)
	if err != nil {
		return chunk.Document{}, err.Error()
	}
	if info.Size() > maxSize {
		return chunk.Document{}, fmt.Sprintf("file is %d bytes, limit %d", info.Size(), maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return chunk.Document{}, err.Error()
	}
	if !utf8.Valid(data) {
		return chunk.Document{}, "not valid UTF-8"
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	doc := chunk.Document{SourceID: rel, Text: text, Metadata: map[string]string{}}

	if front, body, ok := splitFrontmatter(text); ok {
		meta, err := parseFrontmatter(front)
		if err != nil {
			return chunk.Document{}, err.Error()
		}
		doc.Text = body
		doc.Metadata = meta
	}
	return doc, ""
}

func hasExtension(rel string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
