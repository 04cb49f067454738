package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func sourceIDs(res *Result) []string {
	ids := make([]string, len(res.Documents))
	for i, d := range res.Documents {
		ids[i] = d.SourceID
	}
	return ids
}

func TestLoad_WalksAndSorts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "z.md", "last")
	writeFile(t, root, "api/auth.mdx", "auth")
	writeFile(t, root, "api/README.MD", "readme")
	writeFile(t, root, "notes.txt", "ignored")
	writeFile(t, root, ".git/HEAD.md", "hidden dir")
	writeFile(t, root, "node_modules/pkg/doc.md", "vendored")

	res, err := Load(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"api/README.MD", "api/auth.mdx", "z.md"}, sourceIDs(res))
	assert.Empty(t, res.Skipped)
}

func TestLoad_Frontmatter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "guide.md", "---\ntitle: Getting Started\ncategory: tutorial\ntags: [setup, cli]\nweight: 3\nextra:\n  nested: true\n---\n# Hello\nBody text.\n")

	res, err := Load(context.Background(), root, Options{})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)

	doc := res.Documents[0]
	assert.Equal(t, "# Hello\nBody text.\n", doc.Text)
	assert.Equal(t, map[string]string{
		"title":    "Getting Started",
		"category": "tutorial",
		"tags":     "setup, cli",
		"weight":   "3",
	}, doc.Metadata)
}

func TestLoad_BadFrontmatterIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bad.md", "---\ntitle: [unclosed\n---\nbody\n")
	writeFile(t, root, "good.md", "fine")

	res, err := Load(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"good.md"}, sourceIDs(res))
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "bad.md", res.Skipped[0].SourceID)
}

func TestLoad_ExcludesAndIgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "drafts/wip.md", "draft")
	writeFile(t, root, "api/old.md", "old")
	writeFile(t, root, "api/new.md", "new")
	writeFile(t, root, "archive/2020/a.md", "archived")
	writeFile(t, root, IgnoreFile, "# comments are fine\narchive/**\n")

	res, err := Load(context.Background(), root, Options{Exclude: []string{"drafts/", "old.md"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"api/new.md"}, sourceIDs(res))
}

func TestLoad_ExtensionsAndSizeLimit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "text file")
	writeFile(t, root, "b.md", "markdown")
	writeFile(t, root, "big.txt", "this one is too large")

	res, err := Load(context.Background(), root, Options{Extensions: []string{".txt"}, MaxFileSize: 12})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, sourceIDs(res))
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "big.txt", res.Skipped[0].SourceID)
}

func TestLoad_NormalizesLineEndings(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "crlf.md", "line one\r\nline two\r\n")

	res, err := Load(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", res.Documents[0].Text)
}

func TestLoad_RootErrors(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{})
	assert.Equal(t, fuseerr.ErrCodeFileNotFound, fuseerr.GetCode(err))

	root := t.TempDir()
	writeFile(t, root, "file.md", "x")
	_, err = Load(context.Background(), filepath.Join(root, "file.md"), Options{})
	assert.Equal(t, fuseerr.ErrCodeInvalidPath, fuseerr.GetCode(err))
}

func TestLoad_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatcher(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, IgnoreFile), []byte("drafts/\n"), 0o644))

	m, err := NewMatcher(root, Options{Exclude: []string{"*.tmp.md"}})
	require.NoError(t, err)

	assert.True(t, m.Match("guide.md", false))
	assert.True(t, m.Match("api/ref.MDX", false))
	assert.True(t, m.Match("api", true))
	assert.False(t, m.Match("notes.txt", false))
	assert.False(t, m.Match("scratch.tmp.md", false))
	assert.False(t, m.Match("drafts", true))
	assert.False(t, m.Match(".git", true))
	assert.False(t, m.Match("node_modules", true))
}
