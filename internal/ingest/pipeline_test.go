package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docfuse/internal/chunk"
	"github.com/Aman-CERP/docfuse/internal/config"
	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
	"github.com/Aman-CERP/docfuse/internal/index"
	"github.com/Aman-CERP/docfuse/internal/search"
	"github.com/Aman-CERP/docfuse/internal/store"
)

func writeDocs(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, "docs", filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

var sampleDocs = map[string]string{
	"k8s.md": "# Kubernetes\n\nKubernetes clusters schedule pods across nodes. " +
		"A cluster has a control plane and worker nodes.\n",
	"auth.md": "---\ncategory: security\n---\n# Authentication\n\nTokens are signed with a private key " +
		"and verified by every service.\n",
	"notes.txt": "not a markdown file",
}

func openTestService(t *testing.T, root string, opts OpenOptions) *Service {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Chunking.ChunkSize = 200
	cfg.Chunking.StepSize = 100
	opts.InMemory = true

	svc, err := Open(context.Background(), cfg, root, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestPipeline_IngestBuildsHybridSnapshot(t *testing.T) {
	root := t.TempDir()
	writeDocs(t, root, sampleDocs)
	svc := openTestService(t, root, OpenOptions{})

	report, err := svc.Pipeline.Ingest(context.Background(), svc.DocsDir)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Documents)
	assert.Positive(t, report.Chunks)
	assert.Equal(t, index.Consistent, report.VectorState)
	assert.True(t, report.Regenerated)
	assert.True(t, report.Semantic)
	assert.Equal(t, report.Chunks, report.Vectors)
	assert.NoError(t, report.VectorErr)

	resp, err := svc.Engine.Search(context.Background(), "kubernetes clusters", search.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Hits)
	assert.Equal(t, search.ModeHybrid, resp.Mode)
	assert.Equal(t, "k8s.md", resp.Hits[0].ID.SourceID)
	assert.Empty(t, resp.Warnings)
}

func TestPipeline_FrontmatterReachesChunks(t *testing.T) {
	root := t.TempDir()
	writeDocs(t, root, sampleDocs)
	svc := openTestService(t, root, OpenOptions{})

	_, err := svc.Pipeline.Ingest(context.Background(), svc.DocsDir)
	require.NoError(t, err)

	chunks, err := svc.Chunks.All(context.Background())
	require.NoError(t, err)
	for _, c := range chunks {
		if c.ID.SourceID == "auth.md" {
			assert.Equal(t, "security", c.Category())
			assert.Equal(t, "auth.md", c.Metadata[chunk.MetaFilename])
		}
	}
}

func TestPipeline_RefreshReusesConsistentVectors(t *testing.T) {
	root := t.TempDir()
	writeDocs(t, root, sampleDocs)
	svc := openTestService(t, root, OpenOptions{})

	_, err := svc.Pipeline.Ingest(context.Background(), svc.DocsDir)
	require.NoError(t, err)

	report, err := svc.Pipeline.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Regenerated)
	assert.Equal(t, index.Consistent, report.VectorState)
	assert.True(t, report.Semantic)
}

func TestPipeline_ModelChangeRegenerates(t *testing.T) {
	root := t.TempDir()
	writeDocs(t, root, sampleDocs)
	svc := openTestService(t, root, OpenOptions{})

	_, err := svc.Pipeline.Ingest(context.Background(), svc.DocsDir)
	require.NoError(t, err)

	chunks, err := svc.Chunks.All(context.Background())
	require.NoError(t, err)
	rows := make([][]float32, len(chunks))
	for i := range rows {
		rows[i] = []float32{1, 0, 0}
	}
	require.NoError(t, svc.Vectors.Replace(context.Background(), "some-other-model", chunks, rows))

	report, err := svc.Pipeline.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Regenerated)
	assert.Equal(t, svc.Embedder.ModelName(), svc.Vectors.Model())
	assert.Equal(t, svc.Embedder.Dimensions(), svc.Vectors.Dimensions())
}

func TestPipeline_ChangedDocumentInvalidatesVectors(t *testing.T) {
	root := t.TempDir()
	writeDocs(t, root, sampleDocs)
	svc := openTestService(t, root, OpenOptions{})

	_, err := svc.Pipeline.Ingest(context.Background(), svc.DocsDir)
	require.NoError(t, err)

	writeDocs(t, root, map[string]string{"k8s.md": "# Kubernetes\n\nDeployments roll out replica sets.\n"})
	report, err := svc.Pipeline.Ingest(context.Background(), svc.DocsDir)
	require.NoError(t, err)
	assert.True(t, report.Regenerated)
	assert.Equal(t, index.Consistent, report.VectorState)
}

// noopRegenerator accepts requests without writing any vectors.
type noopRegenerator struct {
	requests int
}

func (r *noopRegenerator) Regenerate(context.Context, index.RegenerationRequest) error {
	r.requests++
	return nil
}

func TestPipeline_StaleAfterRegenerationIsNotRetried(t *testing.T) {
	root := t.TempDir()
	writeDocs(t, root, sampleDocs)
	svc := openTestService(t, root, OpenOptions{})
	regen := &noopRegenerator{}
	svc.Pipeline.consistency = index.NewConsistencyManager(regen)

	report, err := svc.Pipeline.Ingest(context.Background(), svc.DocsDir)

	require.NoError(t, err)
	assert.Equal(t, 1, regen.requests)
	assert.True(t, report.Regenerated)
	assert.False(t, report.Semantic)
	assert.Equal(t, index.Stale, report.VectorState)
	assert.ErrorIs(t, report.VectorErr, &fuseerr.FuseError{Code: fuseerr.ErrCodeRegenerationFailed})
	assert.Equal(t, index.Stale, svc.Pipeline.Consistency().State())

	resp, err := svc.Engine.Search(context.Background(), "kubernetes pods", search.Options{})
	require.NoError(t, err)
	assert.Equal(t, search.ModeLexical, resp.Mode)
	require.NotEmpty(t, resp.Hits)
	assert.Equal(t, "k8s.md", resp.Hits[0].ID.SourceID)
}

func TestPipeline_LexicalOnly(t *testing.T) {
	root := t.TempDir()
	writeDocs(t, root, sampleDocs)
	svc := openTestService(t, root, OpenOptions{Lexical: true})

	report, err := svc.Pipeline.Ingest(context.Background(), svc.DocsDir)
	require.NoError(t, err)
	assert.False(t, report.Semantic)
	assert.Zero(t, report.Vectors)

	resp, err := svc.Engine.Search(context.Background(), "private key tokens", search.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Hits)
	assert.Equal(t, search.ModeLexical, resp.Mode)
	assert.Equal(t, "auth.md", resp.Hits[0].ID.SourceID)
	assert.NotEmpty(t, resp.Warnings)
}

func TestPipeline_MissingDocsDir(t *testing.T) {
	svc := openTestService(t, t.TempDir(), OpenOptions{Lexical: true})

	_, err := svc.Pipeline.Ingest(context.Background(), svc.DocsDir)
	require.Error(t, err)
	assert.Equal(t, fuseerr.ErrCodeFileNotFound, fuseerr.GetCode(err))
}

func TestPipeline_LockHeld(t *testing.T) {
	root := t.TempDir()
	writeDocs(t, root, sampleDocs)
	svc := openTestService(t, root, OpenOptions{Lexical: true})

	dataDir := t.TempDir()
	holder := store.NewDirLock(dataDir)
	require.NoError(t, holder.TryLock())
	defer func() { _ = holder.Unlock() }()

	p, err := New(Dependencies{
		Config:  svc.Config,
		Chunks:  svc.Chunks,
		Vectors: svc.Vectors,
		Engine:  svc.Engine,
		Lock:    store.NewDirLock(dataDir),
	})
	require.NoError(t, err)

	_, err = p.Ingest(context.Background(), svc.DocsDir)
	require.Error(t, err)
	assert.Equal(t, fuseerr.ErrCodeStoreLocked, fuseerr.GetCode(err))
}

func TestPipeline_ChunkAllKeepsDocumentOrder(t *testing.T) {
	svc := openTestService(t, t.TempDir(), OpenOptions{Lexical: true})

	var docs []chunk.Document
	for _, name := range []string{"a.md", "b.md", "c.md", "d.md", "e.md"} {
		docs = append(docs, chunk.Document{SourceID: name, Text: strings.Repeat(name+" body text. ", 40)})
	}

	chunks, err := svc.Pipeline.chunkAll(context.Background(), docs)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	prev := ""
	for _, c := range chunks {
		assert.GreaterOrEqual(t, c.ID.SourceID, prev)
		prev = c.ID.SourceID
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Dependencies{})
	assert.Error(t, err)

	_, err = New(Dependencies{Config: config.NewConfig()})
	assert.Error(t, err)
}

func TestNewChunker_RejectsUnknownHints(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Chunking.Hints = "html"
	_, err := NewChunker(cfg)
	assert.Error(t, err)
}

func TestService_Status(t *testing.T) {
	root := t.TempDir()
	writeDocs(t, root, sampleDocs)
	svc := openTestService(t, root, OpenOptions{})

	_, err := svc.Pipeline.Ingest(context.Background(), svc.DocsDir)
	require.NoError(t, err)

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Documents)
	assert.Equal(t, st.Chunks, st.Vectors)
	assert.Equal(t, 200, st.ChunkSize)
	assert.Equal(t, 100, st.StepSize)
	assert.Equal(t, "consistent", st.VectorState)
	assert.True(t, st.Semantic)
	assert.Equal(t, "static", st.Model)

	check, err := svc.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, index.Consistent, check.State)
}
