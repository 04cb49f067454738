package cmd

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docfuse/internal/ingest"
	"github.com/Aman-CERP/docfuse/internal/output"
)

type ingestOptions struct {
	chunkSize int
	stepSize  int
	verbose   bool
	lexical   bool
}

func newIngestCmd(g *globalOptions) *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest [docs-dir]",
		Short: "Chunk and index a documentation tree",
		Long: `Load every document under the docs directory (paths.docs, default docs/),
split it into overlapping chunks, store them, and rebuild both indexes.

Stale embedding vectors are discarded and regenerated as a whole.

Examples:
  docfuse ingest
  docfuse ingest ./handbook --chunk-size 1500 --step-size 750
  docfuse ingest --verbose`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docsDir := ""
			if len(args) == 1 {
				docsDir = args[0]
			}
			return runIngest(cmd.Context(), cmd, g, docsDir, opts)
		},
	}

	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 0, "Chunk window in characters (overrides config)")
	cmd.Flags().IntVar(&opts.stepSize, "step-size", 0, "Distance between chunk starts (overrides config)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print corpus statistics and skipped files")
	cmd.Flags().BoolVar(&opts.lexical, "lexical", false, "Skip embeddings; build the keyword index only")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, g *globalOptions, docsDir string, opts ingestOptions) error {
	out := output.New(cmd.OutOrStdout())

	root, cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if opts.chunkSize > 0 {
		cfg.Chunking.ChunkSize = opts.chunkSize
	}
	if opts.stepSize > 0 {
		cfg.Chunking.StepSize = opts.stepSize
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if docsDir != "" {
		abs, err := filepath.Abs(docsDir)
		if err != nil {
			return err
		}
		cfg.Paths.Docs = abs
	}

	svc, err := ingest.Open(ctx, cfg, root, ingest.OpenOptions{
		Lexical: opts.lexical,
		Progress: func(done, total int) {
			out.Progress(done, total, "Embedding chunks")
		},
	})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	out.Statusf("📚", "Ingesting %s", svc.DocsDir)
	report, err := svc.Pipeline.Ingest(ctx, svc.DocsDir)
	if err != nil {
		return err
	}

	out.Successf("Indexed %d documents into %d chunks in %s",
		report.Documents, report.Chunks, report.Duration.Round(time.Millisecond))
	switch {
	case opts.lexical:
		out.Statusf("🔤", "Keyword index only (--lexical)")
	case report.Semantic:
		if report.Regenerated {
			out.Successf("Embedded %d chunks with %s", report.Vectors, svc.Vectors.Model())
		} else {
			out.Successf("Vectors up to date (%d)", report.Vectors)
		}
	default:
		out.Warningf("Semantic search unavailable; serving keyword results only")
		if report.VectorErr != nil {
			out.Warningf("%v", report.VectorErr)
		}
	}
	if n := len(report.Skipped); n > 0 && !opts.verbose {
		out.Warningf("%d files skipped (use --verbose to list them)", n)
	}

	if opts.verbose {
		st, err := svc.Status(ctx)
		if err != nil {
			return err
		}
		out.Newline()
		out.KeyValue("Documents", st.Documents)
		out.KeyValue("Chunks", st.Chunks)
		out.KeyValue("Avg chunk chars", int(st.AvgChunkChars))
		out.KeyValue("Chunk size", st.ChunkSize)
		out.KeyValue("Step size", st.StepSize)
		out.KeyValue("Vectors", st.Vectors)
		out.KeyValue("Vector state", report.VectorState)
		out.KeyValue("Run ID", report.RunID)
		for _, s := range report.Skipped {
			out.Warningf("skipped %s: %s", s.SourceID, s.Reason)
		}
	}
	return nil
}
