package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docfuse/internal/index"
	"github.com/Aman-CERP/docfuse/internal/ingest"
	"github.com/Aman-CERP/docfuse/internal/output"
)

func newValidateCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check vectors against chunks and regenerate them if stale",
		Long: `Compare the vector store with the chunk store. If any chunk lacks a
vector, or a vector was computed for different text, the whole vector
store is discarded and regenerated with the configured embedder.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd.Context(), cmd, g)
		},
	}
}

func runValidate(ctx context.Context, cmd *cobra.Command, g *globalOptions) error {
	out := output.New(cmd.OutOrStdout())

	svc, err := g.openService(ctx, ingest.OpenOptions{
		Progress: func(done, total int) {
			out.Progress(done, total, "Embedding chunks")
		},
	})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	if err := requireIndexed(ctx, svc); err != nil {
		return err
	}

	before, err := svc.Check(ctx)
	if err != nil {
		return err
	}
	if before.State != index.Consistent {
		out.Warningf("Vectors stale: %d chunks, %d vectors, %d missing, %d changed",
			before.Chunks, before.Vectors, before.Missing, before.Changed)
	}

	report, err := svc.Pipeline.Refresh(ctx)
	if err != nil {
		return err
	}
	if report.VectorErr != nil {
		return report.VectorErr
	}

	if report.Regenerated {
		out.Successf("Regenerated %d vectors with %s in %s",
			report.Vectors, svc.Vectors.Model(), report.Duration.Round(time.Millisecond))
	} else {
		out.Successf("Vectors consistent (%d chunks)", report.Chunks)
	}
	return nil
}
