package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docfuse/internal/index"
	"github.com/Aman-CERP/docfuse/internal/ingest"
	"github.com/Aman-CERP/docfuse/internal/output"
)

// statusJSON is the --json form of `docfuse status`.
type statusJSON struct {
	*ingest.Status
	Missing int `json:"missing_vectors"`
	Changed int `json:"changed_vectors"`
}

func newStatusCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what is indexed and whether vectors are current",
		Long: `Show the chunk store, vector store and consistency state without
changing anything. Use 'docfuse validate' to regenerate stale vectors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, g, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, g *globalOptions, jsonOutput bool) error {
	svc, err := g.openService(ctx, ingest.OpenOptions{Lexical: true})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	st, err := svc.Status(ctx)
	if err != nil {
		return err
	}
	check, err := svc.Check(ctx)
	if err != nil {
		return err
	}
	st.VectorState = check.State.String()

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(statusJSON{Status: st, Missing: check.Missing, Changed: check.Changed})
	}

	out := output.New(cmd.OutOrStdout())
	if st.Chunks == 0 {
		out.Warningf("Nothing ingested yet. Run 'docfuse ingest'.")
		return nil
	}

	out.Statusf("📚", "Index for %s", st.DocsDir)
	out.KeyValue("Documents", st.Documents)
	out.KeyValue("Chunks", st.Chunks)
	out.KeyValue("Avg chunk chars", int(st.AvgChunkChars))
	out.KeyValue("Window", formatWindow(st.ChunkSize, st.StepSize))
	if !st.UpdatedAt.IsZero() {
		out.KeyValue("Last ingest", st.UpdatedAt.Local().Format(time.DateTime))
	}
	out.Newline()
	out.KeyValue("Vectors", st.Vectors)
	if st.Model != "" {
		out.KeyValue("Model", st.Model)
		out.KeyValue("Dimensions", st.Dimensions)
	}
	out.KeyValue("Backend", st.Backend)

	if check.State == index.Consistent {
		out.Successf("Vectors consistent with chunks")
		return nil
	}
	out.Warningf("Vectors stale: %d missing, %d changed (run 'docfuse validate')", check.Missing, check.Changed)
	return nil
}

func formatWindow(size, step int) string {
	if size == 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d / step %d", size, step)
}
