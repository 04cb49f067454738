package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
	"github.com/Aman-CERP/docfuse/internal/ingest"
	"github.com/Aman-CERP/docfuse/internal/mcp"
	"github.com/Aman-CERP/docfuse/internal/output"
	"github.com/Aman-CERP/docfuse/internal/search"
)

type searchOptions struct {
	numResults int
	format     string // "text", "json"
	mode       string
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the ingested documentation",
		Long: `Search the ingested documentation with hybrid ranking.

Keyword (TF-IDF) and semantic (embedding) results are fetched in parallel
and fused by rank. When vectors are unavailable the keyword ranking is
returned alone.

Examples:
  docfuse search "how do I rotate signing keys"
  docfuse search kubernetes ingress -n 10
  docfuse search "error budget" --mode lexical -f json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, g, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.numResults, "num-results", "n", 0, "Number of results (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Ranking mode: hybrid, lexical, semantic")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, g *globalOptions, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fuseerr.InvalidParameter("--format must be text or json, got %q", opts.format)
	}
	mode, ok := search.ParseMode(opts.mode)
	if !ok {
		return fuseerr.InvalidParameter("--mode must be hybrid, lexical or semantic, got %q", opts.mode)
	}

	svc, err := g.openService(ctx, ingest.OpenOptions{Lexical: mode == search.ModeLexical})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	if err := requireIndexed(ctx, svc); err != nil {
		return err
	}
	if _, err := svc.Pipeline.Refresh(ctx); err != nil {
		return err
	}

	resp, err := svc.Engine.Search(ctx, query, search.Options{NumResults: opts.numResults, Mode: mode})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(mcp.ToSearchOutput(resp))
	}

	out := output.New(cmd.OutOrStdout())
	for _, w := range resp.Warnings {
		out.Warningf("%s", w)
	}
	if len(resp.Hits) == 0 {
		out.Statusf("🔍", "No results for %q", query)
		return nil
	}
	for i, h := range resp.Hits {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Source %d [%s] (%s %.3f)\n%s\n\n",
			i+1, h.ID.SourceID, h.Source, h.Score, h.Snippet)
	}
	out.Statusf("⏱", "%d results in %s (%s)", len(resp.Hits), resp.Took.Round(time.Millisecond), resp.Mode)
	return nil
}
