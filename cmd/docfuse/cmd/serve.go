package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docfuse/internal/config"
	"github.com/Aman-CERP/docfuse/internal/ingest"
	"github.com/Aman-CERP/docfuse/internal/loader"
	"github.com/Aman-CERP/docfuse/internal/logging"
	"github.com/Aman-CERP/docfuse/internal/mcp"
	"github.com/Aman-CERP/docfuse/internal/watcher"
)

type serveOptions struct {
	watch     bool
	transport string
}

func newServeCmd(g *globalOptions) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search to agents over MCP (stdio)",
		Long: `Start an MCP server exposing the search and index_status tools.

stdout carries the protocol only; logs go to ~/.docfuse/logs. If nothing
has been ingested yet, the docs directory is ingested first. With --watch,
changes under the docs directory trigger a re-ingest and the new index
replaces the old one without interrupting queries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), g, opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Re-ingest when documents change")
	cmd.Flags().StringVar(&opts.transport, "transport", "", "Transport (default from config: stdio)")
	return cmd
}

func runServe(ctx context.Context, g *globalOptions, opts serveOptions) error {
	root, cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	cleanup, err := logging.SetupServerMode(g.level(cfg.Server.LogLevel))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := ingest.Open(ctx, cfg, root, ingest.OpenOptions{})
	if err != nil {
		slog.Error("open index failed", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = svc.Close() }()

	if err := warmUp(ctx, svc); err != nil {
		return err
	}

	srv, err := mcp.NewServer(svc.Engine, svc, cfg)
	if err != nil {
		return err
	}

	if opts.watch {
		go watchDocs(ctx, svc, cfg)
	}

	transport := opts.transport
	if transport == "" {
		transport = cfg.Server.Transport
	}
	return srv.Serve(ctx, transport)
}

// warmUp builds the first snapshot: from the stores when something was
// ingested, otherwise by ingesting the docs directory.
func warmUp(ctx context.Context, svc *ingest.Service) error {
	n, err := svc.Chunks.Count(ctx)
	if err != nil {
		return err
	}

	var report *ingest.Report
	if n > 0 {
		report, err = svc.Pipeline.Refresh(ctx)
	} else {
		slog.Info("no chunks stored, ingesting", slog.String("docs", svc.DocsDir))
		report, err = svc.Pipeline.Ingest(ctx, svc.DocsDir)
	}
	if err != nil {
		slog.Error("initial index build failed", slog.String("error", err.Error()))
		return err
	}

	slog.Info("index ready",
		slog.Int("chunks", report.Chunks),
		slog.Bool("semantic", report.Semantic),
		slog.String("vectors", report.VectorState.String()))
	return nil
}

// watchDocs re-ingests on every debounced batch of changes until ctx is
// done. A failed re-ingest keeps the previous snapshot serving.
func watchDocs(ctx context.Context, svc *ingest.Service, cfg *config.Config) {
	matcher, err := loader.NewMatcher(svc.DocsDir, loader.Options{
		Extensions: cfg.Paths.Extensions,
		Exclude:    cfg.Paths.Exclude,
	})
	if err != nil {
		slog.Error("watch disabled", slog.String("error", err.Error()))
		return
	}
	filter := func(rel string, isDir bool) bool {
		return rel == loader.IgnoreFile || matcher.Match(rel, isDir)
	}

	w, err := watcher.New(svc.DocsDir, watcher.Options{Debounce: cfg.WatchDebounce(), Filter: filter})
	if err != nil {
		slog.Error("watch disabled", slog.String("error", err.Error()))
		return
	}

	slog.Info("watching docs", slog.String("root", svc.DocsDir))
	err = w.Run(ctx, func(ctx context.Context, changed []string) {
		slog.Info("docs changed, re-ingesting", slog.Int("paths", len(changed)))
		if _, err := svc.Pipeline.Ingest(ctx, svc.DocsDir); err != nil {
			slog.Error("re-ingest failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		slog.Error("watcher stopped", slog.String("error", err.Error()))
	}
}
