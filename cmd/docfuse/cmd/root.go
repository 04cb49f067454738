// Package cmd provides the CLI commands for docfuse.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docfuse/internal/config"
	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
	"github.com/Aman-CERP/docfuse/internal/ingest"
	"github.com/Aman-CERP/docfuse/internal/logging"
	"github.com/Aman-CERP/docfuse/pkg/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	dir      string
	debug    bool
	logLevel string

	loggingCleanup func()
}

// NewRootCmd creates the root command for the docfuse CLI.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "docfuse",
		Short: "Hybrid keyword and semantic search over documentation",
		Long: `docfuse chunks a documentation tree, indexes it for keyword (TF-IDF)
and semantic (embedding) search, and fuses both rankings.

Run 'docfuse ingest' in a project with a docs/ directory, then
'docfuse search' or 'docfuse serve' for agents speaking MCP.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if g.loggingCleanup != nil {
				g.loggingCleanup()
				g.loggingCleanup = nil
			}
		},
	}
	cmd.SetVersionTemplate("docfuse version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&g.dir, "dir", "C", ".", "Project root (holds the config file and data directory)")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Log at debug level, also to stderr")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newInitCmd(g))
	cmd.AddCommand(newIngestCmd(g))
	cmd.AddCommand(newSearchCmd(g))
	cmd.AddCommand(newStatusCmd(g))
	cmd.AddCommand(newValidateCmd(g))
	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints failures the way the CLI
// formats them.
func Execute() error {
	root := NewRootCmd()
	err := root.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprint(os.Stderr, fuseerr.FormatForCLI(err))
	}
	return err
}

// setup loads .env from the project root and installs the file logger.
// serve installs its own file-only logger.
func (g *globalOptions) setup(cmd *cobra.Command) error {
	root, err := g.root()
	if err != nil {
		return err
	}
	if err := config.LoadDotEnv(root); err != nil {
		return err
	}
	if cmd.Name() == "serve" || cmd.Name() == "version" {
		return nil
	}

	cfg := logging.DefaultConfig()
	cfg.Level = g.level("")
	cfg.Stderr = g.debug
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)
	g.loggingCleanup = cleanup
	return nil
}

// level resolves the effective log level: --debug, then --log-level, then
// the configured level.
func (g *globalOptions) level(configured string) string {
	switch {
	case g.debug:
		return "debug"
	case g.logLevel != "":
		return g.logLevel
	case configured != "":
		return configured
	default:
		return "info"
	}
}

func (g *globalOptions) root() (string, error) {
	abs, err := filepath.Abs(g.dir)
	if err != nil {
		return "", fuseerr.New(fuseerr.ErrCodeInvalidPath, "resolve project root", err).WithDetail("path", g.dir)
	}
	return abs, nil
}

// loadConfig returns the project root and its merged configuration.
func (g *globalOptions) loadConfig() (string, *config.Config, error) {
	root, err := g.root()
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}

// openService loads config and wires a Service for the project.
func (g *globalOptions) openService(ctx context.Context, opts ingest.OpenOptions) (*ingest.Service, error) {
	root, cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return ingest.Open(ctx, cfg, root, opts)
}

// requireIndexed fails with a hint when nothing has been ingested yet.
func requireIndexed(ctx context.Context, svc *ingest.Service) error {
	n, err := svc.Chunks.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return fuseerr.IndexNotReady("search")
	}
	return nil
}
