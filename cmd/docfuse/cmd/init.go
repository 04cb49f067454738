package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docfuse/configs"
	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
	"github.com/Aman-CERP/docfuse/internal/output"
)

// projectConfigNames are the project config files config.Load reads.
var projectConfigNames = []string{".docfuse.yaml", ".docfuse.yml", ".docfuse.toml"}

func newInitCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented .docfuse.yaml to the project root",
		Long: `Write .docfuse.yaml with every setting at its default value.
An existing project config is never overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			root, err := g.root()
			if err != nil {
				return err
			}

			for _, name := range projectConfigNames {
				if _, err := os.Stat(filepath.Join(root, name)); err == nil {
					out.Statusf("ℹ️ ", "Existing %s preserved", name)
					return nil
				}
			}

			path := filepath.Join(root, projectConfigNames[0])
			if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
				return fuseerr.IOError("write "+projectConfigNames[0], err)
			}
			out.Statusf("📝", "Created %s", projectConfigNames[0])
			return nil
		},
	}
}
