package commands

import (
	"github.com/spf13/cobra"

	"github.com/l3aro/go-bundle-report/pkg/adapter/esbuild"
)

// metafileCmd represents the metafile command
var metafileCmd = &cobra.Command{
	Use:   "metafile <file>",
	Short: "Report from an esbuild metafile",
	Long: `Reads the metafile of a previous esbuild run. Outputs and their source
maps are read from disk when present; otherwise the metafile's per-input
byte counts are used.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot(cmd)
		if err != nil {
			return err
		}
		workDir, _ := cmd.Flags().GetString("workdir")
		if workDir == "" {
			workDir = root
		}

		opts := []esbuild.Option{esbuild.WithWorkDir(workDir), esbuild.WithLogger(logger)}
		if inputs, _ := cmd.Flags().GetBool("input-sizes"); inputs {
			opts = append(opts, esbuild.WithInputModules())
		}
		return runReport(cmd.Context(), root, esbuild.NewMetafileAdapter(args[0], opts...))
	},
}

func init() {
	metafileCmd.Flags().String("workdir", "", "Directory the metafile paths are relative to (default: --root)")
	metafileCmd.Flags().Bool("input-sizes", false, "Report inputs at their source size instead of their share of the output")
}
