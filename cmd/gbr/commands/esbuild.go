package commands

import (
	"github.com/spf13/cobra"

	"github.com/l3aro/go-bundle-report/pkg/adapter/esbuild"
	"github.com/l3aro/go-bundle-report/pkg/types"
)

// esbuildCmd represents the esbuild command
var esbuildCmd = &cobra.Command{
	Use:   "esbuild <entry...>",
	Short: "Bundle with esbuild and report on the result",
	Long: `Bundles the entry points with esbuild in memory, with external source
maps, and reports on the outputs. Nothing is written besides the report.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot(cmd)
		if err != nil {
			return err
		}

		outdir, _ := cmd.Flags().GetString("outdir")
		format, _ := cmd.Flags().GetString("bundle-format")
		platform, _ := cmd.Flags().GetString("platform")
		minify, _ := cmd.Flags().GetBool("minify")
		splitting, _ := cmd.Flags().GetBool("splitting")
		external, _ := cmd.Flags().GetStringSlice("external")

		adapter := esbuild.NewBuildAdapter(esbuild.BuildConfig{
			EntryPoints: args,
			Outdir:      outdir,
			Format:      types.ParseFormat(format),
			Platform:    platform,
			Minify:      minify,
			Splitting:   splitting,
			External:    external,
		}, esbuild.WithWorkDir(root), esbuild.WithLogger(logger))
		return runReport(cmd.Context(), root, adapter)
	},
}

func init() {
	esbuildCmd.Flags().String("outdir", "dist", "Output directory of the in-memory build")
	esbuildCmd.Flags().String("bundle-format", "esm", "Bundle format (esm or cjs)")
	esbuildCmd.Flags().String("platform", "browser", "Target platform (browser, node or neutral)")
	esbuildCmd.Flags().Bool("minify", false, "Minify the bundle")
	esbuildCmd.Flags().Bool("splitting", false, "Enable code splitting (esm only)")
	esbuildCmd.Flags().StringSlice("external", nil, "Packages left out of the bundle")
}
