package commands

import (
	"github.com/spf13/cobra"

	"github.com/l3aro/go-bundle-report/internal/scanner"
	"github.com/l3aro/go-bundle-report/pkg/adapter/fsscan"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <dir>",
	Short: "Report on a build output directory",
	Long: `Walks a build output directory, measures every script and stylesheet,
and attributes their bytes to the sources listed in their source maps.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot(cmd)
		if err != nil {
			return err
		}
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		scanOpts := scanner.DefaultOptions()
		hidden, _ := cmd.Flags().GetBool("hidden")
		scanOpts.SkipHidden = !hidden
		scanOpts.FollowSymlinks, _ = cmd.Flags().GetBool("follow-symlinks")
		if name, _ := cmd.Flags().GetString("ignore-file"); name != "" {
			scanOpts.IgnoreFileName = name
		}

		adapter := fsscan.New(args[0],
			fsscan.WithConcurrency(concurrency),
			fsscan.WithScannerOptions(scanOpts),
			fsscan.WithLogger(logger),
		)
		return runReport(cmd.Context(), root, adapter)
	},
}

func init() {
	analyzeCmd.Flags().IntP("concurrency", "j", 0, "Files processed at once (default: number of CPUs)")
	analyzeCmd.Flags().Bool("hidden", false, "Include hidden files and directories")
	analyzeCmd.Flags().Bool("follow-symlinks", false, "Follow symlinks that stay inside the directory")
	analyzeCmd.Flags().String("ignore-file", "", "Name of the ignore file (default: .gbrignore)")
}
