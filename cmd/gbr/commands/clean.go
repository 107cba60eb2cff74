package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Forget the asset list recorded by previous runs",
	Long: `Removes the state file that lets a run which finds no assets fall back to
the asset list of the previous run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot(cmd)
		if err != nil {
			return err
		}
		store := stateStore(root)
		if err := store.Clear(); err != nil {
			return err
		}
		logger.Debug("state cleared", "path", store.Path())
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", store.Path())
		return nil
	},
}
