package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-bundle-report/internal/config"
	"github.com/l3aro/go-bundle-report/internal/log"
)

var (
	cfg    *config.Config
	logger log.Logger = log.Nop()
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "gbr",
	Short: "go-bundle-report - Bundle size attribution for JavaScript builds",
	Long: `go-bundle-report maps every byte of your built assets back to the
sources they came from, using source maps and build metadata.

Commands:
  analyze     Report on a build output directory
  metafile    Report from an esbuild metafile
  esbuild     Bundle with esbuild and report on the result
  init        Create a project configuration interactively
  clean       Forget the asset list recorded by previous runs

Use "gbr [command] --help" for more information about a command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "init" {
			return nil
		}
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		applyFlags(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded

		level, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		if cfg.Verbose {
			level = log.DebugLevel
		}
		logger = log.New(log.LoggerConfig{Level: level, JSONOutput: cfg.LogJSON})
		return nil
	},
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

func init() {
	f := RootCmd.PersistentFlags()
	f.StringP("format", "f", "", "Report format (json or html)")
	f.StringP("output", "o", "", `Report path, "-" for stdout`)
	f.Bool("open", false, "Open the html report when done")
	f.StringSlice("include", nil, "Only report modules matching these patterns")
	f.StringSlice("exclude", nil, "Leave out modules matching these patterns")
	f.Bool("gzip", true, "Compute gzip sizes")
	f.Bool("brotli", false, "Compute brotli sizes")
	f.Bool("drop-unreachable", false, "Remove modules no asset reaches instead of flagging them")
	f.String("state-dir", "", "Directory holding the asset list of the previous run")
	f.Int("top", 0, "Rows in the printed summary, 0 to disable")
	f.String("root", ".", "Directory module keys are relative to")
	f.String("log-level", "", "Log level (debug, info, warn, error, off)")
	f.Bool("log-json", false, "Write logs as JSON")
	f.BoolP("verbose", "v", false, "Verbose logging")

	RootCmd.AddCommand(analyzeCmd)
	RootCmd.AddCommand(metafileCmd)
	RootCmd.AddCommand(esbuildCmd)
	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(cleanCmd)
}

// applyFlags lets explicitly set flags override the loaded configuration.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()

	if f.Changed("format") {
		v, _ := f.GetString("format")
		c.Format = strings.ToLower(v)
	}
	if f.Changed("output") {
		c.Output, _ = f.GetString("output")
	}
	if f.Changed("open") {
		c.Open, _ = f.GetBool("open")
	}
	if f.Changed("include") {
		c.Include, _ = f.GetStringSlice("include")
	}
	if f.Changed("exclude") {
		c.Exclude, _ = f.GetStringSlice("exclude")
	}
	if f.Changed("gzip") {
		c.Gzip, _ = f.GetBool("gzip")
	}
	if f.Changed("brotli") {
		c.Brotli, _ = f.GetBool("brotli")
	}
	if f.Changed("drop-unreachable") {
		c.DropUnreachable, _ = f.GetBool("drop-unreachable")
	}
	if f.Changed("state-dir") {
		c.StateDir, _ = f.GetString("state-dir")
	}
	if f.Changed("top") {
		c.Top, _ = f.GetInt("top")
	}
	if f.Changed("log-level") {
		c.LogLevel, _ = f.GetString("log-level")
	}
	if f.Changed("log-json") {
		c.LogJSON, _ = f.GetBool("log-json")
	}
	if f.Changed("verbose") {
		c.Verbose, _ = f.GetBool("verbose")
	}

	// the default file name follows the format unless one was given
	if c.Format == config.FormatHTML && !f.Changed("output") && c.Output == config.DefaultConfig().Output {
		c.Output = strings.TrimSuffix(c.Output, ".json") + ".html"
	}
}
