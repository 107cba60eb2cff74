package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-bundle-report/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a gbr configuration interactively",
	Long: `Guides you through setting up the project configuration step by step
and writes it to .gbr/config.yaml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		global, _ := cmd.Flags().GetBool("global")
		return runInit(global)
	},
}

func runInit(global bool) error {
	configPath := config.ProjectConfigFilePath()
	if global {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("finding home directory: %w", err)
		}
		configPath = filepath.Join(home, config.DirName, "config.yaml")
	}

	cfg := config.DefaultConfig()
	if existing, err := config.LoadFromFile(configPath); err == nil {
		cfg = existing
	}

	// === SECTION 1: Report ===
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Report format").
				Description("JSON for tooling, HTML for a self-contained viewer").
				Options(
					huh.NewOption("JSON", config.FormatJSON),
					huh.NewOption("HTML", config.FormatHTML),
				).
				Value(&cfg.Format),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	if cfg.Output == config.DefaultConfig().Output && cfg.Format == config.FormatHTML {
		cfg.Output = "bundle-report.html"
	}
	top := strconv.Itoa(cfg.Top)

	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Report path").
				Placeholder(cfg.Output).
				Value(&cfg.Output),
			huh.NewInput().
				Title("Rows in the printed summary (0 to disable)").
				Placeholder("10").
				Value(&top).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 0 {
						return fmt.Errorf("enter a non-negative number")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.Top, _ = strconv.Atoi(top)

	if cfg.Format == config.FormatHTML {
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Open the report when it is written?").
					Affirmative("Yes").
					Negative("No").
					Value(&cfg.Open),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
	}

	// === SECTION 2: Sizes ===
	compressors := []string{}
	if cfg.Gzip {
		compressors = append(compressors, "gzip")
	}
	if cfg.Brotli {
		compressors = append(compressors, "brotli")
	}
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Compressed sizes").
				Description("Each adds a column computed from the real asset bytes").
				Options(
					huh.NewOption("gzip", "gzip"),
					huh.NewOption("brotli", "brotli"),
				).
				Value(&compressors),
			huh.NewConfirm().
				Title("Unreachable modules").
				Description("Modules no asset reaches can be flagged or left out").
				Affirmative("Leave out").
				Negative("Flag").
				Value(&cfg.DropUnreachable),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.Gzip, cfg.Brotli = false, false
	for _, c := range compressors {
		switch c {
		case "gzip":
			cfg.Gzip = true
		case "brotli":
			cfg.Brotli = true
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Show config preview
	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", configPath)
	fmt.Printf("Format: %s\n", cfg.Format)
	fmt.Printf("Output: %s\n", cfg.Output)
	fmt.Printf("Gzip: %t, Brotli: %t\n", cfg.Gzip, cfg.Brotli)
	fmt.Printf("Drop unreachable: %t\n", cfg.DropUnreachable)
	fmt.Println("================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to: %s\n", configPath)
	return nil
}

func init() {
	initCmd.Flags().Bool("global", false, "Write the user-wide configuration instead of the project one")
}
