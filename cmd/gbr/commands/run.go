package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-bundle-report/internal/log"
	"github.com/l3aro/go-bundle-report/pkg/cache"
	"github.com/l3aro/go-bundle-report/pkg/pipeline"
	"github.com/l3aro/go-bundle-report/pkg/report"
	"github.com/l3aro/go-bundle-report/pkg/sizes"
)

// projectRoot returns the absolute directory module keys are relative to.
func projectRoot(cmd *cobra.Command) (string, error) {
	root, _ := cmd.Flags().GetString("root")
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}
	return abs, nil
}

// stateStore returns the store remembering the asset list of root.
func stateStore(root string) *cache.FileStore {
	dir := cfg.StateDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return cache.NewFileStore(dir)
}

// runReport runs one pass over the adapters and writes the report.
func runReport(ctx context.Context, root string, adapters ...pipeline.Adapter) error {
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	var compressors []sizes.Compressor
	if cfg.Gzip {
		compressors = append(compressors, sizes.NewGzip())
	}
	if cfg.Brotli {
		compressors = append(compressors, sizes.NewBrotli())
	}

	p := pipeline.New(pipeline.Options{
		Root:        root,
		Include:     cfg.Include,
		Exclude:     cfg.Exclude,
		Compressors: compressors,
		Report:      report.Options{DropUnreachable: cfg.DropUnreachable},
		State:       stateStore(root),
		Logger:      logger,
	})

	var spinner *log.ProgressSpinner
	if !cfg.Verbose && !cfg.LogJSON {
		spinner = log.NewProgressSpinner(os.Stderr, "Analyzing bundle...")
		spinner.Start()
	}
	r, err := p.Run(ctx, adapters...)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}

	if err := writeReport(cfg.Output, r, format); err != nil {
		return err
	}

	if cfg.Top > 0 {
		report.WriteSummary(os.Stderr, r, cfg.Top)
	}

	if cfg.Output != "-" {
		logger.Info("report written", "path", cfg.Output, "format", string(format))
		if cfg.Open {
			if format != report.FormatHTML {
				logger.Warn("only html reports can be opened", "format", string(format))
			} else if err := openFile(cfg.Output); err != nil {
				logger.Warn("failed to open report", "err", err)
			}
		}
	}
	return nil
}

func writeReport(path string, r *report.Report, format report.Format) error {
	if path == "-" {
		return report.Encode(os.Stdout, r, format)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := report.Encode(f, r, format); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing report: %w", err)
	}
	return nil
}
