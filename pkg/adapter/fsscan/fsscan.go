// Package fsscan collects facts from a build output directory on disk: every
// script and stylesheet is an asset, source maps are read from inline data
// URLs or linked files, and JavaScript imports and formats are parsed.
package fsscan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-bundle-report/internal/log"
	"github.com/l3aro/go-bundle-report/internal/scanner"
	"github.com/l3aro/go-bundle-report/pkg/extractor"
	"github.com/l3aro/go-bundle-report/pkg/pipeline"
	"github.com/l3aro/go-bundle-report/pkg/sourcemap"
	"github.com/l3aro/go-bundle-report/pkg/types"
)

// Adapter walks one output directory.
type Adapter struct {
	dir         string
	concurrency int
	scanOpts    scanner.Options
	parser      *extractor.JavaScriptImportParser
	logger      log.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithConcurrency bounds the number of files processed at once.
func WithConcurrency(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithScannerOptions replaces the directory walk options. Kinds are always
// limited to assets.
func WithScannerOptions(opts scanner.Options) Option {
	return func(a *Adapter) {
		a.scanOpts = opts
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// New creates an Adapter for dir.
func New(dir string, opts ...Option) *Adapter {
	a := &Adapter{
		dir:         dir,
		concurrency: runtime.GOMAXPROCS(0),
		scanOpts:    scanner.DefaultOptions(),
		parser:      extractor.NewJavaScriptImportParser(),
		logger:      log.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.scanOpts.Kinds = []scanner.Kind{scanner.KindScript, scanner.KindStyle}
	return a
}

// Name implements pipeline.Adapter.
func (a *Adapter) Name() string {
	return "fsscan"
}

// Collect implements pipeline.Adapter. Files are processed concurrently and
// reported in walk order.
func (a *Adapter) Collect(ctx context.Context, sink pipeline.Sink) error {
	files, err := scanner.New(a.scanOpts).Scan(a.dir)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", a.dir, err)
	}
	a.logger.Debug("scanned output directory", "dir", a.dir, "assets", len(files))

	results := make([]scanned, len(files))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(a.concurrency)
	for i, f := range files {
		i, f := i, f
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			res, err := a.read(egctx, f)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for _, res := range results {
		sink.AddAsset(res.facts.Key, res.facts.Code)
		sink.AddModule(res.facts)
		if res.warning != nil {
			sink.AddWarning(*res.warning)
		}
	}
	return nil
}

// scanned is the outcome of reading one file.
type scanned struct {
	facts   types.ModuleFacts
	warning *types.Warning
}

func (a *Adapter) read(ctx context.Context, f scanner.FileInfo) (scanned, error) {
	content, err := os.ReadFile(f.FullPath)
	if err != nil {
		return scanned{}, fmt.Errorf("reading %s: %w", f.Path, err)
	}

	facts := types.ModuleFacts{
		Key:    f.FullPath,
		Bytes:  len(content),
		Format: types.FormatUnknown,
		Code:   content,
	}

	if f.Kind == scanner.KindScript {
		analysis, err := a.parser.Analyze(ctx, content)
		if err != nil {
			a.logger.Debug("skipping import analysis", "file", f.Path, "err", err)
		} else {
			facts.Format = analysis.Format
			facts.Imports = resolveImports(filepath.Dir(f.FullPath), analysis.Specifiers())
		}
	}

	res := scanned{facts: facts}
	sm, err := sourcemap.ReadFor(f.FullPath, content)
	if err != nil {
		a.logger.Debug("skipping source map", "file", f.Path, "err", err)
		res.warning = &types.Warning{
			Kind:    types.WarnMalformedSourceMap,
			Key:     f.FullPath,
			Message: err.Error(),
		}
	}
	res.facts.SourceMap = sm
	return res, nil
}

// resolveImports turns relative specifiers into paths next to the importer.
// Bare specifiers are kept as written.
func resolveImports(dir string, specs []string) []string {
	out := make([]string, 0, len(specs))
	for _, spec := range specs {
		if extractor.IsRelative(spec) {
			spec = filepath.Join(dir, filepath.FromSlash(spec))
		}
		out = append(out, spec)
	}
	return out
}

var _ pipeline.Adapter = (*Adapter)(nil)
