// Package pipeline runs one report pass: adapters collect facts concurrently,
// then attribution, size analysis and report assembly run after a single
// barrier.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-bundle-report/internal/log"
	"github.com/l3aro/go-bundle-report/internal/scanner"
	"github.com/l3aro/go-bundle-report/pkg/attribution"
	"github.com/l3aro/go-bundle-report/pkg/cache"
	"github.com/l3aro/go-bundle-report/pkg/graph"
	"github.com/l3aro/go-bundle-report/pkg/pathkey"
	"github.com/l3aro/go-bundle-report/pkg/report"
	"github.com/l3aro/go-bundle-report/pkg/sizes"
	"github.com/l3aro/go-bundle-report/pkg/sourcemap"
	"github.com/l3aro/go-bundle-report/pkg/types"
)

// Adapter collects the facts of one build tool and pushes them into a Sink.
type Adapter interface {
	Name() string
	Collect(ctx context.Context, sink Sink) error
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc struct {
	ID string
	Fn func(ctx context.Context, sink Sink) error
}

func (a AdapterFunc) Name() string { return a.ID }

func (a AdapterFunc) Collect(ctx context.Context, sink Sink) error { return a.Fn(ctx, sink) }

// Options configures a Pipeline.
type Options struct {
	// Root is the directory keys are made relative to.
	Root string

	// Include and Exclude are gitignore-style patterns matched against module
	// keys. Assets are never filtered.
	Include []string
	Exclude []string

	Compressors []sizes.Compressor
	Report      report.Options

	// State remembers the asset list between runs. Nil disables the fallback.
	State cache.Store

	Logger log.Logger
}

// Pipeline turns adapter facts into a Report.
type Pipeline struct {
	opts       Options
	normalizer *pathkey.Normalizer
	filter     scanner.Filter
	logger     log.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Pipeline{
		opts:       opts,
		normalizer: pathkey.New(opts.Root),
		filter:     scanner.NewFilter(opts.Include, opts.Exclude),
		logger:     logger,
	}
}

// Normalizer returns the normalizer keys are built with.
func (p *Pipeline) Normalizer() *pathkey.Normalizer {
	return p.normalizer
}

// Run executes one pass. It fails with types.ErrMissingOutput when no adapter
// reported an asset and no asset list was recorded by a previous run; no
// partial report is returned on failure.
func (p *Pipeline) Run(ctx context.Context, adapters ...Adapter) (*report.Report, error) {
	defer p.normalizer.Reset()

	g := graph.New()
	c := newCollector(g, p.normalizer, p.filter, len(adapters))

	eg, egctx := errgroup.WithContext(ctx)
	for i, a := range adapters {
		i, a := i, a
		eg.Go(func() error {
			start := time.Now()
			if err := a.Collect(egctx, c.sink(i)); err != nil {
				return fmt.Errorf("adapter %s: %w", a.Name(), err)
			}
			p.logger.Debug("adapter finished", "adapter", a.Name(), "elapsed", time.Since(start).String())
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	assets := c.finish()
	fromPriorRun := false
	if len(assets) == 0 {
		prior, err := p.priorAssets()
		if err != nil {
			return nil, err
		}
		assets = prior
		fromPriorRun = true
		p.logger.Info("no assets reported, using the previous asset list", "assets", len(assets))
	}

	// every asset with content is a real module
	for _, key := range assets {
		if content, ok := c.content(key); ok && !g.Has(key) {
			g.Upsert(key, graph.Partial{Bytes: graph.Ptr(len(content))})
		}
	}

	warnings := c.adapterWarnings()
	smg, mapWarnings := p.buildSourceMapGraph(c)
	warnings = append(warnings, mapWarnings...)
	plan := attribution.Attribute(g, smg, p.normalizer)
	warnings = append(warnings, plan.Warnings...)

	if err := sizes.Compute(g, plan, c.assetContents(assets), p.opts.Compressors...); err != nil {
		return nil, fmt.Errorf("computing sizes: %w", err)
	}

	ropts := p.opts.Report
	ropts.Links = plan.Related
	ropts.Warnings = append(append([]types.Warning{}, ropts.Warnings...), warnings...)
	r := report.Build(assets, g, ropts)

	for _, w := range r.Warnings {
		p.logger.Warn(w.Message, "kind", string(w.Kind), "key", w.Key)
	}

	if !fromPriorRun && p.opts.State != nil {
		if err := p.opts.State.Save(&cache.State{Assets: assets}); err != nil {
			p.logger.Warn("failed to record asset list", "err", err)
		}
	}

	p.logger.Info("report assembled", "assets", len(r.Assets), "inputs", len(r.Inputs), "warnings", len(r.Warnings))
	return r, nil
}

func (p *Pipeline) priorAssets() ([]string, error) {
	if p.opts.State == nil {
		return nil, types.ErrMissingOutput
	}
	st, err := p.opts.State.Load()
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, types.ErrMissingOutput
		}
		return nil, fmt.Errorf("%w: reading previous asset list: %v", types.ErrMissingOutput, err)
	}
	if len(st.Assets) == 0 {
		return nil, types.ErrMissingOutput
	}
	return st.Assets, nil
}

// buildSourceMapGraph parses pending source maps. A map that cannot be parsed
// yields a warning and the module keeps only its adapter facts.
func (p *Pipeline) buildSourceMapGraph(c *collector) (*attribution.SourceMapGraph, []types.Warning) {
	smg := attribution.NewSourceMapGraph()
	var warnings []types.Warning

	for _, pm := range c.sourceMaps() {
		f := pm.facts
		if f.SourceMap == nil {
			smg.Add(pm.key, f.SourceMapSources, f.SourceWeights)
			continue
		}

		m, err := sourcemap.Parse(f.SourceMap)
		if err != nil {
			warnings = append(warnings, types.Warning{
				Kind:    types.WarnMalformedSourceMap,
				Key:     pm.key,
				Message: err.Error(),
			})
			if f.SourceMapSources != nil {
				smg.Add(pm.key, f.SourceMapSources, f.SourceWeights)
			}
			continue
		}

		code := f.Code
		if code == nil {
			code, _ = c.content(pm.key)
		}
		var weights []int
		if code != nil {
			weights = m.MappedBytes(code)
		}
		smg.Add(pm.key, m.ResolvedSources(), weights)
	}
	return smg, warnings
}
