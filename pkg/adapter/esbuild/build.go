package esbuild

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/l3aro/go-bundle-report/pkg/pipeline"
	"github.com/l3aro/go-bundle-report/pkg/types"
)

// BuildConfig describes an in-process esbuild run.
type BuildConfig struct {
	EntryPoints []string
	Outdir      string // relative to the working directory, default "dist"
	Format      types.Format
	Platform    string // browser, node or neutral
	Minify      bool
	Splitting   bool
	External    []string
}

// BuildAdapter bundles the entry points with esbuild in memory. Nothing is
// written to disk; outputs and their external source maps are pushed
// directly.
type BuildAdapter struct {
	build BuildConfig
	opts  []Option
}

// NewBuildAdapter creates an adapter for the given build.
func NewBuildAdapter(build BuildConfig, opts ...Option) *BuildAdapter {
	return &BuildAdapter{build: build, opts: opts}
}

// Name implements pipeline.Adapter.
func (a *BuildAdapter) Name() string {
	return "esbuild"
}

// Collect implements pipeline.Adapter. esbuild itself cannot be cancelled, so
// the context is only checked before the build starts.
func (a *BuildAdapter) Collect(ctx context.Context, sink pipeline.Sink) error {
	if len(a.build.EntryPoints) == 0 {
		return fmt.Errorf("no entry points")
	}
	cfg, err := newConfig(a.opts)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	result := api.Build(a.buildOptions(cfg.workDir))

	for _, w := range result.Warnings {
		cfg.logger.Warn("esbuild: "+w.Text, "location", location(w))
	}
	if len(result.Errors) > 0 {
		var errMsgs []string
		for _, e := range result.Errors {
			errMsgs = append(errMsgs, e.Text)
		}
		return fmt.Errorf("build failed: %s", strings.Join(errMsgs, "; "))
	}

	meta, err := ParseMetafile([]byte(result.Metafile))
	if err != nil {
		return err
	}

	outputs := make(map[string][]byte, len(result.OutputFiles))
	for _, f := range result.OutputFiles {
		outputs[filepath.Clean(f.Path)] = f.Contents
	}
	cfg.logger.Debug("build finished", "outputs", len(outputs), "inputs", len(meta.Inputs))

	e := &emitter{
		cfg:    cfg,
		meta:   meta,
		format: a.build.Format,
		read: func(path string) ([]byte, error) {
			if b, ok := outputs[filepath.Clean(path)]; ok {
				return b, nil
			}
			return nil, fs.ErrNotExist
		},
	}
	return e.emit(sink)
}

func (a *BuildAdapter) buildOptions(workDir string) api.BuildOptions {
	outdir := a.build.Outdir
	if outdir == "" {
		outdir = "dist"
	}

	opts := api.BuildOptions{
		EntryPoints:       a.build.EntryPoints,
		Bundle:            true,
		Write:             false,
		Metafile:          true,
		Sourcemap:         api.SourceMapExternal,
		Outdir:            outdir,
		AbsWorkingDir:     workDir,
		Splitting:         a.build.Splitting,
		External:          a.build.External,
		MinifyWhitespace:  a.build.Minify,
		MinifyIdentifiers: a.build.Minify,
		MinifySyntax:      a.build.Minify,
		LogLevel:          api.LogLevelSilent,
	}

	switch a.build.Format {
	case types.FormatESM:
		opts.Format = api.FormatESModule
	case types.FormatCJS:
		opts.Format = api.FormatCommonJS
	}

	switch a.build.Platform {
	case "node":
		opts.Platform = api.PlatformNode
	case "neutral":
		opts.Platform = api.PlatformNeutral
	default:
		opts.Platform = api.PlatformBrowser
	}
	return opts
}

func location(m api.Message) string {
	if m.Location == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", m.Location.File, m.Location.Line, m.Location.Column)
}

var _ pipeline.Adapter = (*BuildAdapter)(nil)
