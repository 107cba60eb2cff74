package esbuild

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/l3aro/go-bundle-report/internal/log"
	"github.com/l3aro/go-bundle-report/pkg/pipeline"
	"github.com/l3aro/go-bundle-report/pkg/sourcemap"
	"github.com/l3aro/go-bundle-report/pkg/types"
)

type config struct {
	workDir      string
	inputModules bool
	logger       log.Logger
}

// Option configures the adapters of this package.
type Option func(*config)

// WithWorkDir sets the directory metafile paths are relative to. It defaults
// to the current directory.
func WithWorkDir(dir string) Option {
	return func(c *config) {
		c.workDir = dir
	}
}

// WithInputModules reports every metafile input as a module of its own,
// carrying its source size, format and imports. Outputs then keep their full
// size instead of being split across the inputs they contain.
func WithInputModules() Option {
	return func(c *config) {
		c.inputModules = true
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

func newConfig(opts []Option) (config, error) {
	c := config{logger: log.Nop()}
	for _, opt := range opts {
		opt(&c)
	}
	dir, err := filepath.Abs(c.workDir)
	if err != nil {
		return c, fmt.Errorf("resolving working directory: %w", err)
	}
	c.workDir = dir
	return c, nil
}

// emitter pushes the facts of one metafile into a sink. read returns the
// content of a build output and fs.ErrNotExist when it is unavailable.
type emitter struct {
	cfg    config
	meta   *Metafile
	read   func(path string) ([]byte, error)
	format types.Format
}

func (e *emitter) emit(sink pipeline.Sink) error {
	for _, name := range e.meta.OutputNames() {
		if err := e.emitOutput(sink, name, e.meta.Outputs[name]); err != nil {
			return err
		}
	}
	if !e.cfg.inputModules {
		return nil
	}
	for _, name := range e.meta.InputNames() {
		in := e.meta.Inputs[name]
		sink.AddModule(types.ModuleFacts{
			Key:     resolvePath(e.cfg.workDir, name),
			Bytes:   in.Bytes,
			Format:  types.ParseFormat(in.Format),
			Imports: e.imports(in.Imports),
		})
	}
	return nil
}

func (e *emitter) emitOutput(sink pipeline.Sink, name string, out MetafileOutput) error {
	path := resolvePath(e.cfg.workDir, name)

	content, err := e.read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading output %s: %w", name, err)
		}
		e.cfg.logger.Debug("output not available, using metafile size", "output", name)
		content = nil
	}
	sink.AddAsset(path, content)

	facts := types.ModuleFacts{
		Key:     path,
		Bytes:   out.Bytes,
		Format:  e.outputFormat(out),
		Imports: e.imports(out.Imports),
	}

	if content != nil {
		sm, err := sourcemap.Locate(path, content, e.read)
		if err != nil {
			e.cfg.logger.Debug("skipping source map", "output", name, "err", err)
			sink.AddWarning(types.Warning{
				Kind:    types.WarnMalformedSourceMap,
				Key:     path,
				Message: err.Error(),
			})
		}
		if sm != nil {
			facts.SourceMap = sm
			facts.Code = content
		}
	}

	// without a map the metafile still says how much each input contributed
	if facts.SourceMap == nil && !e.cfg.inputModules {
		for _, in := range sortedKeys(out.Inputs) {
			facts.SourceMapSources = append(facts.SourceMapSources, resolvePath(e.cfg.workDir, in))
			facts.SourceWeights = append(facts.SourceWeights, out.Inputs[in].BytesInOutput)
		}
	}

	sink.AddModule(facts)
	return nil
}

func (e *emitter) outputFormat(out MetafileOutput) types.Format {
	if e.format.Known() {
		return e.format
	}
	if in, ok := e.meta.Inputs[out.EntryPoint]; ok {
		return types.ParseFormat(in.Format)
	}
	return types.FormatUnknown
}

// imports keeps external specifiers as written and resolves the rest.
func (e *emitter) imports(list []MetafileImport) []string {
	out := make([]string, 0, len(list))
	for _, imp := range list {
		if imp.External {
			out = append(out, imp.Path)
			continue
		}
		out = append(out, resolvePath(e.cfg.workDir, imp.Path))
	}
	return out
}

func sortedKeys(m map[string]InputContrib) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MetafileAdapter reads a metafile written by a previous esbuild run and
// the outputs it lists from disk.
type MetafileAdapter struct {
	path string
	opts []Option
}

// NewMetafileAdapter creates an adapter for the metafile at path.
func NewMetafileAdapter(path string, opts ...Option) *MetafileAdapter {
	return &MetafileAdapter{path: path, opts: opts}
}

// Name implements pipeline.Adapter.
func (a *MetafileAdapter) Name() string {
	return "esbuild-metafile"
}

// Collect implements pipeline.Adapter.
func (a *MetafileAdapter) Collect(ctx context.Context, sink pipeline.Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg, err := newConfig(a.opts)
	if err != nil {
		return err
	}
	meta, err := ReadMetafile(a.path)
	if err != nil {
		return err
	}
	cfg.logger.Debug("metafile loaded", "path", a.path, "outputs", len(meta.Outputs), "inputs", len(meta.Inputs))

	e := &emitter{cfg: cfg, meta: meta, read: os.ReadFile}
	return e.emit(sink)
}

var _ pipeline.Adapter = (*MetafileAdapter)(nil)
