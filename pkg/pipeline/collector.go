package pipeline

import (
	"sync"

	"github.com/l3aro/go-bundle-report/internal/scanner"
	"github.com/l3aro/go-bundle-report/pkg/graph"
	"github.com/l3aro/go-bundle-report/pkg/pathkey"
	"github.com/l3aro/go-bundle-report/pkg/types"
)

// Sink receives the raw facts of one build pass. Implementations passed to
// adapters are safe for concurrent use.
type Sink interface {
	// AddAsset reports an output file and its content. Content may be nil
	// when only the path is known.
	AddAsset(path string, content []byte)

	// AddModule reports facts about one compiled module.
	AddModule(facts types.ModuleFacts)

	// AddWarning reports a problem the adapter recovered from. Key is
	// normalized like module keys.
	AddWarning(w types.Warning)
}

// pendingMap is a module whose source map is attributed after the barrier.
type pendingMap struct {
	key   string
	facts types.ModuleFacts
}

type filteredModule struct {
	idx   int
	facts types.ModuleFacts
}

// collector pushes adapter facts into the graph and keeps what the
// attribution phase needs. Per-adapter state keeps the result independent of
// how adapters interleave.
type collector struct {
	g      *graph.Graph
	n      *pathkey.Normalizer
	filter scanner.Filter

	mu       sync.Mutex
	assets   [][]string
	seen     map[string]bool
	contents map[string][]byte
	pending  [][]pendingMap
	warnings [][]types.Warning
	filtered map[string]filteredModule
}

func newCollector(g *graph.Graph, n *pathkey.Normalizer, filter scanner.Filter, adapters int) *collector {
	return &collector{
		g:        g,
		n:        n,
		filter:   filter,
		assets:   make([][]string, adapters),
		seen:     make(map[string]bool),
		contents: make(map[string][]byte),
		pending:  make([][]pendingMap, adapters),
		warnings: make([][]types.Warning, adapters),
		filtered: make(map[string]filteredModule),
	}
}

// sink returns the Sink handed to adapter i.
func (c *collector) sink(i int) Sink {
	return adapterSink{c: c, idx: i}
}

type adapterSink struct {
	c   *collector
	idx int
}

func (s adapterSink) AddAsset(path string, content []byte) {
	s.c.addAsset(s.idx, path, content)
}

func (s adapterSink) AddModule(facts types.ModuleFacts) {
	s.c.addModule(s.idx, facts)
}

func (s adapterSink) AddWarning(w types.Warning) {
	s.c.addWarning(s.idx, w)
}

func (c *collector) addWarning(idx int, w types.Warning) {
	if k := c.n.Normalize(w.Key); k != "" {
		w.Key = k
	}
	c.mu.Lock()
	c.warnings[idx] = append(c.warnings[idx], w)
	c.mu.Unlock()
}

func (c *collector) addAsset(idx int, path string, content []byte) {
	key := c.n.Normalize(path)
	if key == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.seen[key] {
		c.seen[key] = true
		c.assets[idx] = append(c.assets[idx], key)
	}
	if content != nil {
		c.contents[key] = content
	}
}

func (c *collector) addModule(idx int, f types.ModuleFacts) {
	key := c.n.Normalize(f.Key)
	if key == "" {
		return
	}

	if !c.filter.Allow(key) {
		// kept aside: assets are never filtered
		c.mu.Lock()
		c.filtered[key] = filteredModule{idx: idx, facts: f}
		c.mu.Unlock()
		return
	}

	c.upsert(key, f)

	if hasSourceMap(f) {
		c.mu.Lock()
		c.pending[idx] = append(c.pending[idx], pendingMap{key: key, facts: f})
		c.mu.Unlock()
	}
}

func hasSourceMap(f types.ModuleFacts) bool {
	return f.SourceMap != nil || f.SourceMapSources != nil
}

func (c *collector) upsert(key string, f types.ModuleFacts) {
	p := graph.Partial{
		Format: graph.Ptr(types.ParseFormat(string(f.Format))),
	}

	switch {
	case f.Bytes > 0:
		p.Bytes = graph.Ptr(f.Bytes)
	case len(f.Code) > 0:
		p.Bytes = graph.Ptr(len(f.Code))
	}

	if f.Imports != nil {
		imports := make([]string, 0, len(f.Imports))
		for _, imp := range f.Imports {
			if k := c.n.Normalize(imp); k != "" {
				imports = append(imports, k)
			}
		}
		p.Imports = imports
	}

	c.g.Upsert(key, p)
}

// finish runs after the barrier. It returns the asset keys in adapter order
// and restores filtered modules that turned out to be assets.
func (c *collector) finish() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var assets []string
	for _, list := range c.assets {
		assets = append(assets, list...)
	}

	for _, key := range assets {
		fm, ok := c.filtered[key]
		if !ok {
			continue
		}
		c.upsert(key, fm.facts)
		if hasSourceMap(fm.facts) {
			c.pending[fm.idx] = append(c.pending[fm.idx], pendingMap{key: key, facts: fm.facts})
		}
	}
	return assets
}

// sourceMaps returns the pending source maps in adapter order, then arrival
// order within each adapter.
func (c *collector) sourceMaps() []pendingMap {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []pendingMap
	for _, list := range c.pending {
		out = append(out, list...)
	}
	return out
}

// adapterWarnings returns the warnings reported by adapters in adapter order.
func (c *collector) adapterWarnings() []types.Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []types.Warning
	for _, list := range c.warnings {
		out = append(out, list...)
	}
	return out
}

// content returns the recorded content of an asset.
func (c *collector) content(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.contents[key]
	return b, ok
}

// assetContents returns the content of every asset in keys that has one.
func (c *collector) assetContents(keys []string) map[string][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if b, ok := c.contents[k]; ok {
			out[k] = b
		}
	}
	return out
}
