// Package graph holds the in-memory module graph: one entry per compiled module
// or attributed original source, keyed by canonical key.
package graph

import (
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/l3aro/go-bundle-report/pkg/types"
)

// ModuleEntry is one compiled module or attributed original source.
type ModuleEntry struct {
	Key        string
	Bytes      int
	Compressed map[string]int
	Format     types.Format
	Imports    []string

	// BelongsTo is the compiled module this entry was extracted from through a
	// source map. Empty for real modules.
	BelongsTo string
}

// Virtual reports whether the entry was synthesized from a source map.
func (e ModuleEntry) Virtual() bool {
	return e.BelongsTo != ""
}

func (e ModuleEntry) clone() ModuleEntry {
	e.Imports = slices.Clone(e.Imports)
	e.Compressed = maps.Clone(e.Compressed)
	return e
}

// Partial is a set of facts to merge into an entry. Nil fields are absent and
// leave the stored value untouched. A non-nil empty Imports slice clears the
// imports.
type Partial struct {
	Bytes      *int
	Compressed map[string]int
	Format     *types.Format
	Imports    []string
	BelongsTo  *string
}

// Ptr returns a pointer to v, for building Partials.
func Ptr[T any](v T) *T {
	return &v
}

// LinkResult describes what Link did.
type LinkResult int

const (
	// LinkCreated means a new virtual entry was created under the parent.
	LinkCreated LinkResult = iota
	// LinkExisting means the child already belonged to the same parent.
	LinkExisting
	// LinkConflict means the child already belongs to another parent; the
	// existing relation was kept.
	LinkConflict
	// LinkReal means the child is a real module and was left untouched.
	LinkReal
)

type node struct {
	mu    sync.Mutex
	entry ModuleEntry
}

// Graph maps canonical keys to module entries. Upserts to distinct keys only
// contend on the short lookup of their node; updates to the same key are
// serialized by that node's lock.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// nodeFor returns the node for key, creating a zero entry when absent. init,
// when set, fills a created entry before any other caller can see it.
func (g *Graph) nodeFor(key string, init func(*ModuleEntry)) (*node, bool) {
	g.mu.RLock()
	n, ok := g.nodes[key]
	g.mu.RUnlock()
	if ok {
		return n, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[key]; ok {
		return n, false
	}
	n = &node{entry: ModuleEntry{
		Key:     key,
		Format:  types.FormatUnknown,
		Imports: []string{},
	}}
	if init != nil {
		init(&n.entry)
	}
	g.nodes[key] = n
	return n, true
}

func (g *Graph) lookup(key string) (*node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[key]
	return n, ok
}

// Upsert merges p into the entry for key, creating it if absent.
func (g *Graph) Upsert(key string, p Partial) {
	n, _ := g.nodeFor(key, nil)

	n.mu.Lock()
	defer n.mu.Unlock()
	apply(&n.entry, p)
}

func apply(e *ModuleEntry, p Partial) {
	if p.Bytes != nil {
		e.Bytes = max(*p.Bytes, 0)
	}
	if p.Compressed != nil {
		e.Compressed = maps.Clone(p.Compressed)
	}
	if p.Format != nil {
		// A known format is authoritative; unknown never overwrites it.
		if p.Format.Known() || !e.Format.Known() {
			e.Format = *p.Format
		}
	}
	if p.Imports != nil {
		e.Imports = slices.Clone(p.Imports)
	}
	if p.BelongsTo != nil {
		e.BelongsTo = *p.BelongsTo
	}
}

// Get returns a copy of the entry for key.
func (g *Graph) Get(key string) (ModuleEntry, bool) {
	n, ok := g.lookup(key)
	if !ok {
		return ModuleEntry{}, false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.entry.clone(), true
}

// Has reports whether key exists.
func (g *Graph) Has(key string) bool {
	_, ok := g.lookup(key)
	return ok
}

// Len returns the number of entries.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Keys returns all keys in sorted order.
func (g *Graph) Keys() []string {
	g.mu.RLock()
	keys := make([]string, 0, len(g.nodes))
	for k := range g.nodes {
		keys = append(keys, k)
	}
	g.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Entries returns copies of all entries sorted by key.
func (g *Graph) Entries() []ModuleEntry {
	keys := g.Keys()
	out := make([]ModuleEntry, 0, len(keys))
	for _, k := range keys {
		if e, ok := g.Get(k); ok {
			out = append(out, e)
		}
	}
	return out
}

// Owner returns the nearest real ancestor of key by following BelongsTo.
// A real module is its own owner.
func (g *Graph) Owner(key string) string {
	seen := map[string]bool{}
	cur := key
	for !seen[cur] {
		seen[cur] = true
		e, ok := g.Get(cur)
		if !ok || e.BelongsTo == "" {
			return cur
		}
		cur = e.BelongsTo
	}
	return cur
}

// Link attaches child to parent as a virtual entry. A missing child is created
// with zero bytes, no imports and the given format. Existing relations win: a
// real module is never demoted and a virtual child keeps its first parent.
func (g *Graph) Link(child, parent string, format types.Format) LinkResult {
	n, created := g.nodeFor(child, func(e *ModuleEntry) {
		e.BelongsTo = parent
		e.Format = format
	})
	if created {
		return LinkCreated
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.entry.BelongsTo {
	case "":
		return LinkReal
	case parent:
		if !n.entry.Format.Known() && format.Known() {
			n.entry.Format = format
		}
		return LinkExisting
	default:
		return LinkConflict
	}
}

// SetSizes overwrites the byte counts of key. It is the Size Analyzer's write
// path and does nothing for unknown keys.
func (g *Graph) SetSizes(key string, bytes int, compressed map[string]int) {
	n, ok := g.lookup(key)
	if !ok {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entry.Bytes = max(bytes, 0)
	n.entry.Compressed = maps.Clone(compressed)
}
