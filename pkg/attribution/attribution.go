// Package attribution expands compiled modules into the original sources listed
// in their source maps and links each source to the module it was compiled into.
package attribution

import (
	"fmt"

	"github.com/l3aro/go-bundle-report/pkg/graph"
	"github.com/l3aro/go-bundle-report/pkg/pathkey"
	"github.com/l3aro/go-bundle-report/pkg/types"
)

// SourceMapEntry is the source list of one compiled module, as written in its
// source map.
type SourceMapEntry struct {
	Compiled string
	Sources  []string

	// Weights optionally holds the mapped byte count of each source, aligned
	// with Sources. Nil when no range information is available.
	Weights []int
}

// SourceMapGraph maps compiled keys to their source lists in insertion order.
// It is transient: built during collection and consumed once by Attribute.
type SourceMapGraph struct {
	entries []SourceMapEntry
	index   map[string]int
}

// NewSourceMapGraph creates an empty SourceMapGraph.
func NewSourceMapGraph() *SourceMapGraph {
	return &SourceMapGraph{index: make(map[string]int)}
}

// Add records the sources of a compiled module. Adding the same compiled key
// again replaces its sources but keeps its original position.
func (s *SourceMapGraph) Add(compiled string, sources []string, weights []int) {
	if weights != nil && len(weights) != len(sources) {
		weights = nil
	}
	e := SourceMapEntry{Compiled: compiled, Sources: sources, Weights: weights}
	if i, ok := s.index[compiled]; ok {
		s.entries[i] = e
		return
	}
	s.index[compiled] = len(s.entries)
	s.entries = append(s.entries, e)
}

// Entries returns the recorded entries in insertion order.
func (s *SourceMapGraph) Entries() []SourceMapEntry {
	return s.entries
}

// Len returns the number of compiled modules recorded.
func (s *SourceMapGraph) Len() int {
	return len(s.entries)
}

// Child is a virtual source attributed to a compiled module.
type Child struct {
	Key    string
	Weight int
}

// Parent groups the virtual children of one compiled module in source-map
// order.
type Parent struct {
	Key       string
	Children  []Child
	HasRanges bool
}

// Result is the outcome of an attribution pass.
type Result struct {
	// Parents lists compiled modules with at least one virtual child, in
	// source-map-graph order.
	Parents []Parent

	// Related records sources that resolved to real modules, keyed by the
	// compiled module that lists them. Real modules keep their own sizes; the
	// relation only feeds reachability.
	Related map[string][]string

	Warnings []types.Warning
}

// Attribute links every source listed in smg to its compiled module in g,
// creating virtual entries for sources that are not real modules.
//
// Sources are resolved relative to the directory of the compiled module.
// Self references are skipped, duplicates within one compiled module collapse
// into a single child, real modules are never demoted and a virtual entry
// keeps the first compiled module that claimed it.
func Attribute(g *graph.Graph, smg *SourceMapGraph, n *pathkey.Normalizer) *Result {
	res := &Result{Related: make(map[string][]string)}

	type state struct {
		parent  Parent
		seen    map[string]int
		related map[string]bool
	}
	var order []string
	byOwner := make(map[string]*state)

	for _, entry := range smg.Entries() {
		if !g.Has(entry.Compiled) {
			g.Upsert(entry.Compiled, graph.Partial{})
		}
		owner := g.Owner(entry.Compiled)
		ownerEntry, _ := g.Get(owner)

		st, ok := byOwner[owner]
		if !ok {
			st = &state{
				parent:  Parent{Key: owner, HasRanges: true},
				seen:    make(map[string]int),
				related: make(map[string]bool),
			}
			byOwner[owner] = st
			order = append(order, owner)
		}
		if entry.Weights == nil {
			st.parent.HasRanges = false
		}

		for i, src := range entry.Sources {
			key, ok := n.Resolve(entry.Compiled, src)
			if !ok {
				res.Warnings = append(res.Warnings, types.Warning{
					Kind:    types.WarnUnresolvedAttribution,
					Key:     entry.Compiled,
					Message: fmt.Sprintf("source %q cannot be resolved to a path", src),
				})
				continue
			}
			if key == entry.Compiled || key == owner {
				continue
			}

			weight := 0
			if entry.Weights != nil {
				weight = entry.Weights[i]
			}

			if idx, dup := st.seen[key]; dup {
				st.parent.Children[idx].Weight += weight
				continue
			}

			switch g.Link(key, owner, ownerEntry.Format) {
			case graph.LinkCreated, graph.LinkExisting:
				st.seen[key] = len(st.parent.Children)
				st.parent.Children = append(st.parent.Children, Child{Key: key, Weight: weight})
			case graph.LinkReal:
				if !st.related[key] {
					st.related[key] = true
					res.Related[owner] = append(res.Related[owner], key)
				}
			case graph.LinkConflict:
				existing, _ := g.Get(key)
				res.Warnings = append(res.Warnings, types.Warning{
					Kind: types.WarnUnresolvedAttribution,
					Key:  key,
					Message: fmt.Sprintf("source is claimed by %q and %q; keeping %q",
						existing.BelongsTo, owner, existing.BelongsTo),
				})
			}
		}
	}

	for _, owner := range order {
		if st := byOwner[owner]; len(st.parent.Children) > 0 {
			res.Parents = append(res.Parents, st.parent)
		}
	}
	return res
}
