// Package report assembles the final bundle report from the module graph and
// serializes it.
package report

import (
	"sort"

	"github.com/l3aro/go-bundle-report/pkg/graph"
	"github.com/l3aro/go-bundle-report/pkg/types"
)

// Report is the unified dependency-and-size artifact.
type Report struct {
	Assets   []string         `json:"assets"`
	Inputs   map[string]Input `json:"inputs"`
	Warnings []types.Warning  `json:"warnings,omitempty"`
}

// Input is the serialized form of one module entry.
type Input struct {
	Bytes       int            `json:"bytes"`
	Compressed  map[string]int `json:"compressed,omitempty"`
	Format      types.Format   `json:"format"`
	Imports     []string       `json:"imports"`
	BelongsTo   *string        `json:"belongsTo"`
	Unreachable bool           `json:"unreachable,omitempty"`
}

// Options controls report assembly.
type Options struct {
	// DropUnreachable removes entries not reachable from any asset instead of
	// flagging them. Ancestors of kept entries are always kept.
	DropUnreachable bool

	// Links are extra edges used for reachability only, such as the real
	// modules a compiled module's source map lists.
	Links map[string][]string

	Warnings []types.Warning
}

// Build assembles a report scoped to assets. Asset paths are expected to be
// canonical keys.
func Build(assets []string, g *graph.Graph, opts Options) *Report {
	entries := g.Entries()
	byKey := make(map[string]graph.ModuleEntry, len(entries))
	children := make(map[string][]string)
	for _, e := range entries {
		byKey[e.Key] = e
		if e.Virtual() {
			children[e.BelongsTo] = append(children[e.BelongsTo], e.Key)
		}
	}

	reachable := walk(assets, byKey, children, opts.Links)

	keep := make(map[string]bool, len(entries))
	for _, e := range entries {
		if reachable[e.Key] || !opts.DropUnreachable {
			keep[e.Key] = true
		}
	}
	// belongsTo targets must stay resolvable
	for key := range keep {
		cur := byKey[key]
		for cur.Virtual() && !keep[cur.BelongsTo] {
			keep[cur.BelongsTo] = true
			parent, ok := byKey[cur.BelongsTo]
			if !ok {
				break
			}
			cur = parent
		}
	}

	r := &Report{
		Assets:   append([]string{}, assets...),
		Inputs:   make(map[string]Input, len(keep)),
		Warnings: sortWarnings(opts.Warnings),
	}
	for key := range keep {
		e, ok := byKey[key]
		if !ok {
			continue
		}
		in := Input{
			Bytes:       e.Bytes,
			Compressed:  e.Compressed,
			Format:      e.Format,
			Imports:     e.Imports,
			Unreachable: !reachable[key],
		}
		if in.Imports == nil {
			in.Imports = []string{}
		}
		if e.Virtual() {
			belongsTo := e.BelongsTo
			in.BelongsTo = &belongsTo
		}
		r.Inputs[key] = in
	}
	return r
}

// walk returns every key reachable from the assets through imports, links and
// belongs-to children.
func walk(assets []string, byKey map[string]graph.ModuleEntry, children, links map[string][]string) map[string]bool {
	seen := make(map[string]bool)
	var queue []string
	push := func(key string) {
		if _, ok := byKey[key]; ok && !seen[key] {
			seen[key] = true
			queue = append(queue, key)
		}
	}

	for _, a := range assets {
		push(a)
	}
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		for _, imp := range byKey[key].Imports {
			push(imp)
		}
		for _, l := range links[key] {
			push(l)
		}
		for _, c := range children[key] {
			push(c)
		}
	}
	return seen
}

func sortWarnings(ws []types.Warning) []types.Warning {
	if len(ws) == 0 {
		return nil
	}
	out := make([]types.Warning, 0, len(ws))
	seen := make(map[types.Warning]bool, len(ws))
	for _, w := range ws {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// Row is one input of a report, used for listings.
type Row struct {
	Key string
	Input
}

// Largest returns up to n inputs ordered by descending size, ties broken by
// key. A non-positive n returns all inputs.
func (r *Report) Largest(n int) []Row {
	rows := make([]Row, 0, len(r.Inputs))
	for k, in := range r.Inputs {
		rows = append(rows, Row{Key: k, Input: in})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Bytes != rows[j].Bytes {
			return rows[i].Bytes > rows[j].Bytes
		}
		return rows[i].Key < rows[j].Key
	})
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

// TotalBytes sums the bytes of the report's assets.
func (r *Report) TotalBytes() int {
	total := 0
	for _, a := range r.Assets {
		total += r.Inputs[a].Bytes
	}
	return total
}
