// Package sizes measures asset sizes and distributes them across the original
// sources attributed to each compiled module.
package sizes

import (
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-bundle-report/pkg/attribution"
	"github.com/l3aro/go-bundle-report/pkg/graph"
)

type measured struct {
	key        string
	bytes      int
	compressed map[string]int
}

// Compute sets the sizes of every real module whose key names an asset with
// content, then splits each attributed parent's sizes across its virtual
// children. The children of a parent always sum to the parent exactly.
//
// Running Compute twice on the same inputs leaves the graph unchanged.
func Compute(g *graph.Graph, plan *attribution.Result, assets map[string][]byte, compressors ...Compressor) error {
	keys := make([]string, 0, len(assets))
	for k := range assets {
		if e, ok := g.Get(k); ok && !e.Virtual() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	results := make([]measured, len(keys))
	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, key := range keys {
		i, key := i, key
		eg.Go(func() error {
			content := assets[key]
			m := measured{key: key, bytes: len(content)}
			if len(compressors) > 0 {
				m.compressed = make(map[string]int, len(compressors))
			}
			for _, c := range compressors {
				n, err := c.Size(content)
				if err != nil {
					return fmt.Errorf("%s size of %s: %w", c.Name(), key, err)
				}
				m.compressed[c.Name()] = n
			}
			results[i] = m
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for _, m := range results {
		g.SetSizes(m.key, m.bytes, m.compressed)
	}

	if plan == nil {
		return nil
	}
	for _, p := range plan.Parents {
		distributeParent(g, p)
	}
	return nil
}

func distributeParent(g *graph.Graph, p attribution.Parent) {
	parent, ok := g.Get(p.Key)
	if !ok || len(p.Children) == 0 {
		return
	}

	var weights []int
	if p.HasRanges {
		weights = make([]int, len(p.Children))
		for i, c := range p.Children {
			weights[i] = c.Weight
		}
	}

	shares := Distribute(parent.Bytes, weights, len(p.Children))

	var compressedShares map[string][]int
	if parent.Compressed != nil {
		compressedShares = make(map[string][]int, len(parent.Compressed))
		for name, total := range parent.Compressed {
			compressedShares[name] = Distribute(total, weights, len(p.Children))
		}
	}

	for i, c := range p.Children {
		var compressed map[string]int
		if compressedShares != nil {
			compressed = make(map[string]int, len(compressedShares))
			for name, s := range compressedShares {
				compressed[name] = s[i]
			}
		}
		g.SetSizes(c.Key, shares[i], compressed)
	}
}

// Distribute splits total into n shares. With weights (aligned, n long, and a
// positive sum) the split is proportional; otherwise it is equal. Shares are
// floored and the remainder goes to the first share, so they sum to total.
func Distribute(total int, weights []int, n int) []int {
	if n <= 0 {
		return nil
	}
	shares := make([]int, n)
	if total <= 0 {
		return shares
	}

	var sum int64
	if len(weights) == n {
		for _, w := range weights {
			if w > 0 {
				sum += int64(w)
			}
		}
	}

	assigned := 0
	if sum > 0 {
		for i, w := range weights {
			if w > 0 {
				shares[i] = int(int64(total) * int64(w) / sum)
				assigned += shares[i]
			}
		}
	} else {
		each := total / n
		for i := range shares {
			shares[i] = each
		}
		assigned = each * n
	}
	shares[0] += total - assigned
	return shares
}
