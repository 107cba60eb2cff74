package graph

import (
	"fmt"
	"sync"
	"testing"

	"github.com/l3aro/go-bundle-report/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_UpsertCreatesWithDefaults(t *testing.T) {
	g := New()
	g.Upsert("src/a.ts", Partial{})

	e, ok := g.Get("src/a.ts")
	require.True(t, ok)
	assert.Equal(t, "src/a.ts", e.Key)
	assert.Equal(t, 0, e.Bytes)
	assert.Equal(t, types.FormatUnknown, e.Format)
	assert.Empty(t, e.Imports)
	assert.NotNil(t, e.Imports)
	assert.False(t, e.Virtual())
}

func TestGraph_UpsertMergesFields(t *testing.T) {
	g := New()
	g.Upsert("a.js", Partial{
		Bytes:   Ptr(100),
		Format:  Ptr(types.FormatESM),
		Imports: []string{"b.js", "b.js"},
	})
	g.Upsert("a.js", Partial{Bytes: Ptr(120)})

	e, _ := g.Get("a.js")
	assert.Equal(t, 120, e.Bytes)
	assert.Equal(t, types.FormatESM, e.Format)
	assert.Equal(t, []string{"b.js", "b.js"}, e.Imports, "duplicate edges are kept")

	g.Upsert("a.js", Partial{Imports: []string{}})
	e, _ = g.Get("a.js")
	assert.Empty(t, e.Imports)
}

func TestGraph_UnknownFormatDoesNotOverwrite(t *testing.T) {
	g := New()
	g.Upsert("a.js", Partial{Format: Ptr(types.FormatCJS)})
	g.Upsert("a.js", Partial{Format: Ptr(types.FormatUnknown)})

	e, _ := g.Get("a.js")
	assert.Equal(t, types.FormatCJS, e.Format)

	g.Upsert("a.js", Partial{Format: Ptr(types.FormatESM)})
	e, _ = g.Get("a.js")
	assert.Equal(t, types.FormatESM, e.Format)
}

func TestGraph_NegativeBytesClamped(t *testing.T) {
	g := New()
	g.Upsert("a.js", Partial{Bytes: Ptr(-5)})
	e, _ := g.Get("a.js")
	assert.Equal(t, 0, e.Bytes)
}

func TestGraph_GetReturnsCopy(t *testing.T) {
	g := New()
	g.Upsert("a.js", Partial{Imports: []string{"x"}})

	e, _ := g.Get("a.js")
	e.Imports[0] = "mutated"

	again, _ := g.Get("a.js")
	assert.Equal(t, "x", again.Imports[0])
}

func TestGraph_Link(t *testing.T) {
	g := New()
	g.Upsert("dist/a.js", Partial{Format: Ptr(types.FormatESM)})
	g.Upsert("dist/b.js", Partial{})
	g.Upsert("src/real.ts", Partial{Bytes: Ptr(10)})

	assert.Equal(t, LinkCreated, g.Link("src/x.ts", "dist/a.js", types.FormatESM))
	assert.Equal(t, LinkExisting, g.Link("src/x.ts", "dist/a.js", types.FormatESM))
	assert.Equal(t, LinkConflict, g.Link("src/x.ts", "dist/b.js", types.FormatCJS))
	assert.Equal(t, LinkReal, g.Link("src/real.ts", "dist/a.js", types.FormatESM))

	x, _ := g.Get("src/x.ts")
	assert.Equal(t, "dist/a.js", x.BelongsTo)
	assert.Equal(t, types.FormatESM, x.Format)
	assert.Equal(t, 0, x.Bytes)

	realEntry, _ := g.Get("src/real.ts")
	assert.False(t, realEntry.Virtual())
	assert.Equal(t, 10, realEntry.Bytes)
}

func TestGraph_Owner(t *testing.T) {
	g := New()
	g.Upsert("out.js", Partial{})
	g.Upsert("mid.js", Partial{BelongsTo: Ptr("out.js")})
	g.Upsert("leaf.ts", Partial{BelongsTo: Ptr("mid.js")})

	assert.Equal(t, "out.js", g.Owner("leaf.ts"))
	assert.Equal(t, "out.js", g.Owner("out.js"))
	assert.Equal(t, "missing.js", g.Owner("missing.js"))

	// cycles terminate
	g.Upsert("c1", Partial{BelongsTo: Ptr("c2")})
	g.Upsert("c2", Partial{BelongsTo: Ptr("c1")})
	assert.NotEmpty(t, g.Owner("c1"))
}

func TestGraph_KeysSorted(t *testing.T) {
	g := New()
	for _, k := range []string{"c", "a", "b"} {
		g.Upsert(k, Partial{})
	}
	assert.Equal(t, []string{"a", "b", "c"}, g.Keys())
	assert.Equal(t, 3, g.Len())
	assert.True(t, g.Has("b"))
	assert.False(t, g.Has("z"))
}

func TestGraph_SetSizes(t *testing.T) {
	g := New()
	g.Upsert("a.js", Partial{Bytes: Ptr(1)})
	g.SetSizes("a.js", 42, map[string]int{"gzip": 20})
	g.SetSizes("missing.js", 42, nil)

	e, _ := g.Get("a.js")
	assert.Equal(t, 42, e.Bytes)
	assert.Equal(t, map[string]int{"gzip": 20}, e.Compressed)
	assert.False(t, g.Has("missing.js"))
}

func TestGraph_ConcurrentUpserts(t *testing.T) {
	g := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("m%d.js", i%10)
			g.Upsert(key, Partial{Bytes: Ptr(i)})
			g.Upsert("shared.js", Partial{Imports: []string{key}})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 11, g.Len())
	shared, ok := g.Get("shared.js")
	require.True(t, ok)
	assert.Len(t, shared.Imports, 1)
}

func TestGraph_LinkPublishesVirtualEntries(t *testing.T) {
	g := New()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			g.Link(fmt.Sprintf("src/m%d.ts", i), "dist/a.js", types.FormatESM)
		}
	}()

	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		for _, e := range g.Entries() {
			require.Equal(t, "dist/a.js", e.BelongsTo, "entry %s seen before it was linked", e.Key)
			require.Equal(t, types.FormatESM, e.Format)
		}
	}
}

func TestGraph_LinkRacingUpsert(t *testing.T) {
	for i := 0; i < 200; i++ {
		g := New()
		var wg sync.WaitGroup
		var res LinkResult

		wg.Add(2)
		go func() {
			defer wg.Done()
			g.Upsert("src/x.ts", Partial{Bytes: Ptr(10)})
		}()
		go func() {
			defer wg.Done()
			res = g.Link("src/x.ts", "dist/a.js", types.FormatESM)
		}()
		wg.Wait()

		e, ok := g.Get("src/x.ts")
		require.True(t, ok)
		assert.Equal(t, 10, e.Bytes)
		switch res {
		case LinkCreated:
			assert.Equal(t, "dist/a.js", e.BelongsTo)
		case LinkReal:
			assert.Empty(t, e.BelongsTo, "a real module is never demoted")
		default:
			t.Fatalf("unexpected link result %v", res)
		}
	}
}
