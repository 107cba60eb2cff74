package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-bundle-report/pkg/cache"
	"github.com/l3aro/go-bundle-report/pkg/report"
	"github.com/l3aro/go-bundle-report/pkg/types"
)

func adapter(name string, fn func(Sink)) Adapter {
	return AdapterFunc{ID: name, Fn: func(_ context.Context, s Sink) error {
		fn(s)
		return nil
	}}
}

func bundleAdapter(s Sink) {
	content := bytes.Repeat([]byte("x"), 238)
	s.AddAsset("/proj/a/b/bundle.js", content)
	s.AddModule(types.ModuleFacts{
		Key:              "/proj/a/b/bundle.js",
		Bytes:            238,
		Format:           types.FormatESM,
		Imports:          []string{},
		SourceMapSources: []string{"../x.ts", "../y.ts"},
	})
}

func TestRun_EqualSplitScenario(t *testing.T) {
	p := New(Options{Root: "/proj"})
	r, err := p.Run(context.Background(), adapter("test", bundleAdapter))
	require.NoError(t, err)

	assert.Equal(t, []string{"a/b/bundle.js"}, r.Assets)
	require.Len(t, r.Inputs, 3)

	bundle := r.Inputs["a/b/bundle.js"]
	assert.Equal(t, 238, bundle.Bytes)
	assert.Equal(t, types.FormatESM, bundle.Format)
	assert.Nil(t, bundle.BelongsTo)

	for _, key := range []string{"a/x.ts", "a/y.ts"} {
		in := r.Inputs[key]
		require.NotNil(t, in.BelongsTo, key)
		assert.Equal(t, "a/b/bundle.js", *in.BelongsTo)
		assert.Equal(t, 119, in.Bytes)
		assert.Equal(t, types.FormatESM, in.Format)
		assert.False(t, in.Unreachable)
	}
}

func TestRun_MissingOutput(t *testing.T) {
	p := New(Options{Root: "/proj", State: cache.NewMemoryStore()})
	r, err := p.Run(context.Background(), adapter("empty", func(s Sink) {
		s.AddModule(types.ModuleFacts{Key: "/proj/src/a.ts", Bytes: 10})
	}))

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrMissingOutput)
	assert.Nil(t, r)

	_, err = New(Options{}).Run(context.Background())
	assert.ErrorIs(t, err, types.ErrMissingOutput)
}

func TestRun_FallsBackToPriorAssets(t *testing.T) {
	store := cache.NewMemoryStore()
	require.NoError(t, store.Save(&cache.State{Assets: []string{"dist/app.js"}}))

	p := New(Options{Root: "/proj", State: store})
	r, err := p.Run(context.Background(), adapter("rebuild", func(s Sink) {
		s.AddModule(types.ModuleFacts{Key: "/proj/dist/app.js", Bytes: 42})
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"dist/app.js"}, r.Assets)
	assert.Equal(t, 42, r.Inputs["dist/app.js"].Bytes)
}

func TestRun_RecordsAssets(t *testing.T) {
	store := cache.NewMemoryStore()
	p := New(Options{Root: "/proj", State: store})
	_, err := p.Run(context.Background(), adapter("test", bundleAdapter))
	require.NoError(t, err)

	st, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b/bundle.js"}, st.Assets)
}

func TestRun_MalformedSourceMap(t *testing.T) {
	p := New(Options{Root: "/proj"})
	r, err := p.Run(context.Background(), adapter("test", func(s Sink) {
		s.AddAsset("/proj/dist/app.js", []byte("console.log(1)"))
		s.AddModule(types.ModuleFacts{
			Key:       "/proj/dist/app.js",
			Format:    types.FormatCJS,
			SourceMap: []byte(`{"version":3,"sources":["../src/a.ts"],"mappings":"!!"}`),
		})
	}))
	require.NoError(t, err)

	require.Len(t, r.Warnings, 1)
	assert.Equal(t, types.WarnMalformedSourceMap, r.Warnings[0].Kind)
	assert.Equal(t, "dist/app.js", r.Warnings[0].Key)

	app := r.Inputs["dist/app.js"]
	assert.Equal(t, 14, app.Bytes)
	assert.Equal(t, types.FormatCJS, app.Format)
	assert.Len(t, r.Inputs, 1, "no sources are attributed from a broken map")
}

func TestRun_RangeWeightedDistribution(t *testing.T) {
	code := []byte("0123456789")
	p := New(Options{Root: "/proj"})
	r, err := p.Run(context.Background(), adapter("test", func(s Sink) {
		s.AddAsset("/proj/dist/app.js", code)
		s.AddModule(types.ModuleFacts{
			Key:       "/proj/dist/app.js",
			SourceMap: []byte(`{"version":3,"sources":["../src/a.ts","../src/b.ts"],"mappings":"AAAA,GCAA"}`),
		})
	}))
	require.NoError(t, err)

	assert.Equal(t, 3, r.Inputs["src/a.ts"].Bytes)
	assert.Equal(t, 7, r.Inputs["src/b.ts"].Bytes)
}

func TestRun_FirstWriterFollowsAdapterOrder(t *testing.T) {
	first := adapter("first", func(s Sink) {
		s.AddAsset("/proj/dist/a.js", []byte("aaaa"))
		s.AddModule(types.ModuleFacts{Key: "/proj/dist/a.js", SourceMapSources: []string{"../shared/util.ts"}})
	})
	second := adapter("second", func(s Sink) {
		s.AddAsset("/proj/dist/b.js", []byte("bbbbbb"))
		s.AddModule(types.ModuleFacts{Key: "/proj/dist/b.js", SourceMapSources: []string{"../shared/util.ts"}})
	})

	for i := 0; i < 5; i++ {
		r, err := New(Options{Root: "/proj"}).Run(context.Background(), first, second)
		require.NoError(t, err)

		util := r.Inputs["shared/util.ts"]
		require.NotNil(t, util.BelongsTo)
		assert.Equal(t, "dist/a.js", *util.BelongsTo)
		assert.Equal(t, 4, util.Bytes)

		require.Len(t, r.Warnings, 1)
		assert.Equal(t, types.WarnUnresolvedAttribution, r.Warnings[0].Kind)
		assert.Equal(t, []string{"dist/a.js", "dist/b.js"}, r.Assets)
	}
}

func TestRun_Deterministic(t *testing.T) {
	run := func() string {
		p := New(Options{Root: "/proj", Report: report.Options{DropUnreachable: true}})
		r, err := p.Run(context.Background(), adapter("one", bundleAdapter), adapter("two", func(s Sink) {
			s.AddAsset("/proj/dist/other.js", []byte("other"))
			s.AddModule(types.ModuleFacts{Key: "/proj/dist/other.js", Imports: []string{"/proj/a/b/bundle.js"}})
		}))
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, report.Encode(&buf, r, report.FormatJSON))
		return buf.String()
	}

	first := run()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, run())
	}
}

func TestRun_IncludeExclude(t *testing.T) {
	p := New(Options{
		Root:    "/proj",
		Exclude: []string{"*.test.js", "dist/"},
	})
	r, err := p.Run(context.Background(), adapter("test", func(s Sink) {
		s.AddAsset("/proj/dist/app.js", []byte("app"))
		s.AddModule(types.ModuleFacts{Key: "/proj/dist/app.js", Imports: []string{"/proj/src/a.test.js"}})
		s.AddModule(types.ModuleFacts{Key: "/proj/src/a.test.js", Bytes: 5})
		s.AddModule(types.ModuleFacts{Key: "/proj/src/b.js", Bytes: 6})
	}))
	require.NoError(t, err)

	assert.Contains(t, r.Inputs, "dist/app.js", "assets are never filtered")
	assert.Equal(t, []string{"src/a.test.js"}, r.Inputs["dist/app.js"].Imports)
	assert.NotContains(t, r.Inputs, "src/a.test.js")
	assert.Contains(t, r.Inputs, "src/b.js")
	assert.True(t, r.Inputs["src/b.js"].Unreachable)
}

func TestRun_AdapterError(t *testing.T) {
	boom := errors.New("boom")
	failing := AdapterFunc{ID: "broken", Fn: func(context.Context, Sink) error { return boom }}

	r, err := New(Options{}).Run(context.Background(), adapter("ok", bundleAdapter), failing)
	require.Error(t, err)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, boom)
	assert.True(t, strings.Contains(err.Error(), "broken"))
}

func TestRun_ResetsNormalizer(t *testing.T) {
	p := New(Options{Root: "/proj"})
	_, err := p.Run(context.Background(), adapter("test", bundleAdapter))
	require.NoError(t, err)

	r, err := p.Run(context.Background(), adapter("test", bundleAdapter))
	require.NoError(t, err)
	assert.Len(t, r.Inputs, 3, "a second run starts from an empty graph")
}

func TestRun_OneEntryPerModuleAcrossAdapters(t *testing.T) {
	bundler := adapter("bundler", func(s Sink) {
		s.AddAsset("/proj/dist/app.js", []byte("app"))
		s.AddModule(types.ModuleFacts{Key: "/proj/dist/app.js", Imports: []string{"/proj/src/a.ts"}})
		s.AddModule(types.ModuleFacts{Key: "/proj/src/a.ts", Bytes: 10})
	})
	parser := adapter("parser", func(s Sink) {
		s.AddModule(types.ModuleFacts{Key: "src\\a.ts", Format: types.FormatESM})
		s.AddModule(types.ModuleFacts{Key: "file:///proj/src/a.ts", Imports: []string{"/proj/src/b.ts"}})
	})

	r, err := New(Options{Root: "/proj"}).Run(context.Background(), bundler, parser)
	require.NoError(t, err)

	var keys []string
	for key := range r.Inputs {
		if strings.HasSuffix(key, "a.ts") {
			keys = append(keys, key)
		}
	}
	assert.Equal(t, []string{"src/a.ts"}, keys)

	a := r.Inputs["src/a.ts"]
	assert.Equal(t, 10, a.Bytes)
	assert.Equal(t, types.FormatESM, a.Format)
	assert.Equal(t, []string{"src/b.ts"}, a.Imports)
	assert.Nil(t, a.BelongsTo)
	assert.False(t, a.Unreachable)
}

func TestRun_AdapterWarnings(t *testing.T) {
	r, err := New(Options{Root: "/proj"}).Run(context.Background(), adapter("test", func(s Sink) {
		s.AddAsset("/proj/dist/app.js", []byte("app"))
		s.AddModule(types.ModuleFacts{Key: "/proj/dist/app.js"})
		s.AddWarning(types.Warning{
			Kind:    types.WarnMalformedSourceMap,
			Key:     "/proj/dist/app.js",
			Message: "reading linked source map: file does not exist",
		})
	}))
	require.NoError(t, err)

	require.Len(t, r.Warnings, 1)
	assert.Equal(t, types.WarnMalformedSourceMap, r.Warnings[0].Kind)
	assert.Equal(t, "dist/app.js", r.Warnings[0].Key)
}
