package esbuild

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-bundle-report/pkg/pipeline"
	"github.com/l3aro/go-bundle-report/pkg/types"
)

const sampleMetafile = `{
  "inputs": {
    "src/a.ts": {"bytes": 120, "imports": [{"path": "src/b.ts", "kind": "import-statement"}], "format": "esm"},
    "src/b.ts": {"bytes": 300, "imports": [], "format": "esm"}
  },
  "outputs": {
    "dist/app.js": {
      "bytes": 100,
      "inputs": {"src/a.ts": {"bytesInOutput": 30}, "src/b.ts": {"bytesInOutput": 70}},
      "imports": [{"path": "react", "kind": "import-statement", "external": true}],
      "exports": [],
      "entryPoint": "src/a.ts"
    },
    "dist/app.js.map": {"bytes": 10, "inputs": {}, "imports": [], "exports": []}
  }
}`

func writeFile(t *testing.T, root, rel string, content []byte) string {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, content, 0o644))
	return full
}

func TestParseMetafile(t *testing.T) {
	m, err := ParseMetafile([]byte(sampleMetafile))
	require.NoError(t, err)

	assert.Equal(t, []string{"dist/app.js"}, m.OutputNames())
	assert.Equal(t, []string{"src/a.ts", "src/b.ts"}, m.InputNames())
	assert.Equal(t, 70, m.Outputs["dist/app.js"].Inputs["src/b.ts"].BytesInOutput)
	assert.True(t, m.Outputs["dist/app.js"].Imports[0].External)

	_, err = ParseMetafile([]byte(`{"inputs": {}}`))
	assert.Error(t, err)
	_, err = ParseMetafile([]byte(`not json`))
	assert.Error(t, err)
}

func TestResolvePath(t *testing.T) {
	work := filepath.Join(string(filepath.Separator)+"work", "proj")
	assert.Equal(t, filepath.Join(work, "src", "a.ts"), resolvePath(work, "src/a.ts"))
	assert.Equal(t, "npm:react", resolvePath(work, "npm:react"))
	assert.Equal(t, "http-url:https://esm.sh/x", resolvePath(work, "http-url:https://esm.sh/x"))
}

func TestMetafileAdapter_SplitsByContribution(t *testing.T) {
	root := t.TempDir()
	meta := writeFile(t, root, "meta.json", []byte(sampleMetafile))
	writeFile(t, root, "dist/app.js", bytes.Repeat([]byte("x"), 100))

	p := pipeline.New(pipeline.Options{Root: root})
	r, err := p.Run(context.Background(), NewMetafileAdapter(meta, WithWorkDir(root)))
	require.NoError(t, err)

	assert.Equal(t, []string{"dist/app.js"}, r.Assets)

	app := r.Inputs["dist/app.js"]
	assert.Equal(t, 100, app.Bytes)
	assert.Equal(t, types.FormatESM, app.Format)
	assert.Equal(t, []string{"react"}, app.Imports)

	a := r.Inputs["src/a.ts"]
	b := r.Inputs["src/b.ts"]
	require.NotNil(t, a.BelongsTo)
	assert.Equal(t, "dist/app.js", *a.BelongsTo)
	assert.Equal(t, 30, a.Bytes)
	assert.Equal(t, 70, b.Bytes)
}

func TestMetafileAdapter_OutputsNotOnDisk(t *testing.T) {
	root := t.TempDir()
	meta := writeFile(t, root, "meta.json", []byte(sampleMetafile))

	r, err := pipeline.New(pipeline.Options{Root: root}).
		Run(context.Background(), NewMetafileAdapter(meta, WithWorkDir(root)))
	require.NoError(t, err)

	assert.Equal(t, 100, r.Inputs["dist/app.js"].Bytes)
	assert.Equal(t, 30, r.Inputs["src/a.ts"].Bytes)
}

func TestMetafileAdapter_InputModules(t *testing.T) {
	root := t.TempDir()
	meta := writeFile(t, root, "meta.json", []byte(sampleMetafile))

	r, err := pipeline.New(pipeline.Options{Root: root}).
		Run(context.Background(), NewMetafileAdapter(meta, WithWorkDir(root), WithInputModules()))
	require.NoError(t, err)

	a := r.Inputs["src/a.ts"]
	assert.Nil(t, a.BelongsTo)
	assert.Equal(t, 120, a.Bytes)
	assert.Equal(t, []string{"src/b.ts"}, a.Imports)
	assert.True(t, r.Inputs["src/a.ts"].Unreachable, "inputs are not imported by any asset")
	assert.Equal(t, 100, r.Inputs["dist/app.js"].Bytes)
}

func TestMetafileAdapter_UsesSourceMapOnDisk(t *testing.T) {
	root := t.TempDir()
	meta := writeFile(t, root, "meta.json", []byte(sampleMetafile))
	writeFile(t, root, "dist/app.js", []byte("abcdefghij"))
	writeFile(t, root, "dist/app.js.map", []byte(`{"version":3,"sources":["../src/a.ts","../src/b.ts"],"mappings":"AAAA,GCAA"}`))

	r, err := pipeline.New(pipeline.Options{Root: root}).
		Run(context.Background(), NewMetafileAdapter(meta, WithWorkDir(root)))
	require.NoError(t, err)

	assert.Equal(t, 10, r.Inputs["dist/app.js"].Bytes)
	assert.Equal(t, 3, r.Inputs["src/a.ts"].Bytes)
	assert.Equal(t, 7, r.Inputs["src/b.ts"].Bytes)
}

func TestMetafileAdapter_UnreadableLinkedMap(t *testing.T) {
	root := t.TempDir()
	meta := writeFile(t, root, "meta.json", []byte(sampleMetafile))
	writeFile(t, root, "dist/app.js", []byte("abcdefghij\n//# sourceMappingURL=missing.js.map\n"))

	r, err := pipeline.New(pipeline.Options{Root: root}).
		Run(context.Background(), NewMetafileAdapter(meta, WithWorkDir(root)))
	require.NoError(t, err)

	require.Len(t, r.Warnings, 1)
	assert.Equal(t, types.WarnMalformedSourceMap, r.Warnings[0].Kind)
	assert.Equal(t, "dist/app.js", r.Warnings[0].Key)

	// the metafile contributions still split the output
	assert.Equal(t, 30, r.Inputs["src/a.ts"].Bytes)
	assert.Equal(t, 70, r.Inputs["src/b.ts"].Bytes)
}

func TestMetafileAdapter_MissingFile(t *testing.T) {
	var sink pipeline.Sink
	err := NewMetafileAdapter(filepath.Join(t.TempDir(), "missing.json")).Collect(context.Background(), sink)
	assert.Error(t, err)
}

func TestBuildAdapter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/index.js", []byte("import { add } from './util.js';\nconsole.log(add(1, 2));\n"))
	writeFile(t, root, "src/util.js", []byte("export function add(a, b) {\n  return a + b;\n}\n"))

	adapter := NewBuildAdapter(BuildConfig{
		EntryPoints: []string{"src/index.js"},
		Format:      types.FormatESM,
	}, WithWorkDir(root))

	r, err := pipeline.New(pipeline.Options{Root: root}).Run(context.Background(), adapter)
	require.NoError(t, err)

	require.Equal(t, []string{"dist/index.js"}, r.Assets)
	out := r.Inputs["dist/index.js"]
	assert.Equal(t, types.FormatESM, out.Format)

	sum := 0
	for _, key := range []string{"src/index.js", "src/util.js"} {
		in, ok := r.Inputs[key]
		require.True(t, ok, key)
		require.NotNil(t, in.BelongsTo, key)
		assert.Equal(t, "dist/index.js", *in.BelongsTo)
		sum += in.Bytes
	}
	assert.Equal(t, out.Bytes, sum)

	_, err = os.Stat(filepath.Join(root, "dist"))
	assert.True(t, os.IsNotExist(err), "nothing is written to disk")
}

func TestBuildAdapter_Errors(t *testing.T) {
	root := t.TempDir()
	var sink pipeline.Sink

	err := NewBuildAdapter(BuildConfig{}, WithWorkDir(root)).Collect(context.Background(), sink)
	assert.Error(t, err)

	err = NewBuildAdapter(BuildConfig{EntryPoints: []string{"src/missing.js"}}, WithWorkDir(root)).
		Collect(context.Background(), sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build failed")
}
