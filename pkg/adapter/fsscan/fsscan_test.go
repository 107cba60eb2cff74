package fsscan

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-bundle-report/internal/scanner"
	"github.com/l3aro/go-bundle-report/pkg/pipeline"
	"github.com/l3aro/go-bundle-report/pkg/types"
)

type recordingSink struct {
	mu      sync.Mutex
	assets   []string
	modules  []types.ModuleFacts
	warnings []types.Warning
}

func (s *recordingSink) AddAsset(path string, _ []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets = append(s.assets, path)
}

func (s *recordingSink) AddModule(f types.ModuleFacts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules = append(s.modules, f)
}

func (s *recordingSink) AddWarning(w types.Warning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, w)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

const appJS = "import \"./chunk.js\";\nimport React from \"react\";\nconsole.log(React);\n//# sourceMappingURL=app.js.map\n"

func buildOutput(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "dist/app.js", appJS)
	writeFile(t, root, "dist/app.js.map", `{"version":3,"sources":["../src/a.ts","../src/b.ts"],"mappings":""}`)
	writeFile(t, root, "dist/chunk.js", "module.exports = 1;\n")
	writeFile(t, root, "dist/style.css", "body{margin:0}\n")
	writeFile(t, root, "dist/notes.txt", "not an asset")
	return root
}

func TestCollect_ReportsAssetsInWalkOrder(t *testing.T) {
	root := buildOutput(t)
	dist := filepath.Join(root, "dist")

	var sink recordingSink
	require.NoError(t, New(dist).Collect(context.Background(), &sink))

	assert.Equal(t, []string{
		filepath.Join(dist, "app.js"),
		filepath.Join(dist, "chunk.js"),
		filepath.Join(dist, "style.css"),
	}, sink.assets)
	require.Len(t, sink.modules, 3)

	app := sink.modules[0]
	assert.Equal(t, types.FormatESM, app.Format)
	assert.Equal(t, len(appJS), app.Bytes)
	assert.Equal(t, []string{filepath.Join(dist, "chunk.js"), "react"}, app.Imports)
	assert.Contains(t, string(app.SourceMap), "../src/a.ts")

	chunk := sink.modules[1]
	assert.Equal(t, types.FormatCJS, chunk.Format)
	assert.Nil(t, chunk.SourceMap)

	css := sink.modules[2]
	assert.Equal(t, types.FormatUnknown, css.Format)
	assert.Empty(t, css.Imports)
}

func TestCollect_ThroughPipeline(t *testing.T) {
	root := buildOutput(t)

	p := pipeline.New(pipeline.Options{Root: root})
	r, err := p.Run(context.Background(), New(filepath.Join(root, "dist"), WithConcurrency(2)))
	require.NoError(t, err)

	assert.Equal(t, []string{"dist/app.js", "dist/chunk.js", "dist/style.css"}, r.Assets)
	assert.Equal(t, []string{"dist/chunk.js", "react"}, r.Inputs["dist/app.js"].Imports)

	a := r.Inputs["src/a.ts"]
	b := r.Inputs["src/b.ts"]
	require.NotNil(t, a.BelongsTo)
	assert.Equal(t, "dist/app.js", *a.BelongsTo)
	assert.Equal(t, len(appJS), a.Bytes+b.Bytes)
	assert.False(t, r.Inputs["dist/chunk.js"].Unreachable)
}

func TestCollect_InlineSourceMap(t *testing.T) {
	root := t.TempDir()
	payload := base64.StdEncoding.EncodeToString([]byte(`{"version":3,"sources":["in.ts"],"mappings":""}`))
	writeFile(t, root, "out.js", "export const x = 1;\n//# sourceMappingURL=data:application/json;base64,"+payload+"\n")

	var sink recordingSink
	require.NoError(t, New(root).Collect(context.Background(), &sink))

	require.Len(t, sink.modules, 1)
	assert.JSONEq(t, `{"version":3,"sources":["in.ts"],"mappings":""}`, string(sink.modules[0].SourceMap))
}

func TestCollect_SiblingMapWithoutComment(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "out.js", "export const x = 1;\n")
	writeFile(t, root, "out.js.map", `{"version":3,"sources":["in.ts"],"mappings":""}`)

	var sink recordingSink
	require.NoError(t, New(root).Collect(context.Background(), &sink))

	require.Len(t, sink.modules, 1)
	assert.NotNil(t, sink.modules[0].SourceMap)
}

func TestCollect_MissingLinkedMapIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "out.js", "export const x = 1;\n//# sourceMappingURL=gone.js.map\n")

	var sink recordingSink
	require.NoError(t, New(root).Collect(context.Background(), &sink))

	require.Len(t, sink.modules, 1)
	assert.Nil(t, sink.modules[0].SourceMap)

	require.Len(t, sink.warnings, 1)
	assert.Equal(t, types.WarnMalformedSourceMap, sink.warnings[0].Kind)
	assert.Equal(t, filepath.Join(root, "out.js"), sink.warnings[0].Key)
}

func TestCollect_CorruptInlineMapIsReported(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "dist/app.js", "export const x = 1;\n//# sourceMappingURL=data:application/json;base64,!!!notbase64!!!\n")

	p := pipeline.New(pipeline.Options{Root: root})
	r, err := p.Run(context.Background(), New(filepath.Join(root, "dist")))
	require.NoError(t, err)

	assert.Len(t, r.Inputs, 1)
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, types.WarnMalformedSourceMap, r.Warnings[0].Kind)
	assert.Equal(t, "dist/app.js", r.Warnings[0].Key)
}

func TestCollect_NoMapNoWarning(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "out.js", "export const x = 1;\n")

	var sink recordingSink
	require.NoError(t, New(root).Collect(context.Background(), &sink))
	assert.Empty(t, sink.warnings)
}

func TestCollect_ScannerOptions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.js", "export const x = 1;\n")
	writeFile(t, root, ".vite/deps.js", "export const y = 2;\n")

	var def recordingSink
	require.NoError(t, New(root).Collect(context.Background(), &def))
	assert.Equal(t, []string{filepath.Join(root, "app.js")}, def.assets)

	opts := scanner.DefaultOptions()
	opts.SkipHidden = false
	opts.Kinds = nil

	var all recordingSink
	require.NoError(t, New(root, WithScannerOptions(opts)).Collect(context.Background(), &all))
	assert.ElementsMatch(t, []string{
		filepath.Join(root, ".vite", "deps.js"),
		filepath.Join(root, "app.js"),
	}, all.assets)
}

func TestCollect_MissingDirectory(t *testing.T) {
	var sink recordingSink
	err := New(filepath.Join(t.TempDir(), "nope")).Collect(context.Background(), &sink)
	assert.Error(t, err)
}
