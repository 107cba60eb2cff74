// Package esbuild feeds esbuild builds into the report pipeline, either from
// a metafile written by a previous build or by running esbuild in-process.
package esbuild

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Metafile represents the esbuild metafile JSON structure
type Metafile struct {
	Inputs  map[string]MetafileInput  `json:"inputs"`
	Outputs map[string]MetafileOutput `json:"outputs"`
}

// MetafileInput represents an input file in the metafile
type MetafileInput struct {
	Bytes   int              `json:"bytes"`
	Imports []MetafileImport `json:"imports"`
	Format  string           `json:"format,omitempty"` // "cjs" or "esm"
}

// MetafileImport represents an import in the metafile
type MetafileImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
	Original string `json:"original,omitempty"`
}

// MetafileOutput represents an output file in the metafile
type MetafileOutput struct {
	Bytes      int                     `json:"bytes"`
	Inputs     map[string]InputContrib `json:"inputs"`
	Imports    []MetafileImport        `json:"imports"`
	Exports    []string                `json:"exports"`
	EntryPoint string                  `json:"entryPoint,omitempty"`
}

// InputContrib represents the contribution of an input to an output
type InputContrib struct {
	BytesInOutput int `json:"bytesInOutput"`
}

// ParseMetafile decodes a metafile document.
func ParseMetafile(data []byte) (*Metafile, error) {
	var m Metafile
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}
	if m.Outputs == nil {
		return nil, fmt.Errorf("failed to parse metafile: no outputs")
	}
	return &m, nil
}

// ReadMetafile reads and decodes the metafile at path.
func ReadMetafile(path string) (*Metafile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metafile: %w", err)
	}
	return ParseMetafile(data)
}

// OutputNames returns the output paths in sorted order, leaving out source
// map outputs.
func (m *Metafile) OutputNames() []string {
	names := make([]string, 0, len(m.Outputs))
	for name := range m.Outputs {
		if strings.HasSuffix(name, ".map") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InputNames returns the input paths in sorted order.
func (m *Metafile) InputNames() []string {
	names := make([]string, 0, len(m.Inputs))
	for name := range m.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolvePath makes a metafile path absolute. Metafile paths are relative to
// the working directory of the build; namespaced ids are kept as they are.
func resolvePath(workDir, p string) string {
	if filepath.IsAbs(p) || isNamespaced(p) {
		return p
	}
	return filepath.Join(workDir, filepath.FromSlash(p))
}

// isNamespaced reports whether p carries an esbuild plugin namespace such as
// "npm:react" or "http-url:https://...".
func isNamespaced(p string) bool {
	i := strings.IndexByte(p, ':')
	if i <= 0 {
		return false
	}
	// a drive letter is not a namespace
	return i > 1
}
