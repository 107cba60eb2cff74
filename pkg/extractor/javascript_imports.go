// Package extractor reads module facts out of compiled JavaScript with
// tree-sitter: the specifiers a module imports and the module format it uses.
package extractor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/l3aro/go-bundle-report/pkg/types"
)

// ImportKind is the syntax an import was written with.
type ImportKind string

const (
	ImportStatic   ImportKind = "import"
	ImportReexport ImportKind = "export"
	ImportDynamic  ImportKind = "dynamic"
	ImportRequire  ImportKind = "require"
)

// Import is one module specifier found in the code.
type Import struct {
	Specifier  string
	Kind       ImportKind
	LineNumber int
}

// Analysis is what the parser learned about one module.
type Analysis struct {
	Imports []Import
	Format  types.Format
}

// Specifiers returns the import specifiers in source order.
func (a *Analysis) Specifiers() []string {
	out := make([]string, 0, len(a.Imports))
	for _, imp := range a.Imports {
		out = append(out, imp.Specifier)
	}
	return out
}

// JavaScriptImportParser extracts imports and the module format from
// JavaScript sources. It is safe for concurrent use.
type JavaScriptImportParser struct {
	parsers sync.Pool
}

// NewJavaScriptImportParser creates a new JavaScript import parser.
func NewJavaScriptImportParser() *JavaScriptImportParser {
	return &JavaScriptImportParser{
		parsers: sync.Pool{New: func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(javascript.GetLanguage())
			return parser
		}},
	}
}

// Analyze parses content and reports its imports and format.
func (p *JavaScriptImportParser) Analyze(ctx context.Context, content []byte) (*Analysis, error) {
	parser := p.parsers.Get().(*sitter.Parser)
	defer p.parsers.Put(parser)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing javascript: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parsing failed")
	}
	defer tree.Close()

	w := walker{content: content}
	w.walk(tree.RootNode())

	a := &Analysis{Imports: w.imports, Format: types.FormatUnknown}
	switch {
	case w.esm:
		a.Format = types.FormatESM
	case w.cjs:
		a.Format = types.FormatCJS
	}
	return a, nil
}

type walker struct {
	content []byte
	imports []Import
	esm     bool
	cjs     bool
}

// walk visits the tree iteratively; minified bundles nest deeply.
func (w *walker) walk(root *sitter.Node) {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}

		switch node.Type() {
		case "import_statement":
			w.esm = true
			w.addSource(node, ImportStatic)
		case "export_statement":
			w.esm = true
			w.addSource(node, ImportReexport)
		case "meta_property":
			// import.meta
			if strings.HasPrefix(w.text(node), "import") {
				w.esm = true
			}
		case "call_expression":
			w.parseCall(node)
		case "member_expression":
			w.parseMember(node)
		}

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, node.Child(i))
		}
	}
}

// addSource records the "from" clause of an import or export statement.
func (w *walker) addSource(node *sitter.Node, kind ImportKind) {
	src := node.ChildByFieldName("source")
	if src == nil || src.Type() != "string" {
		return
	}
	w.add(src, kind)
}

// parseCall handles require("x") and import("x").
func (w *walker) parseCall(node *sitter.Node) {
	fn := node.ChildByFieldName("function")
	args := node.ChildByFieldName("arguments")
	if fn == nil || args == nil {
		return
	}

	var kind ImportKind
	switch {
	case fn.Type() == "import":
		kind = ImportDynamic
	case fn.Type() == "identifier" && w.text(fn) == "require":
		kind = ImportRequire
		w.cjs = true
	default:
		return
	}

	// only a literal first argument names a module
	if args.NamedChildCount() == 0 {
		return
	}
	if arg := args.NamedChild(0); arg.Type() == "string" {
		w.add(arg, kind)
	}
}

// parseMember flags module.exports and exports.x as CommonJS.
func (w *walker) parseMember(node *sitter.Node) {
	obj := node.ChildByFieldName("object")
	prop := node.ChildByFieldName("property")
	if obj == nil || prop == nil || obj.Type() != "identifier" {
		return
	}
	switch w.text(obj) {
	case "module":
		if w.text(prop) == "exports" {
			w.cjs = true
		}
	case "exports":
		w.cjs = true
	}
}

func (w *walker) add(str *sitter.Node, kind ImportKind) {
	spec := cleanModulePath(w.text(str))
	if spec == "" {
		return
	}
	w.imports = append(w.imports, Import{
		Specifier:  spec,
		Kind:       kind,
		LineNumber: int(str.StartPoint().Row) + 1,
	})
}

// text extracts the text content of a node from the source.
func (w *walker) text(node *sitter.Node) string {
	start, end := node.StartByte(), node.EndByte()
	if start > end || end > uint32(len(w.content)) {
		return ""
	}
	return string(w.content[start:end])
}

// cleanModulePath removes quotes from module path.
func cleanModulePath(path string) string {
	return strings.Trim(path, "\"'")
}

// IsRelative reports whether spec is a path relative to the importing module,
// as opposed to a bare package name or a URL.
func IsRelative(spec string) bool {
	return spec == "." || spec == ".." ||
		strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}
