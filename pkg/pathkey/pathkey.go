// Package pathkey turns module identifiers reported by different build tools into
// canonical, root-relative keys so that facts about the same file merge.
package pathkey

import (
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the per-run cache of normalized identifiers.
const DefaultCacheSize = 8192

// Normalizer canonicalizes identifiers relative to a project root.
// It is safe for concurrent use.
type Normalizer struct {
	root  string
	cache *lru.Cache[string, string]
}

// New creates a Normalizer for the given root directory. An empty root keeps
// absolute identifiers absolute.
func New(root string) *Normalizer {
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, string](DefaultCacheSize)
	return &Normalizer{
		root:  cleanRoot(root),
		cache: cache,
	}
}

// Root returns the canonical root the normalizer resolves against.
func (n *Normalizer) Root() string {
	return n.root
}

// Reset drops every cached normalization. Call it between report runs.
func (n *Normalizer) Reset() {
	n.cache.Purge()
}

// Normalize returns the canonical key for id. It is pure and idempotent:
// Normalize(Normalize(x)) == Normalize(x), and path separators do not matter.
func (n *Normalizer) Normalize(id string) string {
	if key, ok := n.cache.Get(id); ok {
		return key
	}
	key := n.normalize(id)
	n.cache.Add(id, key)
	return key
}

// Resolve resolves a source-map source against the directory of the compiled
// module that lists it. It reports false when the source cannot be turned into
// a usable key.
func (n *Normalizer) Resolve(compiledKey, source string) (string, bool) {
	src := stripToolPrefix(source)
	if src == "" {
		return "", false
	}
	src = toSlash(src)

	var key string
	if isAbsolute(src) {
		key = n.Normalize(src)
	} else {
		key = n.Normalize(path.Join(path.Dir(compiledKey), src))
	}
	if key == "" || key == ".." || strings.HasSuffix(key, "/..") {
		return "", false
	}
	return key, true
}

// maxPasses bounds the passes normalize makes to reach a fixed point.
const maxPasses = 8

func (n *Normalizer) normalize(id string) string {
	key := n.normalizeOnce(id)
	for i := 0; i < maxPasses; i++ {
		next := n.normalizeOnce(key)
		if next == key {
			break
		}
		key = next
	}
	return key
}

func (n *Normalizer) normalizeOnce(id string) string {
	p := toSlash(stripToolPrefix(id))
	if p == "" {
		return ""
	}

	if isAbsolute(p) {
		p = relativeTo(n.root, path.Clean(p))
	}

	p = path.Clean(p)
	p = strings.TrimPrefix(p, "./")
	if p == "." {
		return ""
	}
	return p
}

// stripToolPrefix removes the tool-specific decorations bundlers put on ids:
// rollup's NUL marker, file:// and webpack:// URLs, and query or fragment
// suffixes.
func stripToolPrefix(id string) string {
	for {
		next := stripOnce(id)
		if next == id {
			return id
		}
		id = next
	}
}

func stripOnce(id string) string {
	id = strings.TrimPrefix(strings.TrimSpace(id), "\x00")

	switch {
	case strings.HasPrefix(id, "file://"):
		id = strings.TrimPrefix(id, "file://")
		// file:///C:/x → C:/x
		if len(id) > 3 && id[0] == '/' && id[2] == ':' {
			id = id[1:]
		}
	case strings.HasPrefix(id, "webpack://"):
		id = strings.TrimPrefix(id, "webpack://")
		// webpack://<namespace>/./src/a.js → ./src/a.js
		if i := strings.IndexByte(id, '/'); i >= 0 {
			id = id[i+1:]
		} else {
			id = ""
		}
	}

	if i := strings.IndexAny(id, "?#"); i >= 0 {
		id = id[:i]
	}
	return id
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

func isAbsolute(p string) bool {
	return strings.HasPrefix(p, "/") || hasDriveLetter(p)
}

func hasDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func cleanRoot(root string) string {
	if root == "" {
		return ""
	}
	r := path.Clean(toSlash(root))
	if hasDriveLetter(r) {
		r = strings.ToUpper(r[:1]) + r[1:]
	}
	return r
}

// relativeTo expresses the absolute path p relative to root, climbing with
// "../" when p lies outside it. Paths on another drive stay absolute.
func relativeTo(root, p string) string {
	if root == "" {
		return p
	}
	if hasDriveLetter(p) {
		p = strings.ToUpper(p[:1]) + p[1:]
	}
	if p == root {
		return "."
	}
	if rest, ok := strings.CutPrefix(p, strings.TrimSuffix(root, "/")+"/"); ok {
		return rest
	}
	if hasDriveLetter(root) != hasDriveLetter(p) || (hasDriveLetter(p) && root[0] != p[0]) {
		return p
	}

	rootParts := splitAbs(root)
	pathParts := splitAbs(p)
	common := 0
	for common < len(rootParts) && common < len(pathParts) && rootParts[common] == pathParts[common] {
		common++
	}

	parts := make([]string, 0, len(rootParts)-common+len(pathParts)-common)
	for i := common; i < len(rootParts); i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, pathParts[common:]...)
	return strings.Join(parts, "/")
}

func splitAbs(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
