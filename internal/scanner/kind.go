package scanner

import (
	"strings"
)

// Kind classifies a file in a build output directory.
type Kind string

const (
	KindScript    Kind = "script"
	KindStyle     Kind = "style"
	KindSourceMap Kind = "sourcemap"
	KindOther     Kind = "other"
)

var kindMap = map[string]Kind{
	".js":  KindScript,
	".mjs": KindScript,
	".cjs": KindScript,
	".css": KindStyle,
	".map": KindSourceMap,
}

// DetectKind returns the Kind for a file extension (with or without the dot).
func DetectKind(ext string) Kind {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if k, ok := kindMap[ext]; ok {
		return k
	}
	return KindOther
}

// IsAsset reports whether files of this kind are measured as output assets.
func (k Kind) IsAsset() bool {
	return k == KindScript || k == KindStyle
}
