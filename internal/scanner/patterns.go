package scanner

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Pattern is a single gitignore-style pattern.
type Pattern struct {
	raw        string
	isNegation bool
	isDir      bool
	anchored   bool
	glob       string
	valid      bool
}

// ParsePattern parses a gitignore-style pattern. A pattern containing a slash
// other than a trailing one is anchored to the root; otherwise it matches at
// any depth.
func ParsePattern(pattern string) Pattern {
	p := Pattern{raw: pattern}

	if strings.HasPrefix(pattern, "!") {
		p.isNegation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		p.isDir = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		p.anchored = true
		pattern = pattern[1:]
	} else if strings.Contains(pattern, "/") {
		p.anchored = true
	}

	p.glob = pattern
	p.valid = doublestar.ValidatePattern(pattern)
	return p
}

// String returns the pattern as written.
func (p Pattern) String() string {
	return p.raw
}

// IsNegation reports whether the pattern starts with "!".
func (p Pattern) IsNegation() bool {
	return p.isNegation
}

// Match reports whether the slash-separated relative file path matches. A path
// below a matching directory matches too.
func (p Pattern) Match(rel string) bool {
	return p.match(rel, false)
}

// MatchDir is Match for a directory path.
func (p Pattern) MatchDir(rel string) bool {
	return p.match(rel, true)
}

func (p Pattern) match(rel string, dir bool) bool {
	if !p.valid {
		return false
	}
	rel = strings.Trim(strings.ReplaceAll(rel, "\\", "/"), "/")
	if rel == "" {
		return false
	}
	parts := strings.Split(rel, "/")

	if p.anchored {
		return p.matchPrefix(parts, dir)
	}
	for start := 0; start < len(parts); start++ {
		if p.matchPrefix(parts[start:], dir) {
			return true
		}
	}
	return false
}

// matchPrefix matches the pattern against a leading run of parts. A directory
// pattern never matches a file path in full.
func (p Pattern) matchPrefix(parts []string, dir bool) bool {
	for n := 1; n <= len(parts); n++ {
		if p.isDir && !dir && n == len(parts) {
			break
		}
		if ok, _ := doublestar.Match(p.glob, strings.Join(parts[:n], "/")); ok {
			return true
		}
	}
	return false
}

// PatternSet is an ordered list of patterns with gitignore semantics: the last
// matching pattern decides, and negations re-include.
type PatternSet []Pattern

// CompilePatterns parses patterns, skipping blanks and comments.
func CompilePatterns(lines []string) PatternSet {
	var set PatternSet
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set = append(set, ParsePattern(line))
	}
	return set
}

// Matches reports whether the file path rel is selected by the set.
func (s PatternSet) Matches(rel string) bool {
	return s.matches(rel, false)
}

// MatchesDir reports whether the directory path rel is selected by the set.
func (s PatternSet) MatchesDir(rel string) bool {
	return s.matches(rel, true)
}

func (s PatternSet) matches(rel string, dir bool) bool {
	matched := false
	for _, p := range s {
		if p.match(rel, dir) {
			matched = !p.IsNegation()
		}
	}
	return matched
}

// Filter selects paths by include and exclude pattern sets. An empty include
// set selects everything; exclude vetoes after include.
type Filter struct {
	Include PatternSet
	Exclude PatternSet
}

// NewFilter compiles include and exclude patterns into a Filter.
func NewFilter(include, exclude []string) Filter {
	return Filter{
		Include: CompilePatterns(include),
		Exclude: CompilePatterns(exclude),
	}
}

// Allow reports whether rel passes the filter.
func (f Filter) Allow(rel string) bool {
	if len(f.Include) > 0 && !f.Include.Matches(rel) {
		return false
	}
	return !f.Exclude.Matches(rel)
}
