// Package sourcemap parses source map v3 documents (including index maps) and
// measures how many bytes of generated code each original source accounts for.
package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrMalformed is wrapped by every parse error.
var ErrMalformed = errors.New("malformed source map")

// Map is a parsed source map. Index maps are flattened into a single map on
// parse.
type Map struct {
	Version    int
	File       string
	SourceRoot string

	// Sources lists the sources as written, with each section's sourceRoot
	// already applied for index maps. Null entries are kept as "".
	Sources []string

	lines [][]Segment
}

type rawMap struct {
	Version    int             `json:"version"`
	File       string          `json:"file"`
	SourceRoot string          `json:"sourceRoot"`
	Sources    []*string       `json:"sources"`
	Names      json.RawMessage `json:"names"`
	Mappings   string          `json:"mappings"`
	Sections   []rawSection    `json:"sections"`
}

type rawSection struct {
	Offset struct {
		Line   int `json:"line"`
		Column int `json:"column"`
	} `json:"offset"`
	Map json.RawMessage `json:"map"`
	URL string          `json:"url"`
}

// Parse decodes a source map document and validates its mappings.
func Parse(data []byte) (*Map, error) {
	return parse(data, 0)
}

func parse(data []byte, depth int) (*Map, error) {
	if depth > 4 {
		return nil, fmt.Errorf("%w: index maps nested too deeply", ErrMalformed)
	}

	var raw rawMap
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Version != 3 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, raw.Version)
	}

	if raw.Sections != nil {
		return parseIndexMap(&raw, depth)
	}

	m := &Map{
		Version:    raw.Version,
		File:       raw.File,
		SourceRoot: raw.SourceRoot,
		Sources:    make([]string, len(raw.Sources)),
	}
	for i, s := range raw.Sources {
		if s != nil {
			m.Sources[i] = *s
		}
	}

	lines, err := decodeMappings(raw.Mappings, len(m.Sources))
	if err != nil {
		return nil, err
	}
	m.lines = lines
	return m, nil
}

func parseIndexMap(raw *rawMap, depth int) (*Map, error) {
	m := &Map{
		Version: raw.Version,
		File:    raw.File,
	}

	prevLine, prevCol := -1, -1
	for i, sec := range raw.Sections {
		if sec.URL != "" || len(sec.Map) == 0 {
			return nil, fmt.Errorf("%w: section %d has no inline map", ErrMalformed, i)
		}
		line, col := sec.Offset.Line, sec.Offset.Column
		if line < 0 || col < 0 || line < prevLine || (line == prevLine && col < prevCol) {
			return nil, fmt.Errorf("%w: section %d is out of order", ErrMalformed, i)
		}
		prevLine, prevCol = line, col

		sub, err := parse(sec.Map, depth+1)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}

		base := len(m.Sources)
		for _, s := range sub.Sources {
			m.Sources = append(m.Sources, joinSourceRoot(sub.SourceRoot, s))
		}

		for li, segs := range sub.lines {
			target := line + li
			for len(m.lines) <= target {
				m.lines = append(m.lines, nil)
			}
			for _, seg := range segs {
				if li == 0 {
					seg.GeneratedColumn += col
				}
				if seg.HasSource {
					seg.SourceIndex += base
				}
				m.lines[target] = append(m.lines[target], seg)
			}
		}
	}
	return m, nil
}

// ResolvedSources returns the sources with sourceRoot applied.
func (m *Map) ResolvedSources() []string {
	out := make([]string, len(m.Sources))
	for i, s := range m.Sources {
		out[i] = joinSourceRoot(m.SourceRoot, s)
	}
	return out
}

// MappedBytes returns, for every source index, the number of bytes of code
// covered by segments pointing at that source. A segment spans from its
// column to the next segment's column or to the end of the line; unmapped
// spans and line terminators are not counted.
func (m *Map) MappedBytes(code []byte) []int {
	counts := make([]int, len(m.Sources))

	lineStart := 0
	for li := 0; lineStart <= len(code); li++ {
		end := lineStart
		for end < len(code) && code[end] != '\n' {
			end++
		}
		line := code[lineStart:end]

		if li < len(m.lines) && len(m.lines[li]) > 0 {
			countLine(line, m.lines[li], counts)
		}

		if end == len(code) {
			break
		}
		lineStart = end + 1
	}
	return counts
}

func countLine(line []byte, segs []Segment, counts []int) {
	sorted := segs
	if !sort.SliceIsSorted(segs, func(i, j int) bool {
		return segs[i].GeneratedColumn < segs[j].GeneratedColumn
	}) {
		sorted = append([]Segment(nil), segs...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].GeneratedColumn < sorted[j].GeneratedColumn
		})
	}

	w := columnWalker{line: line}
	start := w.seek(sorted[0].GeneratedColumn)
	for k, seg := range sorted {
		end := len(line)
		if k+1 < len(sorted) {
			end = w.seek(sorted[k+1].GeneratedColumn)
		}
		if seg.HasSource && end > start {
			counts[seg.SourceIndex] += end - start
		}
		start = end
	}
}

// columnWalker converts ascending UTF-16 columns into byte offsets.
type columnWalker struct {
	line  []byte
	pos   int
	units int
}

func (w *columnWalker) seek(col int) int {
	for w.units < col && w.pos < len(w.line) {
		r, size := utf8.DecodeRune(w.line[w.pos:])
		w.pos += size
		if r >= 0x10000 {
			w.units += 2
		} else {
			w.units++
		}
	}
	return w.pos
}

func joinSourceRoot(root, source string) string {
	if root == "" || source == "" || strings.HasPrefix(source, "/") || strings.Contains(source, "://") {
		return source
	}
	return strings.TrimSuffix(root, "/") + "/" + source
}

var urlPattern = regexp.MustCompile(`(?m)(?://|/\*)\s*[#@]\s*sourceMappingURL=([^\s'"*]+)\s*(?:\*/)?\s*$`)

// FindURL returns the value of the last sourceMappingURL comment in code.
func FindURL(code []byte) (string, bool) {
	matches := urlPattern.FindAllSubmatch(code, -1)
	if len(matches) == 0 {
		return "", false
	}
	return string(matches[len(matches)-1][1]), true
}

// IsDataURL reports whether u carries the map inline.
func IsDataURL(u string) bool {
	return strings.HasPrefix(u, "data:")
}

// DecodeDataURL returns the payload of an inline data: URL.
func DecodeDataURL(u string) ([]byte, error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("data url has no payload")
	}

	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// some tools omit padding
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return nil, fmt.Errorf("decoding base64 payload: %w", err)
		}
		return data, nil
	}

	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return []byte(s), nil
}
