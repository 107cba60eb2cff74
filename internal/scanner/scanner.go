// Package scanner walks build output directories. It respects .gbrignore files
// with gitignore-style patterns and classifies files by extension.
package scanner

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileInfo represents information about a discovered file.
type FileInfo struct {
	Path     string // Relative path from root, slash separated
	FullPath string // Absolute path
	Kind     Kind
	Size     int64
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	FollowSymlinks  bool     // Follow file symlinks that stay within root
	DefaultExcludes []string // Directory names that are never entered
	IgnoreFileName  string   // Name of the ignore file (default: .gbrignore)

	// Kinds limits the result to these kinds. Empty means all files.
	Kinds []Kind
}

// DefaultOptions returns scanner options for walking a build output directory.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		FollowSymlinks: false,
		IgnoreFileName: ".gbrignore",
		DefaultExcludes: []string{
			"node_modules",
			".git",
			".gbr",
			".cache",
		},
	}
}

// Scanner provides file tree scanning capabilities.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	return &Scanner{opts: opts}
}

// Scan recursively scans the directory at root and returns the files found in
// walk order.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("reading root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	ignore, err := s.loadIgnorePatterns(absRoot, "")
	if err != nil {
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}

	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped, the walk goes on
			return nil
		}
		relPath, err := filepath.Rel(absRoot, path)
		if err != nil || relPath == "." {
			return nil
		}
		rel := filepath.ToSlash(relPath)

		if s.opts.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if s.isDefaultExcluded(d.Name()) || ignore.MatchesDir(rel) {
				return filepath.SkipDir
			}
			nested, err := s.loadIgnorePatterns(path, rel)
			if err == nil {
				ignore = append(ignore, nested...)
			}
			return nil
		}

		if ignore.Matches(rel) {
			return nil
		}

		kind := DetectKind(filepath.Ext(path))
		if !s.wantKind(kind) {
			return nil
		}

		fi, err := s.fileInfo(absRoot, path, d)
		if err != nil || fi == nil {
			return nil
		}
		files = append(files, FileInfo{
			Path:     rel,
			FullPath: path,
			Kind:     kind,
			Size:     fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return files, nil
}

// fileInfo stats a regular file or, when enabled, a symlink to a file within
// root. It returns nil for anything else.
func (s *Scanner) fileInfo(absRoot, path string, d fs.DirEntry) (fs.FileInfo, error) {
	if d.Type()&fs.ModeSymlink == 0 {
		if !d.Type().IsRegular() {
			return nil, nil
		}
		return d.Info()
	}
	if !s.opts.FollowSymlinks {
		return nil, nil
	}

	realPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, err
	}
	realAbs, err := filepath.Abs(realPath)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(realAbs, absRoot+string(filepath.Separator)) {
		return nil, nil
	}
	target, err := os.Stat(realAbs)
	if err != nil || target.IsDir() {
		return nil, err
	}
	return target, nil
}

func (s *Scanner) wantKind(k Kind) bool {
	if len(s.opts.Kinds) == 0 {
		return true
	}
	for _, want := range s.opts.Kinds {
		if want == k {
			return true
		}
	}
	return false
}

// isDefaultExcluded checks if the name matches default exclusion patterns.
func (s *Scanner) isDefaultExcluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// loadIgnorePatterns loads the ignore file in dir. Patterns of nested files
// are rebased onto the directory they live in.
func (s *Scanner) loadIgnorePatterns(dir, rel string) (PatternSet, error) {
	if s.opts.IgnoreFileName == "" {
		return nil, nil
	}
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var lines []string
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if rel != "" && line != "" && !strings.HasPrefix(line, "#") {
			line = rebase(rel, line)
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return CompilePatterns(lines), nil
}

func rebase(dir, line string) string {
	neg := ""
	if strings.HasPrefix(line, "!") {
		neg, line = "!", line[1:]
	}
	if !strings.Contains(strings.TrimSuffix(line, "/"), "/") {
		line = "**/" + line
	}
	return neg + dir + "/" + strings.TrimPrefix(line, "/")
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}

// ScanAssets scans root for measurable assets (scripts and stylesheets).
func ScanAssets(root string) ([]FileInfo, error) {
	opts := DefaultOptions()
	opts.Kinds = []Kind{KindScript, KindStyle}
	return New(opts).Scan(root)
}
