package sourcemap

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ReadFor returns the source map of the compiled file at path with content
// code, reading linked maps from disk. It returns nil and no error when the
// file has no map.
func ReadFor(path string, code []byte) ([]byte, error) {
	return Locate(path, code, os.ReadFile)
}

// Locate finds the source map of a compiled file through read. The
// sourceMappingURL comment wins; without one a sibling "<path>.map" is tried.
// read must report fs.ErrNotExist for missing files.
func Locate(path string, code []byte, read func(string) ([]byte, error)) ([]byte, error) {
	ref, ok := FindURL(code)
	if !ok {
		data, err := read(path + ".map")
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return data, err
	}

	if IsDataURL(ref) {
		return DecodeDataURL(ref)
	}
	mapPath, ok := LocalPath(path, ref)
	if !ok {
		return nil, nil
	}
	data, err := read(mapPath)
	if err != nil {
		return nil, fmt.Errorf("reading linked source map: %w", err)
	}
	return data, nil
}

// LocalPath resolves a sourceMappingURL against the directory of the file it
// was found in. Remote URLs cannot be followed.
func LocalPath(path, ref string) (string, bool) {
	if strings.Contains(ref, "://") {
		return "", false
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if unescaped, err := url.PathUnescape(ref); err == nil {
		ref = unescaped
	}
	if ref == "" {
		return "", false
	}
	if filepath.IsAbs(ref) {
		return ref, true
	}
	return filepath.Join(filepath.Dir(path), filepath.FromSlash(ref)), true
}
