package sizes

import (
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// Compressor measures the compressed size of a byte slice.
type Compressor interface {
	Name() string
	Size(data []byte) (int, error)
}

// Func adapts a plain function to the Compressor interface.
type Func struct {
	ID string
	Fn func([]byte) (int, error)
}

func (f Func) Name() string { return f.ID }

func (f Func) Size(data []byte) (int, error) { return f.Fn(data) }

// Gzip measures gzip output at the given level.
type Gzip struct {
	Level int
}

// NewGzip returns a gzip compressor at the best compression level, which is
// what static hosts typically serve.
func NewGzip() Gzip {
	return Gzip{Level: gzip.BestCompression}
}

func (Gzip) Name() string { return "gzip" }

func (c Gzip) Size(data []byte) (int, error) {
	var n countingWriter
	w, err := gzip.NewWriterLevel(&n, c.Level)
	if err != nil {
		return 0, fmt.Errorf("creating gzip writer: %w", err)
	}
	return finish(w, data, &n)
}

// Brotli measures brotli output at the given quality.
type Brotli struct {
	Quality int
}

// NewBrotli returns a brotli compressor at the best quality.
func NewBrotli() Brotli {
	return Brotli{Quality: brotli.BestCompression}
}

func (Brotli) Name() string { return "brotli" }

func (c Brotli) Size(data []byte) (int, error) {
	var n countingWriter
	w := brotli.NewWriterLevel(&n, c.Quality)
	return finish(w, data, &n)
}

func finish(w io.WriteCloser, data []byte, n *countingWriter) (int, error) {
	if _, err := w.Write(data); err != nil {
		return 0, fmt.Errorf("compressing: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("flushing compressor: %w", err)
	}
	return int(*n), nil
}

// countingWriter discards output and counts it.
type countingWriter int64

func (c *countingWriter) Write(p []byte) (int, error) {
	*c += countingWriter(len(p))
	return len(p), nil
}
