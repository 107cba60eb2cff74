// Package types defines the core data structures shared by the attribution engine
// and the build-tool adapters that feed it.
package types

import (
	"errors"
	"strings"
)

// ErrMissingOutput is returned when a build pass produced no assets and no
// asset list was recorded by a previous pass.
var ErrMissingOutput = errors.New("no output assets were reported")

// Format is the module format of a compiled unit.
type Format string

const (
	FormatESM     Format = "esm"
	FormatCJS     Format = "cjs"
	FormatUnknown Format = "unknown"
)

// ParseFormat maps a tool-reported format tag onto a Format.
// Anything unrecognized becomes FormatUnknown.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "esm", "es", "module", "esmodule", "es6":
		return FormatESM
	case "cjs", "commonjs", "commonjs2":
		return FormatCJS
	default:
		return FormatUnknown
	}
}

// Known reports whether the format carries information.
func (f Format) Known() bool {
	return f == FormatESM || f == FormatCJS
}

// ModuleFacts are the raw facts an adapter knows about one compiled module.
type ModuleFacts struct {
	// Key is the module identifier as the tool reports it (absolute path,
	// relative path or tool-native id).
	Key     string
	Bytes   int
	Format  Format
	Imports []string

	// SourceMap is the raw source map payload, if any.
	SourceMap []byte

	// SourceMapSources can be set instead of SourceMap when the adapter
	// has already read the sources list.
	SourceMapSources []string

	// SourceWeights optionally weighs SourceMapSources, one entry per
	// source, for tools that report per-input byte counts.
	SourceWeights []int

	// Code is the compiled content. When present together with SourceMap
	// it enables range-based size distribution.
	Code []byte
}

// WarningKind classifies a non-fatal problem found while assembling a report.
type WarningKind string

const (
	WarnUnresolvedAttribution WarningKind = "unresolved-attribution"
	WarnMalformedSourceMap    WarningKind = "malformed-source-map"
)

// Warning is a non-fatal problem attached to a report.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Key     string      `json:"key"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return string(w.Kind) + " " + w.Key + ": " + w.Message
}
