package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
)

// Format is an output format of the report.
type Format string

const (
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ParseFormat parses an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatHTML:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want json or html)", s)
	}
}

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html.tmpl"))

type pageData struct {
	Title string
	Data  template.JS
}

// Encode writes r to w in the given format. JSON output is indented with keys
// sorted, so equal reports encode to identical bytes.
func Encode(w io.Writer, r *Report, f Format) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	switch f {
	case FormatJSON, "":
		data = append(data, '\n')
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		return nil
	case FormatHTML:
		var buf bytes.Buffer
		err := pageTemplate.Execute(&buf, pageData{
			Title: "Bundle report",
			// json.Marshal escapes <, > and &, so the payload cannot close
			// the script element.
			Data: template.JS(data),
		})
		if err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}
		if _, err := buf.WriteTo(w); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}
