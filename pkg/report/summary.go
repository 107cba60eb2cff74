package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// WriteSummary prints a table of the n largest inputs followed by the asset
// totals. Compressed columns appear for every compressor the report carries.
func WriteSummary(w io.Writer, r *Report, n int) {
	compressors := compressorNames(r)

	table := tablewriter.NewWriter(w)
	header := append([]string{"Module", "Size"}, compressors...)
	header = append(header, "Part of")
	table.SetHeader(header)

	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	var rows [][]string
	for _, row := range r.Largest(n) {
		line := []string{row.Key, humanize.Bytes(uint64(row.Bytes))}
		for _, c := range compressors {
			line = append(line, compressedCell(row.Compressed, c))
		}
		owner := "-"
		if row.BelongsTo != nil {
			owner = *row.BelongsTo
		}
		if row.Unreachable {
			owner += " (unreachable)"
		}
		rows = append(rows, append(line, owner))
	}
	table.AppendBulk(rows)
	table.Render()

	fmt.Fprintf(w, "\n%d %s, %s total", len(r.Assets), plural(len(r.Assets), "asset"), humanize.Bytes(uint64(r.TotalBytes())))
	for _, c := range compressors {
		total := 0
		for _, a := range r.Assets {
			total += r.Inputs[a].Compressed[c]
		}
		fmt.Fprintf(w, ", %s %s", humanize.Bytes(uint64(total)), c)
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, ", %d %s", len(r.Warnings), plural(len(r.Warnings), "warning"))
	}
	fmt.Fprintln(w)
}

func compressorNames(r *Report) []string {
	seen := make(map[string]bool)
	for _, a := range r.Assets {
		for name := range r.Inputs[a].Compressed {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func compressedCell(m map[string]int, name string) string {
	v, ok := m[name]
	if !ok {
		return "-"
	}
	return humanize.Bytes(uint64(v))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
