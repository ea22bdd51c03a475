package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// columnGap separates table columns in list output.
const columnGap = "  "

// writeTable prints headers and rows as left-aligned columns. Widths are
// measured in terminal cells with styling escapes ignored, so badge colors
// from styleStatus do not skew the layout. The last column is never padded.
func writeTable(out io.Writer, headers []string, rows [][]string) error {
	all := make([][]string, 0, len(rows)+1)
	if len(headers) > 0 {
		all = append(all, headers)
	}
	all = append(all, rows...)

	var widths []int
	for _, row := range all {
		for len(widths) < len(row) {
			widths = append(widths, 0)
		}
		for i, value := range row {
			widths[i] = max(widths[i], lipgloss.Width(value))
		}
	}
	if len(widths) == 0 {
		return nil
	}

	var b strings.Builder
	last := len(widths) - 1
	for _, row := range all {
		for i := range widths {
			var value string
			if i < len(row) {
				value = row[i]
			}
			b.WriteString(value)
			if i < last {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(value)))
				b.WriteString(columnGap)
			}
		}
		b.WriteByte('\n')
	}
	_, err := fmt.Fprint(out, b.String())
	return err
}

// truncate cuts long workflow names and request data down to width cells.
func truncate(value string, width int) string {
	if width > 0 && runewidth.StringWidth(value) > width {
		return runewidth.Truncate(value, width, "…")
	}
	return value
}
