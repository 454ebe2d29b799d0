package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#D97706") // Tape amber
	accentColor  = lipgloss.Color("#00AAAA") // Cyan
	mutedColor   = lipgloss.Color("#888888") // Gray
	textColor    = lipgloss.Color("#FFFFFF") // White
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A40000"))

	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)
)

// PrintVersion prints version information
func PrintVersion(version string) {
	fmt.Println(TitleStyle.Render("dlay"))
	fmt.Printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Println()
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// KeyValue is one row of a key/value listing.
type KeyValue struct {
	Key   string
	Value string
}

// PrintKeyValues writes aligned key/value rows under an optional title.
func PrintKeyValues(w io.Writer, title string, rows []KeyValue) {
	if title != "" {
		fmt.Fprintln(w, TitleStyle.Render(title))
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row.Key))
	}

	for _, row := range rows {
		key := fmt.Sprintf("%-*s", width+1, row.Key+":")
		fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render(key), ValueStyle.Render(row.Value))
	}
}

// PrintTable writes a column-aligned table. Rows shorter than the header
// are padded with empty cells.
func PrintTable(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i := range min(len(row), len(widths)) {
			widths[i] = max(widths[i], len(row[i]))
		}
	}

	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = fmt.Sprintf("%*s", widths[i], h)
	}

	fmt.Fprintln(w, "  "+HeaderStyle.Render(strings.Join(cells, "  ")))

	for _, row := range rows {
		for i := range cells {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}

			cells[i] = fmt.Sprintf("%*s", widths[i], cell)
		}

		fmt.Fprintln(w, "  "+ValueStyle.Render(strings.Join(cells, "  ")))
	}
}
