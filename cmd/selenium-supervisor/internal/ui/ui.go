// Package ui renders operator-facing console output for selenium-supervisor
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// UI writes styled output to a pair of writers.
type UI struct {
	out io.Writer
	err io.Writer
}

// New creates a UI on stdout and stderr.
func New() *UI {
	return NewWithWriters(os.Stdout, os.Stderr)
}

// NewWithWriters creates a UI on the given writers.
func NewWithWriters(out, err io.Writer) *UI {
	return &UI{out: out, err: err}
}

// Success prints a success line.
func (ui *UI) Success(msg string) {
	fmt.Fprintln(ui.out, successStyle.Render("✓ "+msg))
}

// Error prints an error line to the error writer.
func (ui *UI) Error(msg string) {
	fmt.Fprintln(ui.err, errorStyle.Render("✗ "+msg))
}

// Warning prints a warning line.
func (ui *UI) Warning(msg string) {
	fmt.Fprintln(ui.out, warningStyle.Render("⚠ "+msg))
}

// Info prints an informational line.
func (ui *UI) Info(msg string) {
	fmt.Fprintln(ui.out, infoStyle.Render("ℹ "+msg))
}

// Header prints a section header.
func (ui *UI) Header(title string) {
	fmt.Fprintln(ui.out, headerStyle.Render(title))
}

// KeyValue prints an indented key and value. Empty values print as "-".
func (ui *UI) KeyValue(key, value string) {
	if value == "" {
		value = subtleStyle.Render("-")
	}
	fmt.Fprintf(ui.out, "  %s: %s\n", subtleStyle.Render(key), value)
}

// Status renders a health status word in the color of its severity.
func Status(status string) string {
	switch status {
	case "healthy":
		return successStyle.Render(status)
	case "recovering":
		return warningStyle.Render(status)
	default:
		return errorStyle.Render(status)
	}
}

// Table collects rows and prints them with aligned columns.
type Table struct {
	ui      *UI
	headers []string
	rows    [][]string
}

// NewTable creates a table with the given headers.
func (ui *UI) NewTable(headers ...string) *Table {
	return &Table{ui: ui, headers: headers}
}

// AddRow appends a row. Missing cells render empty.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render prints the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i := 0; i < len(widths) && i < len(row); i++ {
			if len(row[i]) > widths[i] {
				widths[i] = len(row[i])
			}
		}
	}

	line := func(cells []string) string {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = cell + strings.Repeat(" ", widths[i]-len(cell))
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	fmt.Fprintln(t.ui.out, headerStyle.Render(line(t.headers)))
	for _, row := range t.rows {
		fmt.Fprintln(t.ui.out, line(row))
	}
}
