package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// columnPadding is the space kept between columns.
const columnPadding = 3

// PlainTableWriter renders kubectl-style plain tables without box-drawing
// characters, so output stays easy to grep and copy.
type PlainTableWriter struct {
	headers     []string
	rows        [][]string
	showHeaders bool
	output      io.Writer
}

// NewPlainTableWriter creates a plain table writer. Headers are shown by
// default; use SetNoHeaders(true) to suppress them.
func NewPlainTableWriter(output io.Writer) *PlainTableWriter {
	return &PlainTableWriter{
		showHeaders: true,
		output:      output,
	}
}

// SetHeaders sets the column headers. They are rendered in uppercase.
func (w *PlainTableWriter) SetHeaders(headers []string) {
	w.headers = append([]string(nil), headers...)
}

// SetNoHeaders controls whether to suppress the header row.
func (w *PlainTableWriter) SetNoHeaders(noHeaders bool) {
	w.showHeaders = !noHeaders
}

// AppendRow adds a row, padded or cut to the number of headers.
func (w *PlainTableWriter) AppendRow(row []string) {
	normalized := make([]string, len(w.headers))
	copy(normalized, row)
	w.rows = append(w.rows, normalized)
}

// Render writes the table.
func (w *PlainTableWriter) Render() {
	if len(w.headers) == 0 {
		return
	}
	if len(w.rows) == 0 && !w.showHeaders {
		return
	}

	t := table.NewWriter()
	t.SetStyle(plainStyle())
	if w.showHeaders {
		t.AppendHeader(toTableRow(w.headers))
	}
	for _, row := range w.rows {
		t.AppendRow(toTableRow(row))
	}

	for _, line := range strings.Split(t.Render(), "\n") {
		fmt.Fprintln(w.output, strings.TrimRight(line, " "))
	}
}

func plainStyle() table.Style {
	style := table.StyleDefault
	style.Name = "StylePlain"
	style.Box.PaddingLeft = ""
	style.Box.PaddingRight = strings.Repeat(" ", columnPadding)
	style.Options = table.Options{}
	style.Format.Header = text.FormatUpper
	return style
}

func toTableRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
