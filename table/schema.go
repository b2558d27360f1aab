package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SampleRows is the number of rows shown in a schema context.
const SampleRows = 5

// SchemaContext describes t for the completion service: every column with
// its position and spreadsheet letter, followed by a markdown sample.
//
//	Columns (Index: Name [Excel Ref]):
//	- 0: region [A]
//	- 1: amount [B]
//
//	Sample Data:
//	| | region | amount |
//	...
func SchemaContext(t *Table) string {
	var b strings.Builder
	b.WriteString("Columns (Index: Name [Excel Ref]):")
	for i, c := range t.Columns {
		fmt.Fprintf(&b, "\n- %d: %s [%s]", i, c, ColumnLetter(i))
	}
	b.WriteString("\n\nSample Data:\n")
	b.WriteString(Markdown(t.Head(SampleRows)))
	return b.String()
}

// ColumnLetter returns the spreadsheet letter for a zero-based column index
// (0 → A, 25 → Z, 26 → AA).
func ColumnLetter(i int) string {
	name, err := excelize.ColumnNumberToName(i + 1)
	if err != nil {
		return "?"
	}
	return name
}

// Markdown renders t as a pipe table with a leading row-index column.
func Markdown(t *Table) string {
	var b strings.Builder
	b.WriteString("| |")
	for _, c := range t.Columns {
		b.WriteString(" " + escapeCell(c) + " |")
	}
	b.WriteString("\n|---|")
	for range t.Columns {
		b.WriteString("---|")
	}
	for i, r := range t.Rows {
		b.WriteString("\n| " + strconv.Itoa(i) + " |")
		for _, cell := range r {
			b.WriteString(" " + escapeCell(cell) + " |")
		}
	}
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// EncodeCSV writes t as CSV with a header row.
func EncodeCSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
