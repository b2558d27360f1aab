// Package table holds the in-memory tabular representation used by the
// transform stream: parsing uploads, describing schemas to the completion
// service, previewing rows and encoding results.
package table

import (
	"math"
	"strconv"
	"strings"
)

// Table is a rectangular grid of string cells with named columns.
// Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New builds a table, padding or truncating rows to the column count.
func New(columns []string, rows [][]string) *Table {
	t := &Table{Columns: append([]string(nil), columns...)}
	t.Rows = make([][]string, 0, len(rows))
	for _, r := range rows {
		t.Rows = append(t.Rows, fitRow(r, len(columns)))
	}
	return t
}

func fitRow(r []string, n int) []string {
	out := make([]string, n)
	copy(out, r)
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Clone returns a deep copy. Mutating the clone never affects t.
func (t *Table) Clone() *Table {
	c := &Table{Columns: append([]string(nil), t.Columns...), Rows: make([][]string, len(t.Rows))}
	for i, r := range t.Rows {
		c.Rows[i] = append([]string(nil), r...)
	}
	return c
}

// Head returns a copy holding at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	if n < 0 {
		n = 0
	}
	return New(t.Columns, t.Rows[:n])
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Records returns the first n rows as column→value maps with numeric cells
// converted to numbers. n < 0 means all rows.
func (t *Table) Records(n int) []map[string]any {
	if n < 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	out := make([]map[string]any, 0, n)
	for _, r := range t.Rows[:n] {
		rec := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			rec[c] = Value(r[i])
		}
		out = append(out, rec)
	}
	return out
}

// Value converts a cell to int64, float64, bool or nil when it reads as one,
// and returns the string unchanged otherwise.
func Value(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	switch trimmed {
	case "true", "True", "TRUE":
		return true
	case "false", "False", "FALSE":
		return false
	}
	return s
}
