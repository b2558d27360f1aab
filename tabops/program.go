// Package tabops is a restricted evaluator for generated table programs.
//
// A program is a JSON document listing vetted table operations. It can read
// and write named table variables and nothing else: no I/O, no imports, no
// reflection, no loops. The input table is bound to "df"; the result is read
// from "result_df", falling back to "df".
//
//	{"steps": [
//	  {"op": "filter", "where": [{"column": "amount", "op": ">", "value": 100}]},
//	  {"op": "aggregate", "group_by": ["region"], "metrics": [{"column": "amount", "func": "sum"}], "out": "result_df"}
//	]}
package tabops

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/nevindra/docmind"
)

const (
	// InputVar is bound to a copy of the uploaded table.
	InputVar = "df"
	// OutputVar is the designated result variable.
	OutputVar = "result_df"
)

// Program is a parsed table program. The zero value is the identity program.
type Program struct {
	Steps []Step `json:"steps"`
}

// Step is one table operation. Which fields apply depends on Op.
type Step struct {
	Op string `json:"op"`
	// In names the source variable (default "df"); Out the destination
	// (default: same as In).
	In  string `json:"in,omitempty"`
	Out string `json:"out,omitempty"`

	Columns []string          `json:"columns,omitempty"`
	Where   []Condition       `json:"where,omitempty"`
	Any     bool              `json:"any,omitempty"`
	Mapping map[string]string `json:"mapping,omitempty"`
	By      []SortKey         `json:"by,omitempty"`
	N       *int              `json:"n,omitempty"`
	Column  string            `json:"column,omitempty"`
	Expr    *Expr             `json:"expr,omitempty"`
	GroupBy []string          `json:"group_by,omitempty"`
	Metrics []Metric          `json:"metrics,omitempty"`
	Value   any               `json:"value,omitempty"`
}

type Condition struct {
	Column string `json:"column"`
	Op     string `json:"op"`
	Value  any    `json:"value,omitempty"`
}

type SortKey struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

type Metric struct {
	Column string `json:"column,omitempty"`
	Func   string `json:"func"`
	As     string `json:"as,omitempty"`
}

// Expr is a per-row expression: a column reference, a literal, or an
// operator applied to argument expressions.
type Expr struct {
	Col   string `json:"col,omitempty"`
	Value any    `json:"value,omitempty"`
	Op    string `json:"op,omitempty"`
	Args  []Expr `json:"args,omitempty"`
}

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Parse decodes program text, tolerating markdown fences. Empty text (after
// fence removal) is the identity program.
func Parse(src string) (Program, error) {
	src = docmind.StripFences(src)
	if src == "" {
		return Program{}, nil
	}
	var p Program
	if err := json.Unmarshal([]byte(src), &p); err != nil {
		return Program{}, &ExecError{Op: "parse", Err: fmt.Errorf("invalid program: %w", err)}
	}
	return p, nil
}

func (s Step) source() string {
	if s.In == "" {
		return InputVar
	}
	return s.In
}

func (s Step) target() string {
	if s.Out == "" {
		return s.source()
	}
	return s.Out
}

// Reference documents the program language for the completion service.
var Reference = strings.TrimSpace(`
Output a single JSON object {"steps": [...]} and nothing else. Each step is an object with "op" and op-specific fields.
Tables live in variables. "df" holds the input table. Every step reads "in" (default "df") and writes "out" (default: same as "in").
The result is taken from "result_df" if set, otherwise from "df". Modifying "df" in place is fine.

Operations:
- {"op":"filter","where":[{"column":C,"op":OP,"value":V}],"any":false}  keep rows matching all conditions (any=true: at least one).
  OP is one of ==, !=, >, <, >=, <=, contains, startswith, endswith, in, not_in, is_empty, not_empty. Numeric text compares numerically.
- {"op":"select","columns":[...]}  keep and reorder columns.
- {"op":"drop_columns","columns":[...]}
- {"op":"rename","mapping":{"old":"new"}}
- {"op":"sort","by":[{"column":C,"desc":true}]}
- {"op":"limit","n":N}  first N rows.
- {"op":"derive","column":NEW,"expr":E}  add or replace a column computed per row.
  E is {"col":C} | {"value":V} | {"op":F,"args":[E,...]} with F one of + - * / % concat upper lower trim round abs len coalesce.
- {"op":"aggregate","group_by":[...],"metrics":[{"column":C,"func":F,"as":NAME}]}  F is sum, count, avg, min, max, count_distinct, first, last.
- {"op":"dedupe","columns":[...]}  drop duplicate rows (by the listed columns, or all columns).
- {"op":"fill","column":C,"value":V}  fill empty cells (all columns when column is omitted).
- {"op":"drop_empty","columns":[...]}  drop rows with an empty cell in the listed columns (or any column).
- {"op":"assign","in":SRC,"out":DST}  copy a table variable.
- {"op":"unset","in":NAME}  remove a variable.
`)
