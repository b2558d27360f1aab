package tabops

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/nevindra/docmind/table"
)

func columnIndexes(t *table.Table, cols []string) ([]int, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		j := t.ColumnIndex(c)
		if j < 0 {
			return nil, fmt.Errorf("column %q not found", c)
		}
		idx[i] = j
	}
	return idx, nil
}

// --- filter ---

func (e *env) filter(t *table.Table, st Step) (*table.Table, error) {
	if len(st.Where) == 0 {
		return nil, fmt.Errorf("filter needs at least one condition")
	}
	cols := make([]int, len(st.Where))
	for i, c := range st.Where {
		j := t.ColumnIndex(c.Column)
		if j < 0 {
			return nil, fmt.Errorf("column %q not found", c.Column)
		}
		if !knownCondition(c.Op) {
			return nil, fmt.Errorf("unknown condition operator %q", c.Op)
		}
		cols[i] = j
	}

	out := &table.Table{Columns: append([]string(nil), t.Columns...)}
	for r, row := range t.Rows {
		if err := e.checkpoint(r); err != nil {
			return nil, err
		}
		keep := !st.Any
		for i, c := range st.Where {
			ok := matchCondition(row[cols[i]], c)
			if st.Any && ok {
				keep = true
				break
			}
			if !st.Any && !ok {
				keep = false
				break
			}
		}
		if keep {
			out.Rows = append(out.Rows, append([]string(nil), row...))
		}
	}
	return out, nil
}

func knownCondition(op string) bool {
	switch op {
	case "==", "!=", ">", "<", ">=", "<=", "contains", "startswith", "endswith", "in", "not_in", "is_empty", "not_empty":
		return true
	}
	return false
}

func matchCondition(cell string, c Condition) bool {
	switch c.Op {
	case "==":
		return compareValues(cell, valueText(c.Value)) == 0
	case "!=":
		return compareValues(cell, valueText(c.Value)) != 0
	case ">":
		return compareValues(cell, valueText(c.Value)) > 0
	case "<":
		return compareValues(cell, valueText(c.Value)) < 0
	case ">=":
		return compareValues(cell, valueText(c.Value)) >= 0
	case "<=":
		return compareValues(cell, valueText(c.Value)) <= 0
	case "contains":
		return strings.Contains(strings.ToLower(cell), strings.ToLower(valueText(c.Value)))
	case "startswith":
		return strings.HasPrefix(cell, valueText(c.Value))
	case "endswith":
		return strings.HasSuffix(cell, valueText(c.Value))
	case "in":
		return valueIn(cell, c.Value)
	case "not_in":
		return !valueIn(cell, c.Value)
	case "is_empty":
		return strings.TrimSpace(cell) == ""
	case "not_empty":
		return strings.TrimSpace(cell) != ""
	}
	return false
}

func valueIn(cell string, set any) bool {
	items, ok := set.([]any)
	if !ok {
		return compareValues(cell, valueText(set)) == 0
	}
	for _, it := range items {
		if compareValues(cell, valueText(it)) == 0 {
			return true
		}
	}
	return false
}

// compareValues compares numerically when both sides parse as numbers and
// lexically otherwise.
func compareValues(a, b string) int {
	fa, aOk := toFloat(a)
	fb, bOk := toFloat(b)
	if aOk && bOk {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

func toFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// valueText renders a JSON literal as cell text.
func valueText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatNumber(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// --- column shaping ---

func selectColumns(t *table.Table, cols []string) (*table.Table, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("select needs at least one column")
	}
	idx, err := columnIndexes(t, cols)
	if err != nil {
		return nil, err
	}
	out := &table.Table{Columns: append([]string(nil), cols...), Rows: make([][]string, len(t.Rows))}
	for r, row := range t.Rows {
		nr := make([]string, len(idx))
		for i, j := range idx {
			nr[i] = row[j]
		}
		out.Rows[r] = nr
	}
	return out, nil
}

func dropColumns(t *table.Table, cols []string) (*table.Table, error) {
	if _, err := columnIndexes(t, cols); err != nil {
		return nil, err
	}
	drop := make(map[string]bool, len(cols))
	for _, c := range cols {
		drop[c] = true
	}
	var keep []string
	for _, c := range t.Columns {
		if !drop[c] {
			keep = append(keep, c)
		}
	}
	if len(keep) == 0 {
		return &table.Table{Rows: make([][]string, len(t.Rows))}, nil
	}
	return selectColumns(t, keep)
}

func rename(t *table.Table, mapping map[string]string) (*table.Table, error) {
	if len(mapping) == 0 {
		return nil, fmt.Errorf("rename needs a mapping")
	}
	// Resolve against the original header so swaps and chains apply at once.
	froms := slices.Sorted(maps.Keys(mapping))
	targets := make(map[int]string, len(froms))
	for _, from := range froms {
		j := t.ColumnIndex(from)
		if j < 0 {
			return nil, fmt.Errorf("column %q not found", from)
		}
		to := mapping[from]
		if strings.TrimSpace(to) == "" {
			return nil, fmt.Errorf("cannot rename %q to an empty name", from)
		}
		targets[j] = to
	}
	out := t.Clone()
	for j, to := range targets {
		out.Columns[j] = to
	}
	seen := map[string]bool{}
	for _, c := range out.Columns {
		if seen[c] {
			return nil, fmt.Errorf("rename produces duplicate column %q", c)
		}
		seen[c] = true
	}
	return out, nil
}

// --- row shaping ---

func sortRows(t *table.Table, by []SortKey) (*table.Table, error) {
	if len(by) == 0 {
		return nil, fmt.Errorf("sort needs at least one key")
	}
	idx := make([]int, len(by))
	for i, k := range by {
		j := t.ColumnIndex(k.Column)
		if j < 0 {
			return nil, fmt.Errorf("column %q not found", k.Column)
		}
		idx[i] = j
	}
	out := t.Clone()
	sort.SliceStable(out.Rows, func(a, b int) bool {
		for i, k := range by {
			va, vb := out.Rows[a][idx[i]], out.Rows[b][idx[i]]
			// empty cells sort last in either direction
			if (va == "") != (vb == "") {
				return vb == ""
			}
			c := compareValues(va, vb)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out, nil
}

func limit(t *table.Table, n *int) (*table.Table, error) {
	if n == nil || *n < 0 {
		return nil, fmt.Errorf("limit needs a non-negative \"n\"")
	}
	return t.Head(*n), nil
}

func rowKey(row []string, idx []int) string {
	if idx == nil {
		return strings.Join(row, "\x00")
	}
	parts := make([]string, len(idx))
	for i, j := range idx {
		parts[i] = row[j]
	}
	return strings.Join(parts, "\x00")
}

func dedupe(t *table.Table, cols []string) (*table.Table, error) {
	var idx []int
	if len(cols) > 0 {
		var err error
		if idx, err = columnIndexes(t, cols); err != nil {
			return nil, err
		}
	}
	out := &table.Table{Columns: append([]string(nil), t.Columns...)}
	seen := map[string]bool{}
	for _, row := range t.Rows {
		k := rowKey(row, idx)
		if seen[k] {
			continue
		}
		seen[k] = true
		out.Rows = append(out.Rows, append([]string(nil), row...))
	}
	return out, nil
}

func fill(t *table.Table, column string, value any) (*table.Table, error) {
	v := valueText(value)
	out := t.Clone()
	target := -1
	if column != "" {
		if target = out.ColumnIndex(column); target < 0 {
			return nil, fmt.Errorf("column %q not found", column)
		}
	}
	for _, row := range out.Rows {
		for j := range row {
			if (target < 0 || j == target) && strings.TrimSpace(row[j]) == "" {
				row[j] = v
			}
		}
	}
	return out, nil
}

func dropEmpty(t *table.Table, cols []string) (*table.Table, error) {
	idx := make([]int, len(t.Columns))
	for i := range idx {
		idx[i] = i
	}
	if len(cols) > 0 {
		var err error
		if idx, err = columnIndexes(t, cols); err != nil {
			return nil, err
		}
	}
	out := &table.Table{Columns: append([]string(nil), t.Columns...)}
rows:
	for _, row := range t.Rows {
		for _, j := range idx {
			if strings.TrimSpace(row[j]) == "" {
				continue rows
			}
		}
		out.Rows = append(out.Rows, append([]string(nil), row...))
	}
	return out, nil
}

// --- derive ---

func (e *env) derive(t *table.Table, st Step) (*table.Table, error) {
	if st.Column == "" {
		return nil, fmt.Errorf("derive needs \"column\"")
	}
	if st.Expr == nil {
		return nil, fmt.Errorf("derive needs \"expr\"")
	}
	if err := checkExpr(t, *st.Expr, 0); err != nil {
		return nil, err
	}
	out := t.Clone()
	target := out.ColumnIndex(st.Column)
	if target < 0 {
		out.Columns = append(out.Columns, st.Column)
	}
	for r, row := range out.Rows {
		if err := e.checkpoint(r); err != nil {
			return nil, err
		}
		v, err := evalExpr(t, t.Rows[r], *st.Expr)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r, err)
		}
		if target < 0 {
			out.Rows[r] = append(row, v)
		} else {
			row[target] = v
		}
	}
	return out, nil
}

// --- aggregate ---

func (e *env) aggregate(t *table.Table, st Step) (*table.Table, error) {
	if len(st.Metrics) == 0 {
		return nil, fmt.Errorf("aggregate needs at least one metric")
	}
	gidx, err := columnIndexes(t, st.GroupBy)
	if err != nil {
		return nil, err
	}
	midx := make([]int, len(st.Metrics))
	columns := append([]string(nil), st.GroupBy...)
	for i, m := range st.Metrics {
		if !knownMetric(m.Func) {
			return nil, fmt.Errorf("unknown aggregate function %q", m.Func)
		}
		midx[i] = -1
		if m.Column != "" {
			if midx[i] = t.ColumnIndex(m.Column); midx[i] < 0 {
				return nil, fmt.Errorf("column %q not found", m.Column)
			}
		} else if m.Func != "count" {
			return nil, fmt.Errorf("%s needs a column", m.Func)
		}
		columns = append(columns, metricName(m))
	}

	type group struct {
		key  []string
		rows [][]string
	}
	groups := map[string]*group{}
	var order []*group
	for r, row := range t.Rows {
		if err := e.checkpoint(r); err != nil {
			return nil, err
		}
		k := rowKey(row, gidx)
		g, ok := groups[k]
		if !ok {
			key := make([]string, len(gidx))
			for i, j := range gidx {
				key[i] = row[j]
			}
			g = &group{key: key}
			groups[k] = g
			order = append(order, g)
		}
		g.rows = append(g.rows, row)
	}
	if len(gidx) == 0 && len(order) == 0 {
		order = append(order, &group{})
	}

	sort.SliceStable(order, func(a, b int) bool {
		for i := range gidx {
			if c := compareValues(order[a].key[i], order[b].key[i]); c != 0 {
				return c < 0
			}
		}
		return false
	})

	out := &table.Table{Columns: columns, Rows: make([][]string, 0, len(order))}
	for _, g := range order {
		row := append([]string(nil), g.key...)
		for i, m := range st.Metrics {
			row = append(row, computeMetric(g.rows, midx[i], m.Func))
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func knownMetric(f string) bool {
	switch f {
	case "sum", "count", "avg", "mean", "min", "max", "count_distinct", "first", "last":
		return true
	}
	return false
}

func metricName(m Metric) string {
	if m.As != "" {
		return m.As
	}
	if m.Column == "" {
		return m.Func
	}
	return m.Func + "_" + m.Column
}

func computeMetric(rows [][]string, col int, fn string) string {
	switch fn {
	case "count":
		if col < 0 {
			return strconv.Itoa(len(rows))
		}
		n := 0
		for _, r := range rows {
			if strings.TrimSpace(r[col]) != "" {
				n++
			}
		}
		return strconv.Itoa(n)
	case "count_distinct":
		seen := map[string]bool{}
		for _, r := range rows {
			if strings.TrimSpace(r[col]) != "" {
				seen[r[col]] = true
			}
		}
		return strconv.Itoa(len(seen))
	case "first":
		if len(rows) == 0 {
			return ""
		}
		return rows[0][col]
	case "last":
		if len(rows) == 0 {
			return ""
		}
		return rows[len(rows)-1][col]
	}

	// numeric metrics skip non-numeric cells
	var sum float64
	n := 0
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, r := range rows {
		f, ok := toFloat(r[col])
		if !ok {
			continue
		}
		sum += f
		n++
		minV = math.Min(minV, f)
		maxV = math.Max(maxV, f)
	}
	switch fn {
	case "sum":
		return formatNumber(sum)
	case "avg", "mean":
		if n == 0 {
			return ""
		}
		return formatNumber(sum / float64(n))
	case "min":
		if n == 0 {
			return ""
		}
		return formatNumber(minV)
	case "max":
		if n == 0 {
			return ""
		}
		return formatNumber(maxV)
	}
	return ""
}
