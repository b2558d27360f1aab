package tabops

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nevindra/docmind/table"
)

const maxExprDepth = 32

var errDivByZero = errors.New("division by zero")

// arity holds the accepted argument counts per operator: min, max (-1 = unbounded).
var arity = map[string][2]int{
	"+":        {2, -1},
	"-":        {2, 2},
	"*":        {2, -1},
	"/":        {2, 2},
	"%":        {2, 2},
	"concat":   {1, -1},
	"upper":    {1, 1},
	"lower":    {1, 1},
	"trim":     {1, 1},
	"round":    {1, 2},
	"abs":      {1, 1},
	"len":      {1, 1},
	"coalesce": {1, -1},
}

// checkExpr validates an expression tree once before it runs on every row.
func checkExpr(t *table.Table, x Expr, depth int) error {
	if depth > maxExprDepth {
		return fmt.Errorf("expression nested deeper than %d", maxExprDepth)
	}
	switch {
	case x.Col != "":
		if t.ColumnIndex(x.Col) < 0 {
			return fmt.Errorf("column %q not found", x.Col)
		}
		return nil
	case x.Op == "":
		return nil
	}
	a, ok := arity[x.Op]
	if !ok {
		return fmt.Errorf("expression operator %q is not allowed", x.Op)
	}
	if len(x.Args) < a[0] || (a[1] >= 0 && len(x.Args) > a[1]) {
		return fmt.Errorf("operator %q got %d arguments", x.Op, len(x.Args))
	}
	for _, arg := range x.Args {
		if err := checkExpr(t, arg, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func evalExpr(t *table.Table, row []string, x Expr) (string, error) {
	if x.Col != "" {
		return row[t.ColumnIndex(x.Col)], nil
	}
	if x.Op == "" {
		return valueText(x.Value), nil
	}

	args := make([]string, len(x.Args))
	for i, a := range x.Args {
		v, err := evalExpr(t, row, a)
		if err != nil {
			return "", err
		}
		args[i] = v
	}

	switch x.Op {
	case "concat":
		return strings.Join(args, ""), nil
	case "upper":
		return strings.ToUpper(args[0]), nil
	case "lower":
		return strings.ToLower(args[0]), nil
	case "trim":
		return strings.TrimSpace(args[0]), nil
	case "len":
		return strconv.Itoa(utf8.RuneCountInString(args[0])), nil
	case "coalesce":
		for _, a := range args {
			if strings.TrimSpace(a) != "" {
				return a, nil
			}
		}
		return "", nil
	}

	nums, err := numbers(x.Op, args)
	if err != nil {
		return "", err
	}
	switch x.Op {
	case "+":
		s := 0.0
		for _, n := range nums {
			s += n
		}
		return formatNumber(s), nil
	case "*":
		p := 1.0
		for _, n := range nums {
			p *= n
		}
		return formatNumber(p), nil
	case "-":
		return formatNumber(nums[0] - nums[1]), nil
	case "/":
		if nums[1] == 0 {
			return "", errDivByZero
		}
		return formatNumber(nums[0] / nums[1]), nil
	case "%":
		if nums[1] == 0 {
			return "", errDivByZero
		}
		return formatNumber(math.Mod(nums[0], nums[1])), nil
	case "abs":
		return formatNumber(math.Abs(nums[0])), nil
	case "round":
		digits := 0.0
		if len(nums) == 2 {
			digits = nums[1]
		}
		p := math.Pow(10, digits)
		return formatNumber(math.Round(nums[0]*p) / p), nil
	}
	return "", fmt.Errorf("expression operator %q is not allowed", x.Op)
}

// numbers parses every argument of an arithmetic operator. Empty cells count
// as zero; anything else non-numeric is a fault.
func numbers(op string, args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		if strings.TrimSpace(a) == "" {
			continue
		}
		f, ok := toFloat(a)
		if !ok {
			return nil, fmt.Errorf("operator %q: %q is not a number", op, a)
		}
		out[i] = f
	}
	return out, nil
}
