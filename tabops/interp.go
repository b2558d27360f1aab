package tabops

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nevindra/docmind"
	"github.com/nevindra/docmind/table"
)

// Limits bounds what a program may do.
type Limits struct {
	MaxSteps   int // default 64
	MaxRows    int // rows in the input table; default 1,000,000
	MaxColumns int // columns any variable may hold; default 1,024
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() Limits {
	return Limits{MaxSteps: 64, MaxRows: 1_000_000, MaxColumns: 1024}
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLimits overrides the resource limits. Zero fields keep their defaults.
func WithLimits(l Limits) Option {
	return func(in *Interpreter) {
		if l.MaxSteps > 0 {
			in.limits.MaxSteps = l.MaxSteps
		}
		if l.MaxRows > 0 {
			in.limits.MaxRows = l.MaxRows
		}
		if l.MaxColumns > 0 {
			in.limits.MaxColumns = l.MaxColumns
		}
	}
}

// WithLogger sets a structured logger for step tracing.
func WithLogger(l *slog.Logger) Option {
	return func(in *Interpreter) { in.logger = l }
}

// Interpreter runs table programs. It is safe for concurrent use.
type Interpreter struct {
	limits Limits
	logger *slog.Logger
}

func New(opts ...Option) *Interpreter {
	in := &Interpreter{limits: DefaultLimits(), logger: docmind.NopLogger()}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

type env struct {
	vars   map[string]*table.Table
	limits Limits
	ctx    context.Context
}

// Run executes prog against df. df is copied first and never modified.
// Faults are returned as *ExecError carrying the execution trace.
func (in *Interpreter) Run(ctx context.Context, prog Program, df *table.Table) (*table.Table, error) {
	start := time.Now()
	trace := []string{fmt.Sprintf("program: %d steps, input %d rows x %d columns", len(prog.Steps), df.Len(), len(df.Columns))}
	fail := func(step int, op string, err error) error {
		trace = append(trace, fmt.Sprintf("step %d %s: error: %v", step, op, err))
		in.logger.Debug("tabops: step failed", "step", step, "op", op, "error", err)
		return &ExecError{Step: step, Op: op, Err: err, trace: trace}
	}

	if len(prog.Steps) > in.limits.MaxSteps {
		return nil, fail(0, "program", fmt.Errorf("program has %d steps, limit is %d", len(prog.Steps), in.limits.MaxSteps))
	}
	if df.Len() > in.limits.MaxRows {
		return nil, fail(0, "program", fmt.Errorf("input has %d rows, limit is %d", df.Len(), in.limits.MaxRows))
	}

	e := &env{vars: map[string]*table.Table{InputVar: df.Clone()}, limits: in.limits, ctx: ctx}

	for i, st := range prog.Steps {
		n := i + 1
		if err := ctx.Err(); err != nil {
			return nil, fail(n, st.Op, err)
		}
		if err := e.exec(st); err != nil {
			return nil, fail(n, st.Op, err)
		}
		line := fmt.Sprintf("step %d %s %s -> %s", n, st.Op, st.source(), st.target())
		if t, ok := e.vars[st.target()]; ok {
			line += fmt.Sprintf(": %d rows x %d columns", t.Len(), len(t.Columns))
		}
		trace = append(trace, line)
	}

	out, ok := e.vars[OutputVar]
	if !ok {
		out, ok = e.vars[InputVar]
	}
	if !ok {
		return nil, fail(0, "result", ErrNoResult)
	}
	in.logger.Debug("tabops: program ok", "steps", len(prog.Steps), "rows", out.Len(), "duration", time.Since(start))
	return out, nil
}

func (e *env) get(name string) (*table.Table, error) {
	t, ok := e.vars[name]
	if !ok {
		return nil, fmt.Errorf("variable %q is not defined", name)
	}
	return t, nil
}

func (e *env) set(name string, t *table.Table) error {
	if !identRE.MatchString(name) {
		return fmt.Errorf("invalid variable name %q", name)
	}
	if len(t.Columns) > e.limits.MaxColumns {
		return fmt.Errorf("table has %d columns, limit is %d", len(t.Columns), e.limits.MaxColumns)
	}
	e.vars[name] = t
	return nil
}

// checkpoint reports cancellation every few thousand rows of a row loop.
func (e *env) checkpoint(row int) error {
	if row&0xFFF == 0 {
		return e.ctx.Err()
	}
	return nil
}

func (e *env) exec(st Step) error {
	if st.Op == "unset" {
		if _, ok := e.vars[st.source()]; !ok {
			return fmt.Errorf("variable %q is not defined", st.source())
		}
		delete(e.vars, st.source())
		return nil
	}

	src, err := e.get(st.source())
	if err != nil {
		return err
	}

	var out *table.Table
	switch st.Op {
	case "assign":
		if st.Out == "" {
			return fmt.Errorf("assign needs \"out\"")
		}
		out = src.Clone()
	case "filter":
		out, err = e.filter(src, st)
	case "select":
		out, err = selectColumns(src, st.Columns)
	case "drop_columns":
		out, err = dropColumns(src, st.Columns)
	case "rename":
		out, err = rename(src, st.Mapping)
	case "sort":
		out, err = sortRows(src, st.By)
	case "limit", "head":
		out, err = limit(src, st.N)
	case "derive":
		out, err = e.derive(src, st)
	case "aggregate":
		out, err = e.aggregate(src, st)
	case "dedupe":
		out, err = dedupe(src, st.Columns)
	case "fill":
		out, err = fill(src, st.Column, st.Value)
	case "drop_empty":
		out, err = dropEmpty(src, st.Columns)
	case "":
		return fmt.Errorf("step has no \"op\"")
	default:
		return fmt.Errorf("operation %q is not allowed", st.Op)
	}
	if err != nil {
		return err
	}
	return e.set(st.target(), out)
}
