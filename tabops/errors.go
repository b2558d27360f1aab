package tabops

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoResult is reported when neither result_df nor df is bound after the
// program finishes.
var ErrNoResult = errors.New("the generated program did not produce a valid table")

// ExecError is a fault raised while parsing or running a program. It keeps
// the execution trace up to and including the failing step.
type ExecError struct {
	Step  int // 1-based; 0 for whole-program faults
	Op    string
	Err   error
	trace []string
}

func (e *ExecError) Error() string {
	if e.Step == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Op, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Trace returns the step-by-step execution log, one line per step.
func (e *ExecError) Trace() string {
	if len(e.trace) == 0 {
		return e.Error()
	}
	return strings.Join(e.trace, "\n")
}
