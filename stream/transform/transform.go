// Package transform implements Stream A: a natural-language instruction is
// turned into a table program by the completion service, executed by the
// restricted tabops evaluator and the result persisted as CSV.
package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nevindra/docmind"
	"github.com/nevindra/docmind/table"
	"github.com/nevindra/docmind/tabops"
)

// PreviewRows is the number of result records returned inline.
const PreviewRows = 10

// DefaultInstruction is used when the caller gives none.
const DefaultInstruction = "Summarize data"

const (
	msgUnsupported = "Unsupported file format. Please upload CSV or Excel."
	msgSuccess     = "Transformation successful"
)

var systemPrompt = `You are an expert data analyst. Your goal is to write a table program that transforms the table "df" according to the user's instruction.

Rules:
1. Assume "df" is already loaded.
2. Write ONLY the transformation program.
3. The final result must be stored in the variable "result_df".
4. If you modify "df" in place, end with {"op":"assign","in":"df","out":"result_df"}.
5. Do NOT include markdown formatting. Just the program.

` + tabops.Reference

// Payload is the data of a successful run.
type Payload struct {
	GeneratedCode string           `json:"generated_code"`
	Preview       []map[string]any `json:"preview"`
	RowsProcessed int              `json:"rows_processed"`
	ResultID      string           `json:"result_id"`
	Location      string           `json:"location,omitempty"`
}

// FailurePayload is attached to execution failures so the caller can see
// the program that failed.
type FailurePayload struct {
	GeneratedCode string `json:"generated_code"`
}

// Stream runs Stream A. It is safe for concurrent use.
type Stream struct {
	llm    docmind.Provider
	store  docmind.ArtifactStore
	limits tabops.Limits
	logger *slog.Logger
}

// Option configures a Stream.
type Option func(*Stream)

// WithLimits bounds program execution. Zero fields keep the evaluator defaults.
func WithLimits(l tabops.Limits) Option { return func(s *Stream) { s.limits = l } }

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option { return func(s *Stream) { s.logger = l } }

// New creates a Stream generating programs with llm and persisting results to store.
func New(llm docmind.Provider, store docmind.ArtifactStore, opts ...Option) *Stream {
	s := &Stream{llm: llm, store: store, logger: docmind.NopLogger()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Process runs the Analyze → Generate → Execute → Persist pipeline. Failures
// are reported in the returned Result, never as a panic.
func (s *Stream) Process(ctx context.Context, doc docmind.Document, instruction string) docmind.Result {
	start := time.Now()
	if instruction == "" {
		instruction = DefaultInstruction
	}

	df, err := table.Parse(doc.Filename, doc.Content)
	if err != nil {
		if errors.Is(err, docmind.ErrUnsupportedFormat) {
			return docmind.Failure(msgUnsupported, nil)
		}
		s.logger.Warn("transform: read failed", "filename", doc.Filename, "error", err)
		return docmind.Failure("Error reading file: "+err.Error(), nil)
	}
	s.logger.Debug("transform: table loaded", "filename", doc.Filename, "rows", df.Len(), "columns", len(df.Columns))

	code, err := s.generate(ctx, df, instruction)
	if err != nil {
		s.logger.Error("transform: generation failed", "filename", doc.Filename, "error", err)
		return docmind.Failure("Program generation failed: "+err.Error(), nil)
	}

	out, err := s.execute(ctx, code, df)
	if err != nil {
		s.logger.Warn("transform: execution failed", "filename", doc.Filename, "error", err)
		return docmind.Failure(executionMessage(err), FailurePayload{GeneratedCode: code})
	}

	data, err := table.EncodeCSV(out)
	if err != nil {
		return docmind.Failure("Error encoding result: "+err.Error(), FailurePayload{GeneratedCode: code})
	}
	id := docmind.NewID()
	loc, err := s.store.Put(ctx, id, data)
	if err != nil {
		s.logger.Error("transform: persist failed", "result_id", id, "store", s.store.Name(), "error", err)
		return docmind.Failure("Error saving result: "+err.Error(), FailurePayload{GeneratedCode: code})
	}

	s.logger.Info("transform: done", "filename", doc.Filename, "result_id", id,
		"rows", out.Len(), "duration", time.Since(start))
	return docmind.Success(msgSuccess, Payload{
		GeneratedCode: code,
		Preview:       out.Records(PreviewRows),
		RowsProcessed: out.Len(),
		ResultID:      id,
		Location:      loc,
	})
}

func (s *Stream) generate(ctx context.Context, df *table.Table, instruction string) (string, error) {
	user := fmt.Sprintf(`Data Context:
%s

User Instruction:
%s

Generate the program that transforms "df" into "result_df". Ensure "result_df" is defined at the end.`,
		table.SchemaContext(df), instruction)
	text, err := docmind.GenerateJSON(ctx, s.llm, systemPrompt, user)
	if err != nil {
		return "", err
	}
	return docmind.StripFences(text), nil
}

// execute runs code on a copy of df; df itself is never modified.
func (s *Stream) execute(ctx context.Context, code string, df *table.Table) (*table.Table, error) {
	prog, err := tabops.Parse(code)
	if err != nil {
		return nil, err
	}
	in := tabops.New(tabops.WithLimits(s.limits), tabops.WithLogger(s.logger))
	return in.Run(ctx, prog, df.Clone())
}

func executionMessage(err error) string {
	trace := err.Error()
	var ee *tabops.ExecError
	if errors.As(err, &ee) {
		trace = ee.Trace()
	}
	return fmt.Sprintf("Execution Error: %v\n\nTraceback:\n%s", err, trace)
}
