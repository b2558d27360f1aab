// Package visual implements Stream C: free-form entity extraction from a
// document's layout text in one completion call.
package visual

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nevindra/docmind"
)

// ContextChars bounds the layout text sent to the completion service.
const ContextChars = 14000

const (
	system       = "You are a Visual Extraction Specialist. Your output must be strictly a JSON object."
	layoutNote   = "Stream C requires active layout analysis credentials."
	unparsedNote = "Failed to parse as JSON"
)

// Payload is the data of a run. When the reply was not a JSON object, Data
// holds raw_extraction and error keys and Unparsed is set.
type Payload struct {
	Data     map[string]any `json:"data"`
	Filename string         `json:"filename"`
	Unparsed bool           `json:"unparsed,omitempty"`
}

// FailurePayload accompanies layout failures.
type FailurePayload struct {
	Note string `json:"note"`
}

// Stream runs Stream C. It is safe for concurrent use.
type Stream struct {
	layout docmind.LayoutAnalyzer
	llm    docmind.Provider
	logger *slog.Logger
}

// Option configures a Stream.
type Option func(*Stream)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option { return func(s *Stream) { s.logger = l } }

func New(layout docmind.LayoutAnalyzer, llm docmind.Provider, opts ...Option) *Stream {
	s := &Stream{layout: layout, llm: llm, logger: docmind.NopLogger()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Process analyzes doc and structures its text. A non-empty query is passed
// to the model as a focus hint.
func (s *Stream) Process(ctx context.Context, doc docmind.Document, query string) docmind.Result {
	start := time.Now()
	lay, err := s.layout.Analyze(ctx, doc.Content)
	if err != nil {
		s.logger.Error("visual: layout analysis failed", "filename", doc.Filename, "error", err)
		return docmind.Failure("Layout analysis error: "+err.Error(), FailurePayload{Note: layoutNote})
	}

	text, err := docmind.GenerateJSON(ctx, s.llm, system, prompt(lay.Content, query))
	if err != nil {
		s.logger.Error("visual: completion failed", "filename", doc.Filename, "error", err)
		return docmind.Failure("Extraction failed: "+err.Error(), nil)
	}

	p := Payload{Filename: doc.Filename}
	if obj, err := docmind.ParseObject(text); err == nil {
		p.Data = obj
	} else {
		s.logger.Warn("visual: reply not parseable", "filename", doc.Filename, "error", err)
		p.Data = map[string]any{"raw_extraction": text, "error": unparsedNote}
		p.Unparsed = true
	}
	s.logger.Info("visual: done", "filename", doc.Filename, "fields", len(p.Data), "duration", time.Since(start))
	return docmind.Success("", p)
}

func prompt(content, query string) string {
	var b strings.Builder
	b.WriteString("Extract the visual entities and key-value pairs from this document layout.\nDocument Content:\n")
	b.WriteString(docmind.Truncate(content, ContextChars))
	b.WriteString("\n\nFocus on semi-structured elements like tables, amounts, dates, and identifiers.")
	if q := strings.TrimSpace(query); q != "" {
		b.WriteString("\nPay particular attention to: " + q)
	}
	b.WriteString("\nReturn the result as a strictly valid JSON object. Do not include markdown formatting or explanations.")
	return b.String()
}
