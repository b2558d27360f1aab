// Package extract implements Stream B: deterministic field extraction from
// a document layout, rule validation, and a single completion call that
// heals whatever the rules flagged.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/nevindra/docmind"
)

// ContextChars bounds the layout text sent with a healing request.
const ContextChars = 14000

const (
	healSystem = "You are a Self-Healing Document Agent (Referee). Your output must be strictly a JSON object."
	healLogic  = "Referee Agent identified discrepancies and healed them via LLM reasoning."
)

// Payload is the data of a completed run.
type Payload struct {
	Extracted     docmind.Record `json:"extracted"`
	HealingReport *HealingReport `json:"healing_report"`
}

// HealingReport describes a healing attempt. A failed parse sets Error and
// Issues; a successful one sets the other fields.
type HealingReport struct {
	DetectedIssues []string `json:"detected_issues,omitempty"`
	HealedFields   []string `json:"healed_fields,omitempty"`
	Logic          string   `json:"logic,omitempty"`
	Error          string   `json:"error,omitempty"`
	Issues         []string `json:"issues,omitempty"`
}

// SimulatedPayload is returned when layout analysis is not configured.
type SimulatedPayload struct {
	Extracted      map[string]any `json:"extracted"`
	HealingApplied bool           `json:"healing_applied"`
	RefereeReport  []string       `json:"referee_report"`
}

// Stream runs Stream B. It is safe for concurrent use.
type Stream struct {
	layout docmind.LayoutAnalyzer
	llm    docmind.Provider
	rules  []Rule
	logger *slog.Logger
}

// Option configures a Stream.
type Option func(*Stream)

// WithRules replaces the validation rules.
func WithRules(rules ...Rule) Option { return func(s *Stream) { s.rules = rules } }

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option { return func(s *Stream) { s.logger = l } }

// New creates a Stream. Without WithRules it validates with DefaultRules.
func New(layout docmind.LayoutAnalyzer, llm docmind.Provider, opts ...Option) *Stream {
	s := &Stream{layout: layout, llm: llm, rules: DefaultRules(), logger: docmind.NopLogger()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Process runs Analyze → Extract → Validate → Heal.
func (s *Stream) Process(ctx context.Context, doc docmind.Document) docmind.Result {
	start := time.Now()
	lay, err := s.layout.Analyze(ctx, doc.Content)
	if err != nil {
		if errors.Is(err, docmind.ErrServiceUnavailable) {
			s.logger.Warn("extract: layout analysis unavailable, simulating", "filename", doc.Filename)
			return simulated()
		}
		s.logger.Error("extract: layout analysis failed", "filename", doc.Filename, "error", err)
		return docmind.Failure("Layout analysis error: "+err.Error(), nil)
	}

	rec := s.extract(lay)
	issues := validate(s.rules, rec)
	s.logger.Debug("extract: validated", "filename", doc.Filename, "fields", len(s.rules), "issues", len(issues))

	var report *HealingReport
	if len(issues) > 0 {
		report, err = s.heal(ctx, lay.Content, issues, rec)
		if err != nil {
			s.logger.Error("extract: healing failed", "filename", doc.Filename, "error", err)
			return docmind.Failure("Healing failed: "+err.Error(), Payload{Extracted: rec})
		}
	}

	s.logger.Info("extract: done", "filename", doc.Filename, "issues", len(issues), "duration", time.Since(start))
	return docmind.Success("", Payload{Extracted: rec, HealingReport: report})
}

func simulated() docmind.Result {
	return docmind.Simulated("Layout analysis not configured. Simulating self-healing loop.", SimulatedPayload{
		Extracted:      map[string]any{"Total": "$1,234.56 (Simulated)"},
		HealingApplied: true,
		RefereeReport:  []string{"Total was missing, healed via simulation."},
	})
}

// extract builds the initial record: the content length plus every field the
// rules name, filled only from the layout's key-value pairs.
func (s *Stream) extract(lay docmind.Layout) docmind.Record {
	rec := docmind.Record{"full_text_length": len([]rune(lay.Content))}
	for _, r := range s.rules {
		rec[r.Field()] = nil
	}
	for _, r := range s.rules {
		want := normKey(r.Field())
		for _, kv := range lay.KeyValuePairs {
			if normKey(kv.Key) == want && strings.TrimSpace(kv.Value) != "" {
				rec[r.Field()] = strings.TrimSpace(kv.Value)
				break
			}
		}
	}
	return rec
}

func normKey(k string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(k), ":")))
}

// heal asks the completion service for corrected values and merges them
// into rec. Only a completion failure is returned as an error; an
// unparseable reply yields a report carrying the parse failure.
func (s *Stream) heal(ctx context.Context, content string, issues []string, rec docmind.Record) (*HealingReport, error) {
	var b strings.Builder
	b.WriteString("The following issues were identified by the Referee Agent:\n")
	for _, issue := range issues {
		b.WriteString("- " + issue + "\n")
	}
	fmt.Fprintf(&b, `
Here is the document context:
---
%s
---

Rules:
1. Correct the extraction and provide the valid values for the identified issues.
2. Return ONLY a valid JSON object.
3. Do NOT include any explanations or markdown formatting.
4. Focus on precision. Use the provided context to find the exact values.`, docmind.Truncate(content, ContextChars))

	text, err := docmind.GenerateJSON(ctx, s.llm, healSystem, b.String())
	if err != nil {
		return nil, err
	}
	healed, err := docmind.ParseObject(text)
	if err != nil {
		s.logger.Warn("extract: healing reply not parseable", "error", err)
		return &HealingReport{Error: "Failed to parse referee healing response", Issues: issues}, nil
	}
	maps.Copy(rec, healed)
	return &HealingReport{
		DetectedIssues: issues,
		HealedFields:   slices.Sorted(maps.Keys(healed)),
		Logic:          healLogic,
	}, nil
}
