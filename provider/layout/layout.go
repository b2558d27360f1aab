// Package layout holds layout-analysis helpers shared by the analyzer
// implementations in its subpackages.
package layout

import (
	"context"
	"fmt"
	"strings"

	"github.com/nevindra/docmind"
)

// Unconfigured is a LayoutAnalyzer for deployments without layout analysis
// credentials. Every call fails with docmind.ErrServiceUnavailable, which the
// streams map to their simulated or error paths.
type Unconfigured struct{}

// Name returns "unconfigured".
func (Unconfigured) Name() string { return "unconfigured" }

// Analyze always fails.
func (Unconfigured) Analyze(context.Context, []byte) (docmind.Layout, error) {
	return docmind.Layout{}, fmt.Errorf("layout: analyzer not configured: %w", docmind.ErrServiceUnavailable)
}

// KeyValuesFromText scans "Key: Value" lines. Keys longer than 64 characters
// or with empty values are skipped; confidence is a fixed heuristic value.
func KeyValuesFromText(text string) []docmind.KeyValue {
	var out []docmind.KeyValue
	for _, line := range strings.Split(text, "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" || len(k) > 64 {
			continue
		}
		// URL cut at its scheme.
		if strings.HasPrefix(v, "//") {
			continue
		}
		out = append(out, docmind.KeyValue{Key: k, Value: v, Confidence: 0.5})
	}
	return out
}

var _ docmind.LayoutAnalyzer = Unconfigured{}
