package observer

import (
	"maps"
	"slices"
	"strings"
)

// ModelPricing is USD per million tokens.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultPricing covers the completion and embedding models the openai and
// gemini backends ship with. [observer.pricing] in docmind.toml overrides or
// extends it.
var DefaultPricing = map[string]ModelPricing{
	"gpt-4o-mini":            {0.15, 0.60},
	"gpt-4o":                 {2.50, 10.00},
	"gpt-4.1-mini":           {0.40, 1.60},
	"gpt-4.1":                {2.00, 8.00},
	"text-embedding-3-small": {0.02, 0},
	"text-embedding-3-large": {0.13, 0},

	"gemini-2.5-flash":     {0.15, 0.60},
	"gemini-2.0-flash":     {0.10, 0.40},
	"gemini-embedding-001": {0.15, 0},
	"text-embedding-004":   {0, 0},
}

// CostCalculator turns token usage into USD.
type CostCalculator struct {
	pricing map[string]ModelPricing
	// longest first, so "gpt-4o-mini" wins over "gpt-4o"
	prefixes []string
}

// NewCostCalculator merges overrides over DefaultPricing.
func NewCostCalculator(overrides map[string]ModelPricing) *CostCalculator {
	pricing := maps.Clone(DefaultPricing)
	maps.Copy(pricing, overrides)
	prefixes := slices.SortedFunc(maps.Keys(pricing), func(a, b string) int {
		if d := len(b) - len(a); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
	return &CostCalculator{pricing: pricing, prefixes: prefixes}
}

// Lookup resolves model to a priced entry. Gemini's "models/" resource
// prefix is ignored and versioned snapshots such as "gpt-4o-mini-2024-07-18"
// or "gemini-2.0-flash-001" fall back to their base model. Variants with a
// word suffix ("gpt-4.1-nano") are separate models and stay unpriced.
func (c *CostCalculator) Lookup(model string) (ModelPricing, bool) {
	model = strings.TrimPrefix(model, "models/")
	if p, ok := c.pricing[model]; ok {
		return p, true
	}
	for _, base := range c.prefixes {
		rest, ok := strings.CutPrefix(model, base+"-")
		if ok && rest != "" && rest[0] >= '0' && rest[0] <= '9' {
			return c.pricing[base], true
		}
	}
	return ModelPricing{}, false
}

// Models lists the priced model names in sorted order.
func (c *CostCalculator) Models() []string {
	return slices.Sorted(maps.Keys(c.pricing))
}

// Calculate returns the USD cost of one call, or 0 for an unpriced model.
func (c *CostCalculator) Calculate(model string, inputTokens, outputTokens int) float64 {
	p, ok := c.Lookup(model)
	if !ok {
		return 0
	}
	return (float64(inputTokens)*p.InputPerMillion + float64(outputTokens)*p.OutputPerMillion) / 1_000_000
}
