package observer

import (
	"math"
	"strings"
	"testing"
)

func TestCostCalculator(t *testing.T) {
	calc := NewCostCalculator(nil)

	// Known model
	cost := calc.Calculate("gemini-2.5-flash", 1_000_000, 1_000_000)
	if math.Abs(cost-0.75) > 0.001 {
		t.Errorf("gemini-2.5-flash cost = %f, want 0.75", cost)
	}

	// Unknown model returns 0
	cost = calc.Calculate("unknown-model", 1000, 1000)
	if cost != 0.0 {
		t.Errorf("unknown model cost = %f, want 0.0", cost)
	}

	// Override pricing
	calc = NewCostCalculator(map[string]ModelPricing{
		"custom-model": {InputPerMillion: 5.0, OutputPerMillion: 10.0},
	})
	cost = calc.Calculate("custom-model", 500_000, 200_000)
	expected := 500_000.0/1_000_000*5.0 + 200_000.0/1_000_000*10.0 // 2.5 + 2.0 = 4.5
	if math.Abs(cost-expected) > 0.001 {
		t.Errorf("custom-model cost = %f, want %f", cost, expected)
	}

	// Override still has defaults
	cost = calc.Calculate("gemini-2.5-flash", 1_000_000, 1_000_000)
	if math.Abs(cost-0.75) > 0.001 {
		t.Errorf("after override, default cost = %f, want 0.75", cost)
	}
}

func TestCostCalculatorZeroTokens(t *testing.T) {
	calc := NewCostCalculator(nil)
	cost := calc.Calculate("gemini-2.5-flash", 0, 0)
	if cost != 0.0 {
		t.Errorf("zero tokens cost = %f, want 0.0", cost)
	}
}

func TestCostCalculatorLookupSnapshots(t *testing.T) {
	calc := NewCostCalculator(nil)

	tests := []struct {
		model string
		want  string
		ok    bool
	}{
		{"gpt-4o-mini", "gpt-4o-mini", true},
		{"gpt-4o-mini-2024-07-18", "gpt-4o-mini", true},
		{"gpt-4o-2024-08-06", "gpt-4o", true},
		{"models/gemini-2.5-flash", "gemini-2.5-flash", true},
		{"gemini-2.0-flash-001", "gemini-2.0-flash", true},
		{"gpt-4.1-nano", "", false},
		{"gemini-2.5-flash-lite", "", false},
		{"claude-opus-4", "", false},
	}
	for _, tt := range tests {
		got, ok := calc.Lookup(tt.model)
		if ok != tt.ok {
			t.Errorf("Lookup(%q) ok = %v, want %v", tt.model, ok, tt.ok)
			continue
		}
		if ok && got != DefaultPricing[tt.want] {
			t.Errorf("Lookup(%q) = %+v, want %s pricing %+v", tt.model, got, tt.want, DefaultPricing[tt.want])
		}
	}
}

func TestCostCalculatorModels(t *testing.T) {
	calc := NewCostCalculator(map[string]ModelPricing{"aaa-local": {}})
	models := calc.Models()
	if len(models) != len(DefaultPricing)+1 || models[0] != "aaa-local" {
		t.Errorf("Models() = %v, want sorted defaults plus aaa-local first", models)
	}
	for _, m := range models {
		if strings.HasPrefix(m, "claude") || m == "o3-mini" {
			t.Errorf("Models() contains %q, which no configured backend serves", m)
		}
	}
}
