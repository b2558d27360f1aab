package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/nevindra/docmind"
)

// Rule validates one field of an extraction record. Validate returns an
// empty string when the value passes.
type Rule interface {
	Field() string
	Validate(value any) string
}

// DefaultRules is the rule set used when none is configured.
func DefaultRules() []Rule {
	return []Rule{RequiredMonetary("Total")}
}

// RequiredMonetary requires field to be present and to contain at least
// one digit.
func RequiredMonetary(field string) Rule { return monetary{field: field} }

type monetary struct{ field string }

func (m monetary) Field() string { return m.field }

func (m monetary) Validate(v any) string {
	if v == nil {
		return m.field + " field is missing."
	}
	if !strings.ContainsFunc(fmt.Sprint(v), unicode.IsDigit) {
		return fmt.Sprintf("Invalid %s format: %v", m.field, v)
	}
	return ""
}

// MatchesPattern requires field to be present and to match re.
func MatchesPattern(field string, re *regexp.Regexp) Rule {
	return pattern{field: field, re: re}
}

type pattern struct {
	field string
	re    *regexp.Regexp
}

func (p pattern) Field() string { return p.field }

func (p pattern) Validate(v any) string {
	if v == nil {
		return p.field + " field is missing."
	}
	if !p.re.MatchString(fmt.Sprint(v)) {
		return fmt.Sprintf("Invalid %s format: %v", p.field, v)
	}
	return ""
}

var (
	ssnRE  = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
	dateRE = regexp.MustCompile(`\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}`)
	icdRE  = regexp.MustCompile(`^[A-TV-Z][0-9][0-9AB](\.[0-9A-TV-Z]{1,4})?$`)
)

// RulesFor returns the validation rules of a domain profile. The empty name
// selects DefaultRules.
func RulesFor(profile string) ([]Rule, error) {
	switch strings.ToLower(profile) {
	case "":
		return DefaultRules(), nil
	case "tax":
		return []Rule{RequiredMonetary("Total"), MatchesPattern("SSN", ssnRE)}, nil
	case "legal":
		return []Rule{MatchesPattern("Effective Date", dateRE)}, nil
	case "healthcare":
		return []Rule{MatchesPattern("Diagnosis Code", icdRE)}, nil
	}
	return nil, fmt.Errorf("extract: no rules for profile %q", profile)
}

// validate runs every rule against rec and returns the issues in rule order.
func validate(rules []Rule, rec docmind.Record) []string {
	var issues []string
	for _, r := range rules {
		if issue := r.Validate(rec[r.Field()]); issue != "" {
			issues = append(issues, issue)
		}
	}
	return issues
}
