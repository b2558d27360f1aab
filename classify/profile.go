package classify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nevindra/docmind"
)

// Profile is a domain knowledge base for layer 2: a keyword set and the
// stream documents matching it prefer.
type Profile struct {
	Name     string
	Stream   docmind.StreamTag
	Keywords []string
}

func (p Profile) matches(window string) bool {
	for _, kw := range p.Keywords {
		if kw != "" && strings.Contains(window, kw) {
			return true
		}
	}
	return false
}

// Built-in domain profiles. Keyword matching is case-sensitive.
var (
	Tax = Profile{
		Name:     "tax",
		Stream:   docmind.StreamB,
		Keywords: []string{"Form 1040", "IRS", "Deduction"},
	}
	Legal = Profile{
		Name:     "legal",
		Stream:   docmind.StreamD,
		Keywords: []string{"Agreement", "Clause", "Liability", "Termination"},
	}
	Healthcare = Profile{
		Name:     "healthcare",
		Stream:   docmind.StreamC,
		Keywords: []string{"Patient", "Diagnosis", "ICD-10", "Provider"},
	}
)

var profiles = map[string]Profile{
	Tax.Name:        Tax,
	Legal.Name:      Legal,
	Healthcare.Name: Healthcare,
}

// LookupProfile returns the built-in profile with the given name.
func LookupProfile(name string) (Profile, error) {
	p, ok := profiles[strings.ToLower(name)]
	if !ok {
		return Profile{}, fmt.Errorf("unknown domain profile %q (have %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return p, nil
}

// ProfileNames lists the built-in profile names in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
