// Package classify implements the cascade classifier that routes a document
// to one of the four processing streams without calling any external service.
//
// The cascade is evaluated in order and stops at the first layer that fires:
//
//  1. structured extensions (.csv .xlsx .json .xml) go to Stream A
//  2. domain keywords in the first 2,000 bytes go to the profile's stream (tax: B)
//  3. text density above 0.8 goes to Stream D
//  4. everything else goes to Stream C
package classify

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/nevindra/docmind"
)

const (
	// WindowSize is the number of leading bytes inspected by layers 2 and 3.
	WindowSize = 2000
	// DensityThreshold is the non-whitespace ratio above which a document
	// counts as dense prose.
	DensityThreshold = 0.8
)

var structuredExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".json": true,
	".xml":  true,
}

// DefaultKeywords is the keyword list used by Classify.
var DefaultKeywords = []string{"Form 1040", "Tax Return", "IRS", "W-2"}

// Classify runs the default cascade (tax keywords route to Stream B).
func Classify(content []byte, filename string) docmind.StreamTag {
	return defaultCascade.Classify(content, filename)
}

var defaultCascade = New()

// Cascade is a configured classifier. The zero value is not usable; build
// one with New.
type Cascade struct {
	profiles []Profile
}

// Option configures a Cascade.
type Option func(*Cascade)

// WithKeywords replaces the default keyword list. Matches still route to Stream B.
func WithKeywords(keywords ...string) Option {
	return func(c *Cascade) {
		c.profiles = []Profile{{Name: "custom", Stream: docmind.StreamB, Keywords: keywords}}
	}
}

// WithProfile adds a domain profile checked after the ones already present.
// Its keywords route to the profile's preferred stream.
func WithProfile(p Profile) Option {
	return func(c *Cascade) { c.profiles = append(c.profiles, p) }
}

// New builds a Cascade that starts from the default tax keywords.
func New(opts ...Option) *Cascade {
	c := &Cascade{profiles: []Profile{{Name: "default", Stream: docmind.StreamB, Keywords: DefaultKeywords}}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the stream for a document. It is pure, never fails, and
// depends only on content and filename.
func (c *Cascade) Classify(content []byte, filename string) docmind.StreamTag {
	if structuredExtensions[strings.ToLower(filepath.Ext(filename))] {
		return docmind.StreamA
	}

	window := decodeWindow(content)

	for _, p := range c.profiles {
		if p.matches(window) {
			return p.Stream
		}
	}

	if Density(window) > DensityThreshold {
		return docmind.StreamD
	}
	return docmind.StreamC
}

// decodeWindow decodes the first WindowSize bytes as UTF-8, dropping invalid
// sequences (including a multi-byte character cut at the boundary).
func decodeWindow(content []byte) string {
	if len(content) > WindowSize {
		content = content[:WindowSize]
	}
	return strings.ToValidUTF8(string(content), "")
}

// Density is the count of non-whitespace characters in window divided by the
// fixed WindowSize, not by the window's actual length: short documents are
// never dense.
func Density(window string) float64 {
	n := 0
	for _, r := range window {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return float64(n) / WindowSize
}
