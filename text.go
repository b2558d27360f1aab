package docmind

import (
	"encoding/json"
	"fmt"
	"strings"
)

// fenceMarkers are removed from model output, longest first so a tagged
// fence never leaves its language name behind.
var fenceMarkers = []string{"```python", "```json", "```"}

// StripFences removes markdown code fences from model output and trims
// surrounding whitespace.
func StripFences(s string) string {
	for _, m := range fenceMarkers {
		s = strings.ReplaceAll(s, m, "")
	}
	return strings.TrimSpace(s)
}

// Truncate returns at most n characters (runes) of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// ParseObject strips fences from s and decodes it as a JSON object.
// Anything that is not an object (arrays, scalars, prose) wraps ErrParse.
func ParseObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(StripFences(s)), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrParse)
	}
	return obj, nil
}
