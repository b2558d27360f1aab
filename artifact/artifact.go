// Package artifact holds helpers shared by the ArtifactStore backends.
package artifact

import (
	"fmt"
	"regexp"
)

// Ext is the file extension of stored result tables.
const Ext = ".csv"

var idRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// CheckID rejects ids that could escape the store's namespace (path
// separators, dots, empty).
func CheckID(id string) error {
	if !idRE.MatchString(id) {
		return fmt.Errorf("artifact: invalid id %q", id)
	}
	return nil
}

// Name returns the object name for id.
func Name(id string) string { return id + Ext }
