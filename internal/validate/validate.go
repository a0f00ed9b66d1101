// Package validate holds the syntactic checks for proposed file names.
package validate

import (
	"strings"
)

// IsSyntacticallyValid reports whether name can be used as a plain file
// name. Empty or whitespace-only names are rejected, as is anything
// containing a path separator: the rename list maps names inside a
// directory and must not be able to move a file out of it.
func IsSyntacticallyValid(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return true
}
