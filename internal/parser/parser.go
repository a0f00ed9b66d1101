// Package parser turns committed staging-surface text back into an
// ordered list of proposed names.
package parser

import "strings"

// CommentPrefix marks instruction lines in the staging buffer. They are
// dropped entirely and take no part in positional mapping.
const CommentPrefix = "//"

// ProposedNames extracts the proposed names from the committed lines of
// a staging surface. Comment lines are removed; every other line is kept
// in order, so line i of the result corresponds to staged file i. Blank
// lines survive as empty strings, meaning "leave this file unchanged".
func ProposedNames(lines []string) []string {
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), CommentPrefix) {
			continue
		}
		names = append(names, strings.TrimSpace(line))
	}
	return names
}
