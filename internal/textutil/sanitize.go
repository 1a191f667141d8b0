package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// unnamed replaces names that would be empty or refer to a directory.
const unnamed = "unnamed"

// SanitizeFileName makes name safe to use as a single remote path segment.
// Path separators, the characters : * ? " < > | and control characters become
// underscores, and the result is NFC-normalized so names produced on systems
// with decomposed Unicode map to the same object. Empty, "." and ".." results
// become "unnamed".
func SanitizeFileName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteByte('_')
		case unicode.IsControl(r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	switch out {
	case "", ".", "..":
		return unnamed
	}
	return out
}
