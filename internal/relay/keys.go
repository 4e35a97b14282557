package relay

import (
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const fallbackName = "file"

// BuildKey derives a bucket-scoped object key from an untrusted display
// name. A random identifier guarantees uniqueness across concurrent uploads
// of identically named files, and sanitization strips traversal sequences
// and non-portable characters so attacker-controlled names cannot steer the
// key outside its prefix.
func BuildKey(prefix, displayName string) string {
	name := SanitizeName(displayName)
	id := uuid.NewString()
	if prefix == "" {
		return path.Join(id, name)
	}
	return path.Join(prefix, id, name)
}

// SanitizeName reduces a display name to its base name with only portable
// characters. Empty or fully stripped names fall back to a constant.
func SanitizeName(displayName string) string {
	// drop any directory component, for both separator conventions
	name := strings.ReplaceAll(displayName, "\\", "/")
	name = path.Base(path.Clean("/" + name))

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		return fallbackName
	}
	return cleaned
}
