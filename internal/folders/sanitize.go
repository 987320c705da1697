package folders

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength is the OneDrive limit for one path segment.
const MaxNameLength = 255

const untitled = "Sans titre"

// SanitizeName makes s a valid OneDrive item name: forbidden characters and
// control characters are removed, whitespace collapsed, leading and trailing
// dots and spaces trimmed, and the result truncated to MaxNameLength runes.
func SanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`"*:<>?/\|`, r):
			b.WriteRune(' ')
		case unicode.IsControl(r):
		case r == utf8.RuneError:
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	out = strings.Trim(out, ". ")
	if utf8.RuneCountInString(out) > MaxNameLength {
		out = string([]rune(out)[:MaxNameLength])
		out = strings.TrimRight(out, ". ")
	}
	if out == "" {
		return untitled
	}
	return out
}
