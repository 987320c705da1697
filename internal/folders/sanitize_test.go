package folders

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2025-001-MAR - Martin c/ Durand", "2025-001-MAR - Martin c Durand"},
		{`a"b*c:d<e>f?g/h\i|j`, "a b c d e f g h i j"},
		{"  ..Dossier..  ", "Dossier"},
		{"tab\there\nnewline", "tabherenewline"},
		{"   ", "Sans titre"},
		{"???", "Sans titre"},
		{"Société Générale", "Société Générale"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}

func TestSanitizeNameNeverKeepsForbiddenCharacters(t *testing.T) {
	inputs := []string{
		strings.Repeat(`<>:"/\|?*`, 40),
		strings.Repeat("é", 400) + "|",
		"file:name?.pdf",
		strings.Repeat("a/b", 200),
	}
	for _, in := range inputs {
		out := SanitizeName(in)
		assert.False(t, strings.ContainsAny(out, `"*:<>?/\|`), out)
		assert.LessOrEqual(t, utf8.RuneCountInString(out), MaxNameLength)
		assert.NotEmpty(t, out)
	}
}
