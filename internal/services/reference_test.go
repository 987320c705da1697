package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientPrefix(t *testing.T) {
	cases := map[string]string{
		"Martin":        "MAR",
		"éluard":        "ELU",
		"Ng":            "NGX",
		"d'Étiolles":    "DET",
		"":              "XXX",
		"  Çağlar":      "CAG",
		"O'Brien-Smith": "OBR",
	}
	for in, want := range cases {
		assert.Equal(t, want, ClientPrefix(in), in)
	}
}

func TestFormatReference(t *testing.T) {
	assert.Equal(t, "2025-001-MAR", FormatReference(2025, 1, "MAR"))
	assert.Equal(t, "2025-1234-DUR", FormatReference(2025, 1234, "DUR"))
}
