package validation

import (
	"testing"
	"time"
)

func TestRequired(t *testing.T) {
	v := make(Violations)
	Required("nom", "  ", v)
	Required("prenom", "Jean", v)
	if v["nom"] != "required" {
		t.Fatalf("expected required, got %q", v["nom"])
	}
	if _, ok := v["prenom"]; ok {
		t.Fatalf("unexpected violation for prenom")
	}
}

func TestEmail(t *testing.T) {
	v := make(Violations)
	Email("email", "jean@cabinet.fr", v)
	if !v.Empty() {
		t.Fatalf("valid email rejected: %v", v)
	}
	Email("email", "Jean <jean@cabinet.fr>", v)
	if v["email"] != "invalid_email" {
		t.Fatalf("display-name form should be rejected")
	}
}

func TestOneOfAndLengths(t *testing.T) {
	v := make(Violations)
	OneOf("priorite", "haute", []string{"basse", "haute"}, v)
	OneOf("statut", "inconnu", []string{"a_faire"}, v)
	MaxLen("titre", "abcdef", 3, v)
	MinLen("password", "abc", 8, v)
	if _, ok := v["priorite"]; ok {
		t.Fatalf("haute should be accepted")
	}
	if v["statut"] != "invalid_value" || v["titre"] != "too_long" || v["password"] != "too_short" {
		t.Fatalf("unexpected violations %v", v)
	}
}

func TestTimeRange(t *testing.T) {
	v := make(Violations)
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	TimeRange("end_at", start, start.Add(-time.Hour), v)
	if v["end_at"] != "end_before_start" {
		t.Fatalf("expected end_before_start")
	}
}
