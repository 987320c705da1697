package models

import (
	"testing"
	"time"
)

func TestTask_SetStatus(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	task := &Task{Status: TaskAFaire}

	task.SetStatus(TaskTerminee, now)
	if task.CompletedAt == nil || !task.CompletedAt.Equal(now) {
		t.Fatalf("CompletedAt = %v, want %v", task.CompletedAt, now)
	}

	// Re-saving a finished task keeps the original completion time.
	task.SetStatus(TaskTerminee, now.Add(time.Hour))
	if !task.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt moved to %v", task.CompletedAt)
	}

	task.SetStatus(TaskAFaire, now)
	if task.CompletedAt != nil {
		t.Errorf("CompletedAt = %v, want nil", task.CompletedAt)
	}
}

func TestClient_DisplayName(t *testing.T) {
	tests := []struct {
		name   string
		client Client
		want   string
	}{
		{"person", Client{Nom: "Martin", Prenom: "Jeanne"}, "Martin Jeanne"},
		{"company", Client{Nom: "Durand", RaisonSociale: "ACME SAS"}, "ACME SAS"},
		{"no first name", Client{Nom: "Martin"}, "Martin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.client.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEvenement_Location(t *testing.T) {
	e := &Evenement{Lieu: "Tribunal judiciaire", Adresse: "4 boulevard du Palais", CodePostal: "75001", Ville: "Paris"}
	if got, want := e.Location(), "Tribunal judiciaire, 4 boulevard du Palais, 75001 Paris"; got != want {
		t.Errorf("Location() = %q, want %q", got, want)
	}
	if got := (&Evenement{}).Location(); got != "" {
		t.Errorf("empty Location() = %q", got)
	}
}

func TestEvenement_NeedsPush(t *testing.T) {
	synced := time.Now()
	e := &Evenement{SyncGoogle: true, GoogleEventID: "abc", GoogleLastSync: &synced, UpdatedAt: synced.Add(-time.Minute)}
	if e.NeedsPush() {
		t.Error("up to date event should not need a push")
	}
	e.UpdatedAt = synced.Add(time.Minute)
	if !e.NeedsPush() {
		t.Error("edited event should need a push")
	}
	e.SyncGoogle = false
	if e.NeedsPush() {
		t.Error("event without sync flag never needs a push")
	}
}

func TestDocument_VisibleTo(t *testing.T) {
	if (&Document{Location: LocationCabinet}).VisibleTo(true) {
		t.Error("internal cabinet document must stay hidden")
	}
	if (&Document{Location: LocationClient, Sensible: true}).VisibleTo(false) {
		t.Error("sensitive document hidden without permission")
	}
	if !(&Document{Location: LocationCabinet, VisibleClient: true}).VisibleTo(false) {
		t.Error("shared document should be visible")
	}
}
