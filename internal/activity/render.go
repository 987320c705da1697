package activity

import (
	"fmt"

	"github.com/diewo77/portail-cabinet/internal/models"
)

// Display is how the front-end shows one entry.
type Display struct {
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

var statusLabels = map[string]string{
	"ouvert":     "Ouvert",
	"en_cours":   "En cours",
	"en_attente": "En attente",
	"audience":   "Audience",
	"clos":       "Clos",
	"archive":    "Archivé",
}

func meta(l models.ActivityLog, key string) string {
	if l.Metadata == nil {
		return ""
	}
	v, ok := l.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func label(status string) string {
	if s, ok := statusLabels[status]; ok {
		return s
	}
	return status
}

// Render never fails: unknown actions get the generic tuple.
func Render(l models.ActivityLog) Display {
	by := l.ActorName
	if by == "" {
		by = "Système"
	}
	switch l.Action {
	case "dossier.created":
		return Display{"folder-plus", "blue", "Dossier créé", fmt.Sprintf("%s a ouvert le dossier %s", by, meta(l, "reference"))}
	case "dossier.updated":
		return Display{"pencil", "gray", "Dossier modifié", fmt.Sprintf("%s a modifié le dossier", by)}
	case "dossier.status_changed":
		return Display{"refresh", "amber", "Statut modifié",
			fmt.Sprintf("%s → %s", label(meta(l, "from")), label(meta(l, "to")))}
	case "dossier.deleted":
		return Display{"trash", "red", "Dossier supprimé", meta(l, "reference")}
	case "dossier.onedrive_folders":
		return Display{"cloud", "sky", "Dossiers OneDrive créés", meta(l, "path")}
	case "document.uploaded":
		return Display{"upload", "green", "Document ajouté", fmt.Sprintf("%s a ajouté « %s »", by, meta(l, "nom"))}
	case "document.updated":
		return Display{"file-pen", "gray", "Document modifié", meta(l, "nom")}
	case "document.deleted":
		return Display{"file-x", "red", "Document supprimé", meta(l, "nom")}
	case "document.synced_onedrive":
		return Display{"cloud-upload", "sky", "Document synchronisé sur OneDrive", meta(l, "nom")}
	case "document.imported_onedrive":
		return Display{"cloud-download", "sky", "Document importé depuis OneDrive", meta(l, "nom")}
	case "event.created":
		return Display{"calendar-plus", "purple", "Événement créé", meta(l, "titre")}
	case "event.updated":
		return Display{"calendar", "purple", "Événement modifié", meta(l, "titre")}
	case "event.deleted":
		return Display{"calendar-x", "red", "Événement supprimé", meta(l, "titre")}
	case "event.google_synced":
		return Display{"calendar-check", "teal", "Événement synchronisé avec Google Agenda", meta(l, "titre")}
	case "event.google_imported":
		return Display{"calendar-down", "teal", "Événement importé depuis Google Agenda", meta(l, "titre")}
	case "note.created":
		return Display{"sticky-note", "yellow", "Note ajoutée", fmt.Sprintf("%s a ajouté une note", by)}
	case "note.updated":
		return Display{"sticky-note", "gray", "Note modifiée", meta(l, "titre")}
	case "note.deleted":
		return Display{"sticky-note", "red", "Note supprimée", meta(l, "titre")}
	case "note.pinned":
		return Display{"pin", "yellow", "Note épinglée", meta(l, "titre")}
	case "note.unpinned":
		return Display{"pin-off", "gray", "Note désépinglée", meta(l, "titre")}
	case "task.created":
		return Display{"list-plus", "indigo", "Tâche créée", meta(l, "titre")}
	case "task.updated":
		return Display{"list", "gray", "Tâche modifiée", meta(l, "titre")}
	case "task.completed":
		return Display{"check-circle", "green", "Tâche terminée", meta(l, "titre")}
	case "task.reopened":
		return Display{"rotate-ccw", "amber", "Tâche rouverte", meta(l, "titre")}
	case "task.deleted":
		return Display{"list-x", "red", "Tâche supprimée", meta(l, "titre")}
	case "appointment.requested":
		return Display{"calendar-clock", "blue", "Demande de rendez-vous", meta(l, "objet")}
	case "appointment.accepted":
		return Display{"calendar-check", "green", "Rendez-vous accepté", meta(l, "objet")}
	case "appointment.refused":
		return Display{"calendar-x", "red", "Rendez-vous refusé", meta(l, "objet")}
	case "onedrive.connected":
		return Display{"cloud", "sky", "OneDrive connecté", meta(l, "account")}
	case "onedrive.disconnected":
		return Display{"cloud-off", "gray", "OneDrive déconnecté", ""}
	case "onedrive.sync":
		return Display{"refresh", "sky", "Synchronisation OneDrive", syncSummary(l)}
	case "google.connected":
		return Display{"calendar", "teal", "Google Agenda connecté", meta(l, "account")}
	case "google.disconnected":
		return Display{"calendar-off", "gray", "Google Agenda déconnecté", ""}
	case "google.sync":
		return Display{"refresh", "teal", "Synchronisation Google Agenda", syncSummary(l)}
	default:
		return Display{Icon: "activity", Color: "gray", Title: "Activité", Description: l.Action}
	}
}

func syncSummary(l models.ActivityLog) string {
	return fmt.Sprintf("%s : %s créé(s), %s mis à jour, %s supprimé(s), %s erreur(s)",
		meta(l, "status"), meta(l, "created"), meta(l, "updated"), meta(l, "deleted"), meta(l, "errors"))
}
