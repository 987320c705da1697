package models

// All lists every persisted model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&Admin{},
		&Client{},
		&Dossier{},
		&Document{},
		&Evenement{},
		&Note{},
		&Task{},
		&Favorite{},
		&AppointmentRequest{},
		&ActivityLog{},
		&SyncLog{},
		&OAuthToken{},
	}
}
