package models

import "time"

// Favorite pins a dossier or client on an admin's dashboard.
type Favorite struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	AdminID         uint   `gorm:"not null;uniqueIndex:idx_favorite_target" json:"admin_id"`
	FavoritableType string `gorm:"size:20;not null;uniqueIndex:idx_favorite_target" json:"favoritable_type"`
	FavoritableID   uint   `gorm:"not null;uniqueIndex:idx_favorite_target" json:"favoritable_id"`
}

var FavoriteTypes = []string{"dossier", "client"}
