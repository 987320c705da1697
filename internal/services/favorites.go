package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/validation"
)

const (
	FavoriteDossier = "dossier"
	FavoriteClient  = "client"
)

// FavoriteItem is a favorite with its resolved target. Excluded marks a
// target deleted since it was pinned.
type FavoriteItem struct {
	models.Favorite
	Excluded bool            `json:"excluded"`
	Dossier  *models.Dossier `json:"dossier,omitempty"`
	Client   *models.Client  `json:"client,omitempty"`
}

type FavoriteService struct {
	db *gorm.DB
}

func NewFavoriteService(db *gorm.DB) *FavoriteService { return &FavoriteService{db: db} }

// Toggle adds the (type, id) pair to the admin's favorites or removes it, and
// returns the new membership. At most one row exists per pair.
func (s *FavoriteService) Toggle(ctx context.Context, adminID uint, typ string, id uint) (bool, error) {
	v := make(validation.Violations)
	validation.Required("type", typ, v)
	validation.OneOf("type", typ, models.FavoriteTypes, v)
	if id == 0 {
		v["id"] = "required"
	}
	if err := invalid(v); err != nil {
		return false, err
	}
	var added bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("admin_id = ? AND favoritable_type = ? AND favoritable_id = ?", adminID, typ, id).
			Delete(&models.Favorite{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			added = false
			return nil
		}
		var target any = &models.Dossier{}
		if typ == FavoriteClient {
			target = &models.Client{}
		}
		var n int64
		if err := tx.Model(target).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		added = true
		return tx.Create(&models.Favorite{AdminID: adminID, FavoritableType: typ, FavoritableID: id}).Error
	})
	if isDuplicate(err) {
		// a concurrent toggle inserted the same pair
		return true, nil
	}
	return added, err
}

// IsFavorite reports membership of one pair.
func (s *FavoriteService) IsFavorite(ctx context.Context, adminID uint, typ string, id uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Favorite{}).
		Where("admin_id = ? AND favoritable_type = ? AND favoritable_id = ?", adminID, typ, id).Count(&n).Error
	return n > 0, err
}

// List returns the admin's favorites, newest first, optionally of one type.
func (s *FavoriteService) List(ctx context.Context, adminID uint, typ string) ([]FavoriteItem, error) {
	q := s.db.WithContext(ctx).Where("admin_id = ?", adminID)
	if typ != "" {
		q = q.Where("favoritable_type = ?", typ)
	}
	var favs []models.Favorite
	if err := q.Order("created_at DESC, id DESC").Find(&favs).Error; err != nil {
		return nil, err
	}
	var dossierIDs, clientIDs []uint
	for _, f := range favs {
		if f.FavoritableType == FavoriteClient {
			clientIDs = append(clientIDs, f.FavoritableID)
		} else {
			dossierIDs = append(dossierIDs, f.FavoritableID)
		}
	}
	dossiers := map[uint]*models.Dossier{}
	if len(dossierIDs) > 0 {
		var rows []models.Dossier
		if err := s.db.WithContext(ctx).Preload("Client").Where("id IN ?", dossierIDs).Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			dossiers[rows[i].ID] = &rows[i]
		}
	}
	clients := map[uint]*models.Client{}
	if len(clientIDs) > 0 {
		var rows []models.Client
		if err := s.db.WithContext(ctx).Where("id IN ?", clientIDs).Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			clients[rows[i].ID] = &rows[i]
		}
	}
	out := make([]FavoriteItem, 0, len(favs))
	for _, f := range favs {
		item := FavoriteItem{Favorite: f}
		switch f.FavoritableType {
		case FavoriteClient:
			item.Client = clients[f.FavoritableID]
			item.Excluded = item.Client == nil
		default:
			item.Dossier = dossiers[f.FavoritableID]
			item.Excluded = item.Dossier == nil
		}
		out = append(out, item)
	}
	return out, nil
}

// forget removes every favorite pointing at a target.
func forget(tx *gorm.DB, typ string, id uint) error {
	err := tx.Where("favoritable_type = ? AND favoritable_id = ?", typ, id).Delete(&models.Favorite{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
