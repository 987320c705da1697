package oauth

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/models"
)

// TokenStore persists one token record per service key.
type TokenStore interface {
	Get(ctx context.Context, service string) (*models.OAuthToken, error)
	Save(ctx context.Context, tok *models.OAuthToken) error
	Delete(ctx context.Context, service string) error
}

// GormStore keeps tokens in the oauth_tokens table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

// Get returns (nil, nil) when the service has no token.
func (s *GormStore) Get(ctx context.Context, service string) (*models.OAuthToken, error) {
	var tok models.OAuthToken
	err := s.db.WithContext(ctx).Where("service = ?", service).First(&tok).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (s *GormStore) Save(ctx context.Context, tok *models.OAuthToken) error {
	return s.db.WithContext(ctx).Save(tok).Error
}

func (s *GormStore) Delete(ctx context.Context, service string) error {
	return s.db.WithContext(ctx).Where("service = ?", service).Delete(&models.OAuthToken{}).Error
}
