package db

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/config"
	"github.com/diewo77/portail-cabinet/internal/models"
)

// Seed creates the super admin once. The role cannot be granted through the API,
// so this is the only way it comes into existence.
func Seed(database *gorm.DB, cfg config.SeedConfig, log *zap.Logger) error {
	var count int64
	if err := database.Model(&models.Admin{}).Where("role = ?", models.RoleSuperAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if cfg.SuperAdminPassword == "" {
		log.Warn("SUPER_ADMIN_PASSWORD not set; super admin not seeded")
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(cfg.SuperAdminEmail))
	var existing models.Admin
	err := database.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return fmt.Errorf("seed: %s already belongs to a regular admin", email)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.SuperAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := models.Admin{
		Name:     cfg.SuperAdminName,
		Email:    email,
		Password: string(hash),
		Role:     models.RoleSuperAdmin,
		IsActive: true,
	}
	if err := database.Create(&admin).Error; err != nil {
		return err
	}
	log.Info("super admin seeded", zap.String("email", email))
	return nil
}
