// Package db opens the database, applies migrations and seeds the super admin.
package db

import (
	"errors"
	"fmt"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/portail-cabinet/internal/config"
	"github.com/diewo77/portail-cabinet/internal/models"
)

// Connect opens PostgreSQL, retrying while the server starts up.
func Connect(cfg config.DatabaseConfig, debug bool, log *zap.Logger) (*gorm.DB, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel), TranslateError: true}

	var (
		database *gorm.DB
		err      error
	)
	for i := 0; i < 10; i++ {
		database, err = gorm.Open(postgres.Open(cfg.DSN()), gcfg)
		if err == nil {
			break
		}
		log.Warn("database connection failed, retrying", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if pingErr := database.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}
	log.Info("database connected", zap.String("host", cfg.Host), zap.String("name", cfg.DBName))
	return database, nil
}

// Migrate applies the schema. With sqlURL set, the SQL files under dir are run
// through golang-migrate; otherwise gorm AutoMigrate is used.
func Migrate(database *gorm.DB, sqlURL, dir string) error {
	if sqlURL != "" {
		return runSQLMigrations(sqlURL, dir)
	}
	for _, m := range models.All() {
		if err := database.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

func runSQLMigrations(url, dir string) error {
	if dir == "" {
		dir = "migrations"
	}
	m, err := migrate.New("file://"+dir, url)
	if err != nil {
		return err
	}
	defer m.Close()
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
