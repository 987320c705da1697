package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/diewo77/portail-cabinet/internal/app"
	"github.com/diewo77/portail-cabinet/internal/config"
	"github.com/diewo77/portail-cabinet/internal/db"
	"github.com/diewo77/portail-cabinet/internal/logging"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.Init(logging.ConfigFromEnv())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	dbConn, err := db.Connect(cfg.Database, cfg.App.Dev, logger)
	if err != nil {
		return err
	}

	migrationsURL := ""
	if cfg.App.Migrations {
		migrationsURL = cfg.Database.URL()
	}
	if *migrateOnlyFlag {
		if err := db.Migrate(dbConn, migrationsURL, "migrations"); err != nil {
			return err
		}
		logger.Info("migrations completed")
		return nil
	}
	if *seedOnlyFlag {
		if err := db.Seed(dbConn, cfg.Seed, logger); err != nil {
			return err
		}
		logger.Info("seeding completed")
		return nil
	}

	if err := db.Migrate(dbConn, migrationsURL, "migrations"); err != nil {
		return err
	}
	if err := db.Seed(dbConn, cfg.Seed, logger); err != nil {
		return err
	}

	components, err := app.Build(cfg, dbConn, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      NewApp(components),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workersDone := make(chan error, 1)
	go func() { workersDone <- components.RunWorkers(ctx) }()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.Bool("dev", cfg.App.Dev),
			zap.Bool("onedrive_configured", cfg.OneDrive.Configured()),
			zap.Bool("google_configured", cfg.Google.Configured()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		stop()
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	if err := <-workersDone; err != nil {
		logger.Error("sync workers", zap.Error(err))
	}
	logger.Info("server stopped gracefully")
	return nil
}
