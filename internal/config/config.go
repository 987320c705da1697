// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Session  SessionConfig
	Seed     SeedConfig
	OneDrive OneDriveConfig
	Google   GoogleConfig
	Sync     SyncConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool
	Migrations bool
	// URL is the front-end base URL OAuth callbacks redirect to.
	URL string
	// StorageDir holds the local copy of uploaded documents.
	StorageDir string
	// MaxUploadMB caps multipart uploads.
	MaxUploadMB int
}

type SessionConfig struct {
	Secret string
}

// SeedConfig describes the single super admin created on first boot.
type SeedConfig struct {
	SuperAdminEmail    string
	SuperAdminPassword string
	SuperAdminName     string
}

// OneDriveConfig holds Microsoft identity platform and Graph settings.
type OneDriveConfig struct {
	ClientID     string
	ClientSecret string
	Tenant       string
	RedirectURI  string
	RootFolder   string
	GraphBaseURL string
}

// Configured reports whether the OAuth application credentials are all set.
func (c OneDriveConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

// GoogleConfig holds Google OAuth and Calendar API settings.
type GoogleConfig struct {
	ClientID        string
	ClientSecret    string
	RedirectURI     string
	CalendarBaseURL string
	Timezone        string
}

func (c GoogleConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

// SyncConfig tunes the background job queue and full synchronizations.
type SyncConfig struct {
	QueueSize      int
	Workers        int
	PastDays       int
	FutureDays     int
	HealthCacheTTL time.Duration
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "portail"),
			Password: getEnv("DB_PASSWORD", "portail"),
			DBName:   getEnv("DB_NAME", "portail"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		App: AppConfig{
			Dev:         getEnvBool("DEV", true),
			Migrations:  getEnvBool("MIGRATIONS", false),
			URL:         getEnv("APP_URL", "http://localhost:5173"),
			StorageDir:  getEnv("STORAGE_DIR", "storage"),
			MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 50),
		},
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", "devsessionsecret"),
		},
		Seed: SeedConfig{
			SuperAdminEmail:    getEnv("SUPER_ADMIN_EMAIL", "admin@cabinet.local"),
			SuperAdminPassword: os.Getenv("SUPER_ADMIN_PASSWORD"),
			SuperAdminName:     getEnv("SUPER_ADMIN_NAME", "Administrateur"),
		},
		OneDrive: OneDriveConfig{
			ClientID:     os.Getenv("MICROSOFT_CLIENT_ID"),
			ClientSecret: os.Getenv("MICROSOFT_CLIENT_SECRET"),
			Tenant:       getEnv("MICROSOFT_TENANT", "common"),
			RedirectURI:  os.Getenv("MICROSOFT_REDIRECT_URI"),
			RootFolder:   getEnv("ONEDRIVE_ROOT_FOLDER", "Portail Cabinet"),
			GraphBaseURL: getEnv("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"),
		},
		Google: GoogleConfig{
			ClientID:        os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret:    os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURI:     os.Getenv("GOOGLE_REDIRECT_URI"),
			CalendarBaseURL: getEnv("GOOGLE_CALENDAR_BASE_URL", "https://www.googleapis.com/calendar/v3"),
			Timezone:        getEnv("GOOGLE_TIMEZONE", "Europe/Paris"),
		},
		Sync: SyncConfig{
			QueueSize:      getEnvInt("SYNC_QUEUE_SIZE", 256),
			Workers:        getEnvInt("SYNC_WORKERS", 1),
			PastDays:       getEnvInt("SYNC_WINDOW_PAST_DAYS", 30),
			FutureDays:     getEnvInt("SYNC_WINDOW_FUTURE_DAYS", 365),
			HealthCacheTTL: time.Duration(getEnvInt("HEALTH_CACHE_TTL", 30)) * time.Second,
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
