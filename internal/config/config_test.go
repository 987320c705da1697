package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("HEALTH_CACHE_TTL", "")
	cfg := Load()
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "Portail Cabinet", cfg.OneDrive.RootFolder)
	assert.Equal(t, "Europe/Paris", cfg.Google.Timezone)
	assert.Equal(t, 30*time.Second, cfg.Sync.HealthCacheTTL)
	assert.False(t, cfg.Google.Configured())
}

func TestConfigured(t *testing.T) {
	t.Setenv("MICROSOFT_CLIENT_ID", "id")
	t.Setenv("MICROSOFT_CLIENT_SECRET", "secret")
	t.Setenv("MICROSOFT_REDIRECT_URI", "")
	assert.False(t, Load().OneDrive.Configured(), "redirect uri missing")

	t.Setenv("MICROSOFT_REDIRECT_URI", "http://localhost/api/onedrive/callback")
	assert.True(t, Load().OneDrive.Configured())
}

func TestDatabaseURL(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5433/n?sslmode=disable", d.URL())
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=disable", d.DSN())
}
