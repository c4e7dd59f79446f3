package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: development
jwt:
  secret: test-secret
oauth:
  tiktok:
    client_id: tk-key
    client_secret: tk-secret
    redirect_uri: http://localhost:8080/oauth/callback/tiktok
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-secret", cfg.JWT.Secret)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.SessionTTL)
	assert.Equal(t, "auth-token", cfg.Session.CookieName)
	assert.Equal(t, 12, cfg.Security.BcryptCost)
	assert.True(t, cfg.OAuth.TikTok.Configured())
	assert.False(t, cfg.OAuth.Facebook.Configured())
	assert.Equal(t, "https://open.tiktokapis.com/v2/oauth/token/", cfg.OAuth.TikTok.TokenURL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("POSTDECK_JWT_SECRET", "from-env")
	t.Setenv("POSTDECK_SERVER_PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_MissingSecret(t *testing.T) {
	_, err := Load(writeConfig(t, "environment: development\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")
}

func TestValidate_ProductionSecretLength(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		Database:    DatabaseConfig{URL: "file:test.db"},
		JWT:         JWTConfig{Secret: "short", SessionTTL: time.Hour, StateTTL: time.Minute},
		Session:     SessionConfig{CookieName: "auth-token"},
		Security:    SecurityConfig{BcryptCost: 12},
		OAuth:       OAuthConfig{DashboardURL: "http://localhost"},
		Worker:      WorkerConfig{PurgeInterval: time.Hour},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 bytes")

	cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, cfg.Validate())
}
