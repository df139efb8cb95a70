package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"NODE_ENV", "APP_ENV", "PORT", "CORS_ORIGINS", "DATABASE_URL", "MONGODB_URI", "DATABASE_NAME",
	"VAPID_SUBJECT", "VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY", "JWT_SECRET", "LOG_LEVEL",
	"TRUSTED_PROXIES",
}

func clearEnv(t *testing.T) {
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModeDevelopment, cfg.Mode)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 3600, cfg.Push.TTL)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, []string{"worker_pool.size is not set or invalid; defaulting to 1"}, cfg.Warnings)
	assert.Equal(t, int64(100<<10), cfg.Server.BodyLimitBytes)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "storefront", cfg.Database.Name)
	assert.Empty(t, cfg.Server.TrustedProxies)
}

func TestLoad_TrustedProxiesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.Server.TrustedProxies)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
mode: development
server:
  port: 7000
  allowed_origins: ["https://shop.example"]
database:
  uri: sqlite://file.db
push:
  subject: mailto:file@example.com
  vapid_public_key: file-public
  vapid_private_key: file-private
worker_pool:
  size: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("NODE_ENV", "production")
	t.Setenv("PORT", "8081")
	t.Setenv("VAPID_SUBJECT", "mailto:env@example.com")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeProduction, cfg.Mode)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, []string{"https://shop.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Database.URI)
	assert.Equal(t, "mailto:env@example.com", cfg.Push.Subject)
	assert.Equal(t, "file-public", cfg.Push.PublicKey)
	assert.Equal(t, 3, cfg.WorkerPool.Size)
	assert.Empty(t, cfg.Warnings)
}

func TestLoad_EmptyFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestLoad_InvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-port")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeProduction, ParseMode("production"))
	assert.Equal(t, ModeDevelopment, ParseMode("Production"))
	assert.Equal(t, ModeDevelopment, ParseMode("staging"))
	assert.Equal(t, ModeDevelopment, ParseMode(""))
	assert.True(t, ModeProduction.IsProduction())
	assert.False(t, ModeDevelopment.IsProduction())
}
