package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 10, cfg.Links.ShortCodeLength)
	assert.Equal(t, 20, cfg.Links.ExpiryDays)
	assert.Equal(t, 24*20, cfg.Links.TokenTTLHours)
	assert.Equal(t, 10.0, cfg.Processor.SendsPerSecond)
	assert.Equal(t, 30, cfg.Processor.LockTTLMinutes)
	assert.Equal(t, 30, cfg.Processor.SubscriberRetentionDays)
	assert.NotEmpty(t, cfg.Database.URL)
}

func TestLoad_ReadsValues(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://felag@db.internal/mail
links:
  base_url: https://fel.ag
  default_redirect_url: https://fel.ag/home
  expiry_days: 7
mail:
  default_from: felag@fel.ag
  region: eu-north-1
processor:
  sends_per_second: 2.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://felag@db.internal/mail", cfg.Database.URL)
	assert.Equal(t, "https://fel.ag", cfg.Links.BaseURL)
	assert.Equal(t, "https://fel.ag/home", cfg.Links.DefaultRedirectURL)
	assert.Equal(t, 7, cfg.Links.ExpiryDays)
	assert.Equal(t, "felag@fel.ag", cfg.Mail.DefaultFrom)
	assert.Equal(t, "eu-north-1", cfg.Mail.Region)
	assert.Equal(t, 2.5, cfg.Processor.SendsPerSecond)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env@db/override")
	t.Setenv("LINKS_BASE_URL", "https://env.fel.ag")
	t.Setenv("SERVER_PORT", "9999")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env@db/override", cfg.Database.URL)
	assert.Equal(t, "https://env.fel.ag", cfg.Links.BaseURL)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadFromEnv_MissingFileIsNotFatal(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	cfg, err := LoadFromEnv("does-not-exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}
