package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
port: 8080
env: Production
redis_url: redis://redis:6379/1
api_key: file-key
allowed_origins:
  - https://blog.ordbokapi.org
cipher:
  key: "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
  iv: "0f0e0d0c0b0a09080706050403020100"
  salt: "s:"
mail:
  host: smtp.example.org
  port: 465
  user: notify
  from: Ordbok API <notify@example.org>
links:
  web_base_url: https://blog.example.org
worker:
  poll_interval: 2s
  concurrency: 3
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "redis://redis:6379/1", cfg.RedisURL)
	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, "smtp.example.org", cfg.Mail.Host)
	assert.Equal(t, 465, cfg.Mail.Port)
	assert.Equal(t, "https://blog.example.org", cfg.Links.WebBaseURL)
	assert.Equal(t, 2*time.Second, cfg.Worker.PollInterval.Std())
	assert.Equal(t, 3, cfg.Worker.Concurrency)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NOTIFY_RECORD_KEY", "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	t.Setenv("NOTIFY_RECORD_IV", "0f0e0d0c0b0a09080706050403020100")
	t.Setenv("NOTIFY_API_KEY", "env-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, defaultEnv, cfg.Env)
	assert.Equal(t, defaultRedisURL, cfg.RedisURL)
	assert.Equal(t, "env-key", cfg.APIKey)
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("NOTIFY_API_KEY", "env-key")
	t.Setenv("NOTIFY_SMTP_PASSWORD", "env-pass")

	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "env-pass", cfg.Mail.Pass)
}

func TestLoadRequiresCipherMaterial(t *testing.T) {
	_, err := Load(writeConfig(t, "port: 8080\napi_key: k\n"))
	assert.Error(t, err)
}

func TestLoadRequiresAPIKey(t *testing.T) {
	_, err := Load(writeConfig(t, `
cipher:
  key: "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
  iv: "0f0e0d0c0b0a09080706050403020100"
`))
	assert.Error(t, err)
}
