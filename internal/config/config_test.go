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
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithMissingFile(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, defaultIssuer, cfg.JWT.Issuer)
	assert.Equal(t, defaultAudience, cfg.JWT.Audience)
	assert.Equal(t, time.Hour, cfg.JWT.AccessTTL.Std())
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTTL.Std())
	assert.Equal(t, time.Hour, cfg.JWT.ResetTTL.Std())
	assert.Equal(t, 5, cfg.Security.BruteForceThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Security.BruteForceWindow.Std())
	assert.Equal(t, 30*time.Minute, cfg.Security.BruteForceLockout.Std())
	assert.Equal(t, int64(1<<20), cfg.Security.MaxBodyBytes)
	assert.True(t, cfg.Security.BlockOnHighRiskEnabled())
}

func TestLoadRequiresSecret(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestLoadParsesFile(t *testing.T) {
	path := writeConfig(t, `
port: 4000
env: production
allowed_origins: ["https://app.example.com", "*.example.org"]
jwt:
  secret: file-secret
  access_ttl: 30m
  refresh_ttl: 72h
security:
  brute_force_threshold: 3
  brute_force_lockout: 1h
  block_on_high_risk: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, "file-secret", cfg.JWT.Secret)
	assert.Equal(t, 30*time.Minute, cfg.JWT.AccessTTL.Std())
	assert.Equal(t, 72*time.Hour, cfg.JWT.RefreshTTL.Std())
	assert.Equal(t, 3, cfg.Security.BruteForceThreshold)
	assert.Equal(t, time.Hour, cfg.Security.BruteForceLockout.Std())
	assert.False(t, cfg.Security.BlockOnHighRiskEnabled())
	assert.Equal(t, []string{"https://app.example.com", "*.example.org"}, cfg.AllowedOrigins)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := writeConfig(t, `
port: 4000
jwt:
  secret: file-secret
`)
	t.Setenv("AUTH_PORT", "5000")
	t.Setenv("AUTH_JWT_SECRET", "env-secret")
	t.Setenv("AUTH_ENV", "production")
	t.Setenv("AUTH_FRONTEND_URL", "https://app.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "https://app.example.com", cfg.FrontendURL)
}

func TestSMTPEnvEnablesMail(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "s")
	t.Setenv("AUTH_SMTP_HOST", "smtp.example.com")
	t.Setenv("AUTH_SMTP_PORT", "465")
	t.Setenv("AUTH_SMTP_USER", "mailer")
	t.Setenv("AUTH_SMTP_PASS", "hunter2")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)

	assert.True(t, cfg.Mail.Enable)
	assert.Equal(t, "smtp.example.com", cfg.Mail.Host)
	assert.Equal(t, 465, cfg.Mail.Port)
	assert.Equal(t, "mailer", cfg.Mail.User)
	assert.Equal(t, "hunter2", cfg.Mail.Pass)
}

func TestRefreshSecretFallsBack(t *testing.T) {
	jc := JWTConfig{Secret: "primary"}
	assert.Equal(t, "primary", jc.RefreshSecretValue())

	jc.RefreshSecret = "rotated"
	assert.Equal(t, "rotated", jc.RefreshSecretValue())
}
