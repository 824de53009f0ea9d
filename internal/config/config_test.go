package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("INTAKE_BASE_URL", "https://help.example.com/")
	t.Setenv("INTAKE_KEY_PREFIX", "sup")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://help.example.com", cfg.Intake.BaseURL)
	assert.Equal(t, "SUP", cfg.Intake.KeyPrefix)
	assert.Equal(t, "unassigned-intake", cfg.Intake.UnassignedOrgSlug)
	assert.Equal(t, 168*time.Hour, cfg.Token.ViewTTL())
	assert.Equal(t, time.Hour, cfg.Abuse.Window())
	assert.Equal(t, 3, cfg.Abuse.MaxLinks)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresTokenKeyInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("TOKEN_HASH_KEY", "")
	t.Setenv("PORTAL_JWT_SECRET", "a-real-secret")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("TOKEN_HASH_KEY", "a-real-key")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "a-real-key", cfg.Token.HashKey)
}

func TestLoadRequiresPortalSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("TOKEN_HASH_KEY", "a-real-key")
	t.Setenv("PORTAL_JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "PORTAL_JWT_SECRET")

	t.Setenv("PORTAL_JWT_SECRET", "a-real-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "a-real-secret", cfg.Portal.JWTSecret)
}

func TestDurationFallbacks(t *testing.T) {
	assert.Equal(t, 5*time.Minute, TokenConfig{}.ResendInterval())
	assert.Equal(t, time.Hour, PortalConfig{GrantTTLMinutes: -1}.GrantTTL())
	assert.Equal(t, 30*time.Minute, RateLimitConfig{WindowMinutes: 30}.Window())
	assert.Equal(t, time.Duration(0), AppConfig{}.RequestTimeout())
}
