package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/test")

	cfg := LoadConfig()
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, time.Hour, cfg.PriceCacheTTL)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("POSTGRES_DSN", " postgres://localhost/prod \n")
	t.Setenv("STRIPE_SECRET_KEY", "sk_live_123")
	t.Setenv("PRICE_CACHE_TTL", "30m")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com,https://example.com")
	t.Setenv("DEBUG", "true")

	cfg := LoadConfig()
	assert.True(t, cfg.IsProduction())
	// env values are trimmed
	assert.Equal(t, "postgres://localhost/prod", cfg.PostgresDSN)
	assert.Equal(t, "sk_live_123", cfg.StripeSecretKey)
	assert.Equal(t, 30*time.Minute, cfg.PriceCacheTTL)
	assert.Equal(t, []string{"https://app.example.com", "https://example.com"}, cfg.AllowedOrigins)
	// debug is forced off in production
	assert.False(t, cfg.Debug)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Environment: "development",
		Port:        "3000",
		PostgresDSN: "postgres://localhost/test",
		JWTSecret:   "secret",
	}
	require.NoError(t, cfg.Validate())

	cfg.PostgresDSN = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsDefaultSecretInProduction(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		Port:        "3000",
		PostgresDSN: "postgres://localhost/prod",
		JWTSecret:   "your-secret-key-change-in-production",
	}
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "real-secret"
	assert.NoError(t, cfg.Validate())
}
