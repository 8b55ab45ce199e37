package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"REDIS_URL":                  "redis://localhost:6379/0",
		"CART_TTL":                   "",
		"CART_IDLE_TTL":              "",
		"PRICING_LOAF_PAIR_DISCOUNT": "",
		"WORKER_CONCURRENCY":         "",
		"SECURITY_HEADERS_ENABLED":   "",
		"CURRENCY_CODE":              "",
		"PORT":                       "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "cart:", cfg.CartKeyPrefix)
	require.Equal(t, 168*time.Hour, cfg.CartTTL)
	require.Equal(t, 30*time.Minute, cfg.CartIdleTTL)
	require.EqualValues(t, 400, cfg.LoafPairDiscount)
	require.Equal(t, "USD", cfg.CurrencyCode)
	require.Equal(t, 5, cfg.WorkerConcurrency)
	require.True(t, cfg.SecurityHeadersEnabled)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"REDIS_URL":                  "redis://localhost:6379/0",
		"PORT":                       ":9090",
		"CART_TTL":                   "2h",
		"CART_IDLE_TTL":              "5h",
		"CART_WRITE_TIMEOUT":         "bogus",
		"PRICING_LOAF_PAIR_DISCOUNT": "250",
		"CURRENCY_CODE":              "eur",
		"CORS_ALLOWED_ORIGINS":       "https://a.example, ,https://b.example",
		"SECURITY_HEADERS_ENABLED":   "off",
		"RATE_LIMIT_CART_MAX":        "30",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 2*time.Hour, cfg.CartTTL)
	require.Equal(t, 2*time.Hour, cfg.CartIdleTTL)
	require.Equal(t, 2*time.Second, cfg.CartWriteTimeout)
	require.EqualValues(t, 250, cfg.LoafPairDiscount)
	require.Equal(t, "EUR", cfg.CurrencyCode)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.False(t, cfg.SecurityHeadersEnabled)
	require.Equal(t, 30, cfg.RateLimitCartMax)
}

func TestLoadRequiresRedis(t *testing.T) {
	_, err := LoadForTests(map[string]string{"REDIS_URL": ""})
	require.EqualError(t, err, "REDIS_URL is required")
}

func TestLoadRejectsNegativeDiscount(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"REDIS_URL":                  "redis://localhost:6379/0",
		"PRICING_LOAF_PAIR_DISCOUNT": "-1",
	})
	require.Error(t, err)
}
