package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string

	CartKeyPrefix    string
	CartTTL          time.Duration
	CartIdleTTL      time.Duration
	CartWriteTimeout time.Duration

	LoafPairDiscount int64
	CurrencyCode     string

	CheckoutLockTTL  time.Duration
	LockRetryBackoff time.Duration
	LockMaxWait      time.Duration
	IdempotencyTTL   time.Duration

	QueueName         string
	QueueMaxRetry     int
	WorkerConcurrency int

	EnqueueMaxAttempts  int
	EnqueueBackoff      time.Duration
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration

	RateLimitCartMax    int
	RateLimitCartWindow time.Duration

	BodyLimitBytes         int64
	SecurityHeadersEnabled bool

	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsBuckets   string

	OTelServiceName   string
	OTelExporter      string
	OTelEndpoint      string
	OTelSamplingRatio float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		CartKeyPrefix:    valueOrDefault(k.String("CART_KEY_PREFIX"), "cart:"),
		CartTTL:          parseDuration(k.String("CART_TTL"), "168h"),
		CartIdleTTL:      parseDuration(k.String("CART_IDLE_TTL"), "30m"),
		CartWriteTimeout: parseDuration(k.String("CART_WRITE_TIMEOUT"), "2s"),

		LoafPairDiscount: int64(parseInt(k.String("PRICING_LOAF_PAIR_DISCOUNT"), 400)),
		CurrencyCode:     strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "USD")),

		CheckoutLockTTL:  parseDuration(k.String("CHECKOUT_LOCK_TTL"), "10s"),
		LockRetryBackoff: parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),
		LockMaxWait:      parseDuration(k.String("LOCK_MAX_WAIT"), "2s"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		QueueName:         valueOrDefault(k.String("QUEUE_NAME"), "orders"),
		QueueMaxRetry:     parseInt(k.String("QUEUE_MAX_RETRY"), 10),
		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 5),

		EnqueueMaxAttempts:  parseInt(k.String("QUEUE_ENQUEUE_ATTEMPTS"), 3),
		EnqueueBackoff:      parseDuration(k.String("QUEUE_ENQUEUE_BACKOFF"), "100ms"),
		BreakerMinRequests:  parseInt(k.String("QUEUE_BREAKER_MIN_REQUESTS"), 5),
		BreakerFailureRatio: parseFloat(k.String("QUEUE_BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:      parseDuration(k.String("QUEUE_BREAKER_OPEN_FOR"), "30s"),

		RateLimitCartMax:    parseInt(k.String("RATE_LIMIT_CART_MAX"), 120),
		RateLimitCartWindow: parseDuration(k.String("RATE_LIMIT_CART_WINDOW"), "1m"),

		BodyLimitBytes:         int64(parseInt(k.String("BODY_LIMIT_BYTES"), 64<<10)),
		SecurityHeadersEnabled: parseBoolDefault(k.String("SECURITY_HEADERS_ENABLED"), true),

		LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "bakery"),
		MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),

		OTelServiceName:   valueOrDefault(k.String("OTEL_SERVICE_NAME"), "bakery-api"),
		OTelExporter:      valueOrDefault(k.String("OTEL_EXPORTER"), "none"),
		OTelEndpoint:      k.String("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelSamplingRatio: parseFloat(k.String("OTEL_SAMPLING_RATIO"), 1),
	}

	if cfg.CartTTL > 0 && cfg.CartIdleTTL > cfg.CartTTL {
		cfg.CartIdleTTL = cfg.CartTTL
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.LoafPairDiscount < 0 {
		return nil, errors.New("PRICING_LOAF_PAIR_DISCOUNT must not be negative")
	}
	if cfg.QueueMaxRetry < 0 {
		return nil, errors.New("QUEUE_MAX_RETRY must not be negative")
	}
	if cfg.WorkerConcurrency <= 0 {
		return nil, errors.New("WORKER_CONCURRENCY must be positive")
	}

	return cfg, nil
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
