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

	"github.com/noah-isme/backend-pressing/internal/geo"
	"github.com/noah-isme/backend-pressing/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	CORSAllowedOrigins []string
	BodyLimitBytes     int64
	RunMigrations      bool

	CatalogCacheTTL       time.Duration
	CatalogBreakerMinReq  int
	CatalogBreakerRatio   float64
	CatalogBreakerOpenFor time.Duration

	Pricing pricing.Config

	RegionTablePath string
	Regions         geo.RegionTable
	MetroCity       string
	Country         string
	FallbackLat     float64
	FallbackLng     float64
	RecenterDelay   time.Duration

	IdempotencyTTL   time.Duration
	RateLimitAddress string
	RateLimitDrafts  string

	HandoffQueue       string
	HandoffMaxRetry    int
	HandoffConcurrency int

	LogFormat       string
	LogLevel        string
	MetricsEnabled  bool
	MetricsBuckets  string
	TracingEnabled  bool
	TracingEndpoint string
	ServiceName     string

	// OTLP metrics, used for instruments recorded on the OpenTelemetry meter.
	OTelMetricsEnabled  bool
	OTelMetricsEndpoint string
	OTelMetricsInterval time.Duration
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
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BodyLimitBytes:     parseInt64(k.String("BODY_LIMIT_BYTES"), 1<<20),
		RunMigrations:      parseBool(valueOrDefault(k.String("DB_RUN_MIGRATIONS"), "true")),

		CatalogCacheTTL:       parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CatalogBreakerMinReq:  int(parseInt64(k.String("CATALOG_BREAKER_MIN_REQUESTS"), 10)),
		CatalogBreakerRatio:   parseFloat(k.String("CATALOG_BREAKER_FAILURE_RATIO"), 0.5),
		CatalogBreakerOpenFor: parseDuration(k.String("CATALOG_BREAKER_OPEN_FOR"), "30s"),

		Pricing: pricing.Config{
			FreeDeliveryThreshold: parseInt64(k.String("PRICING_FREE_DELIVERY_THRESHOLD"), pricing.DefaultFreeDeliveryThreshold),
			DeliveryFee:           parseInt64(k.String("PRICING_DELIVERY_FEE"), pricing.DefaultDeliveryFee),
			ServiceFee:            parseInt64(k.String("PRICING_SERVICE_FEE"), pricing.DefaultServiceFee),
		},

		RegionTablePath: strings.TrimSpace(k.String("REGION_TABLE_PATH")),
		MetroCity:       valueOrDefault(k.String("GEO_METRO_CITY"), "Abidjan"),
		Country:         valueOrDefault(k.String("GEO_COUNTRY"), "Côte d'Ivoire"),
		FallbackLat:     parseFloat(k.String("GEO_FALLBACK_LAT"), geo.DefaultMetroCenter.Lat),
		FallbackLng:     parseFloat(k.String("GEO_FALLBACK_LNG"), geo.DefaultMetroCenter.Lng),
		RecenterDelay:   parseDuration(k.String("GEO_RECENTER_DELAY"), "300ms"),

		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimitAddress: valueOrDefault(k.String("RATE_LIMIT_ADDRESS"), "60-M"),
		RateLimitDrafts:  valueOrDefault(k.String("RATE_LIMIT_DRAFTS"), "20-M"),

		HandoffQueue:       valueOrDefault(k.String("HANDOFF_QUEUE"), "handoff"),
		HandoffMaxRetry:    int(parseInt64(k.String("HANDOFF_MAX_RETRY"), 10)),
		HandoffConcurrency: int(parseInt64(k.String("HANDOFF_CONCURRENCY"), 5)),

		LogFormat:       valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:        valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsEnabled:  parseBool(valueOrDefault(k.String("OBS_METRICS_ENABLED"), "true")),
		MetricsBuckets:  k.String("OBS_METRICS_BUCKETS_MS"),
		TracingEnabled:  parseBool(k.String("OBS_TRACING_ENABLED")),
		TracingEndpoint: strings.TrimSpace(k.String("OBS_TRACING_ENDPOINT")),
		ServiceName:     valueOrDefault(k.String("OBS_SERVICE_NAME"), "backend-pressing"),

		OTelMetricsEnabled:  parseBool(k.String("OBS_OTEL_METRICS_ENABLED")),
		OTelMetricsEndpoint: strings.TrimSpace(k.String("OBS_OTEL_METRICS_ENDPOINT")),
		OTelMetricsInterval: parseDuration(k.String("OBS_OTEL_METRICS_INTERVAL"), "30s"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if err := cfg.Pricing.Validate(); err != nil {
		return nil, err
	}

	regions, err := geo.LoadRegionTable(cfg.RegionTablePath)
	if err != nil {
		return nil, fmt.Errorf("load region table: %w", err)
	}
	cfg.Regions = regions

	return cfg, nil
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

// FallbackPosition is the position used when geolocation fails.
func (c *Config) FallbackPosition() geo.Position {
	return geo.Position{Lat: c.FallbackLat, Lng: c.FallbackLng}
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
		return value
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

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt64(value string, fallback int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

// MustLoad behaves like Load but panics on error.
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
