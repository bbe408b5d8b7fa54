package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	PublicBaseURL string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Telemetry TelemetryConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Stripe    StripeConfig
	Auth      AuthConfig
	Ledger    LedgerConfig
	Widget    WidgetConfig
}

type TelemetryConfig struct {
	LogLevel  string
	LogFormat string

	OtelEnabled bool
	// OtelEndpoint is host:port for grpc or a URL for http.
	OtelEndpoint  string
	OtelProtocol  string
	SamplingRatio float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled bool
	// WidgetRate is the sustained number of requests per second per api key.
	WidgetRate  float64
	WidgetBurst int64
	FailOpen    bool
}

type StripeConfig struct {
	WebhookSecret string
	// WebhookTolerance bounds the age of a signed webhook timestamp.
	WebhookTolerance time.Duration
}

type AuthConfig struct {
	SessionTTL        time.Duration
	SignupFreeCredits int64
	AdminEmails       []string
}

type WidgetConfig struct {
	// ScriptBaseURL hosts virtual-tryon-widget.min.js for embed snippets.
	ScriptBaseURL string
	KeyCacheSize  int
	KeyCacheTTL   time.Duration
}

type LedgerConfig struct {
	ReconcileInterval time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "tryon"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "tryon"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 50)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		Telemetry: TelemetryConfig{
			LogLevel:      getenv("LOG_LEVEL", "info"),
			LogFormat:     getenv("LOG_FORMAT", "json"),
			OtelEnabled:   getenvBool("OTEL_ENABLED", false),
			OtelEndpoint:  getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			OtelProtocol:  getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getenvBool("RATE_LIMIT_ENABLED", false),
			WidgetRate:  getenvFloat("RATE_LIMIT_WIDGET_RPS", 20),
			WidgetBurst: getenvInt64("RATE_LIMIT_WIDGET_BURST", 40),
			FailOpen:    getenvBool("RATE_LIMIT_FAIL_OPEN", true),
		},
		Stripe: StripeConfig{
			WebhookSecret:    strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			WebhookTolerance: getenvDuration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
		},
		Auth: AuthConfig{
			SessionTTL:        getenvDuration("SESSION_TTL", 7*24*time.Hour),
			SignupFreeCredits: getenvInt64("SIGNUP_FREE_CREDITS", 0),
			AdminEmails:       splitList(getenv("ADMIN_EMAILS", "")),
		},
		Ledger: LedgerConfig{
			ReconcileInterval: getenvDuration("LEDGER_RECONCILE_INTERVAL", time.Hour),
		},
		Widget: WidgetConfig{
			ScriptBaseURL: strings.TrimRight(getenv("FRONT_END_URL", "https://cdn.virtualfit.com"), "/"),
			KeyCacheSize:  int(getenvInt64("WIDGET_KEY_CACHE_SIZE", 4096)),
			KeyCacheTTL:   getenvDuration("WIDGET_KEY_CACHE_TTL", time.Minute),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go durations ("90s") or a bare number of seconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
