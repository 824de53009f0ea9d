package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Intake    IntakeConfig
	Webhook   WebhookConfig
	Token     TokenConfig
	Portal    PortalConfig
	Abuse     AbuseConfig
	RateLimit RateLimitConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	ProxyHeader           string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr                string
	Password            string
	DB                  int
	NotificationChannel string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// IntakeConfig drives ticket creation defaults.
type IntakeConfig struct {
	BaseURL            string
	KeyPrefix          string
	UnassignedOrgSlug  string
	MailDomain         string
	DefaultPriority    string
	DefaultCategory    string
	MaxAttachmentBytes int64
}

// WebhookConfig holds the shared secret for provider signatures. An empty
// secret disables the check.
type WebhookConfig struct {
	Secret       string
	MaxBodyBytes int
}

// TokenConfig defines magic link parameters.
type TokenConfig struct {
	HashKey               string
	ViewTTLHours          int
	ResendIntervalMinutes int
}

// PortalConfig controls the grant issued after a magic link is consumed.
type PortalConfig struct {
	JWTSecret       string
	GrantTTLMinutes int
	CookieName      string
	CookieSecure    bool
}

// AbuseConfig tunes the anti-abuse heuristics.
type AbuseConfig struct {
	WindowMinutes   int
	FreeAttempts    int
	DelayStepMillis int
	MaxDelayMillis  int
	MaxLinks        int
}

// RateLimitConfig bounds submissions per IP and per sender address.
type RateLimitConfig struct {
	WindowMinutes int
	PerIPLimit    int
	PerEmailLimit int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-intake"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			ProxyHeader:           os.Getenv("HTTP_PROXY_HEADER"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:                getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:            os.Getenv("REDIS_PASSWORD"),
			DB:                  redisDB,
			NotificationChannel: getEnv("REDIS_NOTIFICATION_CHANNEL", "staff-notifications"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Intake: IntakeConfig{
			BaseURL:            strings.TrimRight(getEnv("INTAKE_BASE_URL", "http://localhost:8080"), "/"),
			KeyPrefix:          strings.ToUpper(getEnv("INTAKE_KEY_PREFIX", "SUP")),
			UnassignedOrgSlug:  getEnv("INTAKE_UNASSIGNED_ORG_SLUG", "unassigned-intake"),
			MailDomain:         getEnv("INTAKE_MAIL_DOMAIN", "support.example.com"),
			DefaultPriority:    getEnv("INTAKE_DEFAULT_PRIORITY", "P3"),
			DefaultCategory:    getEnv("INTAKE_DEFAULT_CATEGORY", "general"),
			MaxAttachmentBytes: int64(getEnvAsInt("INTAKE_MAX_ATTACHMENT_BYTES", 10<<20)),
		},
		Webhook: WebhookConfig{
			Secret:       os.Getenv("WEBHOOK_SECRET"),
			MaxBodyBytes: getEnvAsInt("WEBHOOK_MAX_BODY_BYTES", 25<<20),
		},
		Token: TokenConfig{
			HashKey:               getEnv("TOKEN_HASH_KEY", "dev-token-key"),
			ViewTTLHours:          getEnvAsInt("TOKEN_VIEW_TTL_HOURS", 168),
			ResendIntervalMinutes: getEnvAsInt("TOKEN_RESEND_INTERVAL_MINUTES", 5),
		},
		Portal: PortalConfig{
			JWTSecret:       getEnv("PORTAL_JWT_SECRET", "dev-secret"),
			GrantTTLMinutes: getEnvAsInt("PORTAL_GRANT_TTL_MINUTES", 60),
			CookieName:      getEnv("PORTAL_COOKIE_NAME", "ticket_grant"),
			CookieSecure:    getEnvAsBool("PORTAL_COOKIE_SECURE", false),
		},
		Abuse: AbuseConfig{
			WindowMinutes:   getEnvAsInt("ABUSE_WINDOW_MINUTES", 60),
			FreeAttempts:    getEnvAsInt("ABUSE_FREE_ATTEMPTS", 3),
			DelayStepMillis: getEnvAsInt("ABUSE_DELAY_STEP_MS", 500),
			MaxDelayMillis:  getEnvAsInt("ABUSE_MAX_DELAY_MS", 5000),
			MaxLinks:        getEnvAsInt("ABUSE_MAX_LINKS", 3),
		},
		RateLimit: RateLimitConfig{
			WindowMinutes: getEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 60),
			PerIPLimit:    getEnvAsInt("RATE_LIMIT_PER_IP", 20),
			PerEmailLimit: getEnvAsInt("RATE_LIMIT_PER_EMAIL", 10),
		},
	}

	if cfg.App.Env == "production" && cfg.Token.HashKey == "dev-token-key" {
		return nil, fmt.Errorf("TOKEN_HASH_KEY must be set in production")
	}
	if cfg.App.Env == "production" && cfg.Portal.JWTSecret == "dev-secret" {
		return nil, fmt.Errorf("PORTAL_JWT_SECRET must be set in production")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ViewTTL returns how long a VIEW token stays usable.
func (t TokenConfig) ViewTTL() time.Duration {
	return hours(t.ViewTTLHours, 168)
}

// ResendInterval returns the minimum gap between two access link mails.
func (t TokenConfig) ResendInterval() time.Duration {
	return minutes(t.ResendIntervalMinutes, 5)
}

// GrantTTL returns the lifetime of a portal grant.
func (p PortalConfig) GrantTTL() time.Duration {
	return minutes(p.GrantTTLMinutes, 60)
}

// Window returns the abuse counter window.
func (a AbuseConfig) Window() time.Duration {
	return minutes(a.WindowMinutes, 60)
}

// Window returns the rate limit window.
func (r RateLimitConfig) Window() time.Duration {
	return minutes(r.WindowMinutes, 60)
}

func hours(val, fallback int) time.Duration {
	if val <= 0 {
		val = fallback
	}
	return time.Duration(val) * time.Hour
}

func minutes(val, fallback int) time.Duration {
	if val <= 0 {
		val = fallback
	}
	return time.Duration(val) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
