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
	BackendURL  string
	// NodeID seeds the snowflake generator; each running instance needs its own.
	NodeID      int64

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
	DBMigrateOnStart  bool

	// SeedFeePrice is published as the first fixed-fee price of an empty
	// database. Empty skips seeding.
	SeedFeePrice string

	Redis       RedisConfig
	RateLimit   RateLimitConfig
	MercadoPago MercadoPagoConfig
	Bolsa       BolsaConfig
	Email       EmailConfig
	Alert       AlertConfig
	Outbox      OutboxConfig
	Scheduler   SchedulerConfig

	Observability ObservabilityConfig
}

// ObservabilityConfig carries the logging, tracing and metrics switches.
type ObservabilityConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OtelEndpoint  string
	OtelProtocol  string
	OtelSampling  float64
	SlowQuery     time.Duration
	LogSQLQueries bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a shared redis instance is configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type RateLimitConfig struct {
	WebhookRate  float64
	WebhookBurst int
	PollLockTTL  time.Duration
}

type MercadoPagoConfig struct {
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
}

type BolsaConfig struct {
	APIKey        string
	Secret        string
	IPAllowlist   []string
	TimestampSkew time.Duration
	MaxBodyBytes  int64
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type AlertConfig struct {
	TelegramToken  string
	TelegramChatID string
}

type OutboxConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
}

type SchedulerConfig struct {
	Enabled     bool
	RunInterval time.Duration
	BatchSize   int
	// PendingAge is how long a Pending receipt waits for its webhook before
	// the provider is asked directly. Past PendingWindow it is abandoned.
	PendingAge  time.Duration
	PendingWindow time.Duration
	EnabledJobs   []string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "colegio"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		BackendURL:   strings.TrimRight(getenv("BACKEND_URL", "http://localhost:8080"), "/"),
		NodeID:       int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "colegio"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBMigrateOnStart:  getenvBool("DATABASE_MIGRATE_ON_START", true),
		SeedFeePrice:      strings.TrimSpace(getenv("SEED_DERECHO_FIJO_PRICE", "")),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			WebhookRate:  getenvFloat("WEBHOOK_RATE_LIMIT_RPS", 5),
			WebhookBurst: getenvInt("WEBHOOK_RATE_LIMIT_BURST", 20),
			PollLockTTL:  getenvDuration("PAYMENT_POLL_LOCK_TTL", 15*time.Second),
		},
		MercadoPago: MercadoPagoConfig{
			AccessToken: strings.TrimSpace(getenv("MERCADO_PAGO_ACCESS_TOKEN", "")),
			BaseURL:     strings.TrimRight(getenv("MERCADO_PAGO_BASE_URL", "https://api.mercadopago.com"), "/"),
			Timeout:     getenvDuration("MERCADO_PAGO_TIMEOUT", 10*time.Second),
		},
		Bolsa: BolsaConfig{
			APIKey:        strings.TrimSpace(getenv("BOLSA_API_KEY", "")),
			Secret:        strings.TrimSpace(getenv("BOLSA_SECRET", "")),
			IPAllowlist:   splitList(getenv("BCM_IP_ALLOWLIST", "")),
			TimestampSkew: getenvDuration("BCM_TIMESTAMP_SKEW", 300*time.Second),
			MaxBodyBytes:  getenvInt64("BCM_MAX_BODY_BYTES", 100_000),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "no-reply@colegio.local"),
		},
		Alert: AlertConfig{
			TelegramToken:  strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN", "")),
			TelegramChatID: strings.TrimSpace(getenv("TELEGRAM_CHAT_ID", "")),
		},
		Outbox: OutboxConfig{
			PollInterval: getenvDuration("OUTBOX_POLL_INTERVAL", 5*time.Second),
			MaxAttempts:  getenvInt("OUTBOX_MAX_ATTEMPTS", 8),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getenvBool("SCHEDULER_ENABLED", true),
			RunInterval:   getenvDuration("SCHEDULER_RUN_INTERVAL", time.Minute),
			BatchSize:     getenvInt("SCHEDULER_BATCH_SIZE", 50),
			PendingAge:    getenvDuration("SCHEDULER_PENDING_AGE", 15*time.Minute),
			PendingWindow: getenvDuration("SCHEDULER_PENDING_WINDOW", 72*time.Hour),
			EnabledJobs:   splitList(getenv("SCHEDULER_JOBS", "")),
		},
		Observability: ObservabilityConfig{
			LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:     strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:   getenvBool("OTEL_ENABLED", false),
			OtelEndpoint:  strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
			OtelProtocol:  otlpProtocol(),
			OtelSampling:  getenvFloat("OTEL_SAMPLING_RATIO", 1.0),
			SlowQuery:     getenvDuration("DATABASE_SLOW_QUERY", 200*time.Millisecond),
			LogSQLQueries: getenvBool("DATABASE_LOG_QUERIES", false),
		},
	}

	return cfg
}

// IsLocal reports whether the process runs on a developer machine.
func (c Config) IsLocal() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// otlpProtocol lets the traces specific variable override the shared one.
func otlpProtocol() string {
	protocol := getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	if traces := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		protocol = traces
	}
	return strings.ToLower(strings.TrimSpace(protocol))
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

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
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
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
