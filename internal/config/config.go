package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"

	EmailProviderSMTP   = "smtp"
	EmailProviderResend = "resend"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Storage
	StoreDriver   string
	DatabaseURL   string
	SQLitePath    string
	MigrationsDir string

	// Redis (optional)
	RedisURL        string
	ContactCacheTTL time.Duration

	// JWT
	JWTSecret string

	// Reminders
	ReminderLeadTime          time.Duration
	ReminderWindow            time.Duration
	ReminderBatchSize         int
	SchedulerEnabled          bool
	SchedulerInterval         time.Duration
	InvocationTimeout         time.Duration
	TriggerRateLimitPerMinute int

	// Email
	EmailProvider string
	SMTPHost      string
	SMTPPort      string
	SMTPUser      string
	SMTPPass      string
	SMTPFrom      string
	ResendAPIKey  string

	// Frontend
	FrontendURL string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                      getEnvOrDefault("PORT", "8080"),
		Env:                       getEnvOrDefault("ENV", "development"),
		StoreDriver:               strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:               getEnvOrDefault("DATABASE_URL", ""),
		SQLitePath:                getEnvOrDefault("SQLITE_PATH", "./data/reminders.db"),
		MigrationsDir:             getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		RedisURL:                  getEnvOrDefault("REDIS_URL", ""),
		ContactCacheTTL:           getEnvAsDurationOrDefault("CONTACT_CACHE_TTL", 10*time.Minute),
		JWTSecret:                 getEnvOrDefault("JWT_SECRET", ""),
		ReminderLeadTime:          getEnvAsDurationOrDefault("REMINDER_LEAD_TIME", 10*time.Minute),
		ReminderWindow:            getEnvAsDurationOrDefault("REMINDER_WINDOW", time.Minute),
		ReminderBatchSize:         getEnvAsIntOrDefault("REMINDER_BATCH_SIZE", 500),
		SchedulerEnabled:          getEnvAsBoolOrDefault("REMINDER_SCHEDULER_ENABLED", false),
		SchedulerInterval:         getEnvAsDurationOrDefault("REMINDER_SCHEDULER_INTERVAL", time.Minute),
		InvocationTimeout:         getEnvAsDurationOrDefault("REMINDER_INVOCATION_TIMEOUT", 50*time.Second),
		TriggerRateLimitPerMinute: getEnvAsIntOrDefault("TRIGGER_RATE_LIMIT", 30),
		EmailProvider:             strings.ToLower(getEnvOrDefault("EMAIL_PROVIDER", EmailProviderSMTP)),
		SMTPHost:                  getEnvOrDefault("SMTP_HOST", ""),
		SMTPPort:                  getEnvOrDefault("SMTP_PORT", "587"),
		SMTPUser:                  getEnvOrDefault("SMTP_USER", ""),
		SMTPPass:                  getEnvOrDefault("SMTP_PASS", ""),
		SMTPFrom:                  getEnvOrDefault("SMTP_FROM", "Study Reminder <noreply@studyblocks.app>"),
		ResendAPIKey:              getEnvOrDefault("RESEND_API_KEY", ""),
		FrontendURL:               getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	if cfg.StoreDriver == StoreDriverPostgres {
		if err := requireEnv("DATABASE_URL"); err != nil {
			return nil, err
		}
	}
	if cfg.EmailProvider == EmailProviderResend {
		if err := requireEnv("RESEND_API_KEY"); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects settings the dispatcher cannot run with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverSQLite:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverSQLite, c.StoreDriver)
	}
	switch c.EmailProvider {
	case EmailProviderSMTP, EmailProviderResend:
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be %q or %q, got %q", EmailProviderSMTP, EmailProviderResend, c.EmailProvider)
	}
	if c.StoreDriver == StoreDriverSQLite && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH cannot be empty")
	}
	if c.ReminderLeadTime <= 0 {
		return fmt.Errorf("REMINDER_LEAD_TIME must be > 0")
	}
	if c.ReminderWindow <= 0 {
		return fmt.Errorf("REMINDER_WINDOW must be > 0")
	}
	if c.ReminderBatchSize <= 0 {
		return fmt.Errorf("REMINDER_BATCH_SIZE must be > 0")
	}
	if c.SchedulerEnabled && c.SchedulerInterval <= 0 {
		return fmt.Errorf("REMINDER_SCHEDULER_INTERVAL must be > 0")
	}
	return nil
}

// AuthEnabled reports whether the trigger endpoint requires a service token.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

func requireEnv(key string) error {
	if os.Getenv(key) == "" {
		return fmt.Errorf("required environment variable %s is not set", key)
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultVal
	}
}

// getEnvAsDurationOrDefault accepts Go durations ("90s") or, under KEY_SECONDS, a plain number of seconds.
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultVal
}
