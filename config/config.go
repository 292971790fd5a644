package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Database     DatabaseConfig
	Server       ServerConfig
	Escalation   EscalationConfig
	Resolution   ResolutionConfig
	Ledger       LedgerConfig
	Notification NotificationConfig
	Auth         AuthConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver      string // DB_DRIVER: mysql (default) or sqlite3
	DatabaseURL string // DATABASE_URL - takes precedence over individual vars
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SQLitePath  string // SQLITE_PATH, used when Driver is sqlite3
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// EscalationConfig controls the escalation scheduler.
type EscalationConfig struct {
	PrimaryInterval time.Duration // ESCALATION_PRIMARY_INTERVAL
	BackupInterval  time.Duration // ESCALATION_BACKUP_INTERVAL (0 disables the backup timer)
	Workers         int           // ESCALATION_WORKERS: per-pass fan-out bound
	Cooldown        time.Duration // ESCALATION_COOLDOWN: minimum gap between two promotions of one grievance
	Disabled        bool          // ESCALATION_WORKER_DISABLED: run passes only via the admin endpoint or CLI
}

// ResolutionConfig controls the OTP challenge.
type ResolutionConfig struct {
	OTPTTL     time.Duration // OTP_TTL
	Lease      time.Duration // RESOLUTION_LEASE: how long a confirm may hold the record
	OTPDebug   bool          // OTP_DEBUG: echo the code in API responses and logs (dev only)
	BcryptCost int           // OTP_BCRYPT_COST (0 = bcrypt default)
}

// LedgerConfig selects the public ledger adapter. An empty URL selects the
// in-memory ledger.
type LedgerConfig struct {
	URL     string        // LEDGER_URL
	APIKey  string        // LEDGER_API_KEY
	Timeout time.Duration // LEDGER_TIMEOUT: total budget per call including retries
}

// NotificationConfig holds OTP delivery settings.
type NotificationConfig struct {
	EmailMode         string // EMAIL_MODE: "shadow" redirects every mail to ShadowAddress
	ShadowAddress     string // EMAIL_SHADOW_ADDRESS
	SendGridAPIKey    string // SENDGRID_API_KEY (empty = log-only sender)
	SendGridFromEmail string // SENDGRID_FROM_EMAIL
	SendGridFromName  string // SENDGRID_FROM_NAME
}

// AuthConfig holds token settings.
type AuthConfig struct {
	JWTSecret  string        // JWT_SECRET
	AdminToken string        // ADMIN_TOKEN: static bearer for /api/v1/escalations and /api/v1/admin
	TokenTTL   time.Duration // TOKEN_TTL: lifetime of tokens minted by grievancectl
}

// LoadConfig loads configuration from environment variables.
// Supports DATABASE_URL or individual DB_* variables.
func LoadConfig() *Config {
	primary := getEnvDuration("ESCALATION_PRIMARY_INTERVAL", 2*time.Minute)
	return &Config{
		Database: DatabaseConfig{
			Driver:      getEnv("DB_DRIVER", "mysql"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getEnv("DB_HOST", "127.0.0.1"),
			Port:        getEnv("DB_PORT", "3306"),
			User:        os.Getenv("DB_USER"),
			Password:    os.Getenv("DB_PASSWORD"),
			DBName:      os.Getenv("DB_NAME"),
			SQLitePath:  getEnv("SQLITE_PATH", "grievances.db"),
		},
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("PORT", getEnv("SERVER_PORT", "8080")), // PORT for PaaS; SERVER_PORT for custom
		},
		Escalation: EscalationConfig{
			PrimaryInterval: primary,
			BackupInterval:  getEnvDuration("ESCALATION_BACKUP_INTERVAL", time.Hour),
			Workers:         getEnvInt("ESCALATION_WORKERS", 4),
			Cooldown:        getEnvDuration("ESCALATION_COOLDOWN", primary),
			Disabled:        getEnvBool("ESCALATION_WORKER_DISABLED", false),
		},
		Resolution: ResolutionConfig{
			OTPTTL:     getEnvDuration("OTP_TTL", 15*time.Minute),
			Lease:      getEnvDuration("RESOLUTION_LEASE", 2*time.Minute),
			OTPDebug:   getEnvBool("OTP_DEBUG", false),
			BcryptCost: getEnvInt("OTP_BCRYPT_COST", 0),
		},
		Ledger: LedgerConfig{
			URL:     os.Getenv("LEDGER_URL"),
			APIKey:  os.Getenv("LEDGER_API_KEY"),
			Timeout: getEnvDuration("LEDGER_TIMEOUT", 30*time.Second),
		},
		Notification: NotificationConfig{
			EmailMode:         getEnv("EMAIL_MODE", "shadow"),
			ShadowAddress:     os.Getenv("EMAIL_SHADOW_ADDRESS"),
			SendGridAPIKey:    os.Getenv("SENDGRID_API_KEY"),
			SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "noreply@surajya.local"),
			SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Grievance Desk"),
		},
		Auth: AuthConfig{
			JWTSecret:  os.Getenv("JWT_SECRET"),
			AdminToken: os.Getenv("ADMIN_TOKEN"),
			TokenTTL:   getEnvDuration("TOKEN_TTL", 24*time.Hour),
		},
	}
}

// DSN builds the driver-specific data source name. MySQL connections are
// pinned to UTC with parseTime so DATETIME columns round-trip as time.Time.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite3" {
		return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", d.SQLitePath)
	}
	if d.DatabaseURL != "" {
		return d.DatabaseURL
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

// Validate reports configuration that would make the server unusable.
func (c *Config) Validate() error {
	if c.Database.Driver != "mysql" && c.Database.Driver != "sqlite3" {
		return fmt.Errorf("unsupported DB_DRIVER %q (want mysql or sqlite3)", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Escalation.PrimaryInterval <= 0 {
		return fmt.Errorf("ESCALATION_PRIMARY_INTERVAL must be positive")
	}
	if c.Escalation.Workers < 1 {
		return fmt.Errorf("ESCALATION_WORKERS must be at least 1")
	}
	if c.Resolution.OTPTTL <= 0 || c.Resolution.Lease <= 0 {
		return fmt.Errorf("OTP_TTL and RESOLUTION_LEASE must be positive")
	}
	// a lease that can lapse mid-call lets a second confirm reach the ledger
	if c.Resolution.Lease <= c.Ledger.Timeout {
		return fmt.Errorf("RESOLUTION_LEASE (%s) must be longer than LEDGER_TIMEOUT (%s)", c.Resolution.Lease, c.Ledger.Timeout)
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("2m", "1h") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
