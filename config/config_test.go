package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "PORT", "SERVER_PORT", "ESCALATION_PRIMARY_INTERVAL", "ESCALATION_COOLDOWN", "OTP_TTL", "LEDGER_URL"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Escalation.PrimaryInterval)
	assert.Equal(t, time.Hour, cfg.Escalation.BackupInterval)
	assert.Equal(t, cfg.Escalation.PrimaryInterval, cfg.Escalation.Cooldown)
	assert.Equal(t, 15*time.Minute, cfg.Resolution.OTPTTL)
	assert.Equal(t, 2*time.Minute, cfg.Resolution.Lease)
	assert.Equal(t, "shadow", cfg.Notification.EmailMode)
	assert.Empty(t, cfg.Ledger.URL)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("SQLITE_PATH", "/tmp/g.db")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("PORT", "7000")
	t.Setenv("ESCALATION_PRIMARY_INTERVAL", "30s")
	t.Setenv("ESCALATION_BACKUP_INTERVAL", "600")
	t.Setenv("ESCALATION_WORKERS", "8")
	t.Setenv("OTP_DEBUG", "true")
	t.Setenv("ESCALATION_COOLDOWN", "")

	cfg := LoadConfig()
	assert.Equal(t, "7000", cfg.Server.Port, "PORT wins over SERVER_PORT")
	assert.Equal(t, 30*time.Second, cfg.Escalation.PrimaryInterval)
	assert.Equal(t, 10*time.Minute, cfg.Escalation.BackupInterval, "bare seconds")
	assert.Equal(t, 30*time.Second, cfg.Escalation.Cooldown, "cooldown follows the primary interval")
	assert.Equal(t, 8, cfg.Escalation.Workers)
	assert.True(t, cfg.Resolution.OTPDebug)
	assert.Equal(t, "file:/tmp/g.db?_busy_timeout=5000&_foreign_keys=on", cfg.Database.DSN())
}

func TestLoadConfig_BadValuesFallBack(t *testing.T) {
	t.Setenv("ESCALATION_WORKERS", "many")
	t.Setenv("OTP_TTL", "soon")
	t.Setenv("OTP_DEBUG", "perhaps")

	cfg := LoadConfig()
	assert.Equal(t, 4, cfg.Escalation.Workers)
	assert.Equal(t, 15*time.Minute, cfg.Resolution.OTPTTL)
	assert.False(t, cfg.Resolution.OTPDebug)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Driver: "mysql", Host: "db", Port: "3306", User: "u", Password: "p", DBName: "g"}
	assert.Equal(t, "u:p@tcp(db:3306)/g?parseTime=true&charset=utf8mb4&loc=UTC", d.DSN())

	d.DatabaseURL = "u:p@tcp(other:3306)/x?parseTime=true"
	assert.Equal(t, d.DatabaseURL, d.DSN())
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DB_DRIVER", "sqlite3")
	valid := func() *Config { return LoadConfig() }

	require.NoError(t, valid().Validate())

	c := valid()
	c.Ledger.Timeout = time.Minute
	c.Resolution.Lease = time.Minute + time.Second
	require.NoError(t, c.Validate())

	tests := map[string]func(c *Config){
		"driver":   func(c *Config) { c.Database.Driver = "postgres" },
		"secret":   func(c *Config) { c.Auth.JWTSecret = "" },
		"interval": func(c *Config) { c.Escalation.PrimaryInterval = 0 },
		"workers":  func(c *Config) { c.Escalation.Workers = 0 },
		"otp ttl":  func(c *Config) { c.Resolution.OTPTTL = 0 },
		"lease":    func(c *Config) { c.Resolution.Lease = -time.Second },
		"lease within ledger timeout": func(c *Config) {
			c.Ledger.Timeout = time.Minute
			c.Resolution.Lease = time.Minute
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
