// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Identity provider backends understood by IDENTITY_PROVIDER.
const (
	IdentityProviderFirebase = "firebase"
	IdentityProviderLocal    = "local"
	IdentityProviderNone     = "none"
)

// Config holds all configuration for the application.
type Config struct {
	// Server Configuration
	GinMode            string        `mapstructure:"GIN_MODE"`
	ServerHost         string        `mapstructure:"SERVER_HOST"`
	ServerPort         string        `mapstructure:"SERVER_PORT"`
	ServerTimeout      time.Duration `mapstructure:"SERVER_TIMEOUT_SECONDS"`
	AppBaseURL         string        `mapstructure:"APP_BASE_URL"`
	CORSAllowedOrigins []string      `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// Database Configuration
	DBDriver          string        `mapstructure:"DB_DRIVER"`
	DBSQLitePath      string        `mapstructure:"DB_SQLITE_PATH"`
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            string        `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
	DBTimezone        string        `mapstructure:"DB_TIMEZONE"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	// Logging Configuration
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Identity Provider Configuration
	IdentityProvider              string `mapstructure:"IDENTITY_PROVIDER"`
	FirebaseServiceAccountKeyPath string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
	FirebaseProjectID             string `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseWebAPIKey             string `mapstructure:"FIREBASE_WEB_API_KEY"`
	LocalIdentitySecret           string `mapstructure:"LOCAL_IDENTITY_SECRET"`

	// Session Cookie Configuration
	SessionCookieName     string `mapstructure:"SESSION_COOKIE_NAME"`
	SessionCookieDomain   string `mapstructure:"SESSION_COOKIE_DOMAIN"`
	SessionCookieSecure   bool   `mapstructure:"SESSION_COOKIE_SECURE"`
	SessionCookieSameSite string `mapstructure:"SESSION_COOKIE_SAMESITE"`

	// Outgoing Mail
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
	SMTPTLS      bool   `mapstructure:"SMTP_TLS"`

	// Cron Jobs
	OrphanSweepSchedule string `mapstructure:"ORPHAN_SWEEP_SCHEDULE"`
}

// Load attempts to load configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Convert duration fields
	cfg.ServerTimeout = time.Duration(v.GetInt("SERVER_TIMEOUT_SECONDS")) * time.Second
	cfg.DBConnMaxLifetime = time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute

	// Comma separated in the environment, slice in the struct.
	cfg.CORSAllowedOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"))
	cfg.IdentityProvider = strings.ToLower(strings.TrimSpace(cfg.IdentityProvider))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_TIMEOUT_SECONDS", 30)
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_SQLITE_PATH", "student_portal.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "student_portal_db")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 60)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("IDENTITY_PROVIDER", IdentityProviderFirebase)
	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", "")
	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("FIREBASE_WEB_API_KEY", "")
	v.SetDefault("LOCAL_IDENTITY_SECRET", "")

	v.SetDefault("SESSION_COOKIE_NAME", "portal_session")
	v.SetDefault("SESSION_COOKIE_DOMAIN", "")
	v.SetDefault("SESSION_COOKIE_SECURE", true)
	v.SetDefault("SESSION_COOKIE_SAMESITE", "Lax")

	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "no-reply@localhost")
	v.SetDefault("SMTP_TLS", true)

	v.SetDefault("ORPHAN_SWEEP_SCHEDULE", "@every 15m")
}

func (c *Config) validate() error {
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		return fmt.Errorf("unsupported DB_DRIVER %q (want postgres or sqlite)", c.DBDriver)
	}
	switch c.IdentityProvider {
	case IdentityProviderFirebase, IdentityProviderNone:
	case IdentityProviderLocal:
		// Outside release mode an ephemeral secret is generated at startup.
		if strings.TrimSpace(c.LocalIdentitySecret) == "" && c.GinMode == "release" {
			return fmt.Errorf("LOCAL_IDENTITY_SECRET is required when IDENTITY_PROVIDER=local in release mode")
		}
	default:
		return fmt.Errorf("unsupported IDENTITY_PROVIDER %q (want firebase, local or none)", c.IdentityProvider)
	}
	return nil
}

// FirebaseConfigured reports whether the Firebase Admin SDK can be initialised.
// A missing key file is not fatal here; the service degrades to demo mode.
func (c *Config) FirebaseConfigured() bool {
	if c.IdentityProvider != IdentityProviderFirebase {
		return false
	}
	path := strings.TrimSpace(c.FirebaseServiceAccountKeyPath)
	if path == "" || strings.TrimSpace(c.FirebaseWebAPIKey) == "" {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return true
}

// DSN builds the postgres connection string from the individual DB_* settings.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode, c.DBTimezone)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
