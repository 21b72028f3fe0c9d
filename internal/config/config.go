package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	AppURL   string
	Location *time.Location

	Database DatabaseConfig
	RedisURL string

	JWTSecret string
	JWTTTL    time.Duration

	BiometricAPIKey string

	SMTP     SMTPConfig
	Waha     WahaConfig
	Midtrans MidtransConfig

	FirebaseCredentialsPath string
	HubMonthlyPrice         int64

	Log LogConfig
}

type DatabaseConfig struct {
	Driver string // "postgres" or "sqlite"
	URL    string
}

type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

type WahaConfig struct {
	BaseURL     string
	APIKey      string
	CountryCode string // replaces a leading 0 in local phone numbers
}

type MidtransConfig struct {
	ServerKey    string
	ClientKey    string
	IsProduction bool
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads .env (if any) and the process environment
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using system environment")
	}

	c := &Config{
		Port:     "8080",
		AppURL:   "http://localhost:8080",
		Location: time.Local,
		Database: DatabaseConfig{Driver: "postgres"},
		JWTTTL:   7 * 24 * time.Hour,
		Waha:     WahaConfig{BaseURL: "http://waha:3000"},
		Log:      LogConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 30},

		FirebaseCredentialsPath: "./firebase-service-account.json",
		HubMonthlyPrice:         150000,
	}

	envOverride(&c.Port, "PORT")
	envOverride(&c.AppURL, "APP_URL")
	envOverride(&c.Database.Driver, "DATABASE_DRIVER")
	envOverride(&c.Database.URL, "DATABASE_URL")
	envOverride(&c.RedisURL, "REDIS_URL")
	envOverride(&c.JWTSecret, "JWT_SECRET")
	envOverride(&c.BiometricAPIKey, "BIOMETRIC_API_KEY")
	envOverride(&c.SMTP.Host, "SMTP_HOST")
	envOverride(&c.SMTP.Port, "SMTP_PORT")
	envOverride(&c.SMTP.User, "SMTP_USER")
	envOverride(&c.SMTP.Password, "SMTP_PASS")
	envOverride(&c.SMTP.From, "EMAIL_FROM")
	envOverride(&c.Waha.BaseURL, "WAHA_BASE_URL")
	envOverride(&c.Waha.APIKey, "WAHA_API_KEY")
	envOverride(&c.Waha.CountryCode, "WAHA_COUNTRY_CODE")
	envOverride(&c.Midtrans.ServerKey, "MIDTRANS_SERVER_KEY")
	envOverride(&c.Midtrans.ClientKey, "MIDTRANS_CLIENT_KEY")
	envOverride(&c.FirebaseCredentialsPath, "FIREBASE_CREDENTIALS_PATH")
	envOverride(&c.Log.Level, "LOG_LEVEL")
	envOverride(&c.Log.File, "LOG_FILE")
	envOverrideInt64(&c.HubMonthlyPrice, "HUB_MONTHLY_PRICE")
	c.Midtrans.IsProduction = os.Getenv("MIDTRANS_IS_PRODUCTION") == "true"

	if v := os.Getenv("JWT_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.JWTTTL = time.Duration(n) * time.Hour
		}
	}

	if tz := os.Getenv("APP_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			slog.Warn("invalid APP_TIMEZONE, falling back to local time", "tz", tz, "err", err)
		} else {
			c.Location = loc
		}
	}

	if c.JWTSecret == "" {
		slog.Warn("JWT_SECRET not set, using an insecure development secret")
		c.JWTSecret = "gymhub-dev-secret"
	}

	return c
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return ":" + c.Port
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
