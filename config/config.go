package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Storage
	DBPath     string `env:"LIBRARY_DB" default:"library.db"`
	ReportsDir string `env:"REPORTS_DIR" default:"reports"`

	// HTTP
	HTTPPort    int      `env:"HTTP_PORT" default:"8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`

	// Logging
	LogFile    string `env:"LOG_FILE" default:"logs/library.log"`
	LogLevel   string `env:"LOG_LEVEL" default:"info"`
	LogConsole bool   `env:"LOG_CONSOLE" default:"true"`

	// Sessions
	JWTSecret          string        `env:"JWT_SECRET"`
	SessionTTL         time.Duration `env:"SESSION_TTL" default:"8h"`
	LoginRatePerMinute int           `env:"LOGIN_RATE_PER_MINUTE" default:"10"`

	// Overdue sweeper
	SweepEnabled  bool          `env:"SWEEP_ENABLED" default:"true"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" default:"1h"`
	DueSoonDays   int           `env:"DUE_SOON_DAYS" default:"2"`

	// Fees
	LateFeePerDay decimal.Decimal `env:"LATE_FEE_PER_DAY" default:"0.50"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load(".env")

	cfg := &Config{}
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	loadEnvString(&cfg.DBPath, "LIBRARY_DB", "library.db")
	loadEnvString(&cfg.ReportsDir, "REPORTS_DIR", "reports")

	collect(loadEnvInt(&cfg.HTTPPort, "HTTP_PORT", 8080))
	loadEnvStringSlice(&cfg.CORSOrigins, "CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:8080"})

	loadEnvString(&cfg.LogFile, "LOG_FILE", "logs/library.log")
	loadEnvString(&cfg.LogLevel, "LOG_LEVEL", "info")
	collect(loadEnvBool(&cfg.LogConsole, "LOG_CONSOLE", true))

	loadEnvString(&cfg.JWTSecret, "JWT_SECRET", "")
	collect(loadEnvDuration(&cfg.SessionTTL, "SESSION_TTL", 8*time.Hour))
	collect(loadEnvInt(&cfg.LoginRatePerMinute, "LOGIN_RATE_PER_MINUTE", 10))

	collect(loadEnvBool(&cfg.SweepEnabled, "SWEEP_ENABLED", true))
	collect(loadEnvDuration(&cfg.SweepInterval, "SWEEP_INTERVAL", time.Hour))
	collect(loadEnvInt(&cfg.DueSoonDays, "DUE_SOON_DAYS", 2))

	collect(loadEnvDecimal(&cfg.LateFeePerDay, "LATE_FEE_PER_DAY", decimal.RequireFromString("0.50")))

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("LIBRARY_DB must not be empty"))
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT %d is out of range", c.HTTPPort))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if c.DueSoonDays < 0 {
		errs = append(errs, errors.New("DUE_SOON_DAYS must not be negative"))
	}
	if c.LateFeePerDay.IsNegative() {
		errs = append(errs, errors.New("LATE_FEE_PER_DAY must not be negative"))
	}
	if c.LoginRatePerMinute <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE_PER_MINUTE must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateServer adds the settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	err := c.Validate()
	if len(c.JWTSecret) < 32 {
		err = errors.Join(err, errors.New("JWT_SECRET must be set to at least 32 characters"))
	}
	if c.SessionTTL <= 0 {
		err = errors.Join(err, errors.New("SESSION_TTL must be positive"))
	}
	return err
}

// Helper functions for type conversion and validation

func loadEnvString(target *string, key, defaultValue string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	*target = n
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean value for %s: %s", key, value)
	}
	*target = b
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration value for %s: %s", key, value)
	}
	*target = d
	return nil
}

func loadEnvDecimal(target *decimal.Decimal, key string, defaultValue decimal.Decimal) error {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("invalid decimal value for %s: %s", key, value)
	}
	*target = d
	return nil
}

func loadEnvStringSlice(target *[]string, key string, defaultValue []string) {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*target = out
}
