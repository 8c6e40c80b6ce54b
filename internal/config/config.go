package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the tracker.
type Config struct {
	DatabaseURL   string
	TelegramToken string

	HTTPAddr  string
	JWTSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL string

	RefreshInterval    time.Duration
	RefreshAheadDays   int
	RefreshConcurrency int
	NavHorizonMonths   int
	OrphanScanTime     string
	SummaryTime        string
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// LoadCredentials reads store settings from a dotenv file without touching
// the process environment. Offline tools use it in place of Load.
func LoadCredentials(path string) (Config, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	cfg := Config{DatabaseURL: strings.TrimSpace(vars["DATABASE_URL"])}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("%s: DATABASE_URL is not set", path)
	}
	return cfg, nil
}

// FromEnv builds a Config from the current environment.
func FromEnv() (Config, error) {
	cfg := Config{
		DatabaseURL:   envStr("DATABASE_URL", "habit_tracker.db"),
		TelegramToken: envStr("TELEGRAM_TOKEN", ""),

		HTTPAddr:  envStr("HTTP_ADDR", ":8080"),
		JWTSecret: envStr("JWT_SECRET", ""),

		RedisAddr:     envStr("REDIS_ADDR", ""),
		RedisPassword: envStr("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		AMQPURL: envStr("AMQP_URL", ""),

		RefreshInterval:    envHours("REFRESH_INTERVAL_HOURS", 6*time.Hour),
		RefreshAheadDays:   envInt("REFRESH_AHEAD_DAYS", 7),
		RefreshConcurrency: envInt("REFRESH_CONCURRENCY", 8),
		NavHorizonMonths:   envInt("NAV_HORIZON_MONTHS", 3),
		OrphanScanTime:     envStr("ORPHAN_SCAN_TIME", "03:30"),
		SummaryTime:        envStr("SUMMARY_TIME", "08:00"),
	}

	if cfg.HTTPAddr != "" && cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required when HTTP_ADDR is set")
	}
	if cfg.RefreshAheadDays < 0 {
		return cfg, fmt.Errorf("REFRESH_AHEAD_DAYS must not be negative")
	}
	if cfg.RefreshConcurrency < 1 {
		cfg.RefreshConcurrency = 1
	}
	if cfg.NavHorizonMonths < 1 {
		cfg.NavHorizonMonths = 1
	}

	return cfg, nil
}

func envStr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// envHours reads a whole number of hours. Zero or invalid values fall back
// to def.
func envHours(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return def
	}
	return hours
}
