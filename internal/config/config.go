package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr              string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	ReportCacheTTLSeconds int
	ShopTimezone          string
	EndOfDayCron          string
	LogLevel              string
	LogDevelopment        bool
	DefaultCurrency       string
}

// Load reads the environment, after merging envFile (or ./.env when envFile is
// empty) if it exists. Variables already set in the environment win.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("REPORT_CACHE_TTL_SECONDS", "600"))
	if err != nil || ttl < 1 {
		ttl = 600
	}
	development, _ := strconv.ParseBool(getEnv("LOG_DEVELOPMENT", "false"))

	cfg := Config{
		HTTPAddr:              getEnv("HTTP_ADDR", "127.0.0.1:8080"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		ReportCacheTTLSeconds: ttl,
		ShopTimezone:          getEnv("SHOP_TIMEZONE", "Local"),
		EndOfDayCron:          getEnv("END_OF_DAY_CRON", "5 0 * * *"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogDevelopment:        development,
		DefaultCurrency:       strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("SHOP_TIMEZONE: %w", err)
	}
	if len(c.DefaultCurrency) != 3 {
		return fmt.Errorf("DEFAULT_CURRENCY must be a 3-letter code, got %q", c.DefaultCurrency)
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("HTTP_ADDR must not be empty")
	}
	return nil
}

func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.ShopTimezone)
}

func (c Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLSeconds) * time.Second
}

func getEnv(key string, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}
