// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultPort       = 8080
	DefaultDBPath     = "cremeria.db"
	DefaultSessionTTL = 24 * time.Hour
	DefaultTimezone   = "America/Mexico_City"
	DefaultLogLevel   = "info"
)

type Config struct {
	Port         int
	DBPath       string
	SecureCookie bool
	SessionTTL   time.Duration

	// CSRFKey authenticates CSRF tokens. When CSRF_KEY is unset a random key
	// is generated and CSRFKeyGenerated is true; tokens then do not survive a restart.
	CSRFKey          []byte
	CSRFKeyGenerated bool

	Timezone string
	Location *time.Location

	LogLevel string
	Env      string

	// AdminUser and AdminPassword seed the first account on an empty database.
	AdminUser     string
	AdminPassword string
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		DBPath:        getEnv("DB_PATH", DefaultDBPath),
		Timezone:      getEnv("TIMEZONE", DefaultTimezone),
		LogLevel:      getEnv("LOG_LEVEL", DefaultLogLevel),
		Env:           getEnv("APP_ENV", ""),
		AdminUser:     strings.TrimSpace(os.Getenv("ADMIN_USER")),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	var err error
	if cfg.Port, err = getEnvInt("PORT", DefaultPort); err != nil {
		return Config{}, err
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("PORT out of range: %d", cfg.Port)
	}
	if cfg.SecureCookie, err = getEnvBool("SECURE_COOKIE", false); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = getEnvDuration("SESSION_TTL", DefaultSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}

	if cfg.Location, err = time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	if raw := strings.TrimSpace(os.Getenv("CSRF_KEY")); raw != "" {
		key, err := hex.DecodeString(raw)
		if err != nil {
			return Config{}, fmt.Errorf("CSRF_KEY must be hex encoded: %w", err)
		}
		if len(key) != 32 {
			return Config{}, fmt.Errorf("CSRF_KEY must decode to 32 bytes, got %d", len(key))
		}
		cfg.CSRFKey = key
	} else {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return Config{}, fmt.Errorf("generate CSRF key: %w", err)
		}
		cfg.CSRFKey = key
		cfg.CSRFKeyGenerated = true
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return value, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return value, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return value, nil
}
