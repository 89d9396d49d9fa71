// Package config handles loading and managing application configuration.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis report cache configuration
	Cache CacheConfig

	// Payment gateway configuration
	Gateway GatewayConfig

	// Billing policy
	Billing BillingConfig

	// Background reconciliation sweep
	Sweep SweepConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port    string
	GinMode string // "debug", "release", or "test"
}

// DatabaseConfig holds MySQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// CacheConfig holds Redis configuration.
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
}

// GatewayConfig holds Mercado Pago configuration.
type GatewayConfig struct {
	AccessToken   string
	WebhookSecret string
	NotifyBaseURL string
}

// BillingConfig holds club billing policy settings.
type BillingConfig struct {
	// MonthlyDuesCents is the fixed monthly dues value in cents.
	MonthlyDuesCents int64
}

// SweepConfig holds the background reconciliation settings.
type SweepConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Load reads configuration from the environment, with a .env file as
// fallback for local development.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using environment")
	}

	return &Config{
		Server: ServerConfig{
			Port:    getEnv("PORT", "8080"),
			GinMode: getEnv("GIN_MODE", "debug"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "forte"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "forte_payments"),
		},
		Cache: CacheConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Gateway: GatewayConfig{
			AccessToken:   getEnv("MP_ACCESS_TOKEN", ""),
			WebhookSecret: getEnv("MP_WEBHOOK_SECRET", ""),
			NotifyBaseURL: getEnv("MP_NOTIFY_BASE_URL", ""),
		},
		Billing: BillingConfig{
			MonthlyDuesCents: int64(getEnvInt("MONTHLY_DUES_CENTS", 15000)),
		},
		Sweep: SweepConfig{
			Enabled:  getEnvBool("SWEEP_ENABLED", true),
			Interval: time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 300)) * time.Second,
		},
	}
}

// getEnv retrieves an environment variable with a fallback default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer with a fallback.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean with a fallback.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
