// Package config provides application configuration management,
// loading settings from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Service configuration
	ServiceName    string
	ServiceVersion string
	Environment    string
	GRPCPort       string
	HTTPPort       string

	// Database configuration
	DatabaseDriver   string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	MySQLDSN         string
	SQLitePath       string

	// Store and query behavior
	QueryTimeout    time.Duration
	DefaultDistance string
	MaxNearbyLimit  int

	// Maintenance jobs
	Workers    int
	ExportPath string

	// OpenTelemetry configuration
	OTELEndpoint     string
	TracingEnabled   bool
	TraceSampleRatio float64

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName:    getEnv("SERVICE_NAME", "geostore"),
		ServiceVersion: getEnv("SERVICE_VERSION", "0.1.0"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		GRPCPort:       getEnv("GRPC_PORT", "50051"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),

		DatabaseDriver:   getEnv("DATABASE_DRIVER", "postgres"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "geostore"),
		PostgresUser:     getEnv("POSTGRES_USER", "development"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "development"),
		MySQLDSN:         getEnv("MYSQL_DSN", "geostore:geostore@tcp(localhost:3306)/geostore"),
		SQLitePath:       getEnv("SQLITE_PATH", "geostore.db"),

		DefaultDistance: getEnv("DEFAULT_DISTANCE", "50km"),
		ExportPath:      getEnv("EXPORT_PATH", "/data/export"),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	var err error
	cfg.QueryTimeout, err = time.ParseDuration(getEnv("QUERY_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUERY_TIMEOUT: %w", err)
	}

	cfg.MaxNearbyLimit, err = parseInt("MAX_NEARBY_LIMIT", "500")
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_NEARBY_LIMIT: %w", err)
	}

	cfg.Workers, err = parseInt("WORKERS", "2")
	if err != nil {
		return nil, fmt.Errorf("invalid WORKERS: %w", err)
	}

	cfg.TracingEnabled, err = strconv.ParseBool(getEnv("OTEL_ENABLED", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid OTEL_ENABLED: %w", err)
	}

	cfg.TraceSampleRatio, err = strconv.ParseFloat(getEnv("OTEL_SAMPLE_RATIO", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OTEL_SAMPLE_RATIO: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN returns the connection string for the configured driver
func (c *Config) DatabaseDSN() string {
	switch strings.ToLower(strings.TrimSpace(c.DatabaseDriver)) {
	case "mysql", "mariadb":
		return withParseTime(c.MySQLDSN)
	case "sqlite", "sqlite3":
		return c.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%s dbname=%s user=%s password=%s sslmode=disable",
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
		c.PostgresUser,
		c.PostgresPassword,
	)
}

// withParseTime makes the MySQL driver return DATETIME columns as time.Time
func withParseTime(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseInt parses an int from an environment variable or default value
func parseInt(key, defaultValue string) (int, error) {
	value := getEnv(key, defaultValue)
	return strconv.Atoi(value)
}
