package config

import (
	"os"
	"testing"
	"time"
)

// nolint:gocyclo // Test function complexity from multiple subtests and assertions
func TestLoad(t *testing.T) {
	// Save original env vars
	originalEnv := make(map[string]string)
	envVars := []string{
		"SERVICE_NAME", "ENVIRONMENT", "GRPC_PORT", "HTTP_PORT",
		"DATABASE_DRIVER", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DB",
		"QUERY_TIMEOUT", "DEFAULT_DISTANCE", "MAX_NEARBY_LIMIT", "WORKERS", "OTEL_ENABLED", "OTEL_SAMPLE_RATIO",
	}
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
	}

	// Clean up after test
	defer func() {
		for key, val := range originalEnv {
			if val != "" {
				os.Setenv(key, val)
			} else {
				os.Unsetenv(key)
			}
		}
	}()

	t.Run("loads default values", func(t *testing.T) {
		for _, key := range envVars {
			os.Unsetenv(key)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}

		if cfg.ServiceName != "geostore" {
			t.Errorf("expected ServiceName 'geostore', got '%s'", cfg.ServiceName)
		}
		if cfg.GRPCPort != "50051" {
			t.Errorf("expected GRPCPort '50051', got '%s'", cfg.GRPCPort)
		}
		if cfg.DatabaseDriver != "postgres" {
			t.Errorf("expected DatabaseDriver 'postgres', got '%s'", cfg.DatabaseDriver)
		}
		if cfg.QueryTimeout != 10*time.Second {
			t.Errorf("expected QueryTimeout 10s, got %s", cfg.QueryTimeout)
		}
		if cfg.DefaultDistance != "50km" {
			t.Errorf("expected DefaultDistance '50km', got '%s'", cfg.DefaultDistance)
		}
		if cfg.MaxNearbyLimit != 500 {
			t.Errorf("expected MaxNearbyLimit 500, got %d", cfg.MaxNearbyLimit)
		}
		if cfg.TracingEnabled {
			t.Error("expected tracing disabled by default")
		}
		if cfg.TraceSampleRatio != 1 {
			t.Errorf("expected TraceSampleRatio 1, got %v", cfg.TraceSampleRatio)
		}
	})

	t.Run("loads custom values from environment", func(t *testing.T) {
		os.Setenv("SERVICE_NAME", "test-service")
		os.Setenv("GRPC_PORT", "9999")
		os.Setenv("DATABASE_DRIVER", "sqlite")
		os.Setenv("QUERY_TIMEOUT", "250ms")
		os.Setenv("DEFAULT_DISTANCE", "10 miles")
		os.Setenv("WORKERS", "4")
		os.Setenv("OTEL_ENABLED", "true")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}

		if cfg.ServiceName != "test-service" {
			t.Errorf("expected ServiceName 'test-service', got '%s'", cfg.ServiceName)
		}
		if cfg.GRPCPort != "9999" {
			t.Errorf("expected GRPCPort '9999', got '%s'", cfg.GRPCPort)
		}
		if cfg.QueryTimeout != 250*time.Millisecond {
			t.Errorf("expected QueryTimeout 250ms, got %s", cfg.QueryTimeout)
		}
		if cfg.DefaultDistance != "10 miles" {
			t.Errorf("expected DefaultDistance '10 miles', got '%s'", cfg.DefaultDistance)
		}
		if cfg.Workers != 4 {
			t.Errorf("expected Workers 4, got %d", cfg.Workers)
		}
		if !cfg.TracingEnabled {
			t.Error("expected tracing enabled")
		}
	})

	t.Run("returns error for invalid duration", func(t *testing.T) {
		os.Setenv("QUERY_TIMEOUT", "soon")
		defer os.Unsetenv("QUERY_TIMEOUT")

		if _, err := Load(); err == nil {
			t.Error("expected error for invalid QUERY_TIMEOUT, got nil")
		}
	})

	t.Run("returns error for invalid integer", func(t *testing.T) {
		os.Setenv("MAX_NEARBY_LIMIT", "many")
		defer os.Unsetenv("MAX_NEARBY_LIMIT")

		if _, err := Load(); err == nil {
			t.Error("expected error for invalid MAX_NEARBY_LIMIT, got nil")
		}
	})
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DatabaseDriver:   "postgres",
		PostgresHost:     "192.168.1.175",
		PostgresPort:     "6432",
		PostgresDB:       "geostore",
		PostgresUser:     "testuser",
		PostgresPassword: "testpass",
	}

	expected := "host=192.168.1.175 port=6432 dbname=geostore user=testuser password=testpass sslmode=disable"
	if dsn := cfg.DatabaseDSN(); dsn != expected {
		t.Errorf("expected DSN '%s', got '%s'", expected, dsn)
	}

	cfg.DatabaseDriver = "sqlite"
	cfg.SQLitePath = "/tmp/geo.db"
	if dsn := cfg.DatabaseDSN(); dsn != "/tmp/geo.db" {
		t.Errorf("expected sqlite path, got '%s'", dsn)
	}

	cfg.DatabaseDriver = "mysql"
	cfg.MySQLDSN = "u:p@tcp(db:3306)/geo"
	if dsn := cfg.DatabaseDSN(); dsn != "u:p@tcp(db:3306)/geo?parseTime=true" {
		t.Errorf("unexpected mysql DSN '%s'", dsn)
	}

	cfg.DatabaseDriver = " MySQL "
	if dsn := cfg.DatabaseDSN(); dsn != "u:p@tcp(db:3306)/geo?parseTime=true" {
		t.Errorf("driver name should be case-insensitive, got DSN '%s'", dsn)
	}

	cfg.DatabaseDriver = "SQLite"
	if dsn := cfg.DatabaseDSN(); dsn != "/tmp/geo.db" {
		t.Errorf("expected sqlite path for 'SQLite', got '%s'", dsn)
	}

	cfg.DatabaseDriver = "mysql"
	cfg.MySQLDSN = "u:p@tcp(db:3306)/geo?charset=utf8mb4"
	if dsn := cfg.DatabaseDSN(); dsn != "u:p@tcp(db:3306)/geo?charset=utf8mb4&parseTime=true" {
		t.Errorf("unexpected mysql DSN '%s'", dsn)
	}
}
