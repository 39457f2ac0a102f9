package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port        int
	Environment string

	StoreDriver    string
	DatabaseDSN    string
	DatabaseDriver string
	SQLitePath     string
	MongoURI       string
	MongoDatabase  string

	RequestTimeout time.Duration
	EnableMetrics  bool
	EnableSwagger  bool
	ImportMaxBytes int64
	ImportMapping  string
}

// Load reads configuration from the environment, after a .env file if present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}

	return &Config{
		Port:           getEnvAsInt("PORT", 8080),
		Environment:    getEnv("ENVIRONMENT", "development"),
		StoreDriver:    getEnv("STORE_DRIVER", DriverMemory),
		DatabaseDSN:    getEnv("DB_DSN", ""),
		DatabaseDriver: getEnv("DB_DRIVER", "pgx"),
		SQLitePath:     getEnv("SQLITE_PATH", "data/issues.db"),
		MongoURI:       getEnv("MONGO_URI", ""),
		MongoDatabase:  getEnv("MONGO_DATABASE", "issuetracker"),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		EnableMetrics:  getEnv("ENABLE_METRICS", "") == "true",
		EnableSwagger:  getEnv("ENABLE_SWAGGER", "") == "true",
		ImportMaxBytes: int64(getEnvAsInt("IMPORT_MAX_BYTES", 10<<20)),
		ImportMapping:  getEnv("IMPORT_MAPPING", ""),
	}
}

// LoadAndValidate is Load followed by Validate.
func LoadAndValidate() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}

	switch c.StoreDriver {
	case DriverMemory:
		if c.Environment == "production" {
			return fmt.Errorf("STORE_DRIVER=memory is not allowed in production")
		}
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DB_DSN is required for STORE_DRIVER=postgres")
		}
		if c.DatabaseDriver != "pgx" && c.DatabaseDriver != "pq" {
			return fmt.Errorf("DB_DRIVER must be pgx or pq, got %q", c.DatabaseDriver)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for STORE_DRIVER=sqlite")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for STORE_DRIVER=mongo")
		}
		if c.MongoDatabase == "" {
			return fmt.Errorf("MONGO_DATABASE is required for STORE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.RequestTimeout > 5*time.Minute {
		return fmt.Errorf("REQUEST_TIMEOUT must not exceed 5m")
	}
	if c.ImportMaxBytes <= 0 {
		return fmt.Errorf("IMPORT_MAX_BYTES must be positive")
	}
	if c.ImportMapping != "" {
		if _, err := os.Stat(c.ImportMapping); err != nil {
			return fmt.Errorf("IMPORT_MAPPING: %w", err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("config: invalid %s=%q, using %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("config: invalid %s=%q, using %s", key, value, defaultValue)
	}
	return defaultValue
}
