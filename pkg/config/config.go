// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Service  ServiceConfig
	HTTP     HTTPConfig
	Store    StoreConfig
	NATS     NATSConfig
	Catalog  string
	Folio    string
	LogLevel string
}

type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

type HTTPConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigin   string
}

type StoreConfig struct {
	Driver      string
	OrdersFile  string
	SQLitePath  string
	PostgresDSN string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
	S3Key       string

	// Static S3 credentials; empty falls back to the SDK default chain.
	S3AccessKeyID     string
	S3SecretAccessKey string
}

type NATSConfig struct {
	Enabled bool
	Port    int
	DataDir string
}

// Load reads the environment, applying defaults for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "desintesa"),
			Version:     getEnv("SERVICE_VERSION", "dev"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		HTTP: HTTPConfig{
			Port:            getEnv("PORT", "4000"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigin:   getEnv("CORS_ALLOWED_ORIGIN", "*"),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(getEnv("STORE_DRIVER", "file")),
			OrdersFile:  getEnv("ORDERS_FILE", "./data/orders.json"),
			SQLitePath:  getEnv("SQLITE_PATH", "./data/desintesa.db"),
			PostgresDSN: os.Getenv("POSTGRES_DSN"),
			S3Bucket:    os.Getenv("S3_BUCKET"),
			S3Region:    getEnv("S3_REGION", "us-east-1"),
			S3Endpoint:  os.Getenv("S3_ENDPOINT"),
			S3PathStyle: getEnvBool("S3_PATH_STYLE", false),
			S3Key:       getEnv("S3_KEY", "orders.json"),

			S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		NATS: NATSConfig{
			Enabled: getEnvBool("NATS_ENABLED", true),
			Port:    getEnvInt("NATS_PORT", 4222),
			DataDir: getEnv("NATS_DATA_DIR", "./data/nats"),
		},
		Catalog:  os.Getenv("CATALOG_FILE"),
		Folio:    getEnv("FOLIO_PREFIX", "DES"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks driver-specific requirements.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "file", "sqlite", "memory":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres store driver")
		}
	case "s3":
		if c.Store.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 store driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Folio == "" {
		return fmt.Errorf("FOLIO_PREFIX must not be empty")
	}
	if c.NATS.Port <= 0 || c.NATS.Port > 65535 {
		return fmt.Errorf("NATS_PORT out of range: %d", c.NATS.Port)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("15s") or plain seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
