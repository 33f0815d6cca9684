package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the risk engine.
// Values come from config.yaml with environment variable overrides.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// MigrationsPath is the directory holding golang-migrate SQL files.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`

	// Record store (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Optional dataset cache
	Redis RedisConfig `yaml:"redis"`

	// Analytical model tuning
	Models ModelsConfig `yaml:"models"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_risk"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds the dataset cache configuration.
// An empty Host disables the cache.
type RedisConfig struct {
	Host       string        `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port       int           `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password   string        `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB         int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	DatasetTTL time.Duration `yaml:"dataset_ttl" env:"REDIS_DATASET_TTL" env-default:"1h"`
}

// ModelsConfig tunes the analytical models.
type ModelsConfig struct {
	// MaxSamples caps Monte Carlo sample counts regardless of request parameters.
	MaxSamples int `yaml:"max_samples" env:"MODELS_MAX_SAMPLES" env-default:"100000"`
	// ChunkSize is the number of Monte Carlo samples evaluated per worker task.
	ChunkSize int `yaml:"chunk_size" env:"MODELS_CHUNK_SIZE" env-default:"500"`
	// Workers bounds parallel Monte Carlo tasks; 0 means GOMAXPROCS.
	Workers int `yaml:"workers" env:"MODELS_WORKERS" env-default:"0"`
	// RunTimeout bounds a single model run.
	RunTimeout time.Duration `yaml:"run_timeout" env:"MODELS_RUN_TIMEOUT" env-default:"2m"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if err := cfg.Models.validate(); err != nil {
		return nil, fmt.Errorf("invalid models configuration: %w", err)
	}

	cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)
	cfg.Redis.Host = ResolveHostForDocker(cfg.Redis.Host)

	return cfg, nil
}

// validateTLS ensures cert and key are provided together and exist on disk.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

func (m *ModelsConfig) validate() error {
	if m.MaxSamples < 100 {
		return fmt.Errorf("max_samples must be at least 100, got %d", m.MaxSamples)
	}
	if m.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", m.ChunkSize)
	}
	if m.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", m.Workers)
	}
	return nil
}

// ConnectionURL returns a PostgreSQL connection URL for pgx and golang-migrate.
func (c *DatabaseConfig) ConnectionURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// Address returns host:port of the Redis server.
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
