package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Output   OutputConfig   `yaml:"output"`
	Log      LogConfig      `yaml:"log"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// PublicURL prefixes plot URLs returned to clients.
	PublicURL string `yaml:"public_url"`
}

type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         string `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Name         string `yaml:"name"`
	SSLMode      string `yaml:"sslmode"`
	TimeZone     string `yaml:"timezone"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	SkipMigrate  bool   `yaml:"skip_migrate"`
}

// DSN renders the libpq keyword/value connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.TimeZone)
}

// OutputConfig selects where rendered charts are written.
type OutputConfig struct {
	Dir     string   `yaml:"dir"`
	Backend string   `yaml:"backend"` // local or s3
	S3      S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// IngestConfig tunes the CSV loader worker pool.
type IngestConfig struct {
	BatchSize   int `yaml:"batch_size"`
	WorkerCount int `yaml:"worker_count"`
	FileWorkers int `yaml:"file_workers"`
	BufferSize  int `yaml:"buffer_size"`
}

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Load reads config from a YAML file (optional), then applies .env and
// environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	c.Server.PublicURL = getEnv("PUBLIC_URL", c.Server.PublicURL)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.SkipMigrate = getEnvBool("DB_SKIP_MIGRATE", c.Database.SkipMigrate)

	c.Output.Dir = getEnv("OUTPUT_DIR", c.Output.Dir)
	c.Output.Backend = getEnv("STORAGE_BACKEND", c.Output.Backend)
	c.Output.S3.Bucket = getEnv("S3_BUCKET", c.Output.S3.Bucket)
	c.Output.S3.Prefix = getEnv("S3_PREFIX", c.Output.S3.Prefix)
	c.Output.S3.Region = getEnv("AWS_REGION", c.Output.S3.Region)
	c.Output.S3.Endpoint = getEnv("S3_ENDPOINT", c.Output.S3.Endpoint)
	c.Output.S3.AccessKeyID = getEnv("AWS_ACCESS_KEY_ID", c.Output.S3.AccessKeyID)
	c.Output.S3.SecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", c.Output.S3.SecretAccessKey)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = getEnvBool("LOG_PRETTY", c.Log.Pretty)
	c.Tracing.Enabled = getEnvBool("TRACING_ENABLED", c.Tracing.Enabled)

	c.Ingest.BatchSize = getEnvInt("BATCH_SIZE", c.Ingest.BatchSize)
	c.Ingest.WorkerCount = getEnvInt("WORKER_COUNT", c.Ingest.WorkerCount)
	c.Ingest.FileWorkers = getEnvInt("FILE_WORKERS", c.Ingest.FileWorkers)
	c.Ingest.BufferSize = getEnvInt("BUFFER_SIZE", c.Ingest.BufferSize)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")

	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == "" {
		c.Database.Port = "5532"
	}
	if c.Database.User == "" {
		c.Database.User = "ai"
	}
	if c.Database.Password == "" {
		c.Database.Password = "ai"
	}
	if c.Database.Name == "" {
		c.Database.Name = "ai"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.TimeZone == "" {
		c.Database.TimeZone = "UTC"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}
	if c.Output.Backend == "" {
		c.Output.Backend = BackendLocal
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "stockplot"
	}

	if c.Ingest.BatchSize == 0 {
		c.Ingest.BatchSize = 2000
	}
	if c.Ingest.WorkerCount == 0 {
		c.Ingest.WorkerCount = 8
	}
	if c.Ingest.FileWorkers == 0 {
		c.Ingest.FileWorkers = 4
	}
	if c.Ingest.BufferSize == 0 {
		c.Ingest.BufferSize = 64
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Output.Backend {
	case BackendLocal:
	case BackendS3:
		if c.Output.S3.Bucket == "" {
			return fmt.Errorf("output.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("output.backend must be %q or %q, got %q", BackendLocal, BackendS3, c.Output.Backend)
	}
	if c.Ingest.BatchSize <= 0 || c.Ingest.WorkerCount <= 0 || c.Ingest.FileWorkers <= 0 {
		return fmt.Errorf("ingest batch size and worker counts must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
