package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cgillinger/facebook-stats/internal/pkg/logger"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Inbox    InboxConfig    `yaml:"inbox"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int      `yaml:"port"`
	Host            string   `yaml:"host"`
	MaxUploadMB     int      `yaml:"max_upload_mb"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ShutdownSeconds int      `yaml:"shutdown_seconds"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// MaxUploadBytes is the multipart body limit.
func (c ServerConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// ShutdownTimeout bounds graceful shutdown.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownSeconds) * time.Second
}

// StorageConfig selects and configures the document store.
type StorageConfig struct {
	Type          string `yaml:"type"` // local, aws, postgres
	LocalPath     string `yaml:"local_path"`
	S3Bucket      string `yaml:"s3_bucket"`
	S3Prefix      string `yaml:"s3_prefix"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"` // empty uses the default credential chain
	AccessKeyID   string `yaml:"access_key_id"`
	SecretKey     string `yaml:"secret_access_key"`
	DatabaseURL   string `yaml:"database_url"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// RedisConfig enables the Redis job tracker and edit lock when URL is set.
type RedisConfig struct {
	URL         string `yaml:"url"`
	JobTTLHours int    `yaml:"job_ttl_hours"`
}

// JobTTL is how long finished job records are kept.
func (c RedisConfig) JobTTL() time.Duration {
	return time.Duration(c.JobTTLHours) * time.Hour
}

// PipelineConfig tunes ingestion and aggregation.
type PipelineConfig struct {
	DedupeScope            string   `yaml:"dedupe_scope"` // session or file
	MergeAccountsByName    *bool    `yaml:"merge_accounts_by_name"`
	Timezone               string   `yaml:"timezone"`
	RequiredFields         []string `yaml:"required_fields"`
	DefaultMetrics         []string `yaml:"default_metrics"`
	SyntheticEventPatterns []string `yaml:"synthetic_event_patterns"`
	AbortOnMissingRequired bool     `yaml:"abort_on_missing_required"`
	QueueSize              int      `yaml:"queue_size"`
}

// Location resolves Timezone. Empty means the machine's local zone; an
// unknown zone is logged and also falls back to it.
func (c PipelineConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		logger.Warn("unknown pipeline timezone, using local time", "timezone", c.Timezone, "error", err)
		return time.Local
	}
	return loc
}

// MergeByName defaults to true.
func (c PipelineConfig) MergeByName() bool {
	return c.MergeAccountsByName == nil || *c.MergeAccountsByName
}

// InboxConfig configures the S3 drop-folder poller.
type InboxConfig struct {
	Enabled         bool   `yaml:"enabled"`
	S3Bucket        string `yaml:"s3_bucket"`
	S3Region        string `yaml:"s3_region"`
	Prefix          string `yaml:"prefix"`
	AWSProfile      string `yaml:"aws_profile"`
	IntervalMinutes int    `yaml:"interval_minutes"`
}

// Interval returns the polling interval as a duration
func (c InboxConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Redact *bool  `yaml:"redact"`
}

// RedactSecrets defaults to true.
func (c LoggingConfig) RedactSecrets() bool {
	return c.Redact == nil || *c.Redact
}

// Default returns a config with every default applied, for callers that run
// without a file.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 64
	}
	if cfg.Server.ShutdownSeconds == 0 {
		cfg.Server.ShutdownSeconds = 30
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "eu-north-1"
	}
	if cfg.Redis.JobTTLHours == 0 {
		cfg.Redis.JobTTLHours = 24
	}
	if cfg.Pipeline.DedupeScope == "" {
		cfg.Pipeline.DedupeScope = "session"
	}
	if cfg.Pipeline.QueueSize == 0 {
		cfg.Pipeline.QueueSize = 16
	}
	if cfg.Inbox.Prefix == "" {
		cfg.Inbox.Prefix = "inbox/"
	}
	if cfg.Inbox.S3Region == "" {
		cfg.Inbox.S3Region = cfg.Storage.AWSRegion
	}
	if cfg.Inbox.IntervalMinutes == 0 {
		cfg.Inbox.IntervalMinutes = 15
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file, if present, is loaded first.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
		if cfg.Inbox.S3Bucket == "" {
			cfg.Inbox.S3Bucket = v
		}
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
		cfg.Inbox.S3Region = v
	}
	if v := os.Getenv("AWS_PROFILE"); v != "" {
		cfg.Storage.AWSProfile = v
		cfg.Inbox.AWSProfile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FBSTATS_TIMEZONE"); v != "" {
		cfg.Pipeline.Timezone = v
	}
	if v := os.Getenv("DEDUPE_SCOPE"); v != "" {
		cfg.Pipeline.DedupeScope = strings.ToLower(v)
	}
}
