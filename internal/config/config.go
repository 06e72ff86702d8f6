package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/searchterm-optimizer/internal/analysis"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Database DatabaseConfig  `yaml:"database"`
	Redis    RedisConfig     `yaml:"redis"`
	Storage  StorageConfig   `yaml:"storage"`
	DataNorm DataNormConfig  `yaml:"datanorm"`
	Upload   UploadConfig    `yaml:"upload"`
	Analysis analysis.Params `yaml:"analysis"`
	Cache    CacheConfig     `yaml:"cache"`
	Log      LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                   int      `yaml:"port"`
	Host                   string   `yaml:"host"`
	ReadTimeoutSeconds     int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int      `yaml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
	CORSOrigins            []string `yaml:"cors_origins"`
	DefaultOrgID           string   `yaml:"default_org_id"` // used when a request carries no X-Org-ID
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr is host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig holds the Redis connection used for the summary cache and
// distributed locks. An empty URL disables both.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// Enabled reports whether a Redis URL is configured.
func (c RedisConfig) Enabled() bool { return c.URL != "" }

// StorageConfig holds the archive for uploaded reports. S3 is used when a
// bucket is set, otherwise LocalPath if set.
type StorageConfig struct {
	S3Bucket           string `yaml:"s3_bucket"`
	Prefix             string `yaml:"prefix"`
	AWSRegion          string `yaml:"aws_region"`
	AWSProfile         string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	AWSAccessKeyID     string `yaml:"aws_access_key_id"`
	AWSSecretAccessKey string `yaml:"aws_secret_access_key"`
	LocalPath          string `yaml:"local_path"`
}

// Enabled reports whether uploads are archived.
func (c StorageConfig) Enabled() bool { return c.S3Bucket != "" || c.LocalPath != "" }

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	return awsProfile(c.AWSProfile)
}

// DataNormConfig holds the S3 inbox watcher settings.
type DataNormConfig struct {
	Enabled            bool   `yaml:"enabled"`
	S3Bucket           string `yaml:"s3_bucket"`
	S3Region           string `yaml:"s3_region"`
	AWSProfile         string `yaml:"aws_profile"`
	AWSAccessKeyID     string `yaml:"aws_access_key_id"`
	AWSSecretAccessKey string `yaml:"aws_secret_access_key"`
	Prefix             string `yaml:"prefix"`
	IntervalMinutes    int    `yaml:"interval_minutes"`
	MaxRetries         int    `yaml:"max_retries"`
	Concurrency        int    `yaml:"concurrency"`
	OrganizationID     string `yaml:"organization_id"` // owner of reports imported from the inbox
	SQSQueueURL        string `yaml:"sqs_queue_url"`   // optional S3 event notifications
}

func (c DataNormConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c DataNormConfig) GetAWSProfile() string {
	return awsProfile(c.AWSProfile)
}

func awsProfile(configured string) string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return "" // Use default credential chain (IAM role)
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return configured
}

// UploadConfig bounds a single uploaded report
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
	MaxRows  int   `yaml:"max_rows"`
}

// CacheConfig holds summary cache settings
type CacheConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
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
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, for callers
// that run without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 60
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 120
	}
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = 30
	}
	if cfg.Server.DefaultOrgID == "" {
		cfg.Server.DefaultOrgID = "default"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 5
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "uploads/"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-west-2"
	}
	// DataNorm defaults
	if cfg.DataNorm.S3Region == "" {
		cfg.DataNorm.S3Region = "us-west-2"
	}
	if cfg.DataNorm.Prefix == "" {
		cfg.DataNorm.Prefix = "inbox/"
	}
	if cfg.DataNorm.IntervalMinutes == 0 {
		cfg.DataNorm.IntervalMinutes = 5
	}
	if cfg.DataNorm.MaxRetries == 0 {
		cfg.DataNorm.MaxRetries = 3
	}
	if cfg.DataNorm.Concurrency == 0 {
		cfg.DataNorm.Concurrency = 4
	}
	if cfg.DataNorm.OrganizationID == "" {
		cfg.DataNorm.OrganizationID = cfg.Server.DefaultOrgID
	}
	if cfg.Upload.MaxBytes == 0 {
		cfg.Upload.MaxBytes = 20 << 20
	}
	if cfg.Upload.MaxRows == 0 {
		cfg.Upload.MaxRows = 200000
	}
	if cfg.Cache.TTLMinutes == 0 {
		cfg.Cache.TTLMinutes = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Analysis = cfg.Analysis.WithDefaults()
}

// Validate rejects configurations the server cannot run with.
func (cfg *Config) Validate() error {
	if err := cfg.Analysis.Validate(); err != nil {
		return fmt.Errorf("config analysis: %w", err)
	}
	if cfg.Upload.MaxBytes < 0 || cfg.Upload.MaxRows < 0 {
		return fmt.Errorf("config upload: limits must not be negative")
	}
	if cfg.DataNorm.Enabled && cfg.DataNorm.S3Bucket == "" {
		return fmt.Errorf("config datanorm: enabled without s3_bucket")
	}
	return nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	// Storage overrides
	if v := os.Getenv("STORAGE_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("STORAGE_LOCAL_PATH"); v != "" {
		cfg.Storage.LocalPath = v
	}
	if v := os.Getenv("STORAGE_AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.AWSAccessKeyID = v
	}
	if v := os.Getenv("STORAGE_AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.AWSSecretAccessKey = v
	}
	// DataNorm overrides
	if v := os.Getenv("DATANORM_S3_BUCKET"); v != "" {
		cfg.DataNorm.S3Bucket = v
		cfg.DataNorm.Enabled = true
	}
	if v := os.Getenv("DATANORM_S3_REGION"); v != "" {
		cfg.DataNorm.S3Region = v
	}
	if v := os.Getenv("DATANORM_SQS_QUEUE_URL"); v != "" {
		cfg.DataNorm.SQSQueueURL = v
	}
	if v := os.Getenv("DATANORM_AWS_ACCESS_KEY_ID"); v != "" {
		cfg.DataNorm.AWSAccessKeyID = v
	}
	if v := os.Getenv("DATANORM_AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.DataNorm.AWSSecretAccessKey = v
	}
	// Analysis overrides
	envFloat("ANALYSIS_TARGET_ACOS_INDEX", &cfg.Analysis.TargetAcosIndex)
	envFloat("ANALYSIS_EXACT_NEGATIVE_LV", &cfg.Analysis.ExactNegativeLv)
	envFloat("ANALYSIS_PHRASE_NEGATIVE_LV", &cfg.Analysis.PhraseNegativeLv)
	envFloat("ANALYSIS_RELIABILITY", &cfg.Analysis.Reliability)
	envFloat("ANALYSIS_INCREASE_BID_LV", &cfg.Analysis.IncreaseBidLv)
	envFloat("ANALYSIS_DECREASE_BID_LV", &cfg.Analysis.DecreaseBidLv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
