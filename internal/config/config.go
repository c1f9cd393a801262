// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the inbound processor.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shineum/postmark-inbound/internal/inbound"
)

// Storage backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config holds the complete application configuration.
type Config struct {
	Download DownloadConfig `yaml:"download"`
	Storage  StorageConfig  `yaml:"storage"`
	Relay    RelayConfig    `yaml:"relay"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DownloadConfig controls which attachments are saved and where.
type DownloadConfig struct {
	// Directory is prepended verbatim to each attachment name. Empty disables saving.
	Directory           string   `yaml:"directory"`
	MaxContentLength    int64    `yaml:"max_content_length"`
	AllowedContentTypes []string `yaml:"allowed_content_types"`
}

// StorageConfig selects the write target for saved attachments.
type StorageConfig struct {
	Backend string   `yaml:"backend"`
	S3      S3Config `yaml:"s3"`
}

// S3Config holds S3 bucket settings.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// RelayConfig selects where processed messages are forwarded.
type RelayConfig struct {
	Provider string    `yaml:"provider"`
	SES      SESConfig `yaml:"ses"`
}

// SESConfig holds AWS SES forwarding configuration.
type SESConfig struct {
	Region          string   `yaml:"region"`
	AccessKeyID     string   `yaml:"access_key_id"`
	SecretAccessKey string   `yaml:"secret_access_key"`
	Sender          string   `yaml:"sender"`
	ForwardTo       []string `yaml:"forward_to"`
}

// MetricsConfig holds metrics publishing configuration.
type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

// CloudWatchConfig enables CloudWatch metrics when Namespace is set.
type CloudWatchConfig struct {
	Namespace string `yaml:"namespace"`
	Region    string `yaml:"region"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendLocal:
	case BackendS3:
		if !c.S3Configured() {
			return fmt.Errorf("storage backend %q requires S3_BUCKET", BackendS3)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Download.MaxContentLength < 0 {
		return fmt.Errorf("download.max_content_length must not be negative, got %d", c.Download.MaxContentLength)
	}
	return nil
}

// DownloadEnabled returns true if a download directory is configured.
func (c *Config) DownloadEnabled() bool {
	return c.Download.Directory != ""
}

// S3Configured returns true if an S3 bucket is set.
func (c *Config) S3Configured() bool {
	return c.Storage.S3.Bucket != ""
}

// SESConfigured returns true if SES region, sender and at least one
// forwarding address are set.
func (c *Config) SESConfigured() bool {
	return c.Relay.SES.Region != "" &&
		c.Relay.SES.Sender != "" &&
		len(c.Relay.SES.ForwardTo) > 0
}

// CloudWatchEnabled returns true if a metrics namespace is set.
func (c *Config) CloudWatchEnabled() bool {
	return c.Metrics.CloudWatch.Namespace != ""
}

// DownloadOptions projects the download section into attachment download
// options. The writer is left for the caller to choose.
func (c *Config) DownloadOptions() inbound.DownloadOptions {
	return inbound.DownloadOptions{
		Directory:           c.Download.Directory,
		MaxContentLength:    c.Download.MaxContentLength,
		AllowedContentTypes: c.Download.AllowedContentTypes,
	}
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Storage.Backend = BackendLocal
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values; unparseable
// numbers are ignored.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("INBOUND_DOWNLOAD_DIR"); v != "" {
		c.Download.Directory = v
	}
	if v := os.Getenv("INBOUND_MAX_CONTENT_LENGTH"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Download.MaxContentLength = size
		}
	}
	if v := os.Getenv("INBOUND_ALLOWED_CONTENT_TYPES"); v != "" {
		c.Download.AllowedContentTypes = splitList(v)
	}

	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		c.Storage.S3.Bucket = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		c.Storage.S3.Region = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		c.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("S3_ACCESS_KEY_ID"); v != "" {
		c.Storage.S3.AccessKeyID = v
	}
	if v := os.Getenv("S3_SECRET_ACCESS_KEY"); v != "" {
		c.Storage.S3.SecretAccessKey = v
	}

	if v := os.Getenv("RELAY_PROVIDER"); v != "" {
		c.Relay.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("SES_REGION"); v != "" {
		c.Relay.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.Relay.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.Relay.SES.SecretAccessKey = v
	}
	if v := os.Getenv("SES_SENDER"); v != "" {
		c.Relay.SES.Sender = v
	}
	if v := os.Getenv("SES_FORWARD_TO"); v != "" {
		c.Relay.SES.ForwardTo = splitList(v)
	}

	if v := os.Getenv("CLOUDWATCH_NAMESPACE"); v != "" {
		c.Metrics.CloudWatch.Namespace = v
	}
	if v := os.Getenv("CLOUDWATCH_REGION"); v != "" {
		c.Metrics.CloudWatch.Region = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
