// Package config
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sdnpulse/sdnpulse/internal/source"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	CORS      CORSConfig      `yaml:"cors"`
	Auth      AuthConfig      `yaml:"auth"`
	Collector CollectorConfig `yaml:"collector"`
	Sources   []SourceConfig  `yaml:"sources" validate:"required,min=1,dive"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeoutMS     int    `yaml:"read_timeout_ms" validate:"gte=0"`
	WriteTimeoutMS    int    `yaml:"write_timeout_ms" validate:"gte=0"`
	ShutdownTimeoutMS int    `yaml:"shutdown_timeout_ms" validate:"gte=0"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAgeSeconds  int      `yaml:"max_age_seconds" validate:"gte=0"`
}

type AuthConfig struct {
	Enabled        bool   `yaml:"enabled"`
	AdminUsername  string `yaml:"admin_username"`
	AdminPassword  string `yaml:"admin_password"`
	JWTSecret      string `yaml:"jwt_secret"`
	JWTExpiryHours int    `yaml:"jwt_expiry_hours" validate:"gte=0"`
	// EncryptionKey decrypts "enc:" secrets in source endpoints.
	EncryptionKey string `yaml:"encryption_key"`
}

type CollectorConfig struct {
	IntervalMS int `yaml:"interval_ms" validate:"gte=0"`
}

// SourceConfig is one entry of the ordered source list. Zero budget fields
// take the defaults of the source class.
type SourceConfig struct {
	ID             string                `yaml:"id" validate:"required"`
	Class          string                `yaml:"class" validate:"omitempty,oneof=standard heavy"`
	TimeoutMS      int                   `yaml:"timeout_ms" validate:"gte=0"`
	MaxAttempts    int                   `yaml:"max_attempts" validate:"gte=0"`
	RetryBackoffMS int                   `yaml:"retry_backoff_ms" validate:"gte=0"`
	Endpoint       source.EndpointConfig `yaml:"endpoint"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format" validate:"omitempty,oneof=json text"`
	Output   string `yaml:"output" validate:"omitempty,oneof=stdout stderr file"`
	FilePath string `yaml:"file_path" validate:"required_if=Output file"`
}

// Load reads configuration from file, applies environment variable overrides
// and defaults, then validates it.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutMS == 0 {
		c.Server.ReadTimeoutMS = 15000
	}
	if c.Server.WriteTimeoutMS == 0 {
		c.Server.WriteTimeoutMS = 15000
	}
	if c.Server.ShutdownTimeoutMS == 0 {
		c.Server.ShutdownTimeoutMS = 10000
	}
	if c.Auth.AdminUsername == "" {
		c.Auth.AdminUsername = "admin"
	}
	if c.Auth.JWTExpiryHours == 0 {
		c.Auth.JWTExpiryHours = 24
	}
	if c.Collector.IntervalMS == 0 {
		c.Collector.IntervalMS = 30000
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	for i := range c.Sources {
		if c.Sources[i].Class == "" {
			c.Sources[i].Class = string(source.ClassStandard)
		}
	}
}

// Validate ensures all required configuration values are set
func (c *Config) Validate() error {
	if err := ValidateStruct(c); err != nil {
		return err
	}

	if !c.Logging.IsLogLevelValid() {
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}

	if c.Auth.Enabled {
		if len(c.Auth.JWTSecret) < 32 {
			return errors.New("jwt_secret must be at least 32 characters when auth is enabled")
		}
		if c.Auth.AdminPassword == "" || c.Auth.AdminPassword == "changeme" {
			return errors.New("SDNPULSE_AUTH_ADMIN_PASSWORD must be set to a strong password")
		}
	}
	if c.Auth.EncryptionKey != "" && len(c.Auth.EncryptionKey) != 32 {
		return errors.New("encryption_key must be exactly 32 bytes")
	}

	seen := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("source %q: %w", s.ID, source.ErrDuplicateID)
		}
		seen[s.ID] = struct{}{}
	}

	return nil
}

// applyEnvOverrides checks for environment variables with SDNPULSE_ prefix
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SDNPULSE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SDNPULSE_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SDNPULSE_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("SDNPULSE_COLLECTOR_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SDNPULSE_COLLECTOR_INTERVAL_MS: %w", err)
		}
		cfg.Collector.IntervalMS = ms
	}
	if v := os.Getenv("SDNPULSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Auth overrides
	if v := os.Getenv("SDNPULSE_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SDNPULSE_AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = enabled
	}
	if v := os.Getenv("SDNPULSE_AUTH_ADMIN_PASSWORD"); v != "" {
		cfg.Auth.AdminPassword = v
	}
	if v := os.Getenv("SDNPULSE_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("SDNPULSE_AUTH_ENCRYPTION_KEY"); v != "" {
		cfg.Auth.EncryptionKey = v
	}
	return nil
}

// Descriptors builds the ordered source descriptors. Endpoints built before
// a failure are closed.
func (c *Config) Descriptors(reg *source.Registry, reveal source.Reveal) ([]source.Descriptor, error) {
	descs := make([]source.Descriptor, 0, len(c.Sources))
	for _, sc := range c.Sources {
		d, err := sc.Descriptor(reg, reveal)
		if err != nil {
			_ = source.CloseAll(descs)
			return nil, err
		}
		descs = append(descs, d)
	}

	if err := source.ValidateDescriptors(descs); err != nil {
		_ = source.CloseAll(descs)
		return nil, err
	}
	return descs, nil
}

// Descriptor builds one descriptor, filling unset budget fields from the
// class defaults.
func (s *SourceConfig) Descriptor(reg *source.Registry, reveal source.Reveal) (source.Descriptor, error) {
	class := source.Class(s.Class)
	if class == "" {
		class = source.ClassStandard
	}
	profile := class.Defaults()

	ep, err := reg.Build(s.Endpoint, reveal)
	if err != nil {
		return source.Descriptor{}, fmt.Errorf("source %q: %w", s.ID, err)
	}

	d := source.Descriptor{
		ID:           s.ID,
		Kind:         strings.ToLower(s.Endpoint.Kind),
		Class:        class,
		Endpoint:     ep,
		Timeout:      profile.Timeout,
		MaxAttempts:  profile.MaxAttempts,
		RetryBackoff: profile.RetryBackoff,
	}
	if s.TimeoutMS > 0 {
		d.Timeout = s.GetTimeout()
	}
	if s.MaxAttempts > 0 {
		d.MaxAttempts = s.MaxAttempts
	}
	if s.RetryBackoffMS > 0 {
		d.RetryBackoff = s.GetRetryBackoff()
	}
	return d, nil
}

// GetTimeout returns the per-attempt timeout as a duration
func (s *SourceConfig) GetTimeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// GetRetryBackoff returns the retry backoff as a duration
func (s *SourceConfig) GetRetryBackoff() time.Duration {
	return time.Duration(s.RetryBackoffMS) * time.Millisecond
}

// GetInterval returns the collection interval as a duration
func (c *CollectorConfig) GetInterval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// GetReadTimeout returns the read timeout as a duration
func (s *ServerConfig) GetReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

// GetWriteTimeout returns the write timeout as a duration
func (s *ServerConfig) GetWriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

// GetShutdownTimeout returns the graceful shutdown budget as a duration
func (s *ServerConfig) GetShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutMS) * time.Millisecond
}

// Addr returns the listen address
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetJWTExpiry returns JWT expiry as duration
func (a *AuthConfig) GetJWTExpiry() time.Duration {
	return time.Duration(a.JWTExpiryHours) * time.Hour
}

// IsLogLevelValid checks if the log level is valid
func (l *LoggingConfig) IsLogLevelValid() bool {
	validLevels := []string{"debug", "info", "warn", "error"}
	return slices.Contains(validLevels, strings.ToLower(l.Level))
}
