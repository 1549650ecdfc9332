package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Default configuration values, per the environment table in this project's
// external-interfaces documentation.
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigServerHost      = "127.0.0.1"
	DefaultConfigServerPort      = 4141
	DefaultConfigShutdownTimeout = 5 * time.Second
	DefaultConfigAccountType     = "individual"
	DefaultConfigVSCodeVersion   = "1.100.0"
	DefaultConfigModelsCacheTTL  = time.Hour
	DefaultConfigRenamerAutoOn   = true
	DefaultConfigEmulateThinkOn  = true
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"`
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	Timeout time.Duration `json:"timeout"`
}

// UpstreamConfig selects the Copilot account tier and the VS Code version
// this proxy identifies itself as to Copilot's backend.
type UpstreamConfig struct {
	AccountType   string `json:"account_type" validate:"required"`
	VSCodeVersion string `json:"vscode_version" validate:"required"`
}

// AuthConfig holds the single optional default credential this proxy may
// hold on behalf of unauthenticated clients. There is no persistence layer:
// it is read once from the environment and kept in memory for the life of
// the process, same as every other entry the TokenCache ever holds.
type AuthConfig struct {
	DefaultCredential string `json:"default_credential,omitempty"`
}

// RenamerConfig configures display<->upstream model name translation.
type RenamerConfig struct {
	Auto bool              `json:"auto"`
	Map  map[string]string `json:"map,omitempty"`
}

// ModelsCacheConfig configures the cached model list's validity window.
type ModelsCacheConfig struct {
	TTL time.Duration `json:"ttl" validate:"gt=0"`
}

// ThinkingConfig toggles the <thinking>-tag extraction described in
// component 4.7.
type ThinkingConfig struct {
	Emulate bool `json:"emulate"`
}

// Config holds the application's full configuration.
type Config struct {
	LogLevel    slog.Level        `json:"log_level"`
	LogFormat   LogFormat         `json:"log_format" validate:"oneof=text json"`
	Server      ServerConfig      `json:"server"`
	Shutdown    ShutdownConfig    `json:"shutdown"`
	Upstream    UpstreamConfig    `json:"upstream"`
	Auth        AuthConfig        `json:"auth"`
	Renamer     RenamerConfig     `json:"renamer"`
	ModelsCache ModelsCacheConfig `json:"models_cache"`
	Thinking    ThinkingConfig    `json:"thinking"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Upstream.AccountType == "" {
		c.Upstream.AccountType = DefaultConfigAccountType
	}
	if c.Upstream.VSCodeVersion == "" {
		c.Upstream.VSCodeVersion = DefaultConfigVSCodeVersion
	}
	if c.ModelsCache.TTL == 0 {
		c.ModelsCache.TTL = DefaultConfigModelsCacheTTL
	}
	return nil
}

// Validate validates the configuration using struct tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
