package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/nuitester/internal/domain/rewrite"
	"github.com/GriffinCanCode/nuitester/internal/domain/workspace"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Workspace WorkspaceConfig
	Storage   StorageConfig
	Shim      ShimConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string   `envconfig:"PORT" default:"8000"`
	Host        string   `envconfig:"HOST" default:"127.0.0.1"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// WorkspaceConfig holds the settings shared by every workspace.
type WorkspaceConfig struct {
	UIFolder     string   `envconfig:"UI_FOLDER" default:"ui/"`
	ResourceName string   `envconfig:"RESOURCE_NAME" default:"nui-tester"`
	MaxFiles     int      `envconfig:"MAX_FILES" default:"2000"`
	MaxUploadMB  int      `envconfig:"MAX_UPLOAD_MB" default:"64"`
	Ignore       []string `envconfig:"UPLOAD_IGNORE" default:"**/.git/**,**/node_modules/**,**/.DS_Store,**/Thumbs.db"`
	LogRetention int      `envconfig:"LOG_RETENTION" default:"5000"`
}

// StorageConfig holds snapshot persistence configuration.
type StorageConfig struct {
	Enabled bool   `envconfig:"STORAGE_ENABLED" default:"false"`
	Path    string `envconfig:"STORAGE_PATH" default:"nuitester.db"`
}

// ShimConfig controls the startup self-test of the bridge shim.
type ShimConfig struct {
	SelfTest bool          `envconfig:"SHIM_SELFTEST" default:"true"`
	Timeout  time.Duration `envconfig:"SHIM_TIMEOUT" default:"2s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "127.0.0.1",
			CORSOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Workspace: WorkspaceConfig{
			UIFolder:     rewrite.DefaultUIFolder,
			ResourceName: "nui-tester",
			MaxFiles:     2000,
			MaxUploadMB:  64,
			Ignore:       append([]string(nil), workspace.DefaultIgnore...),
			LogRetention: 5000,
		},
		Storage: StorageConfig{
			Enabled: false,
			Path:    "nuitester.db",
		},
		Shim: ShimConfig{
			SelfTest: true,
			Timeout:  2 * time.Second,
		},
	}
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	if c.Workspace.MaxFiles < 0 || c.Workspace.MaxUploadMB < 0 {
		return fmt.Errorf("workspace limits must not be negative")
	}
	if err := c.Limits().Validate(); err != nil {
		return fmt.Errorf("UPLOAD_IGNORE: %w", err)
	}
	if c.Storage.Enabled && c.Storage.Path == "" {
		return fmt.Errorf("STORAGE_PATH is required when storage is enabled")
	}
	return nil
}

// Limits converts the upload settings.
func (c *Config) Limits() workspace.Limits {
	return workspace.Limits{
		MaxFiles: c.Workspace.MaxFiles,
		MaxBytes: int64(c.Workspace.MaxUploadMB) << 20,
		Ignore:   c.Workspace.Ignore,
	}
}

// WorkspaceSettings converts the config into what a workspace.Manager takes.
func (c *Config) WorkspaceSettings() workspace.Config {
	return workspace.Config{
		UIFolder:     c.Workspace.UIFolder,
		ResourceName: c.Workspace.ResourceName,
		LogRetention: c.Workspace.LogRetention,
		Limits:       c.Limits(),
	}
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
