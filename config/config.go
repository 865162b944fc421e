package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    Server    `mapstructure:"server"`
	Engine    Engine    `mapstructure:"engine"`
	Logging   Logging   `mapstructure:"logging"`
	Languages []Runtime `mapstructure:"-"`

	// LanguagesFile optionally points at a YAML runtime manifest that
	// replaces the built-in language table.
	LanguagesFile string `mapstructure:"languages_file"`
}

// Server holds transport configuration
type Server struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
	APIKey    string `mapstructure:"api_key"`
}

// Engine holds execution engine configuration
type Engine struct {
	MaxWorkers  int `mapstructure:"max_workers"`
	MaxRequests int `mapstructure:"max_requests"`
	TimeoutSec  int `mapstructure:"timeout_sec"`
}

// Logging holds logger configuration
type Logging struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// Transport values accepted by Server.Transport.
const (
	TransportHTTP     = "http"
	TransportMCPStdio = "mcp-stdio"
	TransportMCPHTTP  = "mcp-http"
)

// DefaultMaxWorkers derives the worker pool size from the host CPU count:
// four workers per core, floor 4, ceiling 32.
func DefaultMaxWorkers() int {
	n := runtime.NumCPU() * 4
	if n > 32 {
		n = 32
	}
	if n < 4 {
		n = 4
	}
	return n
}

// New loads and validates the application configuration. Values come from
// the environment first (API_KEY, MAX_REQUESTS, MAX_WORKERS,
// WORKER_TIMEOUT_SEC, ...) with an optional runbox.yaml file underneath;
// everything is static for the process lifetime.
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("runbox")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server.transport", TransportHTTP)
	v.SetDefault("server.http_port", 8194)
	v.SetDefault("server.api_key", "runbox")
	v.SetDefault("engine.max_workers", DefaultMaxWorkers())
	v.SetDefault("engine.max_requests", 1000)
	v.SetDefault("engine.timeout_sec", 10)
	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
	v.SetDefault("languages_file", "")

	// Environment names kept compatible with existing deployment
	// manifests, hence no common prefix.
	bindings := map[string]string{
		"server.transport":    "TRANSPORT",
		"server.http_port":    "HTTP_PORT",
		"server.api_key":      "API_KEY",
		"engine.max_workers":  "MAX_WORKERS",
		"engine.max_requests": "MAX_REQUESTS",
		"engine.timeout_sec":  "WORKER_TIMEOUT_SEC",
		"logging.mode":        "LOG_MODE",
		"logging.level":       "LOG_LEVEL",
		"languages_file":      "LANGUAGES_FILE",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.LanguagesFile != "" {
		runtimes, err := LoadRuntimes(config.LanguagesFile)
		if err != nil {
			return nil, fmt.Errorf("error loading language manifest: %w", err)
		}
		config.Languages = runtimes
	} else {
		config.Languages = DefaultRuntimes()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// Validate ensures the configuration is valid
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportHTTP, TransportMCPStdio, TransportMCPHTTP:
	default:
		return fmt.Errorf("invalid server.transport: %s, must be one of 'http', 'mcp-stdio', 'mcp-http'", c.Server.Transport)
	}

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	if c.Server.APIKey == "" {
		return fmt.Errorf("server.api_key must not be empty")
	}

	if c.Engine.MaxWorkers <= 0 {
		return fmt.Errorf("engine.max_workers must be positive, got: %d", c.Engine.MaxWorkers)
	}

	if c.Engine.MaxRequests < c.Engine.MaxWorkers {
		return fmt.Errorf("engine.max_requests (%d) must be at least engine.max_workers (%d)", c.Engine.MaxRequests, c.Engine.MaxWorkers)
	}

	if c.Engine.TimeoutSec <= 0 {
		return fmt.Errorf("engine.timeout_sec must be positive, got: %d", c.Engine.TimeoutSec)
	}

	if len(c.Languages) == 0 {
		return fmt.Errorf("at least one language runtime must be configured")
	}
	for i := range c.Languages {
		if err := c.Languages[i].Validate(); err != nil {
			return err
		}
	}

	return nil
}

// GetTimeout returns the per-execution deadline as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Engine.TimeoutSec) * time.Second
}
