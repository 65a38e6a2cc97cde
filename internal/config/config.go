// Package config loads the adoflow configuration file and applies
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Organization string `mapstructure:"organization"`
	Project      string `mapstructure:"project"`
	PAT          string `mapstructure:"pat"`
	BaseURL      string `mapstructure:"base_url"`

	PreviewTTL time.Duration `mapstructure:"preview_ttl"`

	HTTP  HTTPConfig  `mapstructure:"http"`
	Store StoreConfig `mapstructure:"store"`
	Log   LogConfig   `mapstructure:"log"`
}

// HTTPConfig configures the JSON API server.
type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

// StoreConfig selects the pending transition store backend.
type StoreConfig struct {
	// Type is "memory" (default) or "redis".
	Type  string      `mapstructure:"type"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the redis-backed pending store and locker.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `mapstructure:"level"`
	// Format is "text" (default) or "json".
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		HTTP:  HTTPConfig{Port: 8080},
		Store: StoreConfig{Type: "memory"},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML config file, decodes it over the defaults and applies
// environment overrides. A missing file is not an error; the defaults plus
// environment are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// Validate checks the settings every command needs to reach Azure DevOps.
func (c *Config) Validate() error {
	if c.Organization == "" {
		return fmt.Errorf("organization is required (config or ADOFLOW_ORGANIZATION)")
	}
	if c.Project == "" {
		return fmt.Errorf("project is required (config or ADOFLOW_PROJECT)")
	}
	if c.PAT == "" {
		return fmt.Errorf("personal access token is required (config or ADOFLOW_PAT)")
	}
	if c.Store.Type != "memory" && c.Store.Type != "redis" {
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}
	if c.Store.Type == "redis" && c.Store.Redis.Addr == "" {
		return fmt.Errorf("store.redis.addr is required when store.type is redis")
	}
	return nil
}

// Secrets come from the environment so config files can be committed.
func applyEnv(cfg *Config) {
	if v := os.Getenv("ADOFLOW_ORGANIZATION"); v != "" {
		cfg.Organization = v
	}
	if v := os.Getenv("ADOFLOW_PROJECT"); v != "" {
		cfg.Project = v
	}
	if v := os.Getenv("ADOFLOW_PAT"); v != "" {
		cfg.PAT = v
	}
	if v := os.Getenv("ADOFLOW_REDIS_ADDR"); v != "" {
		cfg.Store.Redis.Addr = v
	}
	if v := os.Getenv("ADOFLOW_REDIS_PASSWORD"); v != "" {
		cfg.Store.Redis.Password = v
	}
}
