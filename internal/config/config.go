package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/ghl"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/google"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/insights"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/job"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/logger"
)

// Config is the top-level TOML structure.
type Config struct {
	Server   ServerConfig     `toml:"server" mapstructure:"server"`
	Log      logger.Config    `toml:"log" mapstructure:"log"`
	Registry RegistryConfig   `toml:"registry" mapstructure:"registry"`
	History  HistoryConfig    `toml:"history" mapstructure:"history"`
	Upstream UpstreamConfig   `toml:"upstream" mapstructure:"upstream"`
	Env      []string         `toml:"env" mapstructure:"env"`
	EnvFiles []string         `toml:"env_files" mapstructure:"env_files"`
	Jobs     []job.Definition `toml:"jobs" mapstructure:"jobs"`
}

type ServerConfig struct {
	Addr     string `toml:"addr" mapstructure:"addr"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type RegistryConfig struct {
	TTL time.Duration `toml:"ttl" mapstructure:"ttl"`
}

type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type UpstreamConfig struct {
	Google   google.Config   `toml:"google" mapstructure:"google"`
	GHL      ghl.Config      `toml:"ghl" mapstructure:"ghl"`
	Insights insights.Config `toml:"insights" mapstructure:"insights"`
	Cache    CacheConfig     `toml:"cache" mapstructure:"cache"`
}

type CacheConfig struct {
	Dir string        `toml:"dir" mapstructure:"dir"`
	TTL time.Duration `toml:"ttl" mapstructure:"ttl"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:     ":8787",
			BasePath: "/api",
		},
		Log: logger.Config{
			Level:  "info",
			Format: "text",
		},
		Registry: RegistryConfig{TTL: 30 * time.Minute},
		Upstream: UpstreamConfig{
			Cache: CacheConfig{TTL: 15 * time.Minute},
		},
		EnvFiles: []string{".env", ".env.local"},
	}
}

// Load reads the TOML file at path on top of the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Registry.TTL < 0 {
		return fmt.Errorf("registry.ttl must not be negative")
	}
	seen := make(map[string]bool, len(c.Jobs))
	for _, d := range c.Jobs {
		if d.Name == "" {
			return fmt.Errorf("jobs entry without a name")
		}
		if d.Script == "" {
			return fmt.Errorf("job %q has no script", d.Name)
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate job %q", d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}
