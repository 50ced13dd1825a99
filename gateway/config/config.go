package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type AuthConfig struct {
	Enabled    bool          `yaml:"enabled"`
	HMACSecret string        `yaml:"hmacSecret"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	ClockSkew  time.Duration `yaml:"clockSkew"`
}

type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requestsPerMinute"`
	Burst             int     `yaml:"burst"`
}

type Config struct {
	ListenAddress string          `yaml:"listen"`
	NodeURL       string          `yaml:"nodeUrl"`
	ReadTimeout   time.Duration   `yaml:"readTimeout"`
	WriteTimeout  time.Duration   `yaml:"writeTimeout"`
	IdleTimeout   time.Duration   `yaml:"idleTimeout"`
	Environment   string          `yaml:"environment"`
	LogFile       string          `yaml:"logFile"`
	Auth          AuthConfig      `yaml:"auth"`
	RateLimit     RateLimitConfig `yaml:"rateLimit"`
}

// Load reads the gateway configuration, falling back to development defaults
// when no path is supplied.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: ":8081",
		NodeURL:       "http://127.0.0.1:8080",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   120 * time.Second,
		Environment:   "local",
		Auth: AuthConfig{
			ClockSkew: 2 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 300,
			Burst:             30,
		},
	}
	if path == "" {
		if err := cfg.Validate(); err != nil {
			return Config{}, fmt.Errorf("validate config: %w", err)
		}
		return cfg, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.NodeURL) == "" {
		return fmt.Errorf("nodeUrl is required")
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth.hmacSecret is required when auth is enabled")
	}
	if cfg.Auth.ClockSkew <= 0 {
		cfg.Auth.ClockSkew = 2 * time.Minute
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 300
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 30
	}
	return nil
}
