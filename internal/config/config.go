package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// GatewayConfig configures the SMS/WhatsApp provider. When BaseURL is empty
// the serve command falls back to the mock transport, which logs sends
// instead of delivering them.
type GatewayConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Channel string        `yaml:"channel"`
	Timeout time.Duration `yaml:"timeout"`
}

type DispatchConfig struct {
	// SendInterval is the pacing delay between consecutive sends. A tuning
	// knob for provider rate limits, not a correctness requirement.
	SendInterval    time.Duration `yaml:"send_interval"`
	HistoryPageSize int           `yaml:"history_page_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with all defaults applied, used when no
// config file is given.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8090"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/baraka-dispatch/app.db"
	}
	if cfg.Gateway.Channel == "" {
		cfg.Gateway.Channel = "sms"
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = 30 * time.Second
	}
	if cfg.Dispatch.SendInterval == 0 {
		cfg.Dispatch.SendInterval = 250 * time.Millisecond
	}
	if cfg.Dispatch.HistoryPageSize == 0 {
		cfg.Dispatch.HistoryPageSize = 20
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if cfg.Gateway.Channel != "sms" && cfg.Gateway.Channel != "whatsapp" {
		return fmt.Errorf("gateway.channel must be sms or whatsapp, got %q", cfg.Gateway.Channel)
	}
	if cfg.Gateway.BaseURL != "" && cfg.Gateway.APIKey == "" {
		return fmt.Errorf("gateway.api_key is required when gateway.base_url is set")
	}
	if cfg.Dispatch.SendInterval < 0 {
		return fmt.Errorf("dispatch.send_interval must not be negative")
	}
	if cfg.Dispatch.HistoryPageSize < 1 {
		return fmt.Errorf("dispatch.history_page_size must be at least 1")
	}
	return nil
}
