package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Rig    RigConfig    `yaml:"rig"`
	Timing TimingConfig `yaml:"timing"`
	Auth   AuthConfig   `yaml:"auth"`
	Audit  AuditConfig  `yaml:"audit"`
	Relay  RelayConfig  `yaml:"relay"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// RigConfig holds the default rig-control daemon target and dev-mode
// switch.
type RigConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Simulator bool   `yaml:"simulator"`
}

// AuthConfig holds bearer-token verification settings. An empty secret
// disables authentication.
type AuthConfig struct {
	Secret string `yaml:"secret"`
}

// AuditConfig holds the control-action audit log settings.
type AuditConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// RelayConfig holds websocket relay settings.
type RelayConfig struct {
	ClientQueue  int           `yaml:"client_queue"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Defaults returns the baseline configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8073,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Rig: RigConfig{
			Host: "127.0.0.1",
			Port: 4532,
		},
		Timing: Baseline(),
		Audit: AuditConfig{
			Path:       "logs/audit.jsonl",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
		Relay: RelayConfig{
			ClientQueue:  64,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Load merges defaults, an optional YAML file, and RIGPROXY_* environment
// overrides, then validates the result. A missing file is not an error;
// an unreadable or malformed one is.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Run on defaults.
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RIGPROXY_ADDR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RIGPROXY_RIG_HOST"); v != "" {
		cfg.Rig.Host = v
	}
	if v := os.Getenv("RIGPROXY_RIG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Rig.Port = port
		}
	}
	if v := os.Getenv("RIGPROXY_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("RIGPROXY_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timing.PollInterval = d
		}
	}
	if v := os.Getenv("RIGPROXY_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timing.ConnectTimeout = d
		}
	}
	if v := os.Getenv("RIGPROXY_COMMAND_TIMEOUT_READ"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timing.CommandTimeoutRead = d
		}
	}
	if v := os.Getenv("RIGPROXY_COMMAND_TIMEOUT_WRITE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timing.CommandTimeoutWrite = d
		}
	}
	if v := os.Getenv("RIGPROXY_DEGRADED_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Timing.DegradedThreshold = n
		}
	}
}
