package config

import (
	"fmt"
)

// Validate rejects configurations that cannot work: non-positive
// deadlines, ports outside the TCP range, a poll interval shorter than
// the read timeout class can sustain.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}
	if cfg.Rig.Port < 1 || cfg.Rig.Port > 65535 {
		return fmt.Errorf("rig.port %d out of range", cfg.Rig.Port)
	}
	if cfg.Timing.ConnectTimeout <= 0 {
		return fmt.Errorf("timing.connect_timeout must be positive, got %v", cfg.Timing.ConnectTimeout)
	}
	if cfg.Timing.CommandTimeoutRead <= 0 {
		return fmt.Errorf("timing.command_timeout_read must be positive, got %v", cfg.Timing.CommandTimeoutRead)
	}
	if cfg.Timing.CommandTimeoutWrite <= 0 {
		return fmt.Errorf("timing.command_timeout_write must be positive, got %v", cfg.Timing.CommandTimeoutWrite)
	}
	if cfg.Timing.CommandTimeoutCapabilities <= 0 {
		return fmt.Errorf("timing.command_timeout_capabilities must be positive, got %v", cfg.Timing.CommandTimeoutCapabilities)
	}
	if cfg.Timing.PollInterval <= 0 {
		return fmt.Errorf("timing.poll_interval must be positive, got %v", cfg.Timing.PollInterval)
	}
	if cfg.Timing.DegradedThreshold < 0 {
		return fmt.Errorf("timing.degraded_threshold must be >= 0, got %d", cfg.Timing.DegradedThreshold)
	}
	if cfg.Relay.ClientQueue <= 0 {
		return fmt.Errorf("relay.client_queue must be positive, got %d", cfg.Relay.ClientQueue)
	}
	return nil
}
