package config

import "time"

// TimingConfig groups the session manager's deadlines and cadences.
type TimingConfig struct {
	// ConnectTimeout bounds one connect attempt against the daemon.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// Command timeout classes. Reads are the poll read set; writes are
	// the user-initiated set* primitives; capabilities is the one-shot
	// post-connect fetch.
	CommandTimeoutRead         time.Duration `yaml:"command_timeout_read"`
	CommandTimeoutWrite        time.Duration `yaml:"command_timeout_write"`
	CommandTimeoutCapabilities time.Duration `yaml:"command_timeout_capabilities"`

	// PollInterval is the default cadence for StartPolling when the
	// caller does not supply one.
	PollInterval time.Duration `yaml:"poll_interval"`

	// DegradedThreshold is the number of consecutive failed poll cycles
	// after which the session forces a disconnect. Zero disables the
	// escalation and the session stays Degraded indefinitely.
	DegradedThreshold int `yaml:"degraded_threshold"`
}

// Baseline returns the default timing values.
func Baseline() TimingConfig {
	return TimingConfig{
		ConnectTimeout:             5 * time.Second,
		CommandTimeoutRead:         3 * time.Second,
		CommandTimeoutWrite:        5 * time.Second,
		CommandTimeoutCapabilities: 10 * time.Second,
		PollInterval:               time.Second,
		DegradedThreshold:          0,
	}
}
