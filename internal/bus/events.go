package bus

import (
	"time"

	"github.com/rig-control/rigproxy/internal/adapter"
)

// Kind discriminates event payload types.
type Kind string

// The event catalog. One kind per payload struct below.
const (
	KindConnected          Kind = "connected"
	KindConnectionFailed   Kind = "connectionFailed"
	KindConnectionDegraded Kind = "connectionDegraded"
	KindDisconnected       Kind = "disconnected"
	KindRadioState         Kind = "radioState"
	KindFrequencyChanged   Kind = "frequencyChanged"
	KindModeChanged        Kind = "modeChanged"
	KindPowerChanged       Kind = "powerChanged"
	KindPTTChanged         Kind = "pttChanged"
	KindPollingStarted     Kind = "pollingStarted"
	KindPollingStopped     Kind = "pollingStopped"
	KindPollingError       Kind = "pollingError"
)

// Event is the closed set of payloads the session manager emits.
type Event interface {
	Kind() Kind
}

// Connected fires once a connect attempt has produced a full initial
// refresh and capability fetch.
type Connected struct {
	Host string    `json:"host"`
	Port int       `json:"port"`
	At   time.Time `json:"ts"`
}

func (Connected) Kind() Kind { return KindConnected }

// ConnectionFailed fires when a connect attempt fails; the session stays
// Disconnected.
type ConnectionFailed struct {
	Host   string    `json:"host"`
	Port   int       `json:"port"`
	Reason string    `json:"reason"`
	At     time.Time `json:"ts"`
}

func (ConnectionFailed) Kind() Kind { return KindConnectionFailed }

// ConnectionDegraded fires when a poll cycle fails while the session is
// Connected; the last-known-good snapshot is retained.
type ConnectionDegraded struct {
	Reason      string    `json:"reason"`
	Consecutive int       `json:"consecutiveFailures"`
	At          time.Time `json:"ts"`
}

func (ConnectionDegraded) Kind() Kind { return KindConnectionDegraded }

// Disconnected fires after an explicit disconnect has torn the session
// down and cleared cached state.
type Disconnected struct {
	At time.Time `json:"ts"`
}

func (Disconnected) Kind() Kind { return KindDisconnected }

// RadioState carries a full snapshot after an atomic merge.
type RadioState struct {
	State *adapter.RadioState `json:"state"`
	At    time.Time           `json:"ts"`
}

func (RadioState) Kind() Kind { return KindRadioState }

// FrequencyChanged carries the optimistic value immediately after a
// successful setFrequency, before the reconciling refresh lands.
type FrequencyChanged struct {
	FrequencyHz float64   `json:"frequencyHz"`
	At          time.Time `json:"ts"`
}

func (FrequencyChanged) Kind() Kind { return KindFrequencyChanged }

// ModeChanged carries the optimistic mode/bandwidth after setMode.
type ModeChanged struct {
	Mode        string    `json:"mode"`
	BandwidthHz float64   `json:"bandwidthHz,omitempty"`
	At          time.Time `json:"ts"`
}

func (ModeChanged) Kind() Kind { return KindModeChanged }

// PowerChanged carries the optimistic power level after setPower.
type PowerChanged struct {
	PowerPercent float64   `json:"powerPercent"`
	At           time.Time `json:"ts"`
}

func (PowerChanged) Kind() Kind { return KindPowerChanged }

// PTTChanged carries the optimistic PTT state after setPtt.
type PTTChanged struct {
	PTT bool      `json:"ptt"`
	At  time.Time `json:"ts"`
}

func (PTTChanged) Kind() Kind { return KindPTTChanged }

// PollingStarted fires when the poll loop begins ticking.
type PollingStarted struct {
	Interval time.Duration `json:"interval"`
	At       time.Time     `json:"ts"`
}

func (PollingStarted) Kind() Kind { return KindPollingStarted }

// PollingStopped fires when the poll loop has been cancelled.
type PollingStopped struct {
	At time.Time `json:"ts"`
}

func (PollingStopped) Kind() Kind { return KindPollingStopped }

// PollingError reports a failed poll cycle. Emitted alongside
// ConnectionDegraded on the first failure and on its own for repeats.
type PollingError struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"ts"`
}

func (PollingError) Kind() Kind { return KindPollingError }
