package adapter

import (
	"context"
)

// RadioState is a snapshot of transceiver state. Optional fields are nil
// until a read has produced them; a partial refresh never resets a field
// that was previously known.
type RadioState struct {
	Connected    bool     `json:"connected"`
	FrequencyHz  *float64 `json:"frequencyHz,omitempty"`
	Mode         *string  `json:"mode,omitempty"`
	BandwidthHz  *float64 `json:"bandwidthHz,omitempty"`
	PowerPercent *float64 `json:"powerPercent,omitempty"`
	PTT          *bool    `json:"ptt,omitempty"`
	Model        *string  `json:"model,omitempty"`
}

// Clone returns a deep copy safe to hand outside the owning goroutine.
func (s *RadioState) Clone() *RadioState {
	if s == nil {
		return nil
	}
	out := &RadioState{Connected: s.Connected}
	if s.FrequencyHz != nil {
		v := *s.FrequencyHz
		out.FrequencyHz = &v
	}
	if s.Mode != nil {
		v := *s.Mode
		out.Mode = &v
	}
	if s.BandwidthHz != nil {
		v := *s.BandwidthHz
		out.BandwidthHz = &v
	}
	if s.PowerPercent != nil {
		v := *s.PowerPercent
		out.PowerPercent = &v
	}
	if s.PTT != nil {
		v := *s.PTT
		out.PTT = &v
	}
	if s.Model != nil {
		v := *s.Model
		out.Model = &v
	}
	return out
}

// Readings is the result of one full refresh read set. All five reads
// must have succeeded for a Readings value to exist; the session manager
// merges it into its cached snapshot as one atomic update.
type Readings struct {
	FrequencyHz  float64
	Mode         string
	BandwidthHz  float64
	PowerPercent float64
	PTT          bool
	Model        string
}

// Capabilities describes what the connected rig supports. Fetched once
// per successful connect and cached by the session manager until
// disconnect.
type Capabilities struct {
	Model     string          `json:"model"`
	Modes     []string        `json:"modes"`
	VFOs      []string        `json:"vfos"`
	Levels    []string        `json:"levels"`
	Functions []string        `json:"functions"`
	Supports  map[string]bool `json:"supports"`
}

// Capability flag names in Capabilities.Supports.
const (
	CapSetFrequency = "setFrequency"
	CapSetMode      = "setMode"
	CapSetPower     = "setPower"
	CapSetPTT       = "setPtt"
)

// Adapter is the stable southbound contract. Any transport implementing
// it (rigctld TCP, simulator, test double) is pluggable without touching
// the session manager. Every method issues exactly one round trip and
// honors ctx deadlines; Disconnect is idempotent and a no-op when the
// transport is already down.
type Adapter interface {
	Connect(ctx context.Context, host string, port int) error
	Disconnect() error

	// Read primitives forming the refresh read set. The session manager
	// issues these concurrently and merges all-or-nothing.
	ReadFrequency(ctx context.Context) (float64, error)
	ReadMode(ctx context.Context) (mode string, bandwidthHz float64, err error)
	ReadPower(ctx context.Context) (percent float64, err error)
	ReadPTT(ctx context.Context) (bool, error)
	ReadInfo(ctx context.Context) (model string, err error)

	SetFrequency(ctx context.Context, hz float64) error
	SetMode(ctx context.Context, mode string, bandwidthHz float64) error
	SetPower(ctx context.Context, percent float64) error
	SetPTT(ctx context.Context, on bool) error

	Capabilities(ctx context.Context) (*Capabilities, error)
}
