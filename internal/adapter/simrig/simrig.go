// Package simrig provides an in-memory Adapter for development and
// testing: a simulated transceiver with fault injection so the session
// manager's failure paths can be driven deterministically.
package simrig

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rig-control/rigproxy/internal/adapter"
)

// Fault modes accepted by SetFaultMode.
const (
	FaultNone      = ""
	FaultTimeout   = "timeout"     // every call reports a command timeout
	FaultTransport = "transport"   // every call reports the link as down
	FaultRejected  = "rejected"    // every call is refused by the rig
	FaultConnect   = "connectFail" // Connect itself fails
)

// SimRig implements adapter.Adapter against in-memory state.
type SimRig struct {
	mu        sync.RWMutex
	connected bool
	host      string
	port      int

	frequencyHz  float64
	mode         string
	bandwidthHz  float64
	powerPercent float64
	ptt          bool
	model        string

	faultMode string
	// latency is applied to every call, letting tests exercise timeouts
	// with short contexts.
	latency time.Duration

	calls map[string]int
}

var _ adapter.Adapter = (*SimRig)(nil)

// New returns a simulator parked on 20m USB.
func New() *SimRig {
	return &SimRig{
		frequencyHz:  14200000,
		mode:         "USB",
		bandwidthHz:  2400,
		powerPercent: 50,
		model:        "SimRig 1000",
		calls:        make(map[string]int),
	}
}

func (s *SimRig) Connect(ctx context.Context, host string, port int) error {
	if err := s.begin(ctx, "connect"); err != nil {
		return &adapter.ConnectionError{Host: host, Port: port, Reason: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faultMode == FaultConnect {
		return &adapter.ConnectionError{Host: host, Port: port, Reason: fmt.Errorf("connection refused")}
	}
	s.connected = true
	s.host = host
	s.port = port
	return nil
}

func (s *SimRig) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *SimRig) ReadFrequency(ctx context.Context) (float64, error) {
	if err := s.begin(ctx, "readFrequency"); err != nil {
		return 0, adapter.NewCommandError("getFrequency", err)
	}
	if err := s.fault("getFrequency"); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frequencyHz, nil
}

func (s *SimRig) ReadMode(ctx context.Context) (string, float64, error) {
	if err := s.begin(ctx, "readMode"); err != nil {
		return "", 0, adapter.NewCommandError("getMode", err)
	}
	if err := s.fault("getMode"); err != nil {
		return "", 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode, s.bandwidthHz, nil
}

func (s *SimRig) ReadPower(ctx context.Context) (float64, error) {
	if err := s.begin(ctx, "readPower"); err != nil {
		return 0, adapter.NewCommandError("getPower", err)
	}
	if err := s.fault("getPower"); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.powerPercent, nil
}

func (s *SimRig) ReadPTT(ctx context.Context) (bool, error) {
	if err := s.begin(ctx, "readPTT"); err != nil {
		return false, adapter.NewCommandError("getPTT", err)
	}
	if err := s.fault("getPTT"); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ptt, nil
}

func (s *SimRig) ReadInfo(ctx context.Context) (string, error) {
	if err := s.begin(ctx, "readInfo"); err != nil {
		return "", adapter.NewCommandError("getInfo", err)
	}
	if err := s.fault("getInfo"); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model, nil
}

func (s *SimRig) SetFrequency(ctx context.Context, hz float64) error {
	if err := s.begin(ctx, "setFrequency"); err != nil {
		return adapter.NewCommandError("setFrequency", err)
	}
	if err := s.fault("setFrequency"); err != nil {
		return err
	}
	if hz <= 0 {
		return &adapter.CommandError{
			Op: "setFrequency", Code: adapter.ErrRejected,
			Cause: fmt.Errorf("frequency %.0f out of range", hz),
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frequencyHz = hz
	return nil
}

func (s *SimRig) SetMode(ctx context.Context, mode string, bandwidthHz float64) error {
	if err := s.begin(ctx, "setMode"); err != nil {
		return adapter.NewCommandError("setMode", err)
	}
	if err := s.fault("setMode"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	if bandwidthHz > 0 {
		s.bandwidthHz = bandwidthHz
	}
	return nil
}

func (s *SimRig) SetPower(ctx context.Context, percent float64) error {
	if err := s.begin(ctx, "setPower"); err != nil {
		return adapter.NewCommandError("setPower", err)
	}
	if err := s.fault("setPower"); err != nil {
		return err
	}
	if percent < 0 || percent > 100 {
		return &adapter.CommandError{
			Op: "setPower", Code: adapter.ErrRejected,
			Cause: fmt.Errorf("power %.1f%% out of range", percent),
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.powerPercent = percent
	return nil
}

func (s *SimRig) SetPTT(ctx context.Context, on bool) error {
	if err := s.begin(ctx, "setPtt"); err != nil {
		return adapter.NewCommandError("setPtt", err)
	}
	if err := s.fault("setPtt"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ptt = on
	return nil
}

func (s *SimRig) Capabilities(ctx context.Context) (*adapter.Capabilities, error) {
	if err := s.begin(ctx, "capabilities"); err != nil {
		return nil, adapter.NewCommandError("getCapabilities", err)
	}
	if err := s.fault("getCapabilities"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &adapter.Capabilities{
		Model:     s.model,
		Modes:     []string{"USB", "LSB", "CW", "AM", "FM", "RTTY"},
		VFOs:      []string{"VFOA", "VFOB"},
		Levels:    []string{"RFPOWER", "AF", "SQL"},
		Functions: []string{"NB", "COMP", "VOX"},
		Supports: map[string]bool{
			adapter.CapSetFrequency: true,
			adapter.CapSetMode:      true,
			adapter.CapSetPower:     true,
			adapter.CapSetPTT:       true,
		},
	}, nil
}

// begin counts the call, applies configured latency, and honors context
// cancellation the way a real transport would.
func (s *SimRig) begin(ctx context.Context, name string) error {
	s.mu.Lock()
	s.calls[name]++
	latency := s.latency
	connected := s.connected
	s.mu.Unlock()

	if !connected && name != "connect" {
		return adapter.ErrNotOpen
	}

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}

func (s *SimRig) fault(op string) error {
	s.mu.RLock()
	mode := s.faultMode
	s.mu.RUnlock()

	switch mode {
	case FaultTimeout:
		return &adapter.CommandError{Op: op, Code: adapter.ErrTimeout, Cause: context.DeadlineExceeded}
	case FaultTransport:
		return &adapter.CommandError{Op: op, Code: adapter.ErrTransport, Cause: fmt.Errorf("link down")}
	case FaultRejected:
		return &adapter.CommandError{Op: op, Code: adapter.ErrRejected, Cause: fmt.Errorf("command refused")}
	}
	return nil
}

// SetFaultMode arms or clears fault injection for subsequent calls.
func (s *SimRig) SetFaultMode(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faultMode = mode
}

// SetLatency delays every subsequent call by d.
func (s *SimRig) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// CallCount reports how many times the named primitive ran.
func (s *SimRig) CallCount(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[name]
}

// TotalCalls reports the number of adapter calls across all primitives.
func (s *SimRig) TotalCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}
