package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rig-control/rigproxy/internal/adapter"
	"github.com/rig-control/rigproxy/internal/bus"
	"github.com/rig-control/rigproxy/internal/config"
)

// Lifecycle is the session state machine.
type Lifecycle string

const (
	// Disconnected: no adapter transport, no cached state.
	Disconnected Lifecycle = "disconnected"
	// Connecting: a connect attempt is in flight.
	Connecting Lifecycle = "connecting"
	// Connected: transport healthy, cache fresh as of the last cycle.
	Connected Lifecycle = "connected"
	// Degraded: the most recent poll cycle failed but the session has not
	// been torn down; the cache holds the last-known-good snapshot.
	Degraded Lifecycle = "degraded"
)

// Session-level errors surfaced to callers.
var (
	// ErrNotConnected: a command was issued outside Connected/Degraded.
	// Rejected before any adapter I/O.
	ErrNotConnected = errors.New("NOT_CONNECTED")

	// ErrAlreadyConnecting: a connect attempt is already in flight.
	ErrAlreadyConnecting = errors.New("ALREADY_CONNECTING")
)

// AuditLogger records control actions. Satisfied by audit.Logger.
type AuditLogger interface {
	LogAction(ctx context.Context, action, outcome string, latency time.Duration, params map[string]interface{})
}

// stateField identifies a cached snapshot field for the optimistic-write
// staleness bookkeeping.
type stateField int

const (
	fieldFrequency stateField = iota
	fieldMode
	fieldBandwidth
	fieldPower
	fieldPTT
)

// Manager owns one logical session against the rig-control daemon: the
// adapter lifecycle, the cached state snapshot, the poll loop, and event
// emission. The adapter handle is owned exclusively by the Manager; all
// external reads of state and capabilities receive copies.
type Manager struct {
	rig    adapter.Adapter
	events *bus.Bus
	timing config.TimingConfig
	audit  AuditLogger

	mu        sync.Mutex
	lifecycle Lifecycle
	host      string
	port      int
	state     *adapter.RadioState
	caps      *adapter.Capabilities

	// optimisticAt records when each field was last written optimistically
	// so a reconciling refresh that started earlier discards its stale
	// reading for that field.
	optimisticAt map[stateField]time.Time

	consecutiveFailures int

	// transitionMu orders teardown against the dial of a new session, so
	// a replacement never opens its transport before the old one closed.
	transitionMu sync.Mutex

	// refreshMu serializes refresh cycles. Poll ticks TryLock and skip
	// when a cycle is still outstanding; reconciling refreshes after a
	// write Lock and wait their turn.
	refreshMu sync.Mutex

	// inflight tracks adapter calls so Disconnect can await their natural
	// completion before tearing down the transport.
	inflight sync.WaitGroup

	pollStop chan struct{}
	pollWG   sync.WaitGroup

	// emitMu keeps the emission order of multi-event sequences stable
	// across goroutines.
	emitMu sync.Mutex
}

// NewManager creates a session manager around the given adapter and bus.
func NewManager(rig adapter.Adapter, events *bus.Bus, timing config.TimingConfig) *Manager {
	return &Manager{
		rig:          rig,
		events:       events,
		timing:       timing,
		lifecycle:    Disconnected,
		state:        &adapter.RadioState{},
		optimisticAt: make(map[stateField]time.Time),
	}
}

// SetAuditLogger attaches an audit sink for control actions.
func (m *Manager) SetAuditLogger(l AuditLogger) {
	m.audit = l
}

// Lifecycle returns the current state-machine position.
func (m *Manager) Lifecycle() Lifecycle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lifecycle
}

// GetState returns a copy of the cached snapshot. Never performs I/O;
// before any connection it reports an empty, disconnected state.
func (m *Manager) GetState() *adapter.RadioState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// GetCapabilities returns the capabilities cached at connect time.
// Present only while Connected or Degraded.
func (m *Manager) GetCapabilities() (*adapter.Capabilities, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.caps == nil {
		return nil, ErrNotConnected
	}
	cp := *m.caps
	cp.Supports = make(map[string]bool, len(m.caps.Supports))
	for k, v := range m.caps.Supports {
		cp.Supports[k] = v
	}
	return &cp, nil
}

// Connect establishes the session. While a connect is in flight further
// attempts fail with ErrAlreadyConnecting; re-connecting to the target
// the session is already connected to is a no-op returning the current
// state. Connecting to a different target replaces the existing session.
// Connected is declared only after one full state refresh and a
// capabilities fetch have both succeeded.
func (m *Manager) Connect(ctx context.Context, host string, port int) (*adapter.RadioState, error) {
	start := time.Now()

	m.mu.Lock()
	switch m.lifecycle {
	case Connecting:
		m.mu.Unlock()
		return nil, ErrAlreadyConnecting
	case Connected, Degraded:
		if m.host == host && m.port == port && m.lifecycle == Connected {
			st := m.state.Clone()
			m.mu.Unlock()
			return st, nil
		}
		// Replacing the session: claim the connect slot before the old
		// session is torn down, so no concurrent connect or disconnect
		// can interleave with the replacement.
		m.lifecycle = Connecting
		m.host = host
		m.port = port
		m.mu.Unlock()
		m.teardown()
	default:
		m.lifecycle = Connecting
		m.host = host
		m.port = port
		m.mu.Unlock()
	}

	if err := m.dial(ctx, host, port); err != nil {
		m.failConnect(ctx, host, port, start, err)
		return nil, err
	}

	// Initial refresh and capability fetch both gate the Connected
	// declaration; a failure of either fails the whole attempt.
	readings, err := m.readAll(ctx)
	if err != nil {
		m.rig.Disconnect()
		cerr := &adapter.ConnectionError{Host: host, Port: port, Reason: err}
		m.failConnect(ctx, host, port, start, cerr)
		return nil, cerr
	}
	caps, err := m.fetchCapabilities(ctx)
	if err != nil {
		m.rig.Disconnect()
		cerr := &adapter.ConnectionError{Host: host, Port: port, Reason: err}
		m.failConnect(ctx, host, port, start, cerr)
		return nil, cerr
	}

	m.mu.Lock()
	m.caps = caps
	m.lifecycle = Connected
	m.applyReadingsLocked(readings, start)
	st := m.state.Clone()
	m.mu.Unlock()

	m.logAudit(ctx, "connect", "SUCCESS", time.Since(start), map[string]interface{}{
		"host": host, "port": port,
	})
	m.emit(
		bus.Connected{Host: host, Port: port, At: time.Now()},
		bus.RadioState{State: st.Clone(), At: time.Now()},
	)
	return st, nil
}

// Disconnect tears the session down: polling is cancelled first, any
// adapter call already in flight is awaited, then the transport is closed
// and cached state and capabilities are cleared. Idempotent from
// Disconnected; rejected while a connect attempt is in flight.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	switch m.lifecycle {
	case Disconnected:
		m.mu.Unlock()
		return nil
	case Connecting:
		m.mu.Unlock()
		return ErrAlreadyConnecting
	}
	// Claiming the terminal state first makes concurrent disconnects
	// idempotent and rejects new commands while the teardown runs.
	m.lifecycle = Disconnected
	m.mu.Unlock()

	m.teardown()
	return nil
}

// teardown closes the current session: polling is cancelled, in-flight
// adapter calls are awaited, the transport is closed and cached state is
// cleared. The caller must already have claimed the next lifecycle state.
func (m *Manager) teardown() {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	m.StopPolling()
	m.inflight.Wait()

	if err := m.rig.Disconnect(); err != nil {
		// The transport is gone either way; the session still resets.
		m.logAudit(context.Background(), "disconnect", "ERROR", 0, map[string]interface{}{
			"error": err.Error(),
		})
	}

	m.mu.Lock()
	m.state = &adapter.RadioState{}
	m.caps = nil
	m.consecutiveFailures = 0
	m.optimisticAt = make(map[stateField]time.Time)
	m.mu.Unlock()

	m.emit(bus.Disconnected{At: time.Now()})
}

// dial runs the adapter connect under the connect timeout class. It waits
// for any teardown still closing the previous transport before opening a
// new one.
func (m *Manager) dial(ctx context.Context, host string, port int) error {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.timing.ConnectTimeout)
	defer cancel()

	m.inflight.Add(1)
	defer m.inflight.Done()
	return m.rig.Connect(ctx, host, port)
}

func (m *Manager) fetchCapabilities(ctx context.Context) (*adapter.Capabilities, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timing.CommandTimeoutCapabilities)
	defer cancel()

	m.inflight.Add(1)
	defer m.inflight.Done()
	return m.rig.Capabilities(ctx)
}

// failConnect resets the state machine after a failed attempt and
// reports it. No cached state changes: the attempt never got far enough
// to produce any.
func (m *Manager) failConnect(ctx context.Context, host string, port int, start time.Time, err error) {
	m.mu.Lock()
	m.lifecycle = Disconnected
	m.mu.Unlock()

	m.logAudit(ctx, "connect", "ERROR", time.Since(start), map[string]interface{}{
		"host": host, "port": port, "error": err.Error(),
	})
	m.emit(bus.ConnectionFailed{
		Host: host, Port: port, Reason: err.Error(), At: time.Now(),
	})
}

// emit publishes events in order as one atomic sequence relative to
// other emitters.
func (m *Manager) emit(evs ...bus.Event) {
	if m.events == nil {
		return
	}
	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	for _, e := range evs {
		m.events.Publish(e)
	}
}

func (m *Manager) logAudit(ctx context.Context, action, outcome string, latency time.Duration, params map[string]interface{}) {
	if m.audit != nil {
		m.audit.LogAction(ctx, action, outcome, latency, params)
	}
}

// Target reports the configured daemon endpoint, empty before the first
// connect.
func (m *Manager) Target() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", m.host, m.port)
}
