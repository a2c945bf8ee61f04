package session

import (
	"context"
	"time"

	"github.com/rig-control/rigproxy/internal/bus"
)

// Write commands share one shape: reject outside Connected/Degraded with
// zero adapter I/O, run the primitive under the write timeout class,
// apply the optimistic cache update for just the written field, emit the
// *Changed event, then reconcile against ground truth out of band.

// SetFrequency tunes the rig. On success the cached frequency is updated
// optimistically and FrequencyChanged fires before the reconciling
// refresh lands.
func (m *Manager) SetFrequency(ctx context.Context, hz float64) error {
	if err := m.requireActive(); err != nil {
		m.logAudit(ctx, "setFrequency", "NOT_CONNECTED", 0, map[string]interface{}{"frequencyHz": hz})
		return err
	}

	start := time.Now()
	err := m.runWrite(ctx, func(ctx context.Context) error {
		return m.rig.SetFrequency(ctx, hz)
	})
	if err != nil {
		m.logAudit(ctx, "setFrequency", "ERROR", time.Since(start), map[string]interface{}{
			"frequencyHz": hz, "error": err.Error(),
		})
		return err
	}

	now := time.Now()
	m.mu.Lock()
	m.state.FrequencyHz = &hz
	m.optimisticAt[fieldFrequency] = now
	m.mu.Unlock()

	m.logAudit(ctx, "setFrequency", "SUCCESS", time.Since(start), map[string]interface{}{"frequencyHz": hz})
	m.emit(bus.FrequencyChanged{FrequencyHz: hz, At: now})
	m.reconcile()
	return nil
}

// SetMode switches operating mode and, when bandwidthHz is positive, the
// passband width.
func (m *Manager) SetMode(ctx context.Context, mode string, bandwidthHz float64) error {
	if err := m.requireActive(); err != nil {
		m.logAudit(ctx, "setMode", "NOT_CONNECTED", 0, map[string]interface{}{"mode": mode})
		return err
	}

	start := time.Now()
	err := m.runWrite(ctx, func(ctx context.Context) error {
		return m.rig.SetMode(ctx, mode, bandwidthHz)
	})
	if err != nil {
		m.logAudit(ctx, "setMode", "ERROR", time.Since(start), map[string]interface{}{
			"mode": mode, "bandwidthHz": bandwidthHz, "error": err.Error(),
		})
		return err
	}

	now := time.Now()
	m.mu.Lock()
	modeCopy := mode
	m.state.Mode = &modeCopy
	m.optimisticAt[fieldMode] = now
	if bandwidthHz > 0 {
		bw := bandwidthHz
		m.state.BandwidthHz = &bw
		m.optimisticAt[fieldBandwidth] = now
	}
	m.mu.Unlock()

	m.logAudit(ctx, "setMode", "SUCCESS", time.Since(start), map[string]interface{}{
		"mode": mode, "bandwidthHz": bandwidthHz,
	})
	m.emit(bus.ModeChanged{Mode: mode, BandwidthHz: bandwidthHz, At: now})
	m.reconcile()
	return nil
}

// SetPower sets transmit power as a percentage of the rig's maximum.
func (m *Manager) SetPower(ctx context.Context, percent float64) error {
	if err := m.requireActive(); err != nil {
		m.logAudit(ctx, "setPower", "NOT_CONNECTED", 0, map[string]interface{}{"powerPercent": percent})
		return err
	}

	start := time.Now()
	err := m.runWrite(ctx, func(ctx context.Context) error {
		return m.rig.SetPower(ctx, percent)
	})
	if err != nil {
		m.logAudit(ctx, "setPower", "ERROR", time.Since(start), map[string]interface{}{
			"powerPercent": percent, "error": err.Error(),
		})
		return err
	}

	now := time.Now()
	m.mu.Lock()
	m.state.PowerPercent = &percent
	m.optimisticAt[fieldPower] = now
	m.mu.Unlock()

	m.logAudit(ctx, "setPower", "SUCCESS", time.Since(start), map[string]interface{}{"powerPercent": percent})
	m.emit(bus.PowerChanged{PowerPercent: percent, At: now})
	m.reconcile()
	return nil
}

// SetPTT keys or unkeys the transmitter.
func (m *Manager) SetPTT(ctx context.Context, on bool) error {
	if err := m.requireActive(); err != nil {
		m.logAudit(ctx, "setPtt", "NOT_CONNECTED", 0, map[string]interface{}{"ptt": on})
		return err
	}

	start := time.Now()
	err := m.runWrite(ctx, func(ctx context.Context) error {
		return m.rig.SetPTT(ctx, on)
	})
	if err != nil {
		m.logAudit(ctx, "setPtt", "ERROR", time.Since(start), map[string]interface{}{
			"ptt": on, "error": err.Error(),
		})
		return err
	}

	now := time.Now()
	m.mu.Lock()
	m.state.PTT = &on
	m.optimisticAt[fieldPTT] = now
	m.mu.Unlock()

	m.logAudit(ctx, "setPtt", "SUCCESS", time.Since(start), map[string]interface{}{"ptt": on})
	m.emit(bus.PTTChanged{PTT: on, At: now})
	m.reconcile()
	return nil
}

// requireActive rejects commands unless the session is Connected or
// Degraded. No adapter call is attempted on rejection.
func (m *Manager) requireActive() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lifecycle != Connected && m.lifecycle != Degraded {
		return ErrNotConnected
	}
	return nil
}

// runWrite executes one write primitive under the write timeout class,
// tracked so Disconnect can await it.
func (m *Manager) runWrite(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, m.timing.CommandTimeoutWrite)
	defer cancel()

	m.inflight.Add(1)
	defer m.inflight.Done()
	return fn(ctx)
}
