package session

import (
	"context"
	"sync"
	"time"

	"github.com/rig-control/rigproxy/internal/adapter"
	"github.com/rig-control/rigproxy/internal/bus"
)

// refresh runs one full read cycle: the five read primitives issued
// concurrently, merged all-or-nothing. On success the cache is replaced
// atomically and a Degraded session recovers to Connected; on any
// failure the cache is left byte-for-byte untouched and the session
// degrades instead of tearing down.
func (m *Manager) refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.lifecycle != Connected && m.lifecycle != Degraded {
		// No session to refresh; poll ticks while disconnected must not
		// touch the adapter.
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	start := time.Now()
	readings, err := m.readAll(ctx)
	if err != nil {
		m.noteRefreshFailure(err)
		return err
	}

	m.mu.Lock()
	if m.lifecycle != Connected && m.lifecycle != Degraded {
		// Torn down while the reads were in flight; drop the result.
		m.mu.Unlock()
		return nil
	}
	m.lifecycle = Connected
	m.consecutiveFailures = 0
	m.applyReadingsLocked(readings, start)
	st := m.state.Clone()
	m.mu.Unlock()

	// Recovery from Degraded is announced by the fresh snapshot itself.
	m.emit(bus.RadioState{State: st, At: time.Now()})
	return nil
}

// readAll issues the refresh read set concurrently under the read
// timeout class. The first failure cancels the siblings; the cycle
// yields either a complete Readings or an error.
func (m *Manager) readAll(ctx context.Context) (*adapter.Readings, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timing.CommandTimeoutRead)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		r        adapter.Readings
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}
	run := func(fn func() error) {
		wg.Add(1)
		m.inflight.Add(1)
		go func() {
			defer wg.Done()
			defer m.inflight.Done()
			if err := fn(); err != nil {
				fail(err)
			}
		}()
	}

	run(func() error {
		hz, err := m.rig.ReadFrequency(ctx)
		if err == nil {
			mu.Lock()
			r.FrequencyHz = hz
			mu.Unlock()
		}
		return err
	})
	run(func() error {
		mode, bw, err := m.rig.ReadMode(ctx)
		if err == nil {
			mu.Lock()
			r.Mode = mode
			r.BandwidthHz = bw
			mu.Unlock()
		}
		return err
	})
	run(func() error {
		pct, err := m.rig.ReadPower(ctx)
		if err == nil {
			mu.Lock()
			r.PowerPercent = pct
			mu.Unlock()
		}
		return err
	})
	run(func() error {
		ptt, err := m.rig.ReadPTT(ctx)
		if err == nil {
			mu.Lock()
			r.PTT = ptt
			mu.Unlock()
		}
		return err
	})
	run(func() error {
		model, err := m.rig.ReadInfo(ctx)
		if err == nil {
			mu.Lock()
			r.Model = model
			mu.Unlock()
		}
		return err
	})

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return &r, nil
}

// applyReadingsLocked merges a complete read cycle into the cache as one
// atomic update. A field whose optimistic write postdates the cycle's
// start keeps the optimistic value; the refresh result is stale for it.
// Caller holds m.mu.
func (m *Manager) applyReadingsLocked(r *adapter.Readings, startedAt time.Time) {
	fresh := func(f stateField) bool {
		return !m.optimisticAt[f].After(startedAt)
	}

	if fresh(fieldFrequency) {
		hz := r.FrequencyHz
		m.state.FrequencyHz = &hz
	}
	if fresh(fieldMode) {
		mode := r.Mode
		m.state.Mode = &mode
	}
	if fresh(fieldBandwidth) {
		bw := r.BandwidthHz
		m.state.BandwidthHz = &bw
	}
	if fresh(fieldPower) {
		pct := r.PowerPercent
		m.state.PowerPercent = &pct
	}
	if fresh(fieldPTT) {
		ptt := r.PTT
		m.state.PTT = &ptt
	}
	model := r.Model
	m.state.Model = &model
	m.state.Connected = true
}

// noteRefreshFailure degrades the session, keeping the last-known-good
// snapshot, and escalates to a forced disconnect once the configured
// threshold of consecutive failures is crossed.
func (m *Manager) noteRefreshFailure(err error) {
	m.mu.Lock()
	if m.lifecycle != Connected && m.lifecycle != Degraded {
		m.mu.Unlock()
		return
	}
	wasConnected := m.lifecycle == Connected
	m.lifecycle = Degraded
	m.consecutiveFailures++
	failures := m.consecutiveFailures
	threshold := m.timing.DegradedThreshold
	m.mu.Unlock()

	if wasConnected {
		m.emit(
			bus.ConnectionDegraded{Reason: err.Error(), Consecutive: failures, At: time.Now()},
			bus.PollingError{Reason: err.Error(), At: time.Now()},
		)
	} else {
		m.emit(bus.PollingError{Reason: err.Error(), At: time.Now()})
	}

	if threshold > 0 && failures >= threshold {
		// Escalation per policy. Runs detached: a poll goroutine cannot
		// wait for its own teardown.
		go m.Disconnect()
	}
}

// reconcile schedules an out-of-band refresh after an optimistic write.
// It does not block the caller; it waits for any running cycle to finish
// and then runs a fresh one, so the caller is guaranteed a radioState
// event that post-dates its write.
func (m *Manager) reconcile() {
	go func() {
		m.refreshMu.Lock()
		defer m.refreshMu.Unlock()
		m.refresh(context.Background())
	}()
}
