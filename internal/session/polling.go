package session

import (
	"context"
	"time"

	"github.com/rig-control/rigproxy/internal/bus"
)

// StartPolling begins the scheduled refresh loop. Idempotent: starting
// while already polling is a no-op. An interval <= 0 uses the configured
// default. Cycles never overlap; a tick that fires while the previous
// cycle is still outstanding is skipped.
func (m *Manager) StartPolling(interval time.Duration) {
	if interval <= 0 {
		interval = m.timing.PollInterval
	}

	m.mu.Lock()
	if m.pollStop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.pollStop = stop
	m.mu.Unlock()

	m.pollWG.Add(1)
	go m.pollLoop(stop, interval)

	m.emit(bus.PollingStarted{Interval: interval, At: time.Now()})
}

// StopPolling cancels the loop's scheduling: no further ticks fire. It
// does not abort a cycle already in flight. Idempotent.
func (m *Manager) StopPolling() {
	m.mu.Lock()
	if m.pollStop == nil {
		m.mu.Unlock()
		return
	}
	close(m.pollStop)
	m.pollStop = nil
	m.mu.Unlock()

	m.pollWG.Wait()
	m.emit(bus.PollingStopped{At: time.Now()})
}

// Polling reports whether the loop is currently scheduled.
func (m *Manager) Polling() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pollStop != nil
}

func (m *Manager) pollLoop(stop <-chan struct{}, interval time.Duration) {
	defer m.pollWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !m.refreshMu.TryLock() {
				// Previous cycle still outstanding; skip this tick.
				continue
			}
			m.refresh(context.Background())
			m.refreshMu.Unlock()
		}
	}
}
