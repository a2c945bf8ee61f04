// Package session owns the single logical connection to the rig-control
// daemon: the Disconnected/Connecting/Connected/Degraded lifecycle, the
// cached RadioState snapshot with all-or-nothing refresh merges, the
// optimistic-write-then-reconcile command path, and the non-overlapping
// poll loop. State changes are republished as typed events on the bus.
//
// A failed poll cycle degrades the session but never tears it down; the
// daemon being unreachable is an expected operating condition, not an
// exceptional one. Teardown happens only on explicit Disconnect, or when
// the configured consecutive-failure threshold escalates.
package session
