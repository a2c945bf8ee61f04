// Package api exposes the control surface: REST endpoints translating
// HTTP requests into session manager calls, and the websocket upgrade
// for the event relay.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rig-control/rigproxy/internal/adapter"
	"github.com/rig-control/rigproxy/internal/relay"
	"github.com/rig-control/rigproxy/internal/session"
)

// SessionPort is the minimal interface the API needs from the session
// manager.
type SessionPort interface {
	Connect(ctx context.Context, host string, port int) (*adapter.RadioState, error)
	Disconnect() error
	GetState() *adapter.RadioState
	GetCapabilities() (*adapter.Capabilities, error)
	SetFrequency(ctx context.Context, hz float64) error
	SetMode(ctx context.Context, mode string, bandwidthHz float64) error
	SetPower(ctx context.Context, percent float64) error
	SetPTT(ctx context.Context, on bool) error
	StartPolling(interval time.Duration)
	StopPolling()
	Polling() bool
	Lifecycle() session.Lifecycle
}

// RelayPort is the websocket upgrade surface plus the client count the
// health endpoint reports.
type RelayPort interface {
	http.Handler
	ClientCount() int
}

// Compile-time port conformance.
var (
	_ SessionPort = (*session.Manager)(nil)
	_ RelayPort   = (*relay.Hub)(nil)
)
