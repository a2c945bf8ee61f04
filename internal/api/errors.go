package api

import (
	"errors"
	"net/http"

	"github.com/rig-control/rigproxy/internal/adapter"
	"github.com/rig-control/rigproxy/internal/session"
)

// writeSessionError maps the session/adapter error taxonomy onto HTTP
// statuses and envelope codes. Daemon unreachability is an expected
// operating condition, reported as a gateway problem rather than an
// internal one.
func writeSessionError(w http.ResponseWriter, err error) {
	var connErr *adapter.ConnectionError

	switch {
	case errors.Is(err, session.ErrNotConnected):
		WriteError(w, http.StatusConflict, "NOT_CONNECTED",
			"No active rig connection")
	case errors.Is(err, session.ErrAlreadyConnecting):
		WriteError(w, http.StatusConflict, "ALREADY_CONNECTING",
			"A connect attempt is already in flight")
	case errors.As(err, &connErr):
		WriteError(w, http.StatusBadGateway, "CONNECTION_FAILED", connErr.Error())
	case errors.Is(err, adapter.ErrTimeout):
		WriteError(w, http.StatusGatewayTimeout, "COMMAND_TIMEOUT",
			"The rig-control daemon did not answer in time")
	case errors.Is(err, adapter.ErrTransport), errors.Is(err, adapter.ErrNotOpen):
		WriteError(w, http.StatusBadGateway, "TRANSPORT",
			"The link to the rig-control daemon is down")
	case errors.Is(err, adapter.ErrRejected):
		WriteError(w, http.StatusBadRequest, "REJECTED", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}
