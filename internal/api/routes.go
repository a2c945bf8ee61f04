package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rig-control/rigproxy/internal/auth"
)

func (s *Server) registerRoutes(mux *http.ServeMux) {
	const v1 = "/api/v1"

	// Health carries no secrets and stays reachable without a token so
	// orchestration probes work.
	mux.HandleFunc(v1+"/health", s.handleHealth)

	mux.HandleFunc(v1+"/state", s.protect(auth.ScopeRead, s.handleState))
	mux.HandleFunc(v1+"/capabilities", s.protect(auth.ScopeRead, s.handleCapabilities))

	mux.HandleFunc(v1+"/connect", s.protect(auth.ScopeControl, s.handleConnect))
	mux.HandleFunc(v1+"/disconnect", s.protect(auth.ScopeControl, s.handleDisconnect))
	mux.HandleFunc(v1+"/frequency", s.protect(auth.ScopeControl, s.handleFrequency))
	mux.HandleFunc(v1+"/mode", s.protect(auth.ScopeControl, s.handleMode))
	mux.HandleFunc(v1+"/power", s.protect(auth.ScopeControl, s.handlePower))
	mux.HandleFunc(v1+"/ptt", s.protect(auth.ScopeControl, s.handlePTT))
	mux.HandleFunc(v1+"/polling/start", s.protect(auth.ScopeControl, s.handlePollingStart))
	mux.HandleFunc(v1+"/polling/stop", s.protect(auth.ScopeControl, s.handlePollingStop))

	mux.Handle(v1+"/ws", s.relay)
}

// handleState handles GET /state: the cached snapshot, never an I/O
// round trip.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"lifecycle": s.session.Lifecycle(),
		"state":     s.session.GetState(),
		"polling":   s.session.Polling(),
	})
}

// handleCapabilities handles GET /capabilities.
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	caps, err := s.session.GetCapabilities()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	WriteSuccess(w, caps)
}

// handleConnect handles POST /connect.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Host == "" || req.Port < 1 || req.Port > 65535 {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "host and port are required")
		return
	}

	state, err := s.session.Connect(r.Context(), req.Host, req.Port)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	WriteSuccess(w, state)
}

// handleDisconnect handles POST /disconnect.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}
	if err := s.session.Disconnect(); err != nil {
		writeSessionError(w, err)
		return
	}
	WriteSuccess(w, s.session.GetState())
}

// handleFrequency handles POST /frequency.
func (s *Server) handleFrequency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FrequencyHz float64 `json:"frequencyHz"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.FrequencyHz <= 0 {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "frequencyHz must be positive")
		return
	}
	if err := s.session.SetFrequency(r.Context(), req.FrequencyHz); err != nil {
		writeSessionError(w, err)
		return
	}
	WriteSuccess(w, s.session.GetState())
}

// handleMode handles POST /mode.
func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode        string  `json:"mode"`
		BandwidthHz float64 `json:"bandwidthHz"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Mode == "" {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "mode is required")
		return
	}
	if err := s.session.SetMode(r.Context(), req.Mode, req.BandwidthHz); err != nil {
		writeSessionError(w, err)
		return
	}
	WriteSuccess(w, s.session.GetState())
}

// handlePower handles POST /power.
func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PowerPercent float64 `json:"powerPercent"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PowerPercent < 0 || req.PowerPercent > 100 {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "powerPercent must be within 0..100")
		return
	}
	if err := s.session.SetPower(r.Context(), req.PowerPercent); err != nil {
		writeSessionError(w, err)
		return
	}
	WriteSuccess(w, s.session.GetState())
}

// handlePTT handles POST /ptt.
func (s *Server) handlePTT(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PTT bool `json:"ptt"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.session.SetPTT(r.Context(), req.PTT); err != nil {
		writeSessionError(w, err)
		return
	}
	WriteSuccess(w, s.session.GetState())
}

// handlePollingStart handles POST /polling/start.
func (s *Server) handlePollingStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IntervalMs int `json:"intervalMs"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IntervalMs < 0 {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "intervalMs must be >= 0")
		return
	}
	s.session.StartPolling(time.Duration(req.IntervalMs) * time.Millisecond)
	WriteSuccess(w, map[string]bool{"polling": true})
}

// handlePollingStop handles POST /polling/stop.
func (s *Server) handlePollingStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}
	s.session.StopPolling()
	WriteSuccess(w, map[string]bool{"polling": false})
}

// decodeBody enforces POST with a strict JSON body: unknown fields and
// trailing data are rejected.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON or unknown fields")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Trailing data after JSON object")
		return false
	}
	return true
}
