package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rig-control/rigproxy/internal/adapter"
	"github.com/rig-control/rigproxy/internal/config"
	"github.com/rig-control/rigproxy/internal/session"
)

// mockSession is a func-field mock of SessionPort.
type mockSession struct {
	ConnectFunc         func(ctx context.Context, host string, port int) (*adapter.RadioState, error)
	DisconnectFunc      func() error
	GetStateFunc        func() *adapter.RadioState
	GetCapabilitiesFunc func() (*adapter.Capabilities, error)
	SetFrequencyFunc    func(ctx context.Context, hz float64) error
	SetModeFunc         func(ctx context.Context, mode string, bw float64) error
	SetPowerFunc        func(ctx context.Context, percent float64) error
	SetPTTFunc          func(ctx context.Context, on bool) error
}

func (m *mockSession) Connect(ctx context.Context, host string, port int) (*adapter.RadioState, error) {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx, host, port)
	}
	return &adapter.RadioState{Connected: true}, nil
}

func (m *mockSession) Disconnect() error {
	if m.DisconnectFunc != nil {
		return m.DisconnectFunc()
	}
	return nil
}

func (m *mockSession) GetState() *adapter.RadioState {
	if m.GetStateFunc != nil {
		return m.GetStateFunc()
	}
	return &adapter.RadioState{}
}

func (m *mockSession) GetCapabilities() (*adapter.Capabilities, error) {
	if m.GetCapabilitiesFunc != nil {
		return m.GetCapabilitiesFunc()
	}
	return &adapter.Capabilities{Model: "MockRig 9000"}, nil
}

func (m *mockSession) SetFrequency(ctx context.Context, hz float64) error {
	if m.SetFrequencyFunc != nil {
		return m.SetFrequencyFunc(ctx, hz)
	}
	return nil
}

func (m *mockSession) SetMode(ctx context.Context, mode string, bw float64) error {
	if m.SetModeFunc != nil {
		return m.SetModeFunc(ctx, mode, bw)
	}
	return nil
}

func (m *mockSession) SetPower(ctx context.Context, percent float64) error {
	if m.SetPowerFunc != nil {
		return m.SetPowerFunc(ctx, percent)
	}
	return nil
}

func (m *mockSession) SetPTT(ctx context.Context, on bool) error {
	if m.SetPTTFunc != nil {
		return m.SetPTTFunc(ctx, on)
	}
	return nil
}

func (m *mockSession) StartPolling(time.Duration)   {}
func (m *mockSession) StopPolling()                 {}
func (m *mockSession) Polling() bool                { return false }
func (m *mockSession) Lifecycle() session.Lifecycle { return session.Connected }

type mockRelay struct{}

func (mockRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {}
func (mockRelay) ClientCount() int                                 { return 0 }

func testServer(sess SessionPort) *httptest.Server {
	s := NewServer(sess, mockRelay{}, nil, config.Defaults().Server)
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return httptest.NewServer(mux)
}

func decode(t *testing.T, resp *http.Response) Response {
	t.Helper()
	defer resp.Body.Close()
	var r Response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if r.CorrelationID == "" {
		t.Error("envelope missing correlationId")
	}
	return r
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestConnectEndpoint(t *testing.T) {
	hz := 14200000.0
	sess := &mockSession{
		ConnectFunc: func(ctx context.Context, host string, port int) (*adapter.RadioState, error) {
			if host != "127.0.0.1" || port != 4532 {
				t.Errorf("Connect target = %s:%d", host, port)
			}
			return &adapter.RadioState{Connected: true, FrequencyHz: &hz}, nil
		},
	}
	srv := testServer(sess)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/v1/connect", `{"host":"127.0.0.1","port":4532}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	env := decode(t, resp)
	if env.Result != "ok" {
		t.Errorf("result = %q, want ok", env.Result)
	}
	data := env.Data.(map[string]interface{})
	if data["frequencyHz"].(float64) != 14200000 {
		t.Errorf("frequencyHz = %v, want 14200000", data["frequencyHz"])
	}
}

func TestConnectValidation(t *testing.T) {
	srv := testServer(&mockSession{})
	defer srv.Close()

	tests := []struct {
		name string
		body string
	}{
		{"missing host", `{"port":4532}`},
		{"port out of range", `{"host":"127.0.0.1","port":99999}`},
		{"unknown field", `{"host":"127.0.0.1","port":4532,"extra":1}`},
		{"trailing garbage", `{"host":"127.0.0.1","port":4532}{}`},
		{"not json", `host=127.0.0.1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/v1/connect", tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestErrorTaxonomyMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"not connected", session.ErrNotConnected, http.StatusConflict, "NOT_CONNECTED"},
		{"already connecting", session.ErrAlreadyConnecting, http.StatusConflict, "ALREADY_CONNECTING"},
		{
			"command timeout",
			adapter.NewCommandError("setFrequency", context.DeadlineExceeded),
			http.StatusGatewayTimeout, "COMMAND_TIMEOUT",
		},
		{
			"transport down",
			&adapter.CommandError{Op: "setFrequency", Code: adapter.ErrTransport},
			http.StatusBadGateway, "TRANSPORT",
		},
		{
			"rejected",
			&adapter.CommandError{Op: "setFrequency", Code: adapter.ErrRejected},
			http.StatusBadRequest, "REJECTED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &mockSession{
				SetFrequencyFunc: func(ctx context.Context, hz float64) error { return tt.err },
			}
			srv := testServer(sess)
			defer srv.Close()

			resp := postJSON(t, srv.URL+"/api/v1/frequency", `{"frequencyHz":7150000}`)
			if resp.StatusCode != tt.wantCode {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			env := decode(t, resp)
			if env.Code != tt.wantBody {
				t.Errorf("code = %q, want %q", env.Code, tt.wantBody)
			}
		})
	}
}

func TestStateEndpoint(t *testing.T) {
	mode := "USB"
	sess := &mockSession{
		GetStateFunc: func() *adapter.RadioState {
			return &adapter.RadioState{Connected: true, Mode: &mode}
		},
	}
	srv := testServer(sess)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/state")
	if err != nil {
		t.Fatalf("GET /state: %v", err)
	}
	env := decode(t, resp)
	data := env.Data.(map[string]interface{})
	if data["lifecycle"] != "connected" {
		t.Errorf("lifecycle = %v, want connected", data["lifecycle"])
	}
	st := data["state"].(map[string]interface{})
	if st["mode"] != "USB" {
		t.Errorf("mode = %v, want USB", st["mode"])
	}
}

func TestCapabilitiesNotConnected(t *testing.T) {
	sess := &mockSession{
		GetCapabilitiesFunc: func() (*adapter.Capabilities, error) {
			return nil, session.ErrNotConnected
		},
	}
	srv := testServer(sess)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/capabilities")
	if err != nil {
		t.Fatalf("GET /capabilities: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestCommandBodyValidation(t *testing.T) {
	srv := testServer(&mockSession{})
	defer srv.Close()

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"frequency ok", "/api/v1/frequency", `{"frequencyHz":7150000}`, http.StatusOK},
		{"frequency non-positive", "/api/v1/frequency", `{"frequencyHz":0}`, http.StatusBadRequest},
		{"mode ok", "/api/v1/mode", `{"mode":"LSB","bandwidthHz":2700}`, http.StatusOK},
		{"mode empty", "/api/v1/mode", `{"mode":""}`, http.StatusBadRequest},
		{"power ok", "/api/v1/power", `{"powerPercent":25}`, http.StatusOK},
		{"power over 100", "/api/v1/power", `{"powerPercent":101}`, http.StatusBadRequest},
		{"ptt ok", "/api/v1/ptt", `{"ptt":true}`, http.StatusOK},
		{"polling start ok", "/api/v1/polling/start", `{"intervalMs":500}`, http.StatusOK},
		{"polling negative", "/api/v1/polling/start", `{"intervalMs":-1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+tt.path, tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestMethodEnforcement(t *testing.T) {
	srv := testServer(&mockSession{})
	defer srv.Close()

	// GET on a command endpoint.
	resp, err := http.Get(srv.URL + "/api/v1/disconnect")
	if err != nil {
		t.Fatalf("GET /disconnect: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /disconnect status = %d, want 405", resp.StatusCode)
	}

	// POST on a query endpoint.
	resp = postJSON(t, srv.URL+"/api/v1/state", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /state status = %d, want 405", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(&mockSession{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	env := decode(t, resp)
	data := env.Data.(map[string]interface{})
	if data["status"] != "ok" {
		t.Errorf("status = %v, want ok", data["status"])
	}
	if _, ok := data["uptimeSeconds"]; !ok {
		t.Error("health payload missing uptimeSeconds")
	}
	if _, ok := data["wsClients"]; !ok {
		t.Error("health payload missing wsClients")
	}
}
