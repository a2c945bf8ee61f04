package rigctl

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rig-control/rigproxy/internal/adapter"
	"github.com/rig-control/rigproxy/internal/adaptertest"
)

// fakeDaemon is a stateful rigctld stand-in on a loopback listener.
// Get commands answer payload lines only; set commands answer an RPRT
// status line, matching the daemon's default (non-extended) protocol.
type fakeDaemon struct {
	ln net.Listener

	mu       sync.Mutex
	freq     float64
	mode     string
	bw       float64
	power    float64 // fraction 0..1
	ptt      bool
	received []string

	// override, when set, answers instead of the stateful handler.
	// closeConn drops the TCP connection instead of answering.
	override func(cmd string) (resp string, closeConn bool, handled bool)
}

func newFakeDaemon(t *testing.T) *fakeDaemon {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	d := &fakeDaemon{
		ln:    ln,
		freq:  14200000,
		mode:  "USB",
		bw:    2400,
		power: 0.5,
	}
	go d.acceptLoop()
	t.Cleanup(func() { ln.Close() })
	return d
}

func (d *fakeDaemon) addr() (string, int) {
	a := d.ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", a.Port
}

func (d *fakeDaemon) acceptLoop() {
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		go d.serve(conn)
	}
}

func (d *fakeDaemon) serve(conn net.Conn) {
	defer conn.Close()
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		cmd := sc.Text()
		d.mu.Lock()
		d.received = append(d.received, cmd)
		override := d.override
		d.mu.Unlock()

		if override != nil {
			if resp, closeConn, handled := override(cmd); handled {
				if closeConn {
					return
				}
				conn.Write([]byte(resp))
				continue
			}
		}
		conn.Write([]byte(d.handle(cmd)))
	}
}

func (d *fakeDaemon) handle(cmd string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case cmd == "f":
		return strconv.FormatFloat(d.freq, 'f', 0, 64) + "\n"
	case cmd == "m":
		return d.mode + "\n" + strconv.FormatFloat(d.bw, 'f', 0, 64) + "\n"
	case cmd == "l RFPOWER":
		return strconv.FormatFloat(d.power, 'f', 3, 64) + "\n"
	case cmd == "t":
		if d.ptt {
			return "1\n"
		}
		return "0\n"
	case cmd == "_":
		return "Fake Rig 1000\n"
	case strings.HasPrefix(cmd, "F "):
		hz, err := strconv.ParseFloat(cmd[2:], 64)
		if err != nil {
			return "RPRT -1\n"
		}
		d.freq = hz
		return "RPRT 0\n"
	case strings.HasPrefix(cmd, "M "):
		fields := strings.Fields(cmd[2:])
		if len(fields) != 2 {
			return "RPRT -1\n"
		}
		d.mode = fields[0]
		if bw, err := strconv.ParseFloat(fields[1], 64); err == nil && bw > 0 {
			d.bw = bw
		}
		return "RPRT 0\n"
	case strings.HasPrefix(cmd, "L RFPOWER "):
		frac, err := strconv.ParseFloat(strings.TrimPrefix(cmd, "L RFPOWER "), 64)
		if err != nil || frac < 0 || frac > 1 {
			return "RPRT -1\n"
		}
		d.power = frac
		return "RPRT 0\n"
	case strings.HasPrefix(cmd, "T "):
		d.ptt = cmd == "T 1"
		return "RPRT 0\n"
	case cmd == "\\dump_caps":
		return "Caps dump for model: 1035\n" +
			"Model name: Fake Rig 1000\n" +
			"Mode list: USB LSB CW AM FM\n" +
			"VFO list: VFOA VFOB\n" +
			"Set level: RFPOWER AF SQL\n" +
			"Set functions: NB ANF\n" +
			"Can set Frequency: Y\n" +
			"Can set Mode: Y\n" +
			"Can set Power: Y\n" +
			"Can set PTT: N\n" +
			"RPRT 0\n"
	}
	return "RPRT -1\n"
}

func (d *fakeDaemon) commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.received...)
}

func connectedClient(t *testing.T) (*Client, *fakeDaemon) {
	t.Helper()
	d := newFakeDaemon(t)
	c := New()
	host, port := d.addr()
	if err := c.Connect(context.Background(), host, port); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { c.Disconnect() })
	return c, d
}

func TestReadPrimitives(t *testing.T) {
	c, _ := connectedClient(t)
	ctx := context.Background()

	hz, err := c.ReadFrequency(ctx)
	if err != nil || hz != 14200000 {
		t.Errorf("ReadFrequency = (%v, %v), want (14200000, nil)", hz, err)
	}
	mode, bw, err := c.ReadMode(ctx)
	if err != nil || mode != "USB" || bw != 2400 {
		t.Errorf("ReadMode = (%q, %v, %v), want (USB, 2400, nil)", mode, bw, err)
	}
	pct, err := c.ReadPower(ctx)
	if err != nil || pct != 50 {
		t.Errorf("ReadPower = (%v, %v), want (50, nil)", pct, err)
	}
	ptt, err := c.ReadPTT(ctx)
	if err != nil || ptt {
		t.Errorf("ReadPTT = (%v, %v), want (false, nil)", ptt, err)
	}
	model, err := c.ReadInfo(ctx)
	if err != nil || model != "Fake Rig 1000" {
		t.Errorf("ReadInfo = (%q, %v), want (Fake Rig 1000, nil)", model, err)
	}
}

func TestSetCommandsWireFormat(t *testing.T) {
	c, d := connectedClient(t)
	ctx := context.Background()

	if err := c.SetFrequency(ctx, 7150000); err != nil {
		t.Fatalf("SetFrequency: %v", err)
	}
	if err := c.SetMode(ctx, "LSB", 2700); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := c.SetPower(ctx, 25); err != nil {
		t.Fatalf("SetPower: %v", err)
	}
	if err := c.SetPTT(ctx, true); err != nil {
		t.Fatalf("SetPTT: %v", err)
	}

	want := []string{"F 7150000", "M LSB 2700", "L RFPOWER 0.250", "T 1"}
	got := d.commands()
	if len(got) != len(want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		name string
		resp string
		call func(c *Client) error
		want error
	}{
		{
			name: "daemon timeout on read",
			resp: "RPRT -5\n",
			call: func(c *Client) error { _, err := c.ReadFrequency(context.Background()); return err },
			want: adapter.ErrTimeout,
		},
		{
			name: "rejection on read",
			resp: "RPRT -1\n",
			call: func(c *Client) error { _, _, err := c.ReadMode(context.Background()); return err },
			want: adapter.ErrRejected,
		},
		{
			name: "rejection on write",
			resp: "RPRT -11\n",
			call: func(c *Client) error { return c.SetFrequency(context.Background(), 7150000) },
			want: adapter.ErrRejected,
		},
		{
			name: "daemon timeout on write",
			resp: "RPRT -5\n",
			call: func(c *Client) error { return c.SetPTT(context.Background(), true) },
			want: adapter.ErrTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, d := connectedClient(t)
			d.mu.Lock()
			d.override = func(string) (string, bool, bool) { return tt.resp, false, true }
			d.mu.Unlock()

			err := tt.call(c)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			var cmdErr *adapter.CommandError
			if !errors.As(err, &cmdErr) {
				t.Errorf("err = %T, want *adapter.CommandError", err)
			}
		})
	}
}

func TestCapabilitiesParsing(t *testing.T) {
	c, _ := connectedClient(t)

	caps, err := c.Capabilities(context.Background())
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	if caps.Model != "Fake Rig 1000" {
		t.Errorf("Model = %q, want Fake Rig 1000", caps.Model)
	}
	if len(caps.Modes) != 5 || caps.Modes[0] != "USB" {
		t.Errorf("Modes = %v, want [USB LSB CW AM FM]", caps.Modes)
	}
	if len(caps.VFOs) != 2 {
		t.Errorf("VFOs = %v, want [VFOA VFOB]", caps.VFOs)
	}
	if !caps.Supports[adapter.CapSetFrequency] {
		t.Error("Supports[setFrequency] = false, want true")
	}
	if caps.Supports[adapter.CapSetPTT] {
		t.Error("Supports[setPtt] = true, want false")
	}
}

func TestCommandsBeforeConnect(t *testing.T) {
	c := New()
	if _, err := c.ReadFrequency(context.Background()); !errors.Is(err, adapter.ErrNotOpen) {
		t.Errorf("ReadFrequency = %v, want ErrNotOpen", err)
	}
	if err := c.SetPTT(context.Background(), true); !errors.Is(err, adapter.ErrNotOpen) {
		t.Errorf("SetPTT = %v, want ErrNotOpen", err)
	}
	if err := c.Disconnect(); err != nil {
		t.Errorf("Disconnect on fresh client = %v, want nil", err)
	}
}

func TestConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	c := New()
	err = c.Connect(context.Background(), "127.0.0.1", port)
	var cerr *adapter.ConnectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("Connect = %v, want *adapter.ConnectionError", err)
	}
	if cerr.Port != port {
		t.Errorf("ConnectionError.Port = %d, want %d", cerr.Port, port)
	}
}

func TestBrokenLinkRedialsOnNextCall(t *testing.T) {
	c, d := connectedClient(t)
	ctx := context.Background()

	// First call dies mid-exchange: the daemon drops the connection
	// instead of answering.
	d.mu.Lock()
	d.override = func(string) (string, bool, bool) { return "", true, true }
	d.mu.Unlock()
	if _, err := c.ReadFrequency(ctx); err == nil {
		t.Fatal("ReadFrequency over dropped connection succeeded")
	}

	// The next call re-dials and completes normally.
	d.mu.Lock()
	d.override = nil
	d.mu.Unlock()
	hz, err := c.ReadFrequency(ctx)
	if err != nil {
		t.Fatalf("ReadFrequency after redial: %v", err)
	}
	if hz != 14200000 {
		t.Errorf("ReadFrequency = %v, want 14200000", hz)
	}
}

func TestExpiredContextFailsExchange(t *testing.T) {
	c, _ := connectedClient(t)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if _, err := c.ReadFrequency(ctx); err == nil {
		t.Fatal("ReadFrequency with expired deadline succeeded")
	}
}

func TestRigctlConformance(t *testing.T) {
	adaptertest.Run(t, func(t *testing.T) (adapter.Adapter, func()) {
		d := newFakeDaemon(t)
		// The conformance suite exercises SetPTT; the scripted dump says
		// N but the daemon still accepts T commands.
		c := New()
		host, port := d.addr()
		if err := c.Connect(context.Background(), host, port); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		return c, func() { c.Disconnect() }
	})
}
