// Package rigctl implements adapter.Adapter against a rigctld-style
// CAT-control daemon: a line-oriented request/response protocol over TCP.
// Each adapter call is a single command/response exchange; the connection
// is owned here and serialized with a mutex so overlapping callers never
// interleave on the wire.
package rigctl

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rig-control/rigproxy/internal/adapter"
)

// DefaultIOTimeout bounds a single exchange when the caller's context
// carries no deadline.
const DefaultIOTimeout = 5 * time.Second

// Client speaks the rigctld line protocol over a TCP connection.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	rd   *bufio.Reader

	host string
	port int

	// broken marks a connection that died mid-exchange. The next call
	// re-establishes the transport before issuing its one command; this
	// is link maintenance, not a command retry.
	broken bool

	ioTimeout time.Duration
}

var _ adapter.Adapter = (*Client)(nil)

// New returns an unconnected client.
func New() *Client {
	return &Client{ioTimeout: DefaultIOTimeout}
}

// Connect dials the daemon. Failures (refused, unreachable, timeout) are
// reported as *adapter.ConnectionError and are terminal for this attempt.
func (c *Client) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &adapter.ConnectionError{Host: host, Port: port, Reason: err}
	}

	c.conn = conn
	c.rd = bufio.NewReader(conn)
	c.host = host
	c.port = port
	c.broken = false
	return nil
}

// Disconnect closes the transport. Idempotent.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.rd = nil
	// Clearing the target distinguishes an explicit close from a broken
	// link: only the latter is eligible for lazy re-dial.
	c.host = ""
	c.port = 0
	return err
}

// ReadFrequency issues "f" and parses the frequency in Hz.
func (c *Client) ReadFrequency(ctx context.Context) (float64, error) {
	lines, err := c.exchange(ctx, "getFrequency", "f", 1)
	if err != nil {
		return 0, err
	}
	hz, perr := strconv.ParseFloat(strings.TrimSpace(lines[0]), 64)
	if perr != nil {
		return 0, adapter.NewCommandError("getFrequency",
			fmt.Errorf("malformed frequency %q: %w", lines[0], adapter.ErrRejected))
	}
	return hz, nil
}

// ReadMode issues "m" and parses mode name and passband width in Hz.
func (c *Client) ReadMode(ctx context.Context) (string, float64, error) {
	lines, err := c.exchange(ctx, "getMode", "m", 2)
	if err != nil {
		return "", 0, err
	}
	mode := strings.TrimSpace(lines[0])
	bw, perr := strconv.ParseFloat(strings.TrimSpace(lines[1]), 64)
	if perr != nil {
		return "", 0, adapter.NewCommandError("getMode",
			fmt.Errorf("malformed passband %q: %w", lines[1], adapter.ErrRejected))
	}
	return mode, bw, nil
}

// ReadPower issues "l RFPOWER"; the daemon reports power as 0..1, exposed
// here as percent.
func (c *Client) ReadPower(ctx context.Context) (float64, error) {
	lines, err := c.exchange(ctx, "getPower", "l RFPOWER", 1)
	if err != nil {
		return 0, err
	}
	frac, perr := strconv.ParseFloat(strings.TrimSpace(lines[0]), 64)
	if perr != nil {
		return 0, adapter.NewCommandError("getPower",
			fmt.Errorf("malformed level %q: %w", lines[0], adapter.ErrRejected))
	}
	return frac * 100, nil
}

// ReadPTT issues "t".
func (c *Client) ReadPTT(ctx context.Context) (bool, error) {
	lines, err := c.exchange(ctx, "getPTT", "t", 1)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(lines[0]) != "0", nil
}

// ReadInfo issues "_" (get_info) and returns the rig's model string.
func (c *Client) ReadInfo(ctx context.Context) (string, error) {
	lines, err := c.exchange(ctx, "getInfo", "_", 1)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(lines[0]), nil
}

// SetFrequency issues "F <hz>".
func (c *Client) SetFrequency(ctx context.Context, hz float64) error {
	_, err := c.exchange(ctx, "setFrequency", fmt.Sprintf("F %.0f", hz), 0)
	return err
}

// SetMode issues "M <mode> <passband>". A bandwidth of 0 asks the daemon
// for its default passband.
func (c *Client) SetMode(ctx context.Context, mode string, bandwidthHz float64) error {
	_, err := c.exchange(ctx, "setMode", fmt.Sprintf("M %s %.0f", mode, bandwidthHz), 0)
	return err
}

// SetPower issues "L RFPOWER <fraction>".
func (c *Client) SetPower(ctx context.Context, percent float64) error {
	_, err := c.exchange(ctx, "setPower", fmt.Sprintf("L RFPOWER %.3f", percent/100), 0)
	return err
}

// SetPTT issues "T 0|1".
func (c *Client) SetPTT(ctx context.Context, on bool) error {
	v := 0
	if on {
		v = 1
	}
	_, err := c.exchange(ctx, "setPtt", fmt.Sprintf("T %d", v), 0)
	return err
}

// Capabilities issues "\dump_caps" and parses the capability dump. The
// dump is a sequence of "Key: value" lines terminated by the usual RPRT
// status line.
func (c *Client) Capabilities(ctx context.Context) (*adapter.Capabilities, error) {
	lines, err := c.exchangeUntilStatus(ctx, "getCapabilities", "\\dump_caps")
	if err != nil {
		return nil, err
	}
	return parseCaps(lines), nil
}

// exchange sends one command and reads wantLines payload lines followed
// by (or, for set commands with wantLines 0, just) the RPRT status line.
func (c *Client) exchange(ctx context.Context, op, cmd string, wantLines int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, adapter.NewCommandError(op, err)
	}
	if err := c.ensureConn(ctx, op); err != nil {
		return nil, err
	}
	if err := c.applyDeadline(ctx); err != nil {
		return nil, adapter.NewCommandError(op, err)
	}

	if _, err := fmt.Fprintf(c.conn, "%s\n", cmd); err != nil {
		c.markBroken()
		return nil, adapter.NewCommandError(op, err)
	}

	lines := make([]string, 0, wantLines)
	for len(lines) < wantLines {
		line, err := c.rd.ReadString('\n')
		if err != nil {
			c.markBroken()
			return nil, adapter.NewCommandError(op, err)
		}
		if code, ok := parseStatus(line); ok {
			// Status line instead of payload: the daemon refused.
			return nil, statusError(op, code)
		}
		lines = append(lines, line)
	}

	if wantLines == 0 {
		line, err := c.rd.ReadString('\n')
		if err != nil {
			c.markBroken()
			return nil, adapter.NewCommandError(op, err)
		}
		code, ok := parseStatus(line)
		if !ok {
			c.markBroken()
			return nil, adapter.NewCommandError(op, fmt.Errorf("expected status line, got %q", line))
		}
		if code != 0 {
			return nil, statusError(op, code)
		}
	}
	return lines, nil
}

// exchangeUntilStatus sends one command and collects payload lines until
// the RPRT terminator.
func (c *Client) exchangeUntilStatus(ctx context.Context, op, cmd string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, adapter.NewCommandError(op, err)
	}
	if err := c.ensureConn(ctx, op); err != nil {
		return nil, err
	}
	if err := c.applyDeadline(ctx); err != nil {
		return nil, adapter.NewCommandError(op, err)
	}

	if _, err := fmt.Fprintf(c.conn, "%s\n", cmd); err != nil {
		c.markBroken()
		return nil, adapter.NewCommandError(op, err)
	}

	var lines []string
	for {
		line, err := c.rd.ReadString('\n')
		if err != nil {
			c.markBroken()
			return nil, adapter.NewCommandError(op, err)
		}
		if code, ok := parseStatus(line); ok {
			if code != 0 {
				return nil, statusError(op, code)
			}
			return lines, nil
		}
		lines = append(lines, line)
	}
}

// ensureConn re-dials after a mid-exchange failure so a recovered daemon
// lets the session climb out of Degraded on its next poll.
func (c *Client) ensureConn(ctx context.Context, op string) error {
	if c.conn != nil && !c.broken {
		return nil
	}
	if c.host == "" {
		return adapter.NewCommandError(op, adapter.ErrNotOpen)
	}
	if c.conn != nil {
		c.conn.Close()
	}
	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return adapter.NewCommandError(op, err)
	}
	c.conn = conn
	c.rd = bufio.NewReader(conn)
	c.broken = false
	return nil
}

func (c *Client) applyDeadline(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.ioTimeout)
	}
	return c.conn.SetDeadline(deadline)
}

func (c *Client) markBroken() {
	c.broken = true
}

// parseStatus recognizes "RPRT <code>" lines.
func parseStatus(line string) (int, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "RPRT ") {
		return 0, false
	}
	code, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(trimmed, "RPRT ")))
	if err != nil {
		return 0, false
	}
	return code, true
}

// statusError maps daemon status codes onto the normalized taxonomy.
// -5 is the daemon's own communication timeout; everything else negative
// is a rejection of the command.
func statusError(op string, code int) error {
	cause := fmt.Errorf("daemon status %d", code)
	if code == -5 {
		return &adapter.CommandError{Op: op, Code: adapter.ErrTimeout, Cause: cause}
	}
	return &adapter.CommandError{Op: op, Code: adapter.ErrRejected, Cause: cause}
}

func parseCaps(lines []string) *adapter.Capabilities {
	caps := &adapter.Capabilities{
		Supports: map[string]bool{
			adapter.CapSetFrequency: false,
			adapter.CapSetMode:      false,
			adapter.CapSetPower:     false,
			adapter.CapSetPTT:       false,
		},
	}
	for _, raw := range lines {
		key, value, found := strings.Cut(strings.TrimSpace(raw), ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "Model name":
			caps.Model = value
		case "Mode list":
			caps.Modes = strings.Fields(value)
		case "VFO list":
			caps.VFOs = strings.Fields(value)
		case "Set level":
			caps.Levels = strings.Fields(value)
		case "Set functions":
			caps.Functions = strings.Fields(value)
		case "Can set Frequency":
			caps.Supports[adapter.CapSetFrequency] = value == "Y"
		case "Can set Mode":
			caps.Supports[adapter.CapSetMode] = value == "Y"
		case "Can set Power":
			caps.Supports[adapter.CapSetPower] = value == "Y"
		case "Can set PTT":
			caps.Supports[adapter.CapSetPTT] = value == "Y"
		}
	}
	return caps
}
