package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Normalized command failure codes. Transports map their raw failures
// onto these so the session manager can make state-machine decisions
// without knowing the wire protocol.
var (
	// ErrTimeout: a single operation exceeded its deadline. Treated like a
	// transport failure for lifecycle purposes.
	ErrTimeout = errors.New("COMMAND_TIMEOUT")

	// ErrTransport: the link to the daemon is down or broke mid-exchange.
	ErrTransport = errors.New("TRANSPORT")

	// ErrRejected: the daemon answered but refused the command.
	ErrRejected = errors.New("REJECTED")

	// ErrNotOpen: a command was issued against an adapter whose transport
	// has not been connected.
	ErrNotOpen = errors.New("NOT_OPEN")
)

// ConnectionError reports a failed connect attempt: bad address, refused,
// or timed out. Terminal for that attempt; the session manager does not
// retry automatically.
type ConnectionError struct {
	Host   string
	Port   int
	Reason error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s:%d: %v", e.Host, e.Port, e.Reason)
}

func (e *ConnectionError) Unwrap() error { return e.Reason }

// CommandError wraps a failed control or read primitive with its
// normalized code and the raw transport error for diagnostics.
type CommandError struct {
	Op    string // primitive name, e.g. "setFrequency"
	Code  error  // one of the normalized sentinels above
	Cause error  // raw error from the transport
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v (cause: %v)", e.Op, e.Code, e.Cause)
}

func (e *CommandError) Unwrap() error { return e.Code }

// NewCommandError classifies a raw failure from a transport into a
// CommandError. Deadline and cancellation errors become ErrTimeout,
// network errors become ErrTransport; anything the daemon explicitly
// refused should be wrapped by the transport as ErrRejected before it
// reaches here.
func NewCommandError(op string, cause error) *CommandError {
	return &CommandError{Op: op, Code: classify(cause), Cause: cause}
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRejected):
		return ErrRejected
	case errors.Is(err, ErrNotOpen):
		return ErrNotOpen
	case errors.Is(err, ErrTimeout):
		return ErrTimeout
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrTimeout
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrTimeout
		}
		return ErrTransport
	}
}

// IsTimeout reports whether err is, or wraps, a command timeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// IsTransport reports whether err is, or wraps, a transport failure.
func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }
