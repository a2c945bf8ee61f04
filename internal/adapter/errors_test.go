package adapter

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "fake net error" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return false }

func TestNewCommandErrorClassification(t *testing.T) {
	tests := []struct {
		name  string
		cause error
		want  error
	}{
		{"deadline exceeded", context.DeadlineExceeded, ErrTimeout},
		{"cancellation", context.Canceled, ErrTimeout},
		{"wrapped deadline", fmt.Errorf("exchange: %w", context.DeadlineExceeded), ErrTimeout},
		{"net timeout", &fakeNetError{timeout: true}, ErrTimeout},
		{"net non-timeout", &fakeNetError{timeout: false}, ErrTransport},
		{"plain error", errors.New("broken pipe"), ErrTransport},
		{"pre-classified rejection", fmt.Errorf("RPRT -1: %w", ErrRejected), ErrRejected},
		{"pre-classified timeout", fmt.Errorf("poll: %w", ErrTimeout), ErrTimeout},
		{"not open", ErrNotOpen, ErrNotOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewCommandError("setFrequency", tt.cause)
			if err.Code != tt.want {
				t.Errorf("Code = %v, want %v", err.Code, tt.want)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(err, %v) = false", tt.want)
			}
			if err.Op != "setFrequency" {
				t.Errorf("Op = %q, want setFrequency", err.Op)
			}
		})
	}
}

func TestConnectionErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ConnectionError{Host: "127.0.0.1", Port: 4532, Reason: cause}

	if !errors.Is(err, cause) {
		t.Error("ConnectionError does not unwrap to its cause")
	}
	var cerr *ConnectionError
	if !errors.As(fmt.Errorf("connect: %w", err), &cerr) {
		t.Error("errors.As failed through wrapping")
	}
	if got := err.Error(); got != "connect 127.0.0.1:4532: connection refused" {
		t.Errorf("Error() = %q", got)
	}
}

func TestTimeoutAndTransportHelpers(t *testing.T) {
	timeout := NewCommandError("getFrequency", context.DeadlineExceeded)
	transport := NewCommandError("getMode", errors.New("EOF"))

	if !IsTimeout(timeout) || IsTimeout(transport) {
		t.Error("IsTimeout misclassified")
	}
	if !IsTransport(transport) || IsTransport(timeout) {
		t.Error("IsTransport misclassified")
	}
}

func TestRadioStateCloneIsDeep(t *testing.T) {
	hz := 14200000.0
	mode := "USB"
	orig := &RadioState{Connected: true, FrequencyHz: &hz, Mode: &mode}

	cp := orig.Clone()
	*cp.FrequencyHz = 7150000
	*cp.Mode = "LSB"

	if *orig.FrequencyHz != 14200000 || *orig.Mode != "USB" {
		t.Error("Clone shares pointers with the original")
	}
	if (*RadioState)(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}
