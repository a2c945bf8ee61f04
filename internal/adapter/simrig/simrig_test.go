package simrig

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rig-control/rigproxy/internal/adapter"
	"github.com/rig-control/rigproxy/internal/adaptertest"
)

func connected(t *testing.T) *SimRig {
	t.Helper()
	s := New()
	if err := s.Connect(context.Background(), "sim", 0); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return s
}

func TestSimRigConformance(t *testing.T) {
	adaptertest.Run(t, func(t *testing.T) (adapter.Adapter, func()) {
		return connected(t), func() {}
	})
}

func TestFaultInjection(t *testing.T) {
	tests := []struct {
		mode string
		want error
	}{
		{FaultTimeout, adapter.ErrTimeout},
		{FaultTransport, adapter.ErrTransport},
		{FaultRejected, adapter.ErrRejected},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			s := connected(t)
			s.SetFaultMode(tt.mode)

			if _, err := s.ReadFrequency(context.Background()); !errors.Is(err, tt.want) {
				t.Errorf("ReadFrequency = %v, want %v", err, tt.want)
			}
			if err := s.SetPower(context.Background(), 25); !errors.Is(err, tt.want) {
				t.Errorf("SetPower = %v, want %v", err, tt.want)
			}

			// Clearing the fault restores normal service.
			s.SetFaultMode(FaultNone)
			if _, err := s.ReadFrequency(context.Background()); err != nil {
				t.Errorf("ReadFrequency after clear = %v, want nil", err)
			}
		})
	}
}

func TestConnectFault(t *testing.T) {
	s := New()
	s.SetFaultMode(FaultConnect)

	err := s.Connect(context.Background(), "sim", 0)
	var cerr *adapter.ConnectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("Connect = %v, want *adapter.ConnectionError", err)
	}
}

func TestLatencyHonorsContextDeadline(t *testing.T) {
	s := connected(t)
	s.SetLatency(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := s.ReadFrequency(ctx)
	if !errors.Is(err, adapter.ErrTimeout) {
		t.Errorf("ReadFrequency = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("read took %v, want early abort on deadline", elapsed)
	}
}

func TestCallCounting(t *testing.T) {
	s := connected(t)
	ctx := context.Background()

	s.ReadFrequency(ctx)
	s.ReadFrequency(ctx)
	s.SetPTT(ctx, true)

	if got := s.CallCount("readFrequency"); got != 2 {
		t.Errorf("CallCount(readFrequency) = %d, want 2", got)
	}
	if got := s.CallCount("setPtt"); got != 1 {
		t.Errorf("CallCount(setPtt) = %d, want 1", got)
	}
	// connect + 2 reads + 1 write.
	if got := s.TotalCalls(); got != 4 {
		t.Errorf("TotalCalls = %d, want 4", got)
	}
}
