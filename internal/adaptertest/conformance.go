// Package adaptertest holds the conformance suite every radio adapter
// implementation must pass. Backends register a factory that yields a
// connected adapter plus a teardown func, and the suite exercises the
// contract shared by all of them.
package adaptertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rig-control/rigproxy/internal/adapter"
)

// Factory yields a connected adapter ready to accept commands, plus a
// cleanup that tears down backend fixtures.
type Factory func(t *testing.T) (adapter.Adapter, func())

// Run executes the conformance suite against the backend the factory
// produces. Each case gets a fresh adapter.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("ReadsReturnPlausibleValues", func(t *testing.T) {
		rig, done := factory(t)
		defer done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		hz, err := rig.ReadFrequency(ctx)
		if err != nil {
			t.Fatalf("ReadFrequency: %v", err)
		}
		if hz <= 0 {
			t.Errorf("ReadFrequency = %v, want positive", hz)
		}

		mode, bw, err := rig.ReadMode(ctx)
		if err != nil {
			t.Fatalf("ReadMode: %v", err)
		}
		if mode == "" {
			t.Error("ReadMode returned empty mode")
		}
		if bw < 0 {
			t.Errorf("ReadMode bandwidth = %v, want >= 0", bw)
		}

		pct, err := rig.ReadPower(ctx)
		if err != nil {
			t.Fatalf("ReadPower: %v", err)
		}
		if pct < 0 || pct > 100 {
			t.Errorf("ReadPower = %v, want 0..100", pct)
		}

		if _, err := rig.ReadPTT(ctx); err != nil {
			t.Fatalf("ReadPTT: %v", err)
		}

		model, err := rig.ReadInfo(ctx)
		if err != nil {
			t.Fatalf("ReadInfo: %v", err)
		}
		if model == "" {
			t.Error("ReadInfo returned empty model")
		}
	})

	t.Run("WritesAreReadBack", func(t *testing.T) {
		rig, done := factory(t)
		defer done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := rig.SetFrequency(ctx, 7074000); err != nil {
			t.Fatalf("SetFrequency: %v", err)
		}
		hz, err := rig.ReadFrequency(ctx)
		if err != nil {
			t.Fatalf("ReadFrequency after set: %v", err)
		}
		if hz != 7074000 {
			t.Errorf("ReadFrequency = %v, want 7074000", hz)
		}

		if err := rig.SetMode(ctx, "LSB", 2700); err != nil {
			t.Fatalf("SetMode: %v", err)
		}
		mode, bw, err := rig.ReadMode(ctx)
		if err != nil {
			t.Fatalf("ReadMode after set: %v", err)
		}
		if mode != "LSB" || bw != 2700 {
			t.Errorf("ReadMode = (%q, %v), want (LSB, 2700)", mode, bw)
		}

		if err := rig.SetPower(ctx, 25); err != nil {
			t.Fatalf("SetPower: %v", err)
		}
		pct, err := rig.ReadPower(ctx)
		if err != nil {
			t.Fatalf("ReadPower after set: %v", err)
		}
		if pct != 25 {
			t.Errorf("ReadPower = %v, want 25", pct)
		}

		if err := rig.SetPTT(ctx, true); err != nil {
			t.Fatalf("SetPTT: %v", err)
		}
		on, err := rig.ReadPTT(ctx)
		if err != nil {
			t.Fatalf("ReadPTT after set: %v", err)
		}
		if !on {
			t.Error("ReadPTT = false after SetPTT(true)")
		}
		if err := rig.SetPTT(ctx, false); err != nil {
			t.Fatalf("SetPTT off: %v", err)
		}
	})

	t.Run("CapabilitiesArePopulated", func(t *testing.T) {
		rig, done := factory(t)
		defer done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		caps, err := rig.Capabilities(ctx)
		if err != nil {
			t.Fatalf("Capabilities: %v", err)
		}
		if caps == nil {
			t.Fatal("Capabilities returned nil")
		}
		if caps.Model == "" {
			t.Error("Capabilities.Model is empty")
		}
		if len(caps.Modes) == 0 {
			t.Error("Capabilities.Modes is empty")
		}
		if caps.Supports == nil {
			t.Error("Capabilities.Supports is nil")
		}
	})

	t.Run("CancelledContextFailsFast", func(t *testing.T) {
		rig, done := factory(t)
		defer done()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		_, err := rig.ReadFrequency(ctx)
		if err == nil {
			t.Fatal("ReadFrequency with cancelled context succeeded")
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("cancelled read took %v, want fast failure", elapsed)
		}
	})

	t.Run("DisconnectedAdapterRejectsCommands", func(t *testing.T) {
		rig, done := factory(t)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := rig.Disconnect(); err != nil {
			done()
			t.Fatalf("Disconnect: %v", err)
		}
		done()

		if _, err := rig.ReadFrequency(ctx); !errors.Is(err, adapter.ErrNotOpen) {
			t.Errorf("ReadFrequency after Disconnect = %v, want ErrNotOpen", err)
		}
		if err := rig.SetFrequency(ctx, 7074000); !errors.Is(err, adapter.ErrNotOpen) {
			t.Errorf("SetFrequency after Disconnect = %v, want ErrNotOpen", err)
		}
	})
}
