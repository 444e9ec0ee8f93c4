package pet

import (
	"testing"
	"time"
)

func TestGateReadyWithoutRecord(t *testing.T) {
	g := NewCooldownGate()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if !g.Ready("feed", now, 5*time.Minute) {
		t.Error("key without a record should be ready")
	}
	if rem := g.Remaining("feed", now, 5*time.Minute); rem != 0 {
		t.Errorf("Remaining = %v, want 0", rem)
	}
}

func TestGateExactBoundary(t *testing.T) {
	g := NewCooldownGate()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cd := 10 * time.Minute
	g.Record("play", t0)

	// Elapsed equal to the cooldown counts as ready.
	if !g.Ready("play", t0.Add(cd), cd) {
		t.Error("elapsed == cooldown should be ready")
	}
	if g.Ready("play", t0.Add(cd-time.Nanosecond), cd) {
		t.Error("one nanosecond short should not be ready")
	}
	if rem := g.Remaining("play", t0.Add(cd-time.Second), cd); rem != time.Second {
		t.Errorf("Remaining = %v, want 1s", rem)
	}
}

func TestGateRecordOverwrites(t *testing.T) {
	g := NewCooldownGate()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cd := 10 * time.Minute

	g.Record("wash", t0)
	g.Record("wash", t0.Add(8*time.Minute))

	if g.Ready("wash", t0.Add(cd), cd) {
		t.Error("re-record should restart the clock")
	}
	if !g.Ready("wash", t0.Add(18*time.Minute), cd) {
		t.Error("cooldown from the second record should have elapsed")
	}
}

func TestGateKeysAreIndependent(t *testing.T) {
	g := NewCooldownGate()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g.Record("feed", now)

	if !g.Ready("play", now, time.Hour) {
		t.Error("recording one key must not gate another")
	}
}

func TestGateReset(t *testing.T) {
	g := NewCooldownGate()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g.Record("feed", now)
	g.Record("play", now)

	g.Reset("feed")
	if !g.Ready("feed", now, time.Hour) {
		t.Error("reset key should be ready")
	}
	if g.Ready("play", now, time.Hour) {
		t.Error("other keys must keep their records")
	}

	g.ResetAll()
	if !g.Ready("play", now, time.Hour) {
		t.Error("ResetAll should clear every record")
	}
}

func TestGateZeroCooldown(t *testing.T) {
	g := NewCooldownGate()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g.Record("stroke", now)

	if !g.Ready("stroke", now, 0) {
		t.Error("zero cooldown should always be ready")
	}
}
