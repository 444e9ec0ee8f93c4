package pet

import (
	"math"
	"testing"
	"time"
)

func normalDecay(t *testing.T) DecayConfig {
	t.Helper()
	cfg, err := DecayPreset("normal")
	if err != nil {
		t.Fatalf("DecayPreset(normal): %v", err)
	}
	return cfg
}

func TestApplyDecayTwoHours(t *testing.T) {
	cfg := normalDecay(t)
	a := NewAttributes()

	got := ApplyDecay(a, 2*time.Hour, cfg)
	if got.Satiety != 92 {
		t.Errorf("satiety = %v, want 92", got.Satiety)
	}
	if got.Energy != 94 {
		t.Errorf("energy = %v, want 94", got.Energy)
	}
	if got.Mood != 96 {
		t.Errorf("mood = %v, want 96", got.Mood)
	}
	if got.Boredom != 10 {
		t.Errorf("boredom = %v, want 10", got.Boredom)
	}
	// Hygiene only moves through interactions and work.
	if got.Hygiene != GaugeMax {
		t.Errorf("hygiene = %v, want untouched %v", got.Hygiene, GaugeMax)
	}
}

func TestApplyDecayCapsPerApplication(t *testing.T) {
	cfg := normalDecay(t)
	a := NewAttributes()

	// 20h would mean 80 points of satiety decay; the cap holds it to 30.
	got := ApplyDecay(a, 20*time.Hour, cfg)
	if got.Satiety != 70 {
		t.Errorf("satiety = %v, want 70", got.Satiety)
	}
	if got.Boredom != 30 {
		t.Errorf("boredom = %v, want 30", got.Boredom)
	}
}

func TestApplyDecayNonPositiveElapsed(t *testing.T) {
	cfg := normalDecay(t)
	a := NewAttributes()
	a.Satiety = 55

	for _, elapsed := range []time.Duration{0, -time.Hour} {
		got := ApplyDecay(a, elapsed, cfg)
		if got != a {
			t.Errorf("elapsed %v mutated attributes: %+v", elapsed, got)
		}
	}
}

func TestApplyDecayClampsAtBounds(t *testing.T) {
	cfg := normalDecay(t)
	a := NewAttributes()
	a.Satiety = 5
	a.Boredom = 95

	got := ApplyDecay(a, 2*time.Hour, cfg)
	if got.Satiety != GaugeMin {
		t.Errorf("satiety = %v, want floor %v", got.Satiety, GaugeMin)
	}
	if got.Boredom != GaugeMax {
		t.Errorf("boredom = %v, want ceiling %v", got.Boredom, GaugeMax)
	}
	if !got.InBounds() {
		t.Errorf("decayed attributes out of bounds: %+v", got)
	}
}

func TestApplyDecaySplitMatchesWhole(t *testing.T) {
	cfg := normalDecay(t)
	a := NewAttributes()

	// Two short applications land where one long one does, as long as the
	// combined span stays under the per-application cap.
	split := ApplyDecay(ApplyDecay(a, time.Hour, cfg), 2*time.Hour, cfg)
	whole := ApplyDecay(a, 3*time.Hour, cfg)
	if math.Abs(split.Satiety-whole.Satiety) > 1e-9 ||
		math.Abs(split.Boredom-whole.Boredom) > 1e-9 {
		t.Errorf("split = %+v, whole = %+v", split, whole)
	}
}

func TestApplyDecayIsPure(t *testing.T) {
	cfg := normalDecay(t)
	a := NewAttributes()
	before := a

	ApplyDecay(a, 3*time.Hour, cfg)
	if a != before {
		t.Errorf("input mutated: %+v", a)
	}
}

func TestApplyDecayFractionalHours(t *testing.T) {
	cfg := normalDecay(t)
	a := NewAttributes()

	got := ApplyDecay(a, 30*time.Minute, cfg)
	if math.Abs(got.Satiety-98) > 1e-9 {
		t.Errorf("satiety = %v, want 98", got.Satiety)
	}
	if math.Abs(got.Boredom-2.5) > 1e-9 {
		t.Errorf("boredom = %v, want 2.5", got.Boredom)
	}
}

func TestDecayPreset(t *testing.T) {
	for _, name := range []string{"easy", "normal", "hard"} {
		if _, err := DecayPreset(name); err != nil {
			t.Errorf("DecayPreset(%q) error: %v", name, err)
		}
	}
	if _, err := DecayPreset("brutal"); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestDecayConfigValidate(t *testing.T) {
	cfg := normalDecay(t)
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	bad := cfg
	bad.EnergyPerHour = -1
	if err := bad.Validate(); err == nil {
		t.Error("expected error for negative rate")
	}
}
