package entropy

import "testing"

func TestJitterStaysInVarianceBand(t *testing.T) {
	src := NewSource()
	for i := 0; i < 200; i++ {
		got := Jitter(src, 100, 0.2)
		if got < 80 || got > 120 {
			t.Fatalf("Jitter = %v, want within [80, 120]", got)
		}
	}
}

func TestJitterZeroVariance(t *testing.T) {
	if got := Jitter(NewSource(), 42, 0); got != 42 {
		t.Errorf("Jitter = %v, want 42", got)
	}
}

func TestJitterDeterministic(t *testing.T) {
	tests := []struct {
		draw float64
		want float64
	}{
		{0.5, 100}, // midpoint draw lands on the base
		{0, 80},    // lowest draw hits base*(1-variance)
		{1, 120},   // highest draw hits base*(1+variance)
	}
	for _, tt := range tests {
		if got := Jitter(NewSequence(tt.draw), 100, 0.2); got != tt.want {
			t.Errorf("Jitter(draw=%v) = %v, want %v", tt.draw, got, tt.want)
		}
	}
}

func TestSequenceCycles(t *testing.T) {
	seq := NewSequence(0.1, 0.9)
	want := []float64{0.1, 0.9, 0.1, 0.9}
	for i, w := range want {
		if got := seq.Float64(); got != w {
			t.Errorf("draw %d = %v, want %v", i, got, w)
		}
	}
}

func TestSequenceIntn(t *testing.T) {
	if got := NewSequence(0.5).Intn(10); got != 5 {
		t.Errorf("Intn(10) = %d, want 5", got)
	}
	if got := NewSequence(0.99).Intn(3); got != 2 {
		t.Errorf("Intn(3) = %d, want 2", got)
	}
	// A draw of exactly 1 must still land inside [0, n).
	if got := NewSequence(1).Intn(3); got != 2 {
		t.Errorf("Intn(3) with draw 1 = %d, want 2", got)
	}
}

func TestSequenceIntnPanicsOnBadN(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Intn(0) should panic")
		}
	}()
	NewSequence(0.5).Intn(0)
}

func TestNewSourceProducesSpread(t *testing.T) {
	src := NewSource()
	first := src.Float64()
	same := true
	for i := 0; i < 5; i++ {
		if src.Float64() != first {
			same = false
			break
		}
	}
	if same {
		t.Error("source returned the same value six times")
	}
}
