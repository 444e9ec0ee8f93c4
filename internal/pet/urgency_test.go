package pet

import (
	"math"
	"testing"
	"time"

	"github.com/tamasan/deskpet/internal/entropy"
)

func TestUrgencyScoreReferenceVectors(t *testing.T) {
	w := DefaultUrgencyWeights()

	a := NewAttributes()
	a.Energy = 10
	a.Satiety = 20
	a.Boredom = 80
	a.Mood = 50
	// 0.4*90 + 0.3*80 + 0.2*80 + 0.1*50 = 81
	if got := UrgencyScore(a, w); math.Abs(got-81) > 1 {
		t.Errorf("score = %v, want 81", got)
	}

	b := NewAttributes()
	b.Energy = 80
	b.Satiety = 90
	b.Boredom = 20
	b.Mood = 85
	// 0.4*20 + 0.3*10 + 0.2*20 + 0.1*15 = 16.5
	if got := UrgencyScore(b, w); got < 15 || got > 17 {
		t.Errorf("score = %v, want about 16.5", got)
	}
}

func TestUrgencyScoreHealthyIsZero(t *testing.T) {
	if got := UrgencyScore(NewAttributes(), DefaultUrgencyWeights()); got != 0 {
		t.Errorf("score = %v, want 0", got)
	}
}

func TestUrgencyScoreClamped(t *testing.T) {
	a := Attributes{Boredom: 100} // every gauge at its worst
	heavy := UrgencyWeights{Energy: 1, Satiety: 1, Boredom: 1, Mood: 1}
	if got := UrgencyScore(a, heavy); got != 100 {
		t.Errorf("score = %v, want clamped to 100", got)
	}
}

func TestNextRequestIntervalUrgencyShortens(t *testing.T) {
	cfg := DefaultProactiveConfig()

	tests := []struct {
		urgency float64
		want    time.Duration
	}{
		{0, 30 * time.Minute},
		{50, 30 * time.Minute},
		{75, 20 * time.Minute},
		{100, 15 * time.Minute},
	}
	for _, tt := range tests {
		if got := NextRequestInterval(tt.urgency, cfg, 0); got != tt.want {
			t.Errorf("interval(urgency=%v) = %v, want %v", tt.urgency, got, tt.want)
		}
	}

	// Strictly decreasing across the responsive band.
	prev := NextRequestInterval(50, cfg, 0)
	for _, u := range []float64{60, 75, 90, 100} {
		got := NextRequestInterval(u, cfg, 0)
		if got >= prev {
			t.Errorf("interval(%v) = %v, want shorter than %v", u, got, prev)
		}
		prev = got
	}
}

func TestNextRequestIntervalDeclineLengthens(t *testing.T) {
	cfg := DefaultProactiveConfig()

	prev := NextRequestInterval(60, cfg, 0)
	for declines := 1; declines <= 3; declines++ {
		got := NextRequestInterval(60, cfg, declines)
		if got <= prev && got < cfg.MaxInterval {
			t.Errorf("interval(declines=%d) = %v, want longer than %v", declines, got, prev)
		}
		prev = got
	}
}

func TestNextRequestIntervalClamped(t *testing.T) {
	cfg := DefaultProactiveConfig()

	if got := NextRequestInterval(100, cfg, 10); got != cfg.MaxInterval {
		t.Errorf("heavily declined interval = %v, want max %v", got, cfg.MaxInterval)
	}

	tight := cfg
	tight.MinInterval = 20 * time.Minute
	if got := NextRequestInterval(100, tight, 0); got != tight.MinInterval {
		t.Errorf("interval = %v, want clamped to min %v", got, tight.MinInterval)
	}

	if got := NextRequestInterval(60, cfg, -3); got != NextRequestInterval(60, cfg, 0) {
		t.Errorf("negative declines = %v, want same as zero", got)
	}
}

func TestCanTriggerRequest(t *testing.T) {
	cfg := DefaultProactiveConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	needy := NewAttributes()
	needy.Energy = 10
	needy.Satiety = 20
	needy.Boredom = 80
	needy.Mood = 50

	ok, reason := CanTriggerRequest(needy, time.Time{}, cfg, 0, now)
	if !ok {
		t.Errorf("first request blocked: %s", reason)
	}

	off := cfg
	off.Enabled = false
	if ok, reason := CanTriggerRequest(needy, time.Time{}, off, 0, now); ok || reason != "disabled" {
		t.Errorf("disabled = (%v, %q), want (false, disabled)", ok, reason)
	}

	if ok, reason := CanTriggerRequest(needy, now.Add(-time.Minute), cfg, 0, now); ok || reason != "interval not elapsed" {
		t.Errorf("recent request = (%v, %q), want (false, interval not elapsed)", ok, reason)
	}

	if ok, _ := CanTriggerRequest(needy, now.Add(-4*time.Hour), cfg, 0, now); !ok {
		t.Error("request should fire once the interval has elapsed")
	}

	if ok, reason := CanTriggerRequest(NewAttributes(), time.Time{}, cfg, 0, now); ok || reason != "urgency below floor" {
		t.Errorf("healthy pet = (%v, %q), want (false, urgency below floor)", ok, reason)
	}
}

func TestSelectRequestType(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Attributes)
		want RequestType
	}{
		{"hungry dominates", func(a *Attributes) { a.Satiety = 10 }, RequestHungry},
		{"bored dominates", func(a *Attributes) { a.Boredom = 90 }, RequestBored},
		{"low energy asks for attention", func(a *Attributes) { a.Energy = 20 }, RequestNeedAttention},
		{"low mood asks for attention", func(a *Attributes) { a.Mood = 15 }, RequestNeedAttention},
		{
			// Equal scores fall to declaration order: need_attention first.
			"tie goes to attention",
			func(a *Attributes) { a.Energy = 40; a.Satiety = 40 },
			RequestNeedAttention,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAttributes()
			tt.mod(&a)
			if got := SelectRequestType(a); got != tt.want {
				t.Errorf("SelectRequestType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewProactiveRequest(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	src := entropy.NewSequence(0)

	req := NewProactiveRequest(RequestHungry, 64, now, src)
	if req.ID == "" {
		t.Error("request id should not be empty")
	}
	if req.Type != RequestHungry {
		t.Errorf("type = %q, want hungry", req.Type)
	}
	if req.Urgency != 64 {
		t.Errorf("urgency = %v, want 64", req.Urgency)
	}
	if req.Message == "" {
		t.Error("message should not be empty")
	}
	if req.SuggestedInteraction != "feed" {
		t.Errorf("suggestion = %q, want feed", req.SuggestedInteraction)
	}
	if !req.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", req.Timestamp, now)
	}
	if req.Responded {
		t.Error("fresh request should not be responded")
	}

	if got := NewProactiveRequest(RequestBored, 30, now, src).SuggestedInteraction; got != "play" {
		t.Errorf("bored suggestion = %q, want play", got)
	}
	if got := NewProactiveRequest(RequestNeedAttention, 30, now, src).SuggestedInteraction; got != "stroke" {
		t.Errorf("attention suggestion = %q, want stroke", got)
	}
}

func TestProactiveConfigValidate(t *testing.T) {
	cfg := DefaultProactiveConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config rejected: %v", err)
	}

	bad := cfg
	bad.DeclinePenalty = 0.5
	if err := bad.Validate(); err == nil {
		t.Error("expected error for penalty below 1")
	}

	bad = cfg
	bad.MinInterval = 2 * cfg.MaxInterval
	if err := bad.Validate(); err == nil {
		t.Error("expected error for min above max")
	}
}
