package pet

import (
	"errors"
	"testing"
	"time"

	"github.com/tamasan/deskpet/internal/entropy"
)

type memLedger struct {
	coins int64
	xp    int64
	fail  bool
}

func (l *memLedger) CreditCoins(n int64, reason string) error {
	if l.fail {
		return errors.New("wallet unavailable")
	}
	l.coins += n
	return nil
}

func (l *memLedger) CreditExperience(n int64, reason string) error {
	if l.fail {
		return errors.New("wallet unavailable")
	}
	l.xp += n
	return nil
}

func (l *memLedger) Balance() (int64, int64, error) {
	if l.fail {
		return 0, 0, errors.New("wallet unavailable")
	}
	return l.coins, l.xp, nil
}

type memHistory struct {
	recs []WorkRecord
	fail bool
}

func (h *memHistory) AppendWork(rec WorkRecord) error {
	if h.fail {
		return errors.New("history unavailable")
	}
	h.recs = append(h.recs, rec)
	return nil
}

func newTestAutoWork(draws ...float64) (*AutoWork, *memLedger, *memHistory) {
	ledger := &memLedger{}
	hist := &memHistory{}
	if len(draws) == 0 {
		draws = []float64{0.2, 0.5}
	}
	w := NewAutoWork(DefaultAutoWorkConfig(), entropy.NewSequence(draws...), ledger, hist)
	return w, ledger, hist
}

func TestAutoWorkTierDraw(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		draw float64
		want WorkTier
	}{
		{0.2, TierEasy},
		{0.49, TierEasy},
		{0.5, TierNormal},
		{0.84, TierNormal},
		{0.85, TierHard},
		{0.99, TierHard},
	}
	for _, tt := range tests {
		w, _, _ := newTestAutoWork(tt.draw, 0.5)
		task, _, err := w.Start(now)
		if err != nil {
			t.Fatalf("Start(draw=%v): %v", tt.draw, err)
		}
		if task.Tier != tt.want {
			t.Errorf("draw %v -> tier %q, want %q", tt.draw, task.Tier, tt.want)
		}
	}
}

func TestAutoWorkStartSetsDuration(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// Midpoint jitter draw keeps the easy tier at its 30 minute base.
	w, _, _ := newTestAutoWork(0.2, 0.5)

	task, gen, err := w.Start(now)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if gen == 0 {
		t.Error("generation should advance from zero on start")
	}
	if got := task.EndsAt.Sub(task.StartedAt); got != 30*time.Minute {
		t.Errorf("duration = %v, want 30m", got)
	}
	if task.RewardCoins != 20 || task.RewardXP != 10 {
		t.Errorf("rewards = %d coins %d xp, want 20/10", task.RewardCoins, task.RewardXP)
	}
	if task.ID == "" {
		t.Error("task id should not be empty")
	}
}

func TestAutoWorkStartTwiceKeepsOneTask(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w, _, _ := newTestAutoWork()

	first, _, err := w.Start(now)
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, _, err := w.Start(now); !errors.Is(err, ErrWorkActive) {
		t.Fatalf("second Start error = %v, want ErrWorkActive", err)
	}
	active := w.Active()
	if active == nil || active.ID != first.ID {
		t.Errorf("active = %+v, want the first task", active)
	}
}

func TestAutoWorkCompletePaysOut(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w, ledger, hist := newTestAutoWork(0.2, 0.5)

	task, gen, err := w.Start(now)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	attrs := NewAttributes()
	rec, err := w.Complete(task.ID, gen, &attrs, 1.5, task.EndsAt)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if rec.Coins != 30 || rec.Experience != 15 {
		t.Errorf("scaled reward = %d coins %d xp, want 30/15", rec.Coins, rec.Experience)
	}
	if ledger.coins != 30 || ledger.xp != 15 {
		t.Errorf("ledger = %d coins %d xp, want 30/15", ledger.coins, ledger.xp)
	}
	if attrs.Mood != 95 || attrs.Energy != 90 {
		t.Errorf("gauges after work = mood %v energy %v, want 95/90", attrs.Mood, attrs.Energy)
	}
	if len(hist.recs) != 1 || hist.recs[0].TaskID != task.ID {
		t.Errorf("history = %+v, want one record for %s", hist.recs, task.ID)
	}
	if w.Active() != nil {
		t.Error("task should be idle after completion")
	}
	if got := w.WorkedToday(task.EndsAt); got != 30*time.Minute {
		t.Errorf("worked today = %v, want 30m", got)
	}
}

func TestAutoWorkCompleteStaleIsNoOp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w, ledger, hist := newTestAutoWork()

	task, gen, err := w.Start(now)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	attrs := NewAttributes()
	before := attrs

	if _, err := w.Complete("other-id", gen, &attrs, 1, now); !errors.Is(err, ErrStaleTask) {
		t.Fatalf("wrong id error = %v, want ErrStaleTask", err)
	}
	if _, err := w.Complete(task.ID, gen+1, &attrs, 1, now); !errors.Is(err, ErrStaleTask) {
		t.Fatalf("wrong generation error = %v, want ErrStaleTask", err)
	}
	if attrs != before {
		t.Errorf("stale completion mutated attributes: %+v", attrs)
	}
	if ledger.coins != 0 || ledger.xp != 0 || len(hist.recs) != 0 {
		t.Error("stale completion must not credit rewards or append history")
	}
	if w.Active() == nil {
		t.Error("task should still be active after a stale completion")
	}
}

func TestAutoWorkCompleteClampsIntimacy(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	w, ledger, _ := newTestAutoWork(0.2, 0.5)
	task, gen, _ := w.Start(now)
	attrs := NewAttributes()
	rec, err := w.Complete(task.ID, gen, &attrs, 99, task.EndsAt)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if rec.Coins != 40 {
		t.Errorf("coins with runaway intimacy = %d, want capped 40", rec.Coins)
	}
	if ledger.coins != 40 {
		t.Errorf("ledger coins = %d, want 40", ledger.coins)
	}

	w2, _, _ := newTestAutoWork(0.2, 0.5)
	task2, gen2, _ := w2.Start(now)
	attrs2 := NewAttributes()
	rec2, err := w2.Complete(task2.ID, gen2, &attrs2, 0.3, task2.EndsAt)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if rec2.Coins != 20 {
		t.Errorf("coins with sub-base intimacy = %d, want floor 20", rec2.Coins)
	}
}

func TestAutoWorkCompleteResetsIdleOnFailure(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w, ledger, hist := newTestAutoWork()
	ledger.fail = true
	hist.fail = true

	task, gen, _ := w.Start(now)
	attrs := NewAttributes()

	if _, err := w.Complete(task.ID, gen, &attrs, 1, task.EndsAt); err == nil {
		t.Fatal("expected collaborator errors")
	}
	if w.Active() != nil {
		t.Error("failed completion must still transition back to idle")
	}
}

func TestAutoWorkCancel(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w, ledger, hist := newTestAutoWork()

	task, gen, _ := w.Start(now)

	dropped := w.Cancel()
	if dropped == nil || dropped.ID != task.ID {
		t.Fatalf("Cancel = %+v, want the active task", dropped)
	}
	if w.Active() != nil {
		t.Error("cancel should clear the active task")
	}
	if w.Cancel() != nil {
		t.Error("cancel when idle should return nil")
	}

	// The old generation is dead: a late timer fire pays nothing.
	attrs := NewAttributes()
	if _, err := w.Complete(task.ID, gen, &attrs, 1, now); !errors.Is(err, ErrStaleTask) {
		t.Errorf("completion after cancel = %v, want ErrStaleTask", err)
	}
	if ledger.coins != 0 || len(hist.recs) != 0 {
		t.Error("cancelled task must not pay out")
	}
}

func TestAutoWorkShouldStart(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	healthy := NewAttributes()

	w, _, _ := newTestAutoWork()
	if ok, reason := w.ShouldStart(healthy, time.Time{}, now); !ok {
		t.Errorf("never-interacted pet should start: %s", reason)
	}
	if ok, reason := w.ShouldStart(healthy, now.Add(-time.Hour), now); !ok {
		t.Errorf("long-idle pet should start: %s", reason)
	}
	if ok, reason := w.ShouldStart(healthy, now.Add(-time.Minute), now); ok || reason != "not idle long enough" {
		t.Errorf("recent interaction = (%v, %q), want idle gate", ok, reason)
	}

	tired := healthy
	tired.Mood = 30
	if ok, reason := w.ShouldStart(tired, time.Time{}, now); ok || reason != "mood or energy too low" {
		t.Errorf("mood at threshold = (%v, %q), want fitness gate", ok, reason)
	}

	off := DefaultAutoWorkConfig()
	off.Enabled = false
	wOff := NewAutoWork(off, entropy.NewSequence(0.2), &memLedger{}, &memHistory{})
	if ok, reason := wOff.ShouldStart(healthy, time.Time{}, now); ok || reason != "disabled" {
		t.Errorf("disabled = (%v, %q), want disabled gate", ok, reason)
	}

	w.Start(now)
	if ok, reason := w.ShouldStart(healthy, time.Time{}, now); ok || reason != "task active" {
		t.Errorf("active task = (%v, %q), want single-flight gate", ok, reason)
	}
}

func TestAutoWorkDailyCap(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := DefaultAutoWorkConfig()
	cfg.DailyCap = 20 * time.Minute

	// Easy tier at midpoint jitter runs 30 minutes, blowing the 20m cap.
	w := NewAutoWork(cfg, entropy.NewSequence(0.2, 0.5), &memLedger{}, &memHistory{})
	task, gen, _ := w.Start(now)
	attrs := NewAttributes()
	if _, err := w.Complete(task.ID, gen, &attrs, 1, task.EndsAt); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	later := task.EndsAt
	if ok, reason := w.ShouldStart(attrs, time.Time{}, later); ok || reason != "daily cap reached" {
		t.Errorf("over cap = (%v, %q), want cap gate", ok, reason)
	}
	if err := w.CanStart(attrs, later); !errors.Is(err, ErrDailyCap) {
		t.Errorf("CanStart over cap = %v, want ErrDailyCap", err)
	}

	// The counter resets on the next calendar day.
	nextDay := now.AddDate(0, 0, 1)
	if ok, reason := w.ShouldStart(attrs, time.Time{}, nextDay); !ok {
		t.Errorf("next day should reset the cap: %s", reason)
	}
}

func TestAutoWorkCanStartIgnoresIdle(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w, _, _ := newTestAutoWork()

	// A user-initiated start does not wait for the idle trigger.
	if err := w.CanStart(NewAttributes(), now); err != nil {
		t.Errorf("CanStart right after an interaction = %v, want nil", err)
	}

	tired := NewAttributes()
	tired.Energy = 25
	if err := w.CanStart(tired, now); !errors.Is(err, ErrTooTired) {
		t.Errorf("CanStart while tired = %v, want ErrTooTired", err)
	}
}

func TestAutoWorkConfigValidate(t *testing.T) {
	cfg := DefaultAutoWorkConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config rejected: %v", err)
	}

	bad := cfg
	bad.Variance = 1
	if err := bad.Validate(); err == nil {
		t.Error("expected error for variance >= 1")
	}

	bad = cfg
	bad.DailyCap = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero daily cap")
	}

	bad = cfg
	bad.Tiers = map[WorkTier]TierSpec{TierEasy: cfg.Tiers[TierEasy]}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for missing tier")
	}
}
