// Auto-work: the single autonomous background task. At most one task is in
// flight system-wide; completion pays out through the economy ledger and a
// generation counter keeps stale timers from double-crediting.
package pet

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tamasan/deskpet/internal/entropy"
)

// Work state conflicts. Internal paths treat these as logged no-ops; the API
// surface maps them to conflict responses.
var (
	ErrWorkDisabled = errors.New("auto-work is disabled")
	ErrWorkActive   = errors.New("a work task is already active")
	ErrNoWork       = errors.New("no active work task")
	ErrStaleTask    = errors.New("work task id or generation does not match")
	ErrTooTired     = errors.New("mood or energy too low to work")
	ErrDailyCap     = errors.New("daily work hour cap reached")
)

// The pet refuses to work when mood or energy sit at or below this line.
const (
	minWorkMood   = 30.0
	minWorkEnergy = 30.0
)

// WorkTier is a task difficulty band.
type WorkTier string

const (
	TierEasy   WorkTier = "easy"
	TierNormal WorkTier = "normal"
	TierHard   WorkTier = "hard"
)

// Tier draw weights: 50% easy, 35% normal, 15% hard.
const (
	tierEasyCut   = 0.50
	tierNormalCut = 0.85
)

// TierSpec sets the base duration, reward and gauge cost for one tier.
type TierSpec struct {
	BaseHours   float64 `json:"base_hours"`
	RewardCoins int64   `json:"reward_coins"`
	RewardXP    int64   `json:"reward_xp"`
	CostMood    float64 `json:"cost_mood"`
	CostEnergy  float64 `json:"cost_energy"`
}

// AutoWorkConfig controls the background work scheduler.
type AutoWorkConfig struct {
	Enabled          bool                  `json:"enabled"`
	IdleTrigger      time.Duration         `json:"idle_trigger"`
	DailyCap         time.Duration         `json:"daily_cap"`
	Variance         float64               `json:"variance"`
	IntimacyBonusCap float64               `json:"intimacy_bonus_cap"`
	Tiers            map[WorkTier]TierSpec `json:"tiers"`
}

// DefaultAutoWorkConfig returns the standard work policy.
func DefaultAutoWorkConfig() AutoWorkConfig {
	return AutoWorkConfig{
		Enabled:          true,
		IdleTrigger:      30 * time.Minute,
		DailyCap:         4 * time.Hour,
		Variance:         0.2,
		IntimacyBonusCap: 2.0,
		Tiers: map[WorkTier]TierSpec{
			TierEasy:   {BaseHours: 0.5, RewardCoins: 20, RewardXP: 10, CostMood: 5, CostEnergy: 10},
			TierNormal: {BaseHours: 1, RewardCoins: 50, RewardXP: 25, CostMood: 8, CostEnergy: 18},
			TierHard:   {BaseHours: 2, RewardCoins: 120, RewardXP: 60, CostMood: 12, CostEnergy: 30},
		},
	}
}

// Validate rejects configs that would misbehave at runtime.
func (c AutoWorkConfig) Validate() error {
	if c.IdleTrigger < 0 {
		return fmt.Errorf("auto-work idle trigger must not be negative")
	}
	if c.DailyCap <= 0 {
		return fmt.Errorf("auto-work daily cap must be positive")
	}
	if c.Variance < 0 || c.Variance >= 1 {
		return fmt.Errorf("auto-work variance must be in [0, 1)")
	}
	if c.IntimacyBonusCap < 1 {
		return fmt.Errorf("intimacy bonus cap must be >= 1")
	}
	for _, tier := range []WorkTier{TierEasy, TierNormal, TierHard} {
		spec, ok := c.Tiers[tier]
		if !ok {
			return fmt.Errorf("auto-work tier %q missing", tier)
		}
		if spec.BaseHours <= 0 {
			return fmt.Errorf("auto-work tier %q base hours must be positive", tier)
		}
		if spec.RewardCoins < 0 || spec.RewardXP < 0 {
			return fmt.Errorf("auto-work tier %q rewards must not be negative", tier)
		}
		if spec.CostMood < 0 || spec.CostEnergy < 0 {
			return fmt.Errorf("auto-work tier %q costs must not be negative", tier)
		}
	}
	return nil
}

// WorkTask is one in-flight background task.
type WorkTask struct {
	ID          string    `json:"id"`
	Tier        WorkTier  `json:"tier"`
	StartedAt   time.Time `json:"started_at"`
	EndsAt      time.Time `json:"ends_at"`
	RewardCoins int64     `json:"reward_coins"`
	RewardXP    int64     `json:"reward_xp"`
	CostMood    float64   `json:"cost_mood"`
	CostEnergy  float64   `json:"cost_energy"`
}

// WorkRecord is the immutable history entry written when a task completes.
type WorkRecord struct {
	TaskID     string    `json:"task_id" db:"task_id"`
	Tier       WorkTier  `json:"tier" db:"tier"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at"`
	Coins      int64     `json:"coins" db:"coins"`
	Experience int64     `json:"experience" db:"experience"`
	MoodCost   float64   `json:"mood_cost" db:"mood_cost"`
	EnergyCost float64   `json:"energy_cost" db:"energy_cost"`
}

// AutoWork holds the work state machine: idle -> working -> idle. It is not
// self-locking; the owning coordinator serializes all calls.
type AutoWork struct {
	cfg     AutoWorkConfig
	rng     entropy.Source
	ledger  Ledger
	history HistoryLog

	active *WorkTask
	gen    uint64

	day         time.Time
	workedToday time.Duration
}

// NewAutoWork builds the scheduler with its reward collaborators.
func NewAutoWork(cfg AutoWorkConfig, rng entropy.Source, ledger Ledger, history HistoryLog) *AutoWork {
	return &AutoWork{cfg: cfg, rng: rng, ledger: ledger, history: history}
}

// Active returns a copy of the in-flight task, or nil when idle.
func (w *AutoWork) Active() *WorkTask {
	if w.active == nil {
		return nil
	}
	t := *w.active
	return &t
}

// Generation returns the counter that pending completions must present.
func (w *AutoWork) Generation() uint64 {
	return w.gen
}

// WorkedToday returns the hours already worked this calendar day, resetting
// the counter when the day has rolled over.
func (w *AutoWork) WorkedToday(now time.Time) time.Duration {
	if !sameDay(w.day, now) {
		w.day = now
		w.workedToday = 0
	}
	return w.workedToday
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// CanStart checks every start condition except the idle trigger, which only
// gates autonomous starts.
func (w *AutoWork) CanStart(a Attributes, now time.Time) error {
	if !w.cfg.Enabled {
		return ErrWorkDisabled
	}
	if w.active != nil {
		return ErrWorkActive
	}
	if a.Mood <= minWorkMood || a.Energy <= minWorkEnergy {
		return ErrTooTired
	}
	if w.WorkedToday(now) >= w.cfg.DailyCap {
		return ErrDailyCap
	}
	return nil
}

// ShouldStart is the autonomous entry guard: enabled, idle, no active task,
// pet fit to work, daily cap not exhausted. The reason string names the
// first failing condition for the debug log.
func (w *AutoWork) ShouldStart(a Attributes, lastInteraction, now time.Time) (bool, string) {
	if !w.cfg.Enabled {
		return false, "disabled"
	}
	if w.active != nil {
		return false, "task active"
	}
	if !lastInteraction.IsZero() && now.Sub(lastInteraction) < w.cfg.IdleTrigger {
		return false, "not idle long enough"
	}
	if a.Mood <= minWorkMood || a.Energy <= minWorkEnergy {
		return false, "mood or energy too low"
	}
	if w.WorkedToday(now) >= w.cfg.DailyCap {
		return false, "daily cap reached"
	}
	return true, "ok"
}

// Start draws a tier, jitters its base duration by the configured variance
// and arms the task. Returns the task copy plus the generation a completion
// must present. Fails with ErrWorkActive if a task is already in flight.
func (w *AutoWork) Start(now time.Time) (*WorkTask, uint64, error) {
	if w.active != nil {
		return nil, 0, ErrWorkActive
	}

	tier := w.drawTier()
	spec := w.cfg.Tiers[tier]
	hours := entropy.Jitter(w.rng, spec.BaseHours, w.cfg.Variance)

	task := &WorkTask{
		ID:          uuid.NewString(),
		Tier:        tier,
		StartedAt:   now,
		EndsAt:      now.Add(time.Duration(hours * float64(time.Hour))),
		RewardCoins: spec.RewardCoins,
		RewardXP:    spec.RewardXP,
		CostMood:    spec.CostMood,
		CostEnergy:  spec.CostEnergy,
	}
	w.active = task
	w.gen++

	copied := *task
	return &copied, w.gen, nil
}

func (w *AutoWork) drawTier() WorkTier {
	f := w.rng.Float64()
	switch {
	case f < tierEasyCut:
		return TierEasy
	case f < tierNormalCut:
		return TierNormal
	default:
		return TierHard
	}
}

// Complete settles the active task: scale the reward by the caller-supplied
// intimacy multiplier (clamped to [1, cap]), debit mood and energy through
// the clamping path, append the history record and credit the ledger.
// A stale id or generation is rejected with ErrStaleTask and nothing is
// touched. The idle transition is deferred, so collaborator failures can
// never leave the task stuck active; such failures come back joined, for
// the caller to log as recoverable.
func (w *AutoWork) Complete(taskID string, gen uint64, attrs *Attributes, intimacy float64, now time.Time) (*WorkRecord, error) {
	if w.active == nil || w.active.ID != taskID || w.gen != gen {
		return nil, ErrStaleTask
	}
	task := *w.active
	defer func() { w.active = nil }()

	if intimacy < 1 {
		intimacy = 1
	}
	if intimacy > w.cfg.IntimacyBonusCap {
		intimacy = w.cfg.IntimacyBonusCap
	}

	rec := WorkRecord{
		TaskID:     task.ID,
		Tier:       task.Tier,
		StartedAt:  task.StartedAt,
		FinishedAt: now,
		Coins:      int64(math.Round(float64(task.RewardCoins) * intimacy)),
		Experience: int64(math.Round(float64(task.RewardXP) * intimacy)),
		MoodCost:   task.CostMood,
		EnergyCost: task.CostEnergy,
	}

	*attrs = attrs.Apply(Effects{Mood: -task.CostMood, Energy: -task.CostEnergy})
	w.WorkedToday(now)
	w.workedToday += task.EndsAt.Sub(task.StartedAt)

	var errs []error
	if err := w.history.AppendWork(rec); err != nil {
		errs = append(errs, fmt.Errorf("append work history: %w", err))
	}
	if err := w.ledger.CreditCoins(rec.Coins, "work:"+string(task.Tier)); err != nil {
		errs = append(errs, fmt.Errorf("credit coins: %w", err))
	}
	if err := w.ledger.CreditExperience(rec.Experience, "work:"+string(task.Tier)); err != nil {
		errs = append(errs, fmt.Errorf("credit experience: %w", err))
	}
	return &rec, errors.Join(errs...)
}

// Cancel clears the active task without reward or cost and invalidates any
// pending completion. Safe to call when idle; returns the dropped task or
// nil.
func (w *AutoWork) Cancel() *WorkTask {
	if w.active == nil {
		return nil
	}
	task := *w.active
	w.active = nil
	w.gen++
	return &task
}
