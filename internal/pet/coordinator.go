package pet

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tamasan/deskpet/internal/entropy"
)

var (
	ErrNoState        = errors.New("no saved pet state")
	ErrUnknownRequest = errors.New("unknown or superseded request id")
)

// Clock supplies wall-clock time. Tests swap it for a stepped fake.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// StateStore persists the pet snapshot between runs. LoadState returns
// ErrNoState when nothing has been saved yet.
type StateStore interface {
	LoadState() (PetState, error)
	SaveState(PetState) error
}

// Ledger is the coin and experience wallet.
type Ledger interface {
	CreditCoins(amount int64, reason string) error
	CreditExperience(amount int64, reason string) error
	Balance() (coins, experience int64, err error)
}

// HistoryLog records completed work tasks.
type HistoryLog interface {
	AppendWork(rec WorkRecord) error
}

// TimerFactory schedules fn after d and returns a stop function. The
// default wraps time.AfterFunc; tests swap in a manual trigger.
type TimerFactory func(d time.Duration, fn func()) (stop func() bool)

// PetState is the persisted snapshot of everything that must survive a
// restart. An in-flight work task is deliberately not part of it; a task
// interrupted by shutdown is abandoned without reward.
type PetState struct {
	Name          string     `json:"name"`
	Attributes    Attributes `json:"attributes"`
	DeclineCount  int        `json:"decline_count"`
	LastDecayAt   time.Time  `json:"last_decay_at"`
	LastRequestAt time.Time  `json:"last_request_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Config bundles every tunable of the engine.
type Config struct {
	PetName      string                     `json:"pet_name"`
	Decay        DecayConfig                `json:"decay"`
	Rules        []ThresholdRule            `json:"rules"`
	Interactions map[string]InteractionSpec `json:"interactions"`
	Proactive    ProactiveConfig            `json:"proactive"`
	AutoWork     AutoWorkConfig             `json:"auto_work"`
}

// DefaultConfig returns the stock pet tuning.
func DefaultConfig() Config {
	decay, _ := DecayPreset("normal")
	return Config{
		PetName:      "Mochi",
		Decay:        decay,
		Rules:        DefaultRules(),
		Interactions: DefaultInteractions(),
		Proactive:    DefaultProactiveConfig(),
		AutoWork:     DefaultAutoWorkConfig(),
	}
}

// Validate checks every section and names the first offending field.
func (c Config) Validate() error {
	if c.PetName == "" {
		return fmt.Errorf("pet name must not be empty")
	}
	if err := c.Decay.Validate(); err != nil {
		return fmt.Errorf("decay: %w", err)
	}
	if err := ValidateRules(c.Rules); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	if err := ValidateInteractions(c.Interactions); err != nil {
		return fmt.Errorf("interactions: %w", err)
	}
	if err := c.Proactive.Validate(); err != nil {
		return fmt.Errorf("proactive: %w", err)
	}
	if err := c.AutoWork.Validate(); err != nil {
		return fmt.Errorf("auto_work: %w", err)
	}
	return nil
}

// EventKind labels engine events for streaming consumers.
type EventKind string

const (
	EventAlert         EventKind = "alert"
	EventRequest       EventKind = "request"
	EventInteraction   EventKind = "interaction"
	EventWorkStarted   EventKind = "work_started"
	EventWorkCompleted EventKind = "work_completed"
	EventWorkCancelled EventKind = "work_cancelled"
	EventNotice        EventKind = "notice"
)

// Event is one engine occurrence, published best-effort.
type Event struct {
	Kind    EventKind `json:"kind"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// TickResult reports what one evaluation pass decided.
type TickResult struct {
	At          time.Time         `json:"at"`
	Attributes  Attributes        `json:"attributes"`
	Sick        bool              `json:"sick"`
	Alert       *AlertPayload     `json:"alert,omitempty"`
	Request     *ProactiveRequest `json:"request,omitempty"`
	StartedWork *WorkTask         `json:"started_work,omitempty"`
}

// InteractionResult reports the outcome of one care action.
type InteractionResult struct {
	Kind          string        `json:"kind"`
	Attributes    Attributes    `json:"attributes"`
	Sick          bool          `json:"sick"`
	Experience    int64         `json:"experience"`
	CancelledWork *WorkTask     `json:"cancelled_work,omitempty"`
	Remaining     time.Duration `json:"remaining,omitempty"`
}

// WorkStatus describes the work scheduler for status surfaces.
type WorkStatus struct {
	Active      *WorkTask     `json:"active,omitempty"`
	Remaining   time.Duration `json:"remaining"`
	WorkedToday time.Duration `json:"worked_today"`
	DailyCap    time.Duration `json:"daily_cap"`
}

// StatusReport is the full snapshot handed to status surfaces.
type StatusReport struct {
	Name       string                   `json:"name"`
	At         time.Time                `json:"at"`
	Attributes Attributes               `json:"attributes"`
	Sick       bool                     `json:"sick"`
	Emotion    string                   `json:"emotion"`
	Summary    string                   `json:"summary"`
	Warnings   []string                 `json:"warnings,omitempty"`
	Coins      int64                    `json:"coins"`
	Experience int64                    `json:"experience"`
	Intimacy   float64                  `json:"intimacy"`
	Cooldowns  map[string]time.Duration `json:"cooldowns"`
	Work       WorkStatus               `json:"work"`
	Request    *ProactiveRequest        `json:"request,omitempty"`
}

// Coordinator owns the pet. Every read and mutation passes through its
// mutex, so attribute math, gates and the work machine never race; the
// completion timer callback re-enters through the same lock.
type Coordinator struct {
	mu  sync.Mutex
	cfg Config
	log *slog.Logger

	clock  Clock
	rng    entropy.Source
	timers TimerFactory

	store   StateStore
	ledger  Ledger
	history HistoryLog

	attrs         Attributes
	name          string
	lastDecayAt   time.Time
	lastRequestAt time.Time
	declineCount  int
	pending       *ProactiveRequest

	alertGate *CooldownGate
	actGate   *CooldownGate
	work      *AutoWork

	stopTimer func() bool
	events    chan Event
}

// Option overrides a coordinator collaborator, mainly for tests.
type Option func(*Coordinator)

// WithClock replaces the wall clock.
func WithClock(clk Clock) Option {
	return func(c *Coordinator) { c.clock = clk }
}

// WithRand replaces the randomness source.
func WithRand(src entropy.Source) Option {
	return func(c *Coordinator) { c.rng = src }
}

// WithTimerFactory replaces the completion timer scheduler.
func WithTimerFactory(f TimerFactory) Option {
	return func(c *Coordinator) { c.timers = f }
}

// NewCoordinator validates cfg, loads the saved snapshot (or starts a
// fresh pet when none exists or the load fails) and wires the engine.
func NewCoordinator(cfg Config, store StateStore, ledger Ledger, history HistoryLog, logger *slog.Logger, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pet config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Coordinator{
		cfg:       cfg,
		log:       logger,
		clock:     SystemClock{},
		rng:       entropy.NewSource(),
		store:     store,
		ledger:    ledger,
		history:   history,
		alertGate: NewCooldownGate(),
		actGate:   NewCooldownGate(),
		events:    make(chan Event, 64),
	}
	c.timers = func(d time.Duration, fn func()) func() bool {
		t := time.AfterFunc(d, fn)
		return t.Stop
	}
	for _, opt := range opts {
		opt(c)
	}
	c.work = NewAutoWork(cfg.AutoWork, c.rng, ledger, history)

	now := c.clock.Now()
	st, err := store.LoadState()
	switch {
	case errors.Is(err, ErrNoState):
		c.log.Info("no saved pet, starting fresh", "name", cfg.PetName)
		c.freshState(now)
	case err != nil:
		c.log.Warn("pet state load failed, starting fresh", "error", err)
		c.freshState(now)
	default:
		c.name = st.Name
		if c.name == "" {
			c.name = cfg.PetName
		}
		c.attrs = st.Attributes
		if !c.attrs.InBounds() {
			c.log.Warn("clamping out-of-range attributes from saved state")
			c.attrs = c.attrs.Apply(Effects{})
		}
		c.declineCount = st.DeclineCount
		c.lastDecayAt = st.LastDecayAt
		if c.lastDecayAt.IsZero() {
			c.lastDecayAt = now
		}
		c.lastRequestAt = st.LastRequestAt
		c.log.Info("pet state loaded", "name", c.name, "last_decay_at", c.lastDecayAt)
	}
	return c, nil
}

func (c *Coordinator) freshState(now time.Time) {
	c.name = c.cfg.PetName
	c.attrs = NewAttributes()
	c.lastDecayAt = now
}

// Events exposes the engine event stream. Delivery is best-effort: events
// are dropped when no consumer keeps up.
func (c *Coordinator) Events() <-chan Event {
	return c.events
}

// Tick runs one evaluation pass: decay, then alert arbitration, then the
// proactive check (suppressed by an alert), then the auto-work check
// (suppressed by an alert or a fresh request).
func (c *Coordinator) Tick() TickResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.applyDecayLocked(now)

	res := TickResult{At: now, Attributes: c.attrs, Sick: c.attrs.Sick()}

	if alert := EvaluateAlerts(c.attrs, c.cfg.Rules, c.alertGate, now); alert != nil {
		res.Alert = alert
		c.publish(Event{Kind: EventAlert, At: now, Payload: alert})
		c.log.Info("alert raised", "rule", alert.RuleID, "priority", alert.Priority)
	}

	if res.Alert == nil {
		if ok, reason := CanTriggerRequest(c.attrs, c.lastRequestAt, c.cfg.Proactive, c.declineCount, now); ok {
			urgency := UrgencyScore(c.attrs, c.cfg.Proactive.Weights)
			req := NewProactiveRequest(SelectRequestType(c.attrs), urgency, now, c.rng)
			c.pending = &req
			c.lastRequestAt = now
			out := req
			res.Request = &out
			c.publish(Event{Kind: EventRequest, At: now, Payload: req})
			c.log.Info("proactive request", "type", req.Type, "urgency", req.Urgency)
		} else {
			c.log.Debug("proactive request held", "reason", reason)
		}
	}

	if res.Alert == nil && res.Request == nil {
		if ok, reason := c.work.ShouldStart(c.attrs, c.attrs.LastActionAt, now); ok {
			res.StartedWork = c.startWorkLocked(now)
		} else {
			c.log.Debug("auto-work held", "reason", reason)
		}
	}

	c.persistLocked(now)
	return res
}

func (c *Coordinator) applyDecayLocked(now time.Time) {
	if c.lastDecayAt.IsZero() {
		c.lastDecayAt = now
		return
	}
	elapsed := now.Sub(c.lastDecayAt)
	if elapsed <= 0 {
		return
	}
	c.attrs = ApplyDecay(c.attrs, elapsed, c.cfg.Decay)
	c.lastDecayAt = now
}

func (c *Coordinator) startWorkLocked(now time.Time) *WorkTask {
	task, gen, err := c.work.Start(now)
	if err != nil {
		c.log.Warn("work start failed", "error", err)
		return nil
	}
	c.armCompletionLocked(task, gen, now)
	c.publish(Event{Kind: EventWorkStarted, At: now, Payload: task})
	c.log.Info("work started", "task", task.ID, "tier", task.Tier, "ends_at", task.EndsAt)
	return task
}

func (c *Coordinator) armCompletionLocked(task *WorkTask, gen uint64, now time.Time) {
	if c.stopTimer != nil {
		c.stopTimer()
	}
	d := task.EndsAt.Sub(now)
	if d < 0 {
		d = 0
	}
	id := task.ID
	c.stopTimer = c.timers(d, func() { c.finishWork(id, gen) })
}

// finishWork is the completion timer callback. A generation mismatch means
// the task was cancelled or superseded after the timer was armed, so the
// fire is ignored.
func (c *Coordinator) finishWork(taskID string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	rec, err := c.work.Complete(taskID, gen, &c.attrs, c.intimacyLocked(), now)
	if errors.Is(err, ErrStaleTask) {
		c.log.Debug("stale work completion ignored", "task", taskID)
		return
	}
	c.stopTimer = nil
	if err != nil {
		c.log.Warn("work completed with persistence errors", "task", taskID, "error", err)
	}
	c.publish(Event{Kind: EventWorkCompleted, At: now, Payload: rec})
	c.log.Info("work completed", "task", rec.TaskID, "tier", rec.Tier, "coins", rec.Coins, "experience", rec.Experience)
	c.persistLocked(now)
}

func (c *Coordinator) intimacyLocked() float64 {
	_, xp, err := c.ledger.Balance()
	if err != nil {
		c.log.Warn("wallet read failed, using base intimacy", "error", err)
		return 1
	}
	bonus := 1 + float64(xp)/1000
	if bonus > c.cfg.AutoWork.IntimacyBonusCap {
		bonus = c.cfg.AutoWork.IntimacyBonusCap
	}
	return bonus
}

// Interact performs one care action. An active work task is cancelled
// first; the user showing up outranks background work. Returns ErrCooldown
// with the remaining wait when the action is gated.
func (c *Coordinator) Interact(kind string) (InteractionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	spec, ok := c.cfg.Interactions[kind]
	if !ok {
		return InteractionResult{}, fmt.Errorf("%w: %q", ErrUnknownInteraction, kind)
	}

	now := c.clock.Now()
	if !c.actGate.Ready(kind, now, spec.Cooldown) {
		rem := c.actGate.Remaining(kind, now, spec.Cooldown)
		return InteractionResult{Kind: kind, Remaining: rem}, ErrCooldown
	}

	c.applyDecayLocked(now)

	res := InteractionResult{Kind: kind}
	if cancelled := c.cancelWorkLocked(now); cancelled != nil {
		res.CancelledWork = cancelled
	}

	c.attrs = c.attrs.Apply(spec.Effects)
	c.attrs.LastAction = kind
	c.attrs.LastActionAt = now
	c.actGate.Record(kind, now)

	if spec.Experience > 0 {
		if err := c.ledger.CreditExperience(spec.Experience, "interaction:"+kind); err != nil {
			c.log.Warn("experience credit failed", "kind", kind, "error", err)
		}
	}

	res.Attributes = c.attrs
	res.Sick = c.attrs.Sick()
	res.Experience = spec.Experience

	c.publish(Event{Kind: EventInteraction, At: now, Payload: res})
	c.log.Info("interaction", "kind", kind, "satiety", c.attrs.Satiety, "mood", c.attrs.Mood)
	c.persistLocked(now)
	return res, nil
}

// InteractionReady reports whether kind can run now and the wait if not.
func (c *Coordinator) InteractionReady(kind string) (bool, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	spec, ok := c.cfg.Interactions[kind]
	if !ok {
		return false, 0, fmt.Errorf("%w: %q", ErrUnknownInteraction, kind)
	}
	now := c.clock.Now()
	if c.actGate.Ready(kind, now, spec.Cooldown) {
		return true, 0, nil
	}
	return false, c.actGate.Remaining(kind, now, spec.Cooldown), nil
}

// InteractionStatus describes one care action and its current readiness.
type InteractionStatus struct {
	Kind       string        `json:"kind"`
	Ready      bool          `json:"ready"`
	Remaining  time.Duration `json:"remaining"`
	Cooldown   time.Duration `json:"cooldown"`
	Effects    Effects       `json:"effects"`
	Experience int64         `json:"experience"`
}

// Interactions lists every configured care action with its readiness,
// sorted by kind for stable output.
func (c *Coordinator) Interactions() []InteractionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	out := make([]InteractionStatus, 0, len(c.cfg.Interactions))
	for kind, spec := range c.cfg.Interactions {
		remaining := c.actGate.Remaining(kind, now, spec.Cooldown)
		out = append(out, InteractionStatus{
			Kind:       kind,
			Ready:      remaining == 0,
			Remaining:  remaining,
			Cooldown:   spec.Cooldown,
			Effects:    spec.Effects,
			Experience: spec.Experience,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// StartWork starts a task on user request. The idle trigger does not apply,
// the fitness and cap guards do.
func (c *Coordinator) StartWork() (*WorkTask, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.applyDecayLocked(now)
	if err := c.work.CanStart(c.attrs, now); err != nil {
		return nil, err
	}
	task := c.startWorkLocked(now)
	if task == nil {
		return nil, ErrWorkActive
	}
	c.persistLocked(now)
	return task, nil
}

// CancelWork drops the active task without reward.
func (c *Coordinator) CancelWork() (*WorkTask, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	task := c.cancelWorkLocked(c.clock.Now())
	if task == nil {
		return nil, ErrNoWork
	}
	return task, nil
}

func (c *Coordinator) cancelWorkLocked(now time.Time) *WorkTask {
	task := c.work.Cancel()
	if task == nil {
		return nil
	}
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	c.publish(Event{Kind: EventWorkCancelled, At: now, Payload: task})
	c.log.Info("work cancelled", "task", task.ID, "tier", task.Tier)
	return task
}

// WorkStatus reports the scheduler state.
func (c *Coordinator) WorkStatus() WorkStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workStatusLocked(c.clock.Now())
}

func (c *Coordinator) workStatusLocked(now time.Time) WorkStatus {
	st := WorkStatus{
		Active:      c.work.Active(),
		WorkedToday: c.work.WorkedToday(now),
		DailyCap:    c.cfg.AutoWork.DailyCap,
	}
	if st.Active != nil {
		if rem := st.Active.EndsAt.Sub(now); rem > 0 {
			st.Remaining = rem
		}
	}
	return st
}

// RespondToRequest settles the outstanding proactive request. Accepting
// clears the decline streak; declining lengthens it, which stretches the
// next request interval.
func (c *Coordinator) RespondToRequest(id string, accepted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil || c.pending.ID != id {
		return fmt.Errorf("%w: %q", ErrUnknownRequest, id)
	}
	c.pending.Responded = true
	if accepted {
		c.declineCount = 0
	} else {
		c.declineCount++
	}
	c.log.Info("request response", "id", id, "accepted", accepted, "declines", c.declineCount)
	c.pending = nil
	c.persistLocked(c.clock.Now())
	return nil
}

// PendingRequest returns a copy of the outstanding request, if any.
func (c *Coordinator) PendingRequest() *ProactiveRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	req := *c.pending
	return &req
}

// Status assembles the full snapshot, applying any decay accrued since the
// last pass so reads always reflect elapsed time.
func (c *Coordinator) Status() StatusReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.applyDecayLocked(now)

	coins, xp, err := c.ledger.Balance()
	if err != nil {
		c.log.Warn("wallet read failed", "error", err)
	}

	rep := StatusReport{
		Name:       c.name,
		At:         now,
		Attributes: c.attrs,
		Sick:       c.attrs.Sick(),
		Coins:      coins,
		Experience: xp,
		Intimacy:   c.intimacyLocked(),
		Cooldowns:  make(map[string]time.Duration, len(c.cfg.Interactions)),
		Work:       c.workStatusLocked(now),
	}
	if c.pending != nil {
		req := *c.pending
		rep.Request = &req
	}
	for kind, spec := range c.cfg.Interactions {
		rep.Cooldowns[kind] = c.actGate.Remaining(kind, now, spec.Cooldown)
	}
	rep.Emotion, rep.Summary, rep.Warnings = c.describeLocked()
	return rep
}

// describeLocked maps the gauges to an emotion, a one-line summary and the
// list of active warnings, most severe first.
func (c *Coordinator) describeLocked() (string, string, []string) {
	a := c.attrs

	var warnings []string
	if a.Satiety < 30 {
		warnings = append(warnings, "hungry")
	}
	if a.Energy < 25 {
		warnings = append(warnings, "tired")
	}
	if a.Mood < 30 {
		warnings = append(warnings, "sad")
	}
	if a.Hygiene < 30 {
		warnings = append(warnings, "dirty")
	}
	if a.Boredom > 80 {
		warnings = append(warnings, "bored")
	}

	switch {
	case a.Sick():
		return "sick", c.name + " is sick and needs care on several fronts.", warnings
	case a.Satiety < 15:
		return "desperate", c.name + " is starving.", warnings
	case a.Mood < 15:
		return "miserable", c.name + " is miserable and needs attention.", warnings
	case a.Satiety < 30:
		return "hungry", c.name + " is getting hungry.", warnings
	case a.Energy < 25:
		return "tired", c.name + " is worn out.", warnings
	case a.Mood < 30:
		return "sad", c.name + " is feeling low.", warnings
	case a.Hygiene < 30:
		return "dirty", c.name + " could use a wash.", warnings
	case a.Boredom > 80:
		return "bored", c.name + " is thoroughly bored.", warnings
	default:
		return "happy", c.name + " is doing fine.", warnings
	}
}

func (c *Coordinator) persistLocked(now time.Time) {
	st := PetState{
		Name:          c.name,
		Attributes:    c.attrs,
		DeclineCount:  c.declineCount,
		LastDecayAt:   c.lastDecayAt,
		LastRequestAt: c.lastRequestAt,
		UpdatedAt:     now,
	}
	if err := c.store.SaveState(st); err != nil {
		c.log.Warn("pet state save failed", "error", err)
	}
}

func (c *Coordinator) publish(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Debug("event dropped", "kind", ev.Kind)
	}
}

// Notify pushes a free-form reminder into the event stream. Scheduled
// notification tasks land here.
func (c *Coordinator) Notify(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	c.publish(Event{Kind: EventNotice, At: now, Payload: map[string]string{"message": message}})
	c.log.Info("notice", "message", message)
}

// Close stops the completion timer and writes a final snapshot.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	c.persistLocked(c.clock.Now())
	return nil
}
