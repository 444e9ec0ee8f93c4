package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tamasan/deskpet/internal/pet"
)

const (
	defaultPoll = time.Second
	// At most this many due tasks run per poll pass; the rest stay due and
	// are picked up next second.
	maxDuePerPass = 20

	executionLimitDefault = 50
	executionLimitMax     = 200
)

// Engine is the slice of the pet coordinator that scheduled actions drive.
type Engine interface {
	Notify(message string)
	Interact(kind string) (pet.InteractionResult, error)
	StartWork() (*pet.WorkTask, error)
}

// Service polls the store for due tasks and executes them.
type Service struct {
	store  TaskStore
	engine Engine
	log    *slog.Logger
	clock  pet.Clock
	poll   time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService wires the scheduler. A nil clock falls back to the system
// clock; poll <= 0 falls back to one second.
func NewService(store TaskStore, engine Engine, logger *slog.Logger, clock pet.Clock, poll time.Duration) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = pet.SystemClock{}
	}
	if poll <= 0 {
		poll = defaultPoll
	}
	return &Service{store: store, engine: engine, log: logger, clock: clock, poll: poll}
}

// Start launches the poll loop. It returns immediately; the loop runs until
// ctx is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("scheduler already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx)
	s.log.Info("scheduler started", "poll", s.poll)
	return nil
}

// Stop halts the poll loop and waits for the in-flight pass to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info("scheduler stopped")
}

func (s *Service) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue()
		}
	}
}

// runDue executes every currently due task, bounded per pass.
func (s *Service) runDue() {
	now := s.clock.Now()
	due, err := s.store.DueTasks(now, maxDuePerPass)
	if err != nil {
		s.log.Warn("due task query failed", "error", err)
		return
	}
	for _, task := range due {
		s.execute(task, now)
	}
}

// execute runs one task, records the execution and reschedules the task.
// A failing action is recorded but never stops the scheduler.
func (s *Service) execute(task Task, now time.Time) Execution {
	exec := Execution{TaskID: task.ID, StartedAt: now, Status: "ok"}

	output, err := s.runAction(task)
	exec.FinishedAt = s.clock.Now()
	exec.Output = output
	if err != nil {
		exec.Status = "error"
		exec.Error = err.Error()
		s.log.Warn("task failed", "task", task.Name, "action", task.Action, "error", err)
	} else {
		s.log.Info("task ran", "task", task.Name, "action", task.Action, "output", output)
	}

	if err := s.store.AppendExecution(exec); err != nil {
		s.log.Warn("execution record failed", "task", task.Name, "error", err)
	}

	task.LastRunAt = now
	next, err := task.nextRun(now)
	if err != nil {
		s.log.Warn("reschedule failed, disabling task", "task", task.Name, "error", err)
		task.Enabled = false
		next = time.Time{}
	}
	task.NextRunAt = next
	if err := s.store.SaveTask(task); err != nil {
		s.log.Warn("task update failed", "task", task.Name, "error", err)
	}
	return exec
}

func (s *Service) runAction(task Task) (string, error) {
	switch task.Action {
	case ActionNotify:
		s.engine.Notify(task.Payload)
		return "notified", nil
	case ActionCare:
		res, err := s.engine.Interact(task.Payload)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("performed %s (+%d xp)", res.Kind, res.Experience), nil
	case ActionWork:
		t, err := s.engine.StartWork()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("started %s work until %s", t.Tier, t.EndsAt.Format(time.RFC3339)), nil
	default:
		return "", fmt.Errorf("unknown action %q", task.Action)
	}
}

// Create validates and stores a new task, scheduling its first run.
func (s *Service) Create(task Task) (Task, error) {
	if err := task.Validate(); err != nil {
		return Task{}, err
	}
	now := s.clock.Now()
	task.ID = uuid.NewString()
	task.Enabled = true
	task.CreatedAt = now
	task.LastRunAt = time.Time{}

	next, err := task.nextRun(now)
	if err != nil {
		return Task{}, err
	}
	task.NextRunAt = next

	if err := s.store.SaveTask(task); err != nil {
		return Task{}, fmt.Errorf("save task: %w", err)
	}
	s.log.Info("task created", "task", task.Name, "trigger", task.Trigger, "next_run", task.NextRunAt)
	return task, nil
}

// Update replaces the definition of an existing task and reschedules it.
func (s *Service) Update(task Task) (Task, error) {
	if err := task.Validate(); err != nil {
		return Task{}, err
	}
	existing, err := s.store.GetTask(task.ID)
	if err != nil {
		return Task{}, err
	}
	task.CreatedAt = existing.CreatedAt
	task.LastRunAt = existing.LastRunAt

	next, err := task.nextRun(s.clock.Now())
	if err != nil {
		return Task{}, err
	}
	task.NextRunAt = next

	if err := s.store.SaveTask(task); err != nil {
		return Task{}, fmt.Errorf("save task: %w", err)
	}
	return task, nil
}

// Delete removes a task.
func (s *Service) Delete(id string) error {
	return s.store.DeleteTask(id)
}

// Enable toggles a task. Re-enabling schedules the next run from now.
func (s *Service) Enable(id string, enabled bool) (Task, error) {
	task, err := s.store.GetTask(id)
	if err != nil {
		return Task{}, err
	}
	task.Enabled = enabled
	if enabled {
		next, err := task.nextRun(s.clock.Now())
		if err != nil {
			return Task{}, err
		}
		task.NextRunAt = next
	}
	if err := s.store.SaveTask(task); err != nil {
		return Task{}, fmt.Errorf("save task: %w", err)
	}
	return task, nil
}

// RunNow executes a task immediately, regardless of trigger or enablement.
func (s *Service) RunNow(id string) (Execution, error) {
	task, err := s.store.GetTask(id)
	if err != nil {
		return Execution{}, err
	}
	return s.execute(task, s.clock.Now()), nil
}

// List returns every stored task.
func (s *Service) List() ([]Task, error) {
	return s.store.ListTasks()
}

// Get returns one task by id.
func (s *Service) Get(id string) (Task, error) {
	return s.store.GetTask(id)
}

// History returns recent executions of a task, newest first. The limit is
// clamped to [1, 200], defaulting to 50.
func (s *Service) History(taskID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = executionLimitDefault
	}
	if limit > executionLimitMax {
		limit = executionLimitMax
	}
	return s.store.Executions(taskID, limit)
}
