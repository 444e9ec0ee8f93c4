// Package sched runs user-defined scheduled tasks against the pet engine:
// reminders, recurring care actions and work kicks. Tasks live in the
// store; a poll loop picks up whatever is due and recomputes the next run.
package sched

import (
	"errors"
	"fmt"
	"time"

	rcron "github.com/robfig/cron/v3"
)

var ErrNotFound = errors.New("task not found")

// TriggerKind says when a task fires.
type TriggerKind string

const (
	TriggerInterval TriggerKind = "interval"
	TriggerCron     TriggerKind = "cron"
	TriggerManual   TriggerKind = "manual"
)

// ActionKind says what a task does when it fires.
type ActionKind string

const (
	// ActionNotify pushes the payload into the event stream as a notice.
	ActionNotify ActionKind = "notify"
	// ActionCare performs the care interaction named by the payload.
	ActionCare ActionKind = "care"
	// ActionWork asks the engine to start a work task.
	ActionWork ActionKind = "work"
)

// Task is one scheduled job. Interval tasks use Every, cron tasks use
// CronExpr (standard five-field syntax), manual tasks only run on demand.
type Task struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Action      ActionKind    `json:"action"`
	Payload     string        `json:"payload,omitempty"`
	Trigger     TriggerKind   `json:"trigger"`
	Every       time.Duration `json:"every,omitempty"`
	CronExpr    string        `json:"cron_expr,omitempty"`
	Enabled     bool          `json:"enabled"`
	CreatedAt   time.Time     `json:"created_at"`
	LastRunAt   time.Time     `json:"last_run_at"`
	NextRunAt   time.Time     `json:"next_run_at"`
}

// Execution is one recorded task run.
type Execution struct {
	ID         int64     `json:"id"`
	TaskID     string    `json:"task_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// TaskStore is the persistence surface the scheduler depends on.
type TaskStore interface {
	ListTasks() ([]Task, error)
	GetTask(id string) (Task, error)
	SaveTask(Task) error
	DeleteTask(id string) error
	DueTasks(now time.Time, limit int) ([]Task, error)
	AppendExecution(Execution) error
	Executions(taskID string, limit int) ([]Execution, error)
}

// Validate checks the task definition.
func (t Task) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("task name must not be empty")
	}
	switch t.Action {
	case ActionNotify:
		if t.Payload == "" {
			return fmt.Errorf("notify task needs a message payload")
		}
	case ActionCare:
		if t.Payload == "" {
			return fmt.Errorf("care task needs an interaction payload")
		}
	case ActionWork:
	default:
		return fmt.Errorf("unknown action %q", t.Action)
	}
	switch t.Trigger {
	case TriggerInterval:
		if t.Every <= 0 {
			return fmt.Errorf("interval task needs a positive period")
		}
	case TriggerCron:
		if _, err := rcron.ParseStandard(t.CronExpr); err != nil {
			return fmt.Errorf("cron expression %q: %w", t.CronExpr, err)
		}
	case TriggerManual:
	default:
		return fmt.Errorf("unknown trigger %q", t.Trigger)
	}
	return nil
}

// nextRun computes when the task should fire after now. Manual tasks never
// self-schedule.
func (t Task) nextRun(now time.Time) (time.Time, error) {
	switch t.Trigger {
	case TriggerInterval:
		return now.Add(t.Every), nil
	case TriggerCron:
		sched, err := rcron.ParseStandard(t.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("cron expression %q: %w", t.CronExpr, err)
		}
		return sched.Next(now), nil
	default:
		return time.Time{}, nil
	}
}
