// Package persistence provides SQLite-based storage for the pet snapshot,
// the wallet, work history and scheduled tasks.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tamasan/deskpet/internal/pet"
	"github.com/tamasan/deskpet/internal/sched"
)

// Store wraps a SQLite connection. It backs the coordinator's state,
// ledger and history collaborators and the scheduler's task store.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pet_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		name TEXT NOT NULL,
		satiety REAL NOT NULL,
		energy REAL NOT NULL,
		hygiene REAL NOT NULL,
		mood REAL NOT NULL,
		boredom REAL NOT NULL,
		last_action TEXT NOT NULL DEFAULT '',
		last_action_at INTEGER NOT NULL DEFAULT 0,
		decline_count INTEGER NOT NULL DEFAULT 0,
		last_decay_at INTEGER NOT NULL DEFAULT 0,
		last_request_at INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS wallet (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		coins INTEGER NOT NULL DEFAULT 0,
		experience INTEGER NOT NULL DEFAULT 0
	);
	INSERT OR IGNORE INTO wallet (id, coins, experience) VALUES (1, 0, 0);

	CREATE TABLE IF NOT EXISTS wallet_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		coins INTEGER NOT NULL,
		experience INTEGER NOT NULL,
		reason TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS work_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		tier TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		coins INTEGER NOT NULL,
		experience INTEGER NOT NULL,
		mood_cost REAL NOT NULL,
		energy_cost REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '',
		trigger_kind TEXT NOT NULL,
		interval_ms INTEGER NOT NULL DEFAULT 0,
		cron_expr TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		last_run_at INTEGER NOT NULL DEFAULT 0,
		next_run_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS task_executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		status TEXT NOT NULL,
		output TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_finished ON work_history(finished_at);
	CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(enabled, next_run_at);
	CREATE INDEX IF NOT EXISTS idx_executions_task ON task_executions(task_id);

	INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', '1');
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Millisecond timestamps, zero meaning "never".
func toMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

type petRow struct {
	Name          string  `db:"name"`
	Satiety       float64 `db:"satiety"`
	Energy        float64 `db:"energy"`
	Hygiene       float64 `db:"hygiene"`
	Mood          float64 `db:"mood"`
	Boredom       float64 `db:"boredom"`
	LastAction    string  `db:"last_action"`
	LastActionAt  int64   `db:"last_action_at"`
	DeclineCount  int     `db:"decline_count"`
	LastDecayAt   int64   `db:"last_decay_at"`
	LastRequestAt int64   `db:"last_request_at"`
	UpdatedAt     int64   `db:"updated_at"`
}

// LoadState reads the single pet snapshot, pet.ErrNoState when empty.
func (s *Store) LoadState() (pet.PetState, error) {
	var row petRow
	err := s.conn.Get(&row, "SELECT name, satiety, energy, hygiene, mood, boredom, last_action, last_action_at, decline_count, last_decay_at, last_request_at, updated_at FROM pet_state WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return pet.PetState{}, pet.ErrNoState
	}
	if err != nil {
		return pet.PetState{}, fmt.Errorf("load pet state: %w", err)
	}

	return pet.PetState{
		Name: row.Name,
		Attributes: pet.Attributes{
			Satiety:      row.Satiety,
			Energy:       row.Energy,
			Hygiene:      row.Hygiene,
			Mood:         row.Mood,
			Boredom:      row.Boredom,
			LastAction:   row.LastAction,
			LastActionAt: fromMs(row.LastActionAt),
		},
		DeclineCount:  row.DeclineCount,
		LastDecayAt:   fromMs(row.LastDecayAt),
		LastRequestAt: fromMs(row.LastRequestAt),
		UpdatedAt:     fromMs(row.UpdatedAt),
	}, nil
}

// SaveState writes the pet snapshot (full replace of the single row).
func (s *Store) SaveState(st pet.PetState) error {
	_, err := s.conn.Exec(`INSERT OR REPLACE INTO pet_state
		(id, name, satiety, energy, hygiene, mood, boredom,
		 last_action, last_action_at, decline_count, last_decay_at, last_request_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.Name, st.Attributes.Satiety, st.Attributes.Energy, st.Attributes.Hygiene,
		st.Attributes.Mood, st.Attributes.Boredom,
		st.Attributes.LastAction, toMs(st.Attributes.LastActionAt),
		st.DeclineCount, toMs(st.LastDecayAt), toMs(st.LastRequestAt), toMs(st.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save pet state: %w", err)
	}
	return nil
}

func (s *Store) credit(coins, experience int64, reason string) error {
	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"UPDATE wallet SET coins = coins + ?, experience = experience + ? WHERE id = 1",
		coins, experience,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO wallet_entries (at, coins, experience, reason) VALUES (?, ?, ?, ?)",
		time.Now().UnixMilli(), coins, experience, reason,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// CreditCoins adds coins to the wallet and journals the change.
func (s *Store) CreditCoins(amount int64, reason string) error {
	if err := s.credit(amount, 0, reason); err != nil {
		return fmt.Errorf("credit coins: %w", err)
	}
	return nil
}

// CreditExperience adds experience to the wallet and journals the change.
func (s *Store) CreditExperience(amount int64, reason string) error {
	if err := s.credit(0, amount, reason); err != nil {
		return fmt.Errorf("credit experience: %w", err)
	}
	return nil
}

// Balance returns the current wallet totals.
func (s *Store) Balance() (int64, int64, error) {
	var row struct {
		Coins      int64 `db:"coins"`
		Experience int64 `db:"experience"`
	}
	if err := s.conn.Get(&row, "SELECT coins, experience FROM wallet WHERE id = 1"); err != nil {
		return 0, 0, fmt.Errorf("read wallet: %w", err)
	}
	return row.Coins, row.Experience, nil
}

// LedgerEntry is one journaled wallet change.
type LedgerEntry struct {
	At         time.Time `json:"at"`
	Coins      int64     `json:"coins"`
	Experience int64     `json:"experience"`
	Reason     string    `json:"reason"`
}

// RecentLedger returns the newest wallet journal entries.
func (s *Store) RecentLedger(limit int) ([]LedgerEntry, error) {
	var rows []struct {
		At         int64  `db:"at"`
		Coins      int64  `db:"coins"`
		Experience int64  `db:"experience"`
		Reason     string `db:"reason"`
	}
	err := s.conn.Select(&rows,
		"SELECT at, coins, experience, reason FROM wallet_entries ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	out := make([]LedgerEntry, len(rows))
	for i, r := range rows {
		out[i] = LedgerEntry{At: fromMs(r.At), Coins: r.Coins, Experience: r.Experience, Reason: r.Reason}
	}
	return out, nil
}

type workRow struct {
	TaskID     string  `db:"task_id"`
	Tier       string  `db:"tier"`
	StartedAt  int64   `db:"started_at"`
	FinishedAt int64   `db:"finished_at"`
	Coins      int64   `db:"coins"`
	Experience int64   `db:"experience"`
	MoodCost   float64 `db:"mood_cost"`
	EnergyCost float64 `db:"energy_cost"`
}

// AppendWork records one completed work task.
func (s *Store) AppendWork(rec pet.WorkRecord) error {
	_, err := s.conn.Exec(`INSERT INTO work_history
		(task_id, tier, started_at, finished_at, coins, experience, mood_cost, energy_cost)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TaskID, string(rec.Tier), toMs(rec.StartedAt), toMs(rec.FinishedAt),
		rec.Coins, rec.Experience, rec.MoodCost, rec.EnergyCost,
	)
	if err != nil {
		return fmt.Errorf("append work history: %w", err)
	}
	return nil
}

// RecentWork returns the newest completed work tasks.
func (s *Store) RecentWork(limit int) ([]pet.WorkRecord, error) {
	var rows []workRow
	err := s.conn.Select(&rows,
		"SELECT task_id, tier, started_at, finished_at, coins, experience, mood_cost, energy_cost FROM work_history ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("read work history: %w", err)
	}

	out := make([]pet.WorkRecord, len(rows))
	for i, r := range rows {
		out[i] = pet.WorkRecord{
			TaskID:     r.TaskID,
			Tier:       pet.WorkTier(r.Tier),
			StartedAt:  fromMs(r.StartedAt),
			FinishedAt: fromMs(r.FinishedAt),
			Coins:      r.Coins,
			Experience: r.Experience,
			MoodCost:   r.MoodCost,
			EnergyCost: r.EnergyCost,
		}
	}
	return out, nil
}

type taskRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Action      string `db:"action"`
	Payload     string `db:"payload"`
	TriggerKind string `db:"trigger_kind"`
	IntervalMs  int64  `db:"interval_ms"`
	CronExpr    string `db:"cron_expr"`
	Enabled     int    `db:"enabled"`
	CreatedAt   int64  `db:"created_at"`
	LastRunAt   int64  `db:"last_run_at"`
	NextRunAt   int64  `db:"next_run_at"`
}

func (r taskRow) task() sched.Task {
	return sched.Task{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Action:      sched.ActionKind(r.Action),
		Payload:     r.Payload,
		Trigger:     sched.TriggerKind(r.TriggerKind),
		Every:       time.Duration(r.IntervalMs) * time.Millisecond,
		CronExpr:    r.CronExpr,
		Enabled:     r.Enabled != 0,
		CreatedAt:   fromMs(r.CreatedAt),
		LastRunAt:   fromMs(r.LastRunAt),
		NextRunAt:   fromMs(r.NextRunAt),
	}
}

const taskColumns = "id, name, description, action, payload, trigger_kind, interval_ms, cron_expr, enabled, created_at, last_run_at, next_run_at"

// ListTasks returns every scheduled task, newest first.
func (s *Store) ListTasks() ([]sched.Task, error) {
	var rows []taskRow
	err := s.conn.Select(&rows, "SELECT "+taskColumns+" FROM tasks ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	out := make([]sched.Task, len(rows))
	for i, r := range rows {
		out[i] = r.task()
	}
	return out, nil
}

// GetTask returns one task by id, sched.ErrNotFound when missing.
func (s *Store) GetTask(id string) (sched.Task, error) {
	var row taskRow
	err := s.conn.Get(&row, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return sched.Task{}, sched.ErrNotFound
	}
	if err != nil {
		return sched.Task{}, fmt.Errorf("get task: %w", err)
	}
	return row.task(), nil
}

// SaveTask inserts or replaces a task definition.
func (s *Store) SaveTask(t sched.Task) error {
	enabled := 0
	if t.Enabled {
		enabled = 1
	}
	_, err := s.conn.Exec(`INSERT OR REPLACE INTO tasks
		(id, name, description, action, payload, trigger_kind, interval_ms, cron_expr, enabled, created_at, last_run_at, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, string(t.Action), t.Payload, string(t.Trigger),
		t.Every.Milliseconds(), t.CronExpr, enabled,
		toMs(t.CreatedAt), toMs(t.LastRunAt), toMs(t.NextRunAt),
	)
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

// DeleteTask removes a task and its executions.
func (s *Store) DeleteTask(id string) error {
	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sched.ErrNotFound
	}
	if _, err := tx.Exec("DELETE FROM task_executions WHERE task_id = ?", id); err != nil {
		return fmt.Errorf("delete executions: %w", err)
	}

	return tx.Commit()
}

// DueTasks returns enabled tasks whose next run has arrived, earliest
// first, bounded by limit.
func (s *Store) DueTasks(now time.Time, limit int) ([]sched.Task, error) {
	var rows []taskRow
	err := s.conn.Select(&rows,
		"SELECT "+taskColumns+" FROM tasks WHERE enabled = 1 AND next_run_at > 0 AND next_run_at <= ? ORDER BY next_run_at ASC LIMIT ?",
		toMs(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("due tasks: %w", err)
	}

	out := make([]sched.Task, len(rows))
	for i, r := range rows {
		out[i] = r.task()
	}
	return out, nil
}

// AppendExecution records one task run.
func (s *Store) AppendExecution(e sched.Execution) error {
	_, err := s.conn.Exec(`INSERT INTO task_executions
		(task_id, started_at, finished_at, status, output, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.TaskID, toMs(e.StartedAt), toMs(e.FinishedAt), e.Status, e.Output, e.Error,
	)
	if err != nil {
		return fmt.Errorf("append execution: %w", err)
	}
	return nil
}

// Executions returns recent runs of a task, newest first.
func (s *Store) Executions(taskID string, limit int) ([]sched.Execution, error) {
	var rows []struct {
		ID         int64  `db:"id"`
		TaskID     string `db:"task_id"`
		StartedAt  int64  `db:"started_at"`
		FinishedAt int64  `db:"finished_at"`
		Status     string `db:"status"`
		Output     string `db:"output"`
		Error      string `db:"error"`
	}
	err := s.conn.Select(&rows,
		"SELECT id, task_id, started_at, finished_at, status, output, error FROM task_executions WHERE task_id = ? ORDER BY id DESC LIMIT ?",
		taskID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("read executions: %w", err)
	}

	out := make([]sched.Execution, len(rows))
	for i, r := range rows {
		out[i] = sched.Execution{
			ID:         r.ID,
			TaskID:     r.TaskID,
			StartedAt:  fromMs(r.StartedAt),
			FinishedAt: fromMs(r.FinishedAt),
			Status:     r.Status,
			Output:     r.Output,
			Error:      r.Error,
		}
	}
	return out, nil
}

// SetMeta stores a key-value pair.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (s *Store) GetMeta(key string) (string, error) {
	var value string
	err := s.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
