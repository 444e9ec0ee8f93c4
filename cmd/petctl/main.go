// Command petctl talks to a running deskpetd over its HTTP API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/spf13/cobra"

	"github.com/tamasan/deskpet/internal/config"
	"github.com/tamasan/deskpet/internal/persistence"
	"github.com/tamasan/deskpet/internal/pet"
	"github.com/tamasan/deskpet/internal/sched"
)

var (
	addrFlag  string
	tokenFlag string

	taskName    string
	taskDesc    string
	taskAction  string
	taskPayload string
	taskEvery   string
	taskCron    string

	limitFlag   int
	declineFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "petctl",
	Short: "petctl - check on and care for your desk pet",
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the pet's current state",
	RunE:  runStatus,
}

var interactCmd = &cobra.Command{
	Use:   "interact <kind>",
	Short: "Perform a care action (feed, play, wash, stroke, rest)",
	Args:  cobra.ExactArgs(1),
	RunE:  runInteract,
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Force an engine tick",
	RunE:  runTick,
}

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Manage the pet's work",
}

var workStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show work status",
	RunE:  runWorkStatus,
}

var workStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Send the pet to work",
	RunE:  runWorkStart,
}

var workCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Call the pet back from work",
	RunE:  runWorkCancel,
}

var respondCmd = &cobra.Command{
	Use:   "respond <request-id>",
	Short: "Answer the pet's pending request (accepts unless --decline)",
	Args:  cobra.ExactArgs(1),
	RunE:  runRespond,
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage scheduled tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled tasks",
	RunE:  runTaskList,
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a scheduled task",
	RunE:  runTaskAdd,
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRm,
}

var taskRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Run a task immediately",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRun,
}

var taskEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a task",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setTaskEnabled(args[0], true) },
}

var taskDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a task",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setTaskEnabled(args[0], false) },
}

var taskLogCmd = &cobra.Command{
	Use:   "log <id>",
	Short: "Show recent runs of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskLog,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show completed work",
	RunE:  runHistory,
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show recent wallet changes",
	RunE:  runLedger,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live events from the daemon",
	RunE:  runWatch,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "daemon address (default $DESKPET_ADDR or "+config.DefaultAddr+")")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "bearer token (default $DESKPET_AUTH_TOKEN)")

	taskAddCmd.Flags().StringVar(&taskName, "name", "", "task name")
	taskAddCmd.Flags().StringVar(&taskDesc, "desc", "", "task description")
	taskAddCmd.Flags().StringVar(&taskAction, "action", "notify", "action: notify, care or work")
	taskAddCmd.Flags().StringVar(&taskPayload, "payload", "", "notify message or care interaction kind")
	taskAddCmd.Flags().StringVar(&taskEvery, "every", "", "repeat interval, e.g. 45m or 4h")
	taskAddCmd.Flags().StringVar(&taskCron, "cron", "", "cron expression, e.g. \"0 8 * * *\"")

	taskLogCmd.Flags().IntVar(&limitFlag, "limit", 20, "max entries")
	historyCmd.Flags().IntVar(&limitFlag, "limit", 20, "max entries")
	ledgerCmd.Flags().IntVar(&limitFlag, "limit", 20, "max entries")

	respondCmd.Flags().BoolVar(&declineFlag, "decline", false, "decline instead of accepting")

	workCmd.AddCommand(workStatusCmd, workStartCmd, workCancelCmd)
	taskCmd.AddCommand(taskListCmd, taskAddCmd, taskRmCmd, taskRunCmd, taskEnableCmd, taskDisableCmd, taskLogCmd)
	rootCmd.AddCommand(statusCmd, interactCmd, tickCmd, workCmd, respondCmd, taskCmd, historyCmd, ledgerCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func daemonAddr() string {
	addr := addrFlag
	if addr == "" {
		addr = os.Getenv("DESKPET_ADDR")
	}
	if addr == "" {
		addr = config.DefaultAddr
	}
	return addr
}

func authToken() string {
	if tokenFlag != "" {
		return tokenFlag
	}
	return os.Getenv("DESKPET_AUTH_TOKEN")
}

// call performs one API request and decodes the JSON response into out.
// Non-2xx responses surface the server's error message.
func call(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, "http://"+daemonAddr()+"/api/v1"+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := authToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("is deskpetd running at %s? %w", daemonAddr(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func runStatus(cmd *cobra.Command, args []string) error {
	var report pet.StatusReport
	if err := call(http.MethodGet, "/status", nil, &report); err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n", report.Name, report.Emotion)
	fmt.Printf("  %s\n", report.Summary)
	fmt.Printf("Satiety: %.0f  Energy: %.0f  Hygiene: %.0f  Mood: %.0f  Boredom: %.0f\n",
		report.Attributes.Satiety, report.Attributes.Energy, report.Attributes.Hygiene,
		report.Attributes.Mood, report.Attributes.Boredom)
	if report.Sick {
		fmt.Println("Sick: yes (needs care)")
	}
	fmt.Printf("Coins: %d  XP: %d  Intimacy: %.2f\n", report.Coins, report.Experience, report.Intimacy)

	if report.Work.Active != nil {
		fmt.Printf("Work: %s, done in %s\n", report.Work.Active.Tier, report.Work.Remaining.Round(time.Second))
	} else {
		fmt.Printf("Work: idle (today %s of %s)\n",
			report.Work.WorkedToday.Round(time.Minute), report.Work.DailyCap)
	}

	if report.Request != nil {
		fmt.Printf("Request [%s]: %s (try: petctl respond %s)\n",
			report.Request.Type, report.Request.Message, report.Request.ID)
	}
	if len(report.Warnings) > 0 {
		fmt.Printf("Warnings: %s\n", strings.Join(report.Warnings, ", "))
	}

	var waiting []string
	for kind, remaining := range report.Cooldowns {
		if remaining > 0 {
			waiting = append(waiting, fmt.Sprintf("%s %s", kind, remaining.Round(time.Second)))
		}
	}
	if len(waiting) > 0 {
		fmt.Printf("Cooldowns: %s\n", strings.Join(waiting, ", "))
	}
	return nil
}

func runInteract(cmd *cobra.Command, args []string) error {
	var res pet.InteractionResult
	if err := call(http.MethodPost, "/interact", map[string]string{"kind": args[0]}, &res); err != nil {
		return err
	}

	fmt.Printf("%s done (+%d xp)\n", res.Kind, res.Experience)
	if res.CancelledWork != nil {
		fmt.Printf("  interrupted %s work\n", res.CancelledWork.Tier)
	}
	fmt.Printf("Satiety: %.0f  Energy: %.0f  Hygiene: %.0f  Mood: %.0f  Boredom: %.0f\n",
		res.Attributes.Satiety, res.Attributes.Energy, res.Attributes.Hygiene,
		res.Attributes.Mood, res.Attributes.Boredom)
	return nil
}

func runTick(cmd *cobra.Command, args []string) error {
	var res pet.TickResult
	if err := call(http.MethodPost, "/tick", nil, &res); err != nil {
		return err
	}

	fmt.Printf("ticked at %s\n", res.At.Format(time.RFC3339))
	if res.Alert != nil {
		fmt.Printf("alert: %s\n", res.Alert.Message)
	}
	if res.Request != nil {
		fmt.Printf("request [%s]: %s\n", res.Request.Type, res.Request.Message)
	}
	if res.StartedWork != nil {
		fmt.Printf("started %s work\n", res.StartedWork.Tier)
	}
	return nil
}

func runWorkStatus(cmd *cobra.Command, args []string) error {
	var status pet.WorkStatus
	if err := call(http.MethodGet, "/work", nil, &status); err != nil {
		return err
	}

	if status.Active != nil {
		fmt.Printf("working: %s, done in %s (reward %d coins, %d xp)\n",
			status.Active.Tier, status.Remaining.Round(time.Second),
			status.Active.RewardCoins, status.Active.RewardXP)
	} else {
		fmt.Println("idle")
	}
	fmt.Printf("today: %s of %s\n", status.WorkedToday.Round(time.Minute), status.DailyCap)
	return nil
}

func runWorkStart(cmd *cobra.Command, args []string) error {
	var task pet.WorkTask
	if err := call(http.MethodPost, "/work", nil, &task); err != nil {
		return err
	}
	fmt.Printf("started %s work, back at %s\n", task.Tier, task.EndsAt.Local().Format("15:04"))
	return nil
}

func runWorkCancel(cmd *cobra.Command, args []string) error {
	if err := call(http.MethodDelete, "/work", nil, nil); err != nil {
		return err
	}
	fmt.Println("work cancelled")
	return nil
}

func runRespond(cmd *cobra.Command, args []string) error {
	accepted := !declineFlag
	err := call(http.MethodPost, "/request/"+args[0]+"/respond", map[string]bool{"accepted": accepted}, nil)
	if err != nil {
		return err
	}
	if accepted {
		fmt.Println("accepted")
	} else {
		fmt.Println("declined")
	}
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	var list struct {
		Tasks []sched.Task `json:"tasks"`
	}
	if err := call(http.MethodGet, "/tasks", nil, &list); err != nil {
		return err
	}

	if len(list.Tasks) == 0 {
		fmt.Println("no tasks")
		return nil
	}
	for _, t := range list.Tasks {
		state := "on"
		if !t.Enabled {
			state = "off"
		}
		next := "-"
		if !t.NextRunAt.IsZero() {
			next = t.NextRunAt.Local().Format("Jan 2 15:04")
		}
		fmt.Printf("%s  [%s] %-8s %-20s next %s\n", t.ID, state, t.Action, t.Name, next)
	}
	return nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	task := sched.Task{
		Name:        taskName,
		Description: taskDesc,
		Action:      sched.ActionKind(taskAction),
		Payload:     taskPayload,
		Trigger:     sched.TriggerManual,
	}
	if taskEvery != "" {
		every, err := time.ParseDuration(taskEvery)
		if err != nil {
			return fmt.Errorf("bad --every: %w", err)
		}
		task.Trigger = sched.TriggerInterval
		task.Every = every
	}
	if taskCron != "" {
		task.Trigger = sched.TriggerCron
		task.CronExpr = taskCron
	}

	var created sched.Task
	if err := call(http.MethodPost, "/tasks", task, &created); err != nil {
		return err
	}
	fmt.Printf("created %s\n", created.ID)
	return nil
}

func runTaskRm(cmd *cobra.Command, args []string) error {
	if err := call(http.MethodDelete, "/tasks/"+args[0], nil, nil); err != nil {
		return err
	}
	fmt.Println("deleted")
	return nil
}

func runTaskRun(cmd *cobra.Command, args []string) error {
	var exec sched.Execution
	if err := call(http.MethodPost, "/tasks/"+args[0]+"/run", nil, &exec); err != nil {
		return err
	}
	if exec.Status == "ok" {
		fmt.Printf("ran: %s\n", exec.Output)
	} else {
		fmt.Printf("failed: %s\n", exec.Error)
	}
	return nil
}

func setTaskEnabled(id string, enabled bool) error {
	var task sched.Task
	if err := call(http.MethodPost, "/tasks/"+id+"/enable", map[string]bool{"enabled": enabled}, &task); err != nil {
		return err
	}
	if task.Enabled {
		fmt.Printf("enabled, next run %s\n", task.NextRunAt.Local().Format("Jan 2 15:04"))
	} else {
		fmt.Println("disabled")
	}
	return nil
}

func runTaskLog(cmd *cobra.Command, args []string) error {
	var log struct {
		Executions []sched.Execution `json:"executions"`
	}
	path := fmt.Sprintf("/tasks/%s/executions?limit=%d", args[0], limitFlag)
	if err := call(http.MethodGet, path, nil, &log); err != nil {
		return err
	}

	if len(log.Executions) == 0 {
		fmt.Println("no runs yet")
		return nil
	}
	for _, e := range log.Executions {
		line := e.Output
		if e.Status != "ok" {
			line = "error: " + e.Error
		}
		fmt.Printf("%s  %-5s %s\n", e.StartedAt.Local().Format("Jan 2 15:04"), e.Status, line)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	var history struct {
		Work []pet.WorkRecord `json:"work"`
	}
	if err := call(http.MethodGet, fmt.Sprintf("/history/work?limit=%d", limitFlag), nil, &history); err != nil {
		return err
	}

	if len(history.Work) == 0 {
		fmt.Println("no work completed yet")
		return nil
	}
	for _, rec := range history.Work {
		fmt.Printf("%s  %-6s +%d coins +%d xp\n",
			rec.FinishedAt.Local().Format("Jan 2 15:04"), rec.Tier, rec.Coins, rec.Experience)
	}
	return nil
}

func runLedger(cmd *cobra.Command, args []string) error {
	var ledger struct {
		Ledger []persistence.LedgerEntry `json:"ledger"`
	}
	if err := call(http.MethodGet, fmt.Sprintf("/history/ledger?limit=%d", limitFlag), nil, &ledger); err != nil {
		return err
	}

	if len(ledger.Ledger) == 0 {
		fmt.Println("ledger is empty")
		return nil
	}
	for _, e := range ledger.Ledger {
		fmt.Printf("%s  %+d coins %+d xp  (%s)\n",
			e.At.Local().Format("Jan 2 15:04"), e.Coins, e.Experience, e.Reason)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	conn, _, err := websocket.Dial(ctx, "ws://"+daemonAddr()+"/api/v1/events", nil)
	if err != nil {
		return fmt.Errorf("is deskpetd running at %s? %w", daemonAddr(), err)
	}
	defer conn.CloseNow()

	fmt.Println("watching events (Ctrl+C to stop)")
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return nil
		}

		var ev pet.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		payload, _ := json.Marshal(ev.Payload)
		fmt.Printf("%s  %-15s %s\n", ev.At.Local().Format("15:04:05"), ev.Kind, payload)
	}
}
