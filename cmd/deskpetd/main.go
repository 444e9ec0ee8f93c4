// Command deskpetd runs the desk pet daemon: the care engine tick loop,
// the task scheduler and the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tamasan/deskpet/internal/api"
	"github.com/tamasan/deskpet/internal/config"
	"github.com/tamasan/deskpet/internal/persistence"
	"github.com/tamasan/deskpet/internal/pet"
	"github.com/tamasan/deskpet/internal/sched"
)

func main() {
	configPath := flag.String("config", "", "config file path (default ~/.deskpet/config.json)")
	initConfig := flag.Bool("init", false, "write a starter config file and exit")
	debug := flag.Bool("debug", false, "force debug logging")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	if *initConfig {
		path := *configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.Save(config.DefaultConfig(), path); err != nil {
			slog.Error("failed to write config", "error", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", path)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg.Log, *debug)
	slog.SetDefault(logger)

	slog.Info("deskpet starting",
		"pet", cfg.Pet.Name,
		"preset", cfg.Pet.DecayPreset,
		"tick", cfg.TickInterval(),
		"addr", cfg.Server.Addr,
	)

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0755)
	store, err := persistence.Open(cfg.Storage.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("database opened", "path", cfg.Storage.DBPath)
	if last, err := store.GetMeta("last_shutdown_at"); err == nil {
		slog.Info("previous session ended", "at", last)
	}

	// ── Pet engine ────────────────────────────────────────────────────
	engineCfg, err := cfg.Engine()
	if err != nil {
		slog.Error("bad engine configuration", "error", err)
		os.Exit(1)
	}
	coord, err := pet.NewCoordinator(engineCfg, store, store, store, logger)
	if err != nil {
		slog.Error("failed to start pet engine", "error", err)
		os.Exit(1)
	}

	// ── Scheduler ─────────────────────────────────────────────────────
	scheduler := sched.NewService(store, coord, logger, nil, cfg.PollInterval())

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.Server.AuthToken == "" {
		slog.Warn("no auth token configured, mutating endpoints are open")
	}
	apiServer := api.NewServer(coord, scheduler, store, logger, cfg.Server.AuthToken)

	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     apiServer.Routes(),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: the events endpoint holds its connection open.
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go apiServer.StreamEvents(ctx, coord.Events())

	if err := scheduler.Start(ctx); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// Tick loop. The first tick catches up decay from the previous run.
	go func() {
		ticker := time.NewTicker(cfg.TickInterval())
		defer ticker.Stop()
		coord.Tick()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				coord.Tick()
			}
		}
	}()

	go func() {
		slog.Info("HTTP API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	fmt.Printf("%s is awake. API: http://%s/api/v1/status (Ctrl+C to stop)\n",
		cfg.Pet.Name, cfg.Server.Addr)

	<-ctx.Done()
	stop()

	slog.Info("shutting down")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	if err := coord.Close(); err != nil {
		slog.Error("final save failed", "error", err)
	}
	if err := store.SetMeta("last_shutdown_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("shutdown marker not written", "error", err)
	}
	fmt.Println("deskpet stopped. State saved.")
}

func buildLogger(cfg config.LogConfig, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
