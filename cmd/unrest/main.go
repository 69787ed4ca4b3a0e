// Command unrest runs the Epstein civil-violence model: citizens who turn
// active against a regime and the cops who jail them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/unrest/internal/api"
	"github.com/talgya/unrest/internal/config"
	"github.com/talgya/unrest/internal/engine"
	"github.com/talgya/unrest/internal/entropy"
	"github.com/talgya/unrest/internal/persistence"
	"github.com/talgya/unrest/internal/report"
)

func main() {
	configPath := flag.String("config", "", "YAML run configuration (defaults when empty)")
	chartPath := flag.String("chart", "", "write a PNG chart of the run to this path")
	dbPath := flag.String("db", envOrDefault("UNREST_DB", ""), "SQLite database for run history (disabled when empty)")
	apiPort := flag.Int("port", envIntOrDefault("UNREST_PORT", 0), "HTTP API port (disabled when 0)")
	interval := flag.Duration("interval", 0, "wall-clock time per tick at speed 1 (0 = as fast as possible)")
	flag.Parse()

	// ── Configuration ─────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if v := os.Getenv("UNREST_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "UNREST_SEED: %v\n", err)
			os.Exit(1)
		}
		cfg.Seed = seed
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Seed == 0 {
		seed, source := entropy.NewClient(os.Getenv("RANDOM_ORG_API_KEY")).Seed(ctx)
		cfg.Seed = seed
		slog.Info("seed drawn", "seed", seed, "source", source)
	}

	slog.Info("unrest: civil violence simulation",
		"grid", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"wrap", cfg.Wrap,
		"environment", cfg.Environment,
		"legitimacy", cfg.Legitimacy,
		"max_iters", humanize.Comma(int64(cfg.MaxIters)),
		"seed", cfg.Seed,
	)

	// ── Simulation ────────────────────────────────────────────────────
	sim, err := engine.NewSimulation(cfg)
	if err != nil {
		slog.Error("failed to create simulation", "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	var runID string
	if *dbPath != "" {
		if dir := filepath.Dir(*dbPath); dir != "." {
			os.MkdirAll(dir, 0755)
		}
		db, err = persistence.Open(*dbPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		run, err := db.CreateRun(cfg)
		if err != nil {
			slog.Error("failed to record run", "error", err)
			os.Exit(1)
		}
		runID = run.ID
		slog.Info("database opened", "path", *dbPath, "run", runID)
	}

	eng := engine.NewEngine(sim)
	eng.Interval = *interval
	eng.ReportEvery = uint64(cfg.ReportEvery)
	eng.CheckpointEvery = uint64(cfg.CheckpointEvery)

	// Periodic save of stats, events and agent positions.
	if db != nil {
		eng.OnCheckpoint = func(snap *engine.Snapshot) {
			if err := db.SaveProgress(runID, sim); err != nil {
				slog.Error("progress save failed", "error", err)
			}
			if err := db.SaveCheckpoint(runID, snap); err != nil {
				slog.Error("checkpoint save failed", "error", err)
			}
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("UNREST_ADMIN_KEY")
	if *apiPort > 0 {
		if adminKey == "" {
			slog.Warn("UNREST_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		apiServer := &api.Server{
			Sim:      sim,
			Eng:      eng,
			DB:       db,
			RunID:    runID,
			Port:     *apiPort,
			AdminKey: adminKey,
		}
		apiServer.Start()
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", *apiPort)
	}

	// ── Run ───────────────────────────────────────────────────────────
	start := time.Now()
	if err := eng.Run(ctx); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	snap := sim.Latest()
	slog.Info("run ended",
		"tick", humanize.Comma(int64(snap.Tick)),
		"finished", !snap.Running,
		"elapsed", time.Since(start).Round(time.Millisecond),
		"quiescent", snap.Stats.Quiescent,
		"active", snap.Stats.Active,
		"jailed", snap.Stats.Jailed,
	)

	if db != nil {
		if err := db.SaveProgress(runID, sim); err != nil {
			slog.Error("final save failed", "error", err)
		}
		if err := db.SaveCheckpoint(runID, snap); err != nil {
			slog.Error("final checkpoint failed", "error", err)
		}
		if !snap.Running {
			if err := db.FinishRun(runID, snap.Tick); err != nil {
				slog.Error("failed to mark run finished", "error", err)
			}
		}
	}

	if *chartPath != "" {
		title := fmt.Sprintf("legitimacy %.2f, seed %d", cfg.Legitimacy, cfg.Seed)
		if err := report.WriteFile(*chartPath, sim.History(), report.Options{Title: title}); err != nil {
			slog.Error("chart failed", "error", err)
		} else {
			slog.Info("chart written", "path", *chartPath)
		}
	}

	fmt.Print(snap.Summary())

	// Keep serving the final state until interrupted.
	if *apiPort > 0 && ctx.Err() == nil {
		fmt.Println("Run complete; API still serving. (Ctrl+C to exit)")
		<-ctx.Done()
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
