// tycoon-worker runs a headless table: it restores the session from the
// database and advances laps on a wall-clock cadence, snapshotting as it
// goes. Useful for long-running background games and for soak-testing the
// economy without an API in front.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tycoon/internal/config"
	"tycoon/internal/db"
	"tycoon/internal/game"
	"tycoon/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.New(pool, logger)
	if err := st.Bootstrap(ctx); err != nil {
		logger.Error("store bootstrap failed", "err", err)
		os.Exit(1)
	}

	session := game.NewSession(game.DefaultConfig(), logger)
	snap, found, err := st.LoadSnapshot(ctx)
	if err != nil {
		logger.Error("snapshot load failed", "err", err)
		os.Exit(1)
	}
	if found {
		session.Restore(snap)
		logger.Info("session restored", "lap", session.Lap())
	} else if err := session.SeedDefaults(); err != nil {
		logger.Error("seed defaults failed", "err", err)
		os.Exit(1)
	}

	runLap := func() {
		evs := session.LapTick()
		logger.Info("lap complete",
			"lap", session.Lap(),
			"regime", session.Monitor.Regime().String(),
			"factor", session.Monitor.Factor(),
			"events", len(evs))
		if err := st.SaveSnapshot(ctx, session.Snapshot()); err != nil {
			logger.Error("snapshot failed", "err", err)
		}
	}

	if cfg.RunOnce {
		runLap()
		logger.Info("worker run-once completed")
		return
	}

	lapTicker := time.NewTicker(cfg.LapEvery)
	timerTicker := time.NewTicker(time.Second)
	defer lapTicker.Stop()
	defer timerTicker.Stop()

	logger.Info("worker started", "lap_every", cfg.LapEvery.String())
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := st.SaveSnapshot(shutdownCtx, session.Snapshot()); err != nil {
				logger.Error("final snapshot failed", "err", err)
			}
			cancel()
			logger.Info("worker shutdown")
			return
		case now := <-timerTicker.C:
			session.TickTimers(now)
		case <-lapTicker.C:
			runLap()
		}
	}
}
