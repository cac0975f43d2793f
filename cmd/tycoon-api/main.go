package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tycoon/internal/api"
	"tycoon/internal/config"
	"tycoon/internal/db"
	"tycoon/internal/events"
	"tycoon/internal/game"
	"tycoon/internal/notify"
	"tycoon/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.LoadAPIFromEnv()
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

	gameCfg := game.DefaultConfig()
	gameCfg.GOSalary = cfg.GOSalary
	gameCfg.AuctionWindow = cfg.AuctionWindow
	gameCfg.TradeTTL = cfg.TradeTTL
	session := game.NewSession(gameCfg, logger)

	snap, found, err := st.LoadSnapshot(ctx)
	if err != nil {
		logger.Error("snapshot load failed", "err", err)
		os.Exit(1)
	}
	switch {
	case found:
		session.Restore(snap)
		logger.Info("session restored", "lap", session.Lap())
	case cfg.StartupSeed:
		if err := session.SeedDefaults(); err != nil {
			logger.Error("seed defaults failed", "err", err)
			os.Exit(1)
		}
		logger.Info("board seeded")
	}

	pub := events.NewFanout()
	if cfg.DiscordToken != "" && cfg.DiscordChannel != "" {
		discord, err := notify.NewDiscord(cfg.DiscordToken, cfg.DiscordChannel, logger)
		if err != nil {
			logger.Error("discord init failed", "err", err)
			os.Exit(1)
		}
		defer discord.Close()
		pub.Add(discord)
	}

	server := api.New(cfg, logger, session, st, pub)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Auction deadlines and trade expiries resolve on a coarse timer, and
	// snapshots flush on their own cadence. Both share the session's locks
	// with request handlers, so a single goroutine drives them.
	go func() {
		tick := time.NewTicker(cfg.TimerTickEvery)
		snapTick := time.NewTicker(cfg.SnapshotEvery)
		defer tick.Stop()
		defer snapTick.Stop()
		for {
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := st.SaveSnapshot(shutdownCtx, session.Snapshot()); err != nil {
					logger.Error("final snapshot failed", "err", err)
				}
				cancel()
				return
			case now := <-tick.C:
				for _, ev := range session.TickTimers(now) {
					pub.Publish(ev)
				}
			case <-snapTick.C:
				if err := st.SaveSnapshot(ctx, session.Snapshot()); err != nil {
					logger.Error("snapshot failed", "err", err)
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("tycoon api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
