package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr           string
	DatabaseURL    string
	AdminToken     string
	AuctionWindow  time.Duration
	TradeTTL       time.Duration
	TimerTickEvery time.Duration
	SnapshotEvery  time.Duration
	GOSalary       int64
	DiscordToken   string
	DiscordChannel string
	StartupSeed    bool
}

type WorkerConfig struct {
	DatabaseURL   string
	LapEvery      time.Duration
	SnapshotEvery time.Duration
	RunOnce       bool
}

type CLIConfig struct {
	APIBaseURL string
	AdminToken string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("TYCOON_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:           addr,
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AdminToken:     strings.TrimSpace(os.Getenv("TYCOON_ADMIN_TOKEN")),
		AuctionWindow:  envDurationDefault("TYCOON_AUCTION_WINDOW", 30*time.Second),
		TradeTTL:       envDurationDefault("TYCOON_TRADE_TTL", 10*time.Minute),
		TimerTickEvery: envDurationDefault("TYCOON_TIMER_TICK_EVERY", time.Second),
		SnapshotEvery:  envDurationDefault("TYCOON_SNAPSHOT_EVERY", time.Minute),
		GOSalary:       envInt64Default("TYCOON_GO_SALARY", 200),
		DiscordToken:   strings.TrimSpace(os.Getenv("TYCOON_DISCORD_TOKEN")),
		DiscordChannel: strings.TrimSpace(os.Getenv("TYCOON_DISCORD_CHANNEL")),
		StartupSeed:    envBoolDefault("TYCOON_STARTUP_SEED_BOARD", true),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AdminToken == "" {
		return cfg, fmt.Errorf("TYCOON_ADMIN_TOKEN is required")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	cfg := WorkerConfig{
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		LapEvery:      envDurationDefault("TYCOON_LAP_EVERY", 2*time.Minute),
		SnapshotEvery: envDurationDefault("TYCOON_SNAPSHOT_EVERY", time.Minute),
		RunOnce:       envBoolDefault("TYCOON_WORKER_RUN_ONCE", false),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("TYC_API_BASE_URL", "http://localhost:8080"), "/"),
		AdminToken: strings.TrimSpace(os.Getenv("TYC_ADMIN_TOKEN")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt64Default(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
