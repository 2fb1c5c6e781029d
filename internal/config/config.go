package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultMapPool is the veto candidate set when MAP_POOL is unset.
var DefaultMapPool = []string{"dust2", "mirage", "inferno", "nuke", "overpass", "train", "ancient"}

type Config struct {
	Addr           string
	TickInterval   time.Duration
	ReadyTimeout   time.Duration
	VetoTimeout    time.Duration
	ConnectTimeout time.Duration
	MapPool        []string
	DatabaseURL    string
	LogLevel       string
	AllocAttempts  int
	AllocBackoff   time.Duration
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:        getEnv("ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MapPool:     DefaultMapPool,
	}

	var err error
	if cfg.TickInterval, err = getDuration("TICK_INTERVAL", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ReadyTimeout, err = getDuration("READY_TIMEOUT", 20*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.VetoTimeout, err = getDuration("VETO_TIMEOUT", 20*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ConnectTimeout, err = getDuration("CONNECT_TIMEOUT", 180*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.AllocBackoff, err = getDuration("ALLOC_BACKOFF", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.AllocAttempts, err = getInt("ALLOC_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}

	if raw := os.Getenv("MAP_POOL"); raw != "" {
		var pool []string
		for _, m := range strings.Split(raw, ",") {
			if m = strings.TrimSpace(m); m != "" {
				pool = append(pool, m)
			}
		}
		if len(pool) == 0 {
			return Config{}, fmt.Errorf("MAP_POOL is set but empty")
		}
		cfg.MapPool = pool
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
