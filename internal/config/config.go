package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr   string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string
	JWTSecret    string

	StartingBalance int32
	CheckInMin      int32
	CheckInMax      int32
	SpinMin         int32
	SpinMax         int32
	MaxSpins        int32
	SpinResetEvery  time.Duration
	StoreTimeout    time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	cfg := &Config{
		ListenAddr:   os.Getenv("LISTEN_ADDR"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: []string{os.Getenv("KAFKA_BROKER")},
		JWTSecret:    os.Getenv("JWT_SECRET"),

		StartingBalance: envInt32("STARTING_BALANCE", 10),
		CheckInMin:      envInt32("CHECKIN_REWARD_MIN", 1),
		CheckInMax:      envInt32("CHECKIN_REWARD_MAX", 5),
		SpinMin:         envInt32("SPIN_REWARD_MIN", 1),
		SpinMax:         envInt32("SPIN_REWARD_MAX", 10),
		MaxSpins:        envInt32("MAX_SPINS", 3),
		SpinResetEvery:  envDuration("SPIN_RESET_EVERY", 8*time.Hour),
		StoreTimeout:    envDuration("STORE_TIMEOUT", 3*time.Second),
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.PostgresDSN == "" {
		cfg.PostgresDSN = "host=localhost user=postgres password=postgres dbname=contentvault sslmode=disable"
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if len(cfg.KafkaBrokers) == 1 && cfg.KafkaBrokers[0] == "" {
		cfg.KafkaBrokers = []string{"localhost:9092"}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "supersecret"
	}

	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"max_spins", cfg.MaxSpins,
		"spin_reset_every", cfg.SpinResetEvery)
	return cfg
}

func envInt32(key string, def int32) int32 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		slog.Warn("invalid integer env var, using default", "key", key, "value", raw)
		return def
	}
	return int32(v)
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("invalid duration env var, using default", "key", key, "value", raw)
		return def
	}
	return v
}
