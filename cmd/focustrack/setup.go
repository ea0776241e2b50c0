package main

import (
	"fmt"
	"os"
	"time"

	"github.com/goodtune/focustrack/internal/config"
	"github.com/goodtune/focustrack/internal/storage"
	"github.com/goodtune/focustrack/internal/storage/bolt"
	"github.com/goodtune/focustrack/internal/storage/memory"
	"github.com/goodtune/focustrack/internal/storage/redis"
	"github.com/goodtune/focustrack/internal/storage/sqlite"
	"github.com/goodtune/focustrack/internal/timeconv"
	"github.com/rs/zerolog"
)

func openStorage(cfg config.StorageConfig, clock timeconv.Clock) (storage.Store, error) {
	storageType := cfg.Type
	if storageType == "" {
		storageType = config.StorageSQLite
	}

	switch storageType {
	case config.StorageSQLite:
		return sqlite.Open(cfg.Path, clock)
	case config.StorageBolt:
		return bolt.Open(cfg.Path, clock)
	case config.StorageRedis:
		return redis.Open(cfg.Redis, clock)
	case config.StorageMemory:
		return memory.New(clock), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Logs go to stderr so report output on stdout stays clean
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
