package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backend names accepted by storage.type.
const (
	StorageSQLite = "sqlite"
	StorageBolt   = "bolt"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// Config holds the complete application configuration
type Config struct {
	Tracking TrackingConfig `mapstructure:"tracking"`
	Observer ObserverConfig `mapstructure:"observer"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	API      ServerConfig   `mapstructure:"api"`
	Metrics  ServerConfig   `mapstructure:"metrics"`
	Report   ReportConfig   `mapstructure:"report"`
}

// TrackingConfig defines the sampling loop
type TrackingConfig struct {
	PollInterval  string `mapstructure:"poll_interval"`
	IdleThreshold string `mapstructure:"idle_threshold"`
	DigestTime    string `mapstructure:"digest_time"` // HH:MM local time for the daily summary log
}

// ObserverConfig defines the shell commands used to sample the
// foreground window. Each command is run through "sh -c".
type ObserverConfig struct {
	ProcessCommand string `mapstructure:"process_command"`
	TitleCommand   string `mapstructure:"title_command"`
	IdleCommand    string `mapstructure:"idle_command"` // prints idle milliseconds; empty disables idle detection
	Timeout        string `mapstructure:"timeout"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig defines an optional HTTP listener
type ServerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BindAddress string `mapstructure:"bind_address"`
	Port        int    `mapstructure:"port"`
}

// Addr returns the host:port the server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.Port)
}

// ReportConfig defines report and aggregation settings
type ReportConfig struct {
	TopLimit              int     `mapstructure:"top_limit"`
	AppsPerHour           int     `mapstructure:"apps_per_hour"`
	OtherThresholdPercent float64 `mapstructure:"other_threshold_percent"`
	CacheSize             int     `mapstructure:"cache_size"`
}

// Load loads configuration from file and environment variables. An empty
// configPath searches the user config directory and the working directory
// for focustrack.yaml.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("focustrack")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "focustrack"))
		}
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("FOCUSTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// DefaultDataDir returns the directory holding the session database.
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "focustrack")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "focustrack")
	}
	return "."
}

// Defaults returns the configuration used when neither a file nor the
// environment overrides anything.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// KnownKeys returns the set of keys Load understands.
func KnownKeys() map[string]bool {
	v := viper.New()
	setDefaults(v)

	keys := make(map[string]bool)
	for _, key := range v.AllKeys() {
		keys[key] = true
	}
	return keys
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Tracking defaults
	v.SetDefault("tracking.poll_interval", "1s")
	v.SetDefault("tracking.idle_threshold", "5m")
	v.SetDefault("tracking.digest_time", "00:05")

	// Observer defaults (X11 tooling)
	v.SetDefault("observer.process_command", "ps -o comm= -p \"$(xdotool getactivewindow getwindowpid)\"")
	v.SetDefault("observer.title_command", "xdotool getactivewindow getwindowname")
	v.SetDefault("observer.idle_command", "xprintidle")
	v.SetDefault("observer.timeout", "500ms")

	// Storage defaults
	v.SetDefault("storage.type", StorageSQLite)
	v.SetDefault("storage.path", filepath.Join(DefaultDataDir(), "focustrack.db"))
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 4)
	v.SetDefault("storage.redis.min_idle_conns", 1)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.key_prefix", "focustrack")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// API defaults
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.bind_address", "127.0.0.1")
	v.SetDefault("api.port", 7878)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.bind_address", "127.0.0.1")
	v.SetDefault("metrics.port", 9090)

	// Report defaults
	v.SetDefault("report.top_limit", 10)
	v.SetDefault("report.apps_per_hour", 3)
	v.SetDefault("report.other_threshold_percent", 1.5)
	v.SetDefault("report.cache_size", 64)
}

// validate validates the configuration
func validate(cfg *Config) error {
	for name, value := range map[string]string{
		"tracking.poll_interval":  cfg.Tracking.PollInterval,
		"tracking.idle_threshold": cfg.Tracking.IdleThreshold,
		"observer.timeout":        cfg.Observer.Timeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, value)
		}
	}

	if _, err := time.Parse("15:04", cfg.Tracking.DigestTime); err != nil {
		return fmt.Errorf("invalid tracking.digest_time %q (expected HH:MM)", cfg.Tracking.DigestTime)
	}

	if cfg.Observer.ProcessCommand == "" || cfg.Observer.TitleCommand == "" {
		return fmt.Errorf("observer process_command and title_command are required")
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = StorageSQLite
	}
	switch cfg.Storage.Type {
	case StorageSQLite, StorageBolt:
		// Validate storage path
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for %s storage", cfg.Storage.Type)
		}
		cfg.Storage.Path = expandHome(cfg.Storage.Path)
	case StorageRedis:
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required for redis storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage type: %q", cfg.Storage.Type)
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging format: %q", cfg.Logging.Format)
	}

	for name, server := range map[string]ServerConfig{"api": cfg.API, "metrics": cfg.Metrics} {
		if server.Enabled && (server.Port <= 0 || server.Port > 65535) {
			return fmt.Errorf("invalid %s port: %d", name, server.Port)
		}
	}

	if cfg.Report.TopLimit <= 0 {
		return fmt.Errorf("report.top_limit must be positive")
	}
	if cfg.Report.AppsPerHour < 0 {
		return fmt.Errorf("report.apps_per_hour must not be negative")
	}
	if cfg.Report.OtherThresholdPercent < 0 || cfg.Report.OtherThresholdPercent > 100 {
		return fmt.Errorf("report.other_threshold_percent must be within 0-100")
	}

	return nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
