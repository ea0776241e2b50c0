package main

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/focustrack/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the focustrack configuration file for syntax and semantic errors.`,
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(errOut, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	source := configPath
	var unknownKeys []string
	if configPath == "" {
		source = "(defaults, search path and environment)"
	} else {
		// Check for unknown keys (always, not just with --dump)
		unknownKeys, err = findUnknownKeys(configPath)
		if err != nil {
			fmt.Fprintf(errOut, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
		}
	}

	fmt.Fprintf(out, "✅ Configuration is valid: %s\n", source)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(out)
		red.Fprintf(out, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			red.Fprintf(out, "   - %s\n", key)
		}
		fmt.Fprintln(out, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	// If dump requested, show full configuration with defaults highlighted
	if validateDump {
		fmt.Fprintln(out, "\n"+strings.Repeat("=", 80))
		fmt.Fprintln(out, "FULL CONFIGURATION (values different from defaults are highlighted)")
		fmt.Fprintln(out, strings.Repeat("=", 80))

		dumpConfig(out, cfg, config.Defaults(), unknownKeys)
	}

	return nil
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	validKeys := config.KnownKeys()

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !validKeys[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	return unknown, nil
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(w io.Writer, cfg, defaultCfg *config.Config, unknownKeys []string) {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	field := func(name string, value, defaultValue any) {
		dumpField(w, name, value, defaultValue, yellow, green)
	}

	// Tracking
	cyan.Fprintln(w, "\n[tracking]")
	field("  poll_interval", cfg.Tracking.PollInterval, defaultCfg.Tracking.PollInterval)
	field("  idle_threshold", cfg.Tracking.IdleThreshold, defaultCfg.Tracking.IdleThreshold)
	field("  digest_time", cfg.Tracking.DigestTime, defaultCfg.Tracking.DigestTime)

	// Observer
	cyan.Fprintln(w, "\n[observer]")
	field("  process_command", cfg.Observer.ProcessCommand, defaultCfg.Observer.ProcessCommand)
	field("  title_command", cfg.Observer.TitleCommand, defaultCfg.Observer.TitleCommand)
	field("  idle_command", cfg.Observer.IdleCommand, defaultCfg.Observer.IdleCommand)
	field("  timeout", cfg.Observer.Timeout, defaultCfg.Observer.Timeout)

	// Storage
	cyan.Fprintln(w, "\n[storage]")
	field("  type", cfg.Storage.Type, defaultCfg.Storage.Type)
	field("  path", cfg.Storage.Path, defaultCfg.Storage.Path)
	cyan.Fprintln(w, "  [storage.redis]")
	field("    host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host)
	field("    port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port)
	field("    password", redactPassword(cfg.Storage.Redis.Password), redactPassword(defaultCfg.Storage.Redis.Password))
	field("    db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB)
	field("    pool_size", cfg.Storage.Redis.PoolSize, defaultCfg.Storage.Redis.PoolSize)
	field("    min_idle_conns", cfg.Storage.Redis.MinIdleConns, defaultCfg.Storage.Redis.MinIdleConns)
	field("    dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout)
	field("    read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout)
	field("    write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout)
	field("    key_prefix", cfg.Storage.Redis.KeyPrefix, defaultCfg.Storage.Redis.KeyPrefix)

	// Logging
	cyan.Fprintln(w, "\n[logging]")
	field("  level", cfg.Logging.Level, defaultCfg.Logging.Level)
	field("  format", cfg.Logging.Format, defaultCfg.Logging.Format)

	// Servers
	for _, server := range []struct {
		name       string
		value, def config.ServerConfig
	}{
		{"api", cfg.API, defaultCfg.API},
		{"metrics", cfg.Metrics, defaultCfg.Metrics},
	} {
		cyan.Fprintf(w, "\n[%s]\n", server.name)
		field("  enabled", server.value.Enabled, server.def.Enabled)
		field("  bind_address", server.value.BindAddress, server.def.BindAddress)
		field("  port", server.value.Port, server.def.Port)
	}

	// Report
	cyan.Fprintln(w, "\n[report]")
	field("  top_limit", cfg.Report.TopLimit, defaultCfg.Report.TopLimit)
	field("  apps_per_hour", cfg.Report.AppsPerHour, defaultCfg.Report.AppsPerHour)
	field("  other_threshold_percent", cfg.Report.OtherThresholdPercent, defaultCfg.Report.OtherThresholdPercent)
	field("  cache_size", cfg.Report.CacheSize, defaultCfg.Report.CacheSize)

	// Display unknown keys if any
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)

		cyan.Fprintln(w, "\n[UNKNOWN KEYS - These will be ignored!]")
		for _, key := range unknownKeys {
			red.Fprintf(w, "  %s = (unknown key - check for typos)\n", key)
		}
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
}

// dumpField prints a field with color if it differs from default
func dumpField(w io.Writer, name string, value, defaultValue any, modifiedColor, defaultColor *color.Color) {
	isDefault := reflect.DeepEqual(value, defaultValue)

	if isDefault {
		defaultColor.Fprintf(w, "%s = %v\n", name, value)
	} else {
		modifiedColor.Fprintf(w, "%s = %v  (modified from default: %v)\n", name, value, defaultValue)
	}
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}
