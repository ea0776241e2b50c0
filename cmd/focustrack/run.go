package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/focustrack/internal/admin"
	"github.com/goodtune/focustrack/internal/config"
	"github.com/goodtune/focustrack/internal/metrics"
	"github.com/goodtune/focustrack/internal/observer"
	"github.com/goodtune/focustrack/internal/stats"
	"github.com/goodtune/focustrack/internal/systemd"
	"github.com/goodtune/focustrack/internal/timeconv"
	"github.com/goodtune/focustrack/internal/usage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start tracking",
	Long:  `Start the tracking loop, plus the report API and metrics endpoints when enabled.`,
	RunE:  runTracker,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runTracker(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting focustrack")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	clock := timeconv.RealClock{}

	// Initialize storage
	store, err := openStorage(cfg.Storage, clock)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	sessions := store.Sessions()

	// Initialize tracking pipeline
	tracker := usage.NewTracker(
		sessions,
		usage.Config{
			IdleThreshold: parseDuration(cfg.Tracking.IdleThreshold, usage.DefaultIdleThreshold),
		},
		logger,
	)
	checker := usage.NewIntegrityChecker(sessions, logger)
	sampler := observer.NewCommand(observer.Config{
		ProcessCommand: cfg.Observer.ProcessCommand,
		TitleCommand:   cfg.Observer.TitleCommand,
		IdleCommand:    cfg.Observer.IdleCommand,
		Timeout:        parseDuration(cfg.Observer.Timeout, observer.DefaultTimeout),
	}, logger)
	runner := usage.NewRunner(sampler, tracker, checker, usage.RunnerConfig{
		PollInterval: parseDuration(cfg.Tracking.PollInterval, usage.DefaultPollInterval),
	}, logger)

	// Initialize aggregation engine
	engine, err := stats.NewEngine(sessions, clock, stats.Options{CacheSize: cfg.Report.CacheSize}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize stats engine: %w", err)
	}

	// Initialize daily digest
	digest, err := usage.NewDigestScheduler(engine, clock, cfg.Tracking.DigestTime, cfg.Report.TopLimit, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize digest scheduler: %w", err)
	}
	digest.Start()

	// Initialize API Server
	var apiServer *admin.Server
	if cfg.API.Enabled || sdListeners.API != nil {
		apiServer = admin.NewServer(admin.Config{
			ListenAddr:            cfg.API.Addr(),
			TopLimit:              cfg.Report.TopLimit,
			AppsPerHour:           cfg.Report.AppsPerHour,
			OtherThresholdPercent: cfg.Report.OtherThresholdPercent,
		}, engine, logger)

		// Use systemd socket-activated listener if available
		if sdListeners.API != nil {
			apiServer.SetListener(sdListeners.API)
		}

		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API Server: %w", err)
		}
	}

	// Initialize Metrics Server
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled || sdListeners.Metrics != nil {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), logger)

		if sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}

		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}
	}

	// Start tracking
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runnerDone := make(chan error, 1)
	go func() {
		runnerDone <- runner.Run(ctx)
	}()

	if interval := systemd.WatchdogInterval(); interval > 0 {
		go watchdog(ctx, interval, logger)
	}

	logger.Info().Msg("focustrack startup complete")

	// Notify systemd that we're ready
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	// Wait for signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	// Signal handling loop
	for {
		sig := <-sigChan

		if sig == syscall.SIGHUP {
			logger.Info().Msg("SIGHUP received, logging digest for today")
			digest.LogDigest(ctx, timeconv.Today(clock))
			continue
		}

		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received, gracefully stopping...")
		break
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop the loop; Run closes the open session before returning
	cancel()
	if err := <-runnerDone; err != nil {
		logger.Error().Err(err).Msg("Tracking loop returned an error")
	}

	digest.Stop()

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping API Server")
		}
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	logger.Info().Msg("focustrack stopped")

	return nil
}

// watchdog pings the systemd watchdog until ctx is done.
func watchdog(ctx context.Context, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := systemd.NotifyWatchdog(); err != nil {
				logger.Warn().Err(err).Msg("Failed to send systemd watchdog notification")
			}
		}
	}
}
