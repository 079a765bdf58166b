package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/idlewatch/internal/activity"
	"github.com/goodtune/idlewatch/internal/clock"
	"github.com/goodtune/idlewatch/internal/config"
	"github.com/goodtune/idlewatch/internal/lockfile"
	"github.com/goodtune/idlewatch/internal/metrics"
	"github.com/goodtune/idlewatch/internal/probe"
	"github.com/goodtune/idlewatch/internal/session"
	"github.com/goodtune/idlewatch/internal/signals"
	"github.com/goodtune/idlewatch/internal/sink"
	"github.com/goodtune/idlewatch/internal/storage"
	"github.com/goodtune/idlewatch/internal/storage/redis"
	"github.com/goodtune/idlewatch/internal/systemd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Monitor activity until interrupted",
	Long: `Sample activity signals every check interval, log each state change and
print a summary of time spent per state when stopped with Ctrl+C or SIGTERM.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", cfg.Source).
		Msg("Starting idlewatch")

	// One monitor per log file
	lock, err := lockfile.Acquire(cfg.Output.LockFile)
	if err != nil {
		return fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Error().Err(err).Msg("Failed to release instance lock")
		}
	}()

	// Open sinks
	transitionLog, err := sink.OpenTransitionLog(cfg.Output.LogFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := transitionLog.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close transition log")
		}
	}()

	opts := session.Options{
		Config: session.Config{
			IdleThreshold:      cfg.Monitor.IdleThreshold(),
			CheckInterval:      cfg.Monitor.CheckInterval(),
			Diagnostics:        cfg.Monitor.DiagnosticsEnabled,
			DiagnosticInterval: cfg.Monitor.DiagnosticInterval(),
			Host:               hostname(),
		},
		Classifier: activity.NewClassifier(activity.ClassifierConfig{
			IdleThreshold:     cfg.Monitor.IdleThreshold(),
			SystemSleepIdle:   cfg.Monitor.SystemSleepIdle(),
			SystemSleepJitter: cfg.Monitor.SystemSleepJitter(),
		}),
		Clock:   clock.Real{},
		Log:     transitionLog,
		Console: sink.NewConsole(os.Stdout, cfg.Output.StatusLine),
		Logger:  logger,
	}

	if cfg.Monitor.DiagnosticsEnabled {
		diagnostics, err := sink.OpenDiagnostics(cfg.Output.DiagnosticFile)
		if err != nil {
			return err
		}
		defer func() {
			if err := diagnostics.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to close diagnostic log")
			}
		}()
		opts.Diagnostics = diagnostics
		logger.Info().Str("path", cfg.Output.DiagnosticFile).Msg("Diagnostic log enabled")
	}

	// Initialize session history
	if cfg.Storage.Type == "redis" {
		store, err := openStorage(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to close storage")
			}
		}()
		pruneHistory(store.Sessions(), cfg.Storage.Redis.Retention, logger)
		opts.Recorder = store.Sessions()
		logger.Info().Str("host", cfg.Storage.Redis.Host).Msg("Session history enabled")
	}

	// Initialize Metrics Server
	if cfg.Metrics.Enabled {
		metricsServer, err := startMetrics(cfg.Metrics, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := metricsServer.Stop(); err != nil {
				logger.Error().Err(err).Msg("Error stopping Metrics Server")
			}
		}()
	}

	// Initialize signal sources
	runner := probe.ExecRunner{Timeout: cfg.Probes.ProbeTimeout()}
	opts.Sampler = signals.NewAggregator(probe.MacOSSources(runner), opts.Clock, logger)

	notifier := systemd.NewNotifier(cfg.Systemd.Notify)
	opts.Heartbeat = notifier.Heartbeat
	if d := notifier.WatchdogInterval(); d > 0 && d < cfg.Monitor.CheckInterval() {
		logger.Warn().
			Dur("watchdog", d).
			Dur("check_interval", cfg.Monitor.CheckInterval()).
			Msg("Watchdog timeout is shorter than the check interval")
	}

	ctrl := session.New(opts)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Notify systemd that we're ready
	if err := notifier.Ready(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	summary, err := ctrl.Run(ctx)

	// Notify systemd that we're stopping
	if err := notifier.Stopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	if err != nil {
		return err
	}

	logger.Info().
		Str("session_id", summary.ID).
		Int("ticks", summary.Ticks).
		Int("transitions", summary.Transitions).
		Msg("idlewatch stopped")

	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (only 'redis' is supported)", cfg.Type)
	}
}

// pruneHistory drops index entries for sessions older than the retention
// window. Failures only cost disk space, so they are logged and ignored.
func pruneHistory(sessions storage.SessionStore, retention string, logger zerolog.Logger) {
	d, err := time.ParseDuration(retention)
	if err != nil || d <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	deleted, err := sessions.DeleteSessionsBefore(ctx, time.Now().Add(-d))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to prune session history")
		return
	}
	if deleted > 0 {
		logger.Info().Int("deleted", deleted).Msg("Pruned old sessions")
	}
}

func startMetrics(cfg config.MetricsConfig, logger zerolog.Logger) (*metrics.Server, error) {
	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	server := metrics.NewServer(addr, logger)

	// Use systemd socket-activated listener if available
	ln, err := systemd.MetricsListener()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to get systemd listeners")
	}
	if ln != nil {
		server.SetListener(ln)
	}

	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("failed to start Metrics Server: %w", err)
	}

	logger.Info().Str("addr", server.Addr()).Msg("Metrics Server started")
	return server, nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
