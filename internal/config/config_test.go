package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWD) })
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Monitor.IdleThreshold() != 60*time.Second {
		t.Errorf("Expected idle threshold 60s, got %v", cfg.Monitor.IdleThreshold())
	}
	if cfg.Monitor.CheckInterval() != 5*time.Second {
		t.Errorf("Expected check interval 5s, got %v", cfg.Monitor.CheckInterval())
	}
	if cfg.Monitor.DiagnosticsEnabled {
		t.Error("Expected diagnostics disabled by default")
	}
	if cfg.Monitor.DiagnosticInterval() != 30*time.Second {
		t.Errorf("Expected diagnostic interval 30s, got %v", cfg.Monitor.DiagnosticInterval())
	}
	if cfg.Monitor.SystemSleepIdle() != 300*time.Second || cfg.Monitor.SystemSleepJitter() != 2*time.Second {
		t.Errorf("Unexpected system sleep thresholds %v / %v", cfg.Monitor.SystemSleepIdle(), cfg.Monitor.SystemSleepJitter())
	}
	if cfg.Output.LogFile != "idlewatch.log" || cfg.Output.DiagnosticFile != "idlewatch-diagnostic.log" {
		t.Errorf("Unexpected output paths %q / %q", cfg.Output.LogFile, cfg.Output.DiagnosticFile)
	}
	if cfg.Output.LockFile != "idlewatch.log.lock" {
		t.Errorf("Expected derived lock file, got %q", cfg.Output.LockFile)
	}
	if cfg.Storage.Type != "none" {
		t.Errorf("Expected storage type none, got %q", cfg.Storage.Type)
	}
	if cfg.Source != "" {
		t.Errorf("Expected no config source, got %q", cfg.Source)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
monitor:
  idle_threshold_seconds: 120
  check_interval_seconds: 10
  diagnostics_enabled: true
output:
  log_file: /tmp/idle/activity.log
storage:
  type: redis
  redis:
    host: redis.local
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Monitor.IdleThresholdSeconds != 120 || cfg.Monitor.CheckIntervalSeconds != 10 {
		t.Errorf("Unexpected monitor settings %+v", cfg.Monitor)
	}
	if !cfg.Monitor.DiagnosticsEnabled {
		t.Error("Expected diagnostics enabled")
	}
	if cfg.Output.LockFile != "/tmp/idle/activity.log.lock" {
		t.Errorf("Unexpected lock file %q", cfg.Output.LockFile)
	}
	if cfg.Storage.Redis.Host != "redis.local" || cfg.Storage.Redis.Port != 6379 {
		t.Errorf("Unexpected redis settings %+v", cfg.Storage.Redis)
	}
	if cfg.Source != path {
		t.Errorf("Expected source %s, got %s", path, cfg.Source)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("Expected not found error, got %v", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "monitor:\n  idle_threshold_seconds: 120\n")
	t.Setenv("IDLEWATCH_MONITOR_IDLE_THRESHOLD_SECONDS", "300")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Monitor.IdleThresholdSeconds != 300 {
		t.Errorf("Expected env override 300, got %d", cfg.Monitor.IdleThresholdSeconds)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	path := writeConfig(t, "monitor:\n  check_interval_seconds: 10\n  idle_threshold_seconds: 90\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("check-interval", 5, "")
	flags.Int("idle-threshold", 60, "")
	flags.Bool("diagnostic", false, "")
	if err := flags.Parse([]string{"--check-interval=2", "--diagnostic"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Monitor.CheckIntervalSeconds != 2 {
		t.Errorf("Expected flag override 2, got %d", cfg.Monitor.CheckIntervalSeconds)
	}
	// Unset flags do not shadow the file
	if cfg.Monitor.IdleThresholdSeconds != 90 {
		t.Errorf("Expected file value 90, got %d", cfg.Monitor.IdleThresholdSeconds)
	}
	if !cfg.Monitor.DiagnosticsEnabled {
		t.Error("Expected diagnostics enabled by flag")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"zero interval", "monitor:\n  check_interval_seconds: 0\n", "check_interval_seconds"},
		{"negative threshold", "monitor:\n  idle_threshold_seconds: -5\n", "idle_threshold_seconds"},
		{"zero diagnostic interval", "monitor:\n  diagnostic_interval_seconds: 0\n", "diagnostic_interval_seconds"},
		{"bad log format", "logging:\n  format: xml\n", "logging.format"},
		{"bad log level", "logging:\n  level: chatty\n", "logging.level"},
		{"bad storage", "storage:\n  type: bolt\n", "unsupported storage type"},
		{"bad probe timeout", "probes:\n  timeout: soon\n", "probes.timeout"},
		{"bad metrics port", "metrics:\n  enabled: true\n  port: 70000\n", "metrics port"},
		{"empty log file", "output:\n  log_file: \"\"\n", "log_file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), nil)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	for _, k := range []string{
		"monitor.idle_threshold_seconds",
		"monitor.check_interval_seconds",
		"monitor.diagnostics_enabled",
		"monitor.diagnostic_interval_seconds",
		"output.log_file",
		"storage.redis.retention",
		"systemd.notify",
	} {
		if !keys[k] {
			t.Errorf("Expected %s to be a valid key", k)
		}
	}
	if keys["monitor.idle_threshold"] {
		t.Error("Unexpected key monitor.idle_threshold")
	}
}

func TestProbeTimeout(t *testing.T) {
	if d := (ProbesConfig{Timeout: "750ms"}).ProbeTimeout(); d != 750*time.Millisecond {
		t.Errorf("Expected 750ms, got %v", d)
	}
	if d := (ProbesConfig{Timeout: "bogus"}).ProbeTimeout(); d != 3*time.Second {
		t.Errorf("Expected fallback 3s, got %v", d)
	}
}
