package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// IDLEWATCH_MONITOR_IDLE_THRESHOLD_SECONDS.
const EnvPrefix = "IDLEWATCH"

// Config holds the complete application configuration
type Config struct {
	Monitor MonitorConfig `mapstructure:"monitor" yaml:"monitor"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Probes  ProbesConfig  `mapstructure:"probes" yaml:"probes"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Systemd SystemdConfig `mapstructure:"systemd" yaml:"systemd"`

	// Source is the config file that was read, empty if none.
	Source string `mapstructure:"-" yaml:"-"`
}

// MonitorConfig defines sampling and classification settings
type MonitorConfig struct {
	IdleThresholdSeconds      int     `mapstructure:"idle_threshold_seconds" yaml:"idle_threshold_seconds"`
	CheckIntervalSeconds      int     `mapstructure:"check_interval_seconds" yaml:"check_interval_seconds"`
	DiagnosticsEnabled        bool    `mapstructure:"diagnostics_enabled" yaml:"diagnostics_enabled"`
	DiagnosticIntervalSeconds int     `mapstructure:"diagnostic_interval_seconds" yaml:"diagnostic_interval_seconds"`
	SystemSleepIdleSeconds    int     `mapstructure:"system_sleep_idle_seconds" yaml:"system_sleep_idle_seconds"`     // stuck-counter minimum idle
	SystemSleepJitterSeconds  float64 `mapstructure:"system_sleep_jitter_seconds" yaml:"system_sleep_jitter_seconds"` // stuck-counter tolerance
}

// OutputConfig defines where session records are written
type OutputConfig struct {
	LogFile        string `mapstructure:"log_file" yaml:"log_file"`
	DiagnosticFile string `mapstructure:"diagnostic_file" yaml:"diagnostic_file"`
	LockFile       string `mapstructure:"lock_file" yaml:"lock_file"` // defaults to <log_file>.lock
	StatusLine     bool   `mapstructure:"status_line" yaml:"status_line"`
}

// ProbesConfig defines signal probe settings
type ProbesConfig struct {
	Timeout string `mapstructure:"timeout" yaml:"timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`
	Port        int    `mapstructure:"port" yaml:"port"`
}

// StorageConfig defines session history storage
type StorageConfig struct {
	Type  string      `mapstructure:"type" yaml:"type"` // "none" or "redis"
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	Password     string `mapstructure:"password" yaml:"password"`
	DB           int    `mapstructure:"db" yaml:"db"`
	PoolSize     int    `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout" yaml:"write_timeout"`
	Retention    string `mapstructure:"retention" yaml:"retention"` // how long finished sessions are kept
}

// SystemdConfig defines service manager integration
type SystemdConfig struct {
	Notify bool `mapstructure:"notify" yaml:"notify"`
}

// FlagKeys maps command line flag names to the config keys they override.
var FlagKeys = map[string]string{
	"idle-threshold":      "monitor.idle_threshold_seconds",
	"check-interval":      "monitor.check_interval_seconds",
	"diagnostic":          "monitor.diagnostics_enabled",
	"diagnostic-interval": "monitor.diagnostic_interval_seconds",
	"log-file":            "output.log_file",
	"diagnostic-file":     "output.diagnostic_file",
	"log-level":           "logging.level",
}

// Load loads configuration from file, environment variables and flags.
// An empty configPath searches the default locations and falls back to
// defaults when no file exists. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/idlewatch")
		}
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		switch {
		case missing && configPath != "":
			return nil, fmt.Errorf("config file not found: %s", configPath)
		case !missing:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Source = v.ConfigFileUsed()

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// bindFlags binds every known flag present in flags to its config key.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Monitor defaults
	v.SetDefault("monitor.idle_threshold_seconds", 60)
	v.SetDefault("monitor.check_interval_seconds", 5)
	v.SetDefault("monitor.diagnostics_enabled", false)
	v.SetDefault("monitor.diagnostic_interval_seconds", 30)
	v.SetDefault("monitor.system_sleep_idle_seconds", 300)
	v.SetDefault("monitor.system_sleep_jitter_seconds", 2.0)

	// Output defaults
	v.SetDefault("output.log_file", "idlewatch.log")
	v.SetDefault("output.diagnostic_file", "idlewatch-diagnostic.log")
	v.SetDefault("output.lock_file", "")
	v.SetDefault("output.status_line", true)

	// Probe defaults
	v.SetDefault("probes.timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.bind_address", "127.0.0.1")
	v.SetDefault("metrics.port", 9464)

	// Storage defaults
	v.SetDefault("storage.type", "none")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 4)
	v.SetDefault("storage.redis.min_idle_conns", 1)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.retention", "2160h")

	// Systemd defaults
	v.SetDefault("systemd.notify", true)
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	// Fills derived values such as the lock file path
	_ = validate(&cfg)
	return &cfg
}

// ValidKeys returns the set of recognised configuration keys.
func ValidKeys() map[string]bool {
	v := viper.New()
	setDefaults(v)

	keys := make(map[string]bool)
	for _, k := range v.AllKeys() {
		keys[k] = true
	}
	return keys
}

// validate validates the configuration
func validate(cfg *Config) error {
	m := cfg.Monitor
	if m.IdleThresholdSeconds <= 0 {
		return fmt.Errorf("idle_threshold_seconds must be positive: %d", m.IdleThresholdSeconds)
	}
	if m.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("check_interval_seconds must be positive: %d", m.CheckIntervalSeconds)
	}
	if m.DiagnosticIntervalSeconds <= 0 {
		return fmt.Errorf("diagnostic_interval_seconds must be positive: %d", m.DiagnosticIntervalSeconds)
	}
	if m.SystemSleepIdleSeconds <= 0 {
		return fmt.Errorf("system_sleep_idle_seconds must be positive: %d", m.SystemSleepIdleSeconds)
	}
	if m.SystemSleepJitterSeconds <= 0 {
		return fmt.Errorf("system_sleep_jitter_seconds must be positive: %v", m.SystemSleepJitterSeconds)
	}

	if cfg.Output.LogFile == "" {
		return fmt.Errorf("output.log_file is required")
	}
	if m.DiagnosticsEnabled && cfg.Output.DiagnosticFile == "" {
		return fmt.Errorf("output.diagnostic_file is required when diagnostics are enabled")
	}
	if cfg.Output.LockFile == "" {
		cfg.Output.LockFile = cfg.Output.LogFile + ".lock"
	}

	if _, err := time.ParseDuration(cfg.Probes.Timeout); err != nil {
		return fmt.Errorf("invalid probes.timeout %q: %w", cfg.Probes.Timeout, err)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format: %s", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", cfg.Metrics.Port)
	}

	switch cfg.Storage.Type {
	case "", "none":
		cfg.Storage.Type = "none"
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required")
		}
		if _, err := time.ParseDuration(cfg.Storage.Redis.Retention); err != nil {
			return fmt.Errorf("invalid storage.redis.retention %q: %w", cfg.Storage.Redis.Retention, err)
		}
	default:
		return fmt.Errorf("unsupported storage type: %s (expected 'none' or 'redis')", cfg.Storage.Type)
	}

	return nil
}

// IdleThreshold returns the idle threshold as a duration.
func (m MonitorConfig) IdleThreshold() time.Duration {
	return time.Duration(m.IdleThresholdSeconds) * time.Second
}

// CheckInterval returns the tick interval as a duration.
func (m MonitorConfig) CheckInterval() time.Duration {
	return time.Duration(m.CheckIntervalSeconds) * time.Second
}

// DiagnosticInterval returns the diagnostic cadence as a duration.
func (m MonitorConfig) DiagnosticInterval() time.Duration {
	return time.Duration(m.DiagnosticIntervalSeconds) * time.Second
}

// SystemSleepIdle returns the stuck-counter idle minimum as a duration.
func (m MonitorConfig) SystemSleepIdle() time.Duration {
	return time.Duration(m.SystemSleepIdleSeconds) * time.Second
}

// SystemSleepJitter returns the stuck-counter tolerance as a duration.
func (m MonitorConfig) SystemSleepJitter() time.Duration {
	return time.Duration(m.SystemSleepJitterSeconds * float64(time.Second))
}

// ProbeTimeout returns the per-command probe timeout.
func (p ProbesConfig) ProbeTimeout() time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 3 * time.Second
	}
	return d
}
