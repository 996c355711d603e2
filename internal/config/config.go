// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/dofuswire/internal/core"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `dofuswire:` root key in YAML.
type GlobalConfig struct {
	Log      LogConfig      `mapstructure:"log"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Decoder  DecoderConfig  `mapstructure:"decoder"`
	Registry RegistryConfig `mapstructure:"registry"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Sinks    []SinkConfig   `mapstructure:"sinks"`
}

// ─── Capture ───

// CaptureConfig selects the live capture engine.
type CaptureConfig struct {
	Engine       string        `mapstructure:"engine"` // pcap | afpacket
	Interface    string        `mapstructure:"interface"`
	SnapLen      int           `mapstructure:"snap_len"`
	Promiscuous  bool          `mapstructure:"promiscuous"`
	BPFFilter    string        `mapstructure:"bpf_filter"`
	Timeout      time.Duration `mapstructure:"timeout"`
	BufferSizeMB int           `mapstructure:"buffer_size_mb"`
	FanoutID     uint16        `mapstructure:"fanout_id"` // afpacket only, 0 = off
}

// ─── Decoder ───

// DecoderConfig tunes framing and the worker pool.
type DecoderConfig struct {
	ServerPort         uint16         `mapstructure:"server_port"`
	TLSPort            uint16         `mapstructure:"tls_port"`
	DropPartialHeaders bool           `mapstructure:"drop_partial_headers"`
	Workers            int            `mapstructure:"workers"`
	QueueSize          int            `mapstructure:"queue_size"` // segments buffered per worker
	BatchSize          int            `mapstructure:"batch_size"`
	FlushInterval      time.Duration  `mapstructure:"flush_interval"`
	IdleTimeout        time.Duration  `mapstructure:"idle_timeout"`
	Reorder            ReorderConfig  `mapstructure:"reorder"`
	SlipWarn           SlipWarnConfig `mapstructure:"slip_warn"`
}

// ReorderConfig enables TCP sequence reordering.
type ReorderConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Window           time.Duration `mapstructure:"window"`
	MaxBufferedPages int           `mapstructure:"max_buffered_pages"`
}

// SlipWarnConfig rate limits frame slip warnings per stream.
type SlipWarnConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// ─── Registry ───

// RegistryConfig locates the protocol description.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Sinks ───

// SinkConfig declares one output.
type SinkConfig struct {
	Type    string         `mapstructure:"type"`
	Options map[string]any `mapstructure:"options"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string           `mapstructure:"level"`  // debug / info / warn / error
	Format     string           `mapstructure:"format"` // json / text / pattern
	Pattern    string           `mapstructure:"pattern"`
	TimeLayout string           `mapstructure:"time_layout"`
	Outputs    LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains log output destinations.
type LogOutputsConfig struct {
	Console string           `mapstructure:"console"` // stderr / stdout / none
	File    FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `dofuswire: ...`.
type configRoot struct {
	Dofuswire GlobalConfig `mapstructure:"dofuswire"`
}

// Load loads configuration from file. An empty path loads defaults and
// environment overrides only.
// The YAML file uses `dofuswire:` as root key; env vars use the DOFUSWIRE_
// prefix (e.g., DOFUSWIRE_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `dofuswire.` key prefix maps to `DOFUSWIRE_` through the replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Dofuswire

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "dofuswire." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("dofuswire.log.level", "info")
	v.SetDefault("dofuswire.log.format", "text")
	v.SetDefault("dofuswire.log.pattern", "%time [%level] %msg %field%n")
	v.SetDefault("dofuswire.log.time_layout", "2006-01-02 15:04:05.000")
	v.SetDefault("dofuswire.log.outputs.console", "stderr")
	v.SetDefault("dofuswire.log.outputs.file.enabled", false)
	v.SetDefault("dofuswire.log.outputs.file.path", "/var/log/dofuswire/dofuswire.log")
	v.SetDefault("dofuswire.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("dofuswire.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("dofuswire.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("dofuswire.log.outputs.file.rotation.compress", true)

	// Capture defaults
	v.SetDefault("dofuswire.capture.engine", "pcap")
	v.SetDefault("dofuswire.capture.interface", "")
	v.SetDefault("dofuswire.capture.snap_len", 65536)
	v.SetDefault("dofuswire.capture.promiscuous", false)
	v.SetDefault("dofuswire.capture.bpf_filter", "tcp port 5555")
	v.SetDefault("dofuswire.capture.timeout", "500ms")
	v.SetDefault("dofuswire.capture.buffer_size_mb", 8)
	v.SetDefault("dofuswire.capture.fanout_id", 0)

	// Decoder defaults
	v.SetDefault("dofuswire.decoder.server_port", 5555)
	v.SetDefault("dofuswire.decoder.tls_port", 443)
	v.SetDefault("dofuswire.decoder.drop_partial_headers", false)
	v.SetDefault("dofuswire.decoder.workers", 1)
	v.SetDefault("dofuswire.decoder.queue_size", 1024)
	v.SetDefault("dofuswire.decoder.batch_size", 512)
	v.SetDefault("dofuswire.decoder.flush_interval", "1s")
	v.SetDefault("dofuswire.decoder.idle_timeout", "2m")
	v.SetDefault("dofuswire.decoder.reorder.enabled", false)
	v.SetDefault("dofuswire.decoder.reorder.window", "2s")
	v.SetDefault("dofuswire.decoder.reorder.max_buffered_pages", 256)
	v.SetDefault("dofuswire.decoder.slip_warn.limit", 10)
	v.SetDefault("dofuswire.decoder.slip_warn.window", "1m")

	// Registry defaults
	v.SetDefault("dofuswire.registry.path", "")

	// Metrics defaults
	v.SetDefault("dofuswire.metrics.enabled", false)
	v.SetDefault("dofuswire.metrics.listen", ":9091")
	v.SetDefault("dofuswire.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return invalid("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	case "pattern":
		if cfg.Log.Pattern == "" {
			return invalid("log.pattern is required when log.format=pattern")
		}
	default:
		return invalid("invalid log format: %s (must be json/text/pattern)", cfg.Log.Format)
	}
	switch cfg.Log.Outputs.Console {
	case "stderr", "stdout", "none":
	default:
		return invalid("invalid log.outputs.console: %s (must be stderr/stdout/none)", cfg.Log.Outputs.Console)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return invalid("log.outputs.file.path is required when file output is enabled")
	}

	// ── Capture validation ──
	if cfg.Capture.Engine != "pcap" && cfg.Capture.Engine != "afpacket" {
		return invalid("unsupported capture.engine: %s (must be pcap/afpacket)", cfg.Capture.Engine)
	}
	if cfg.Capture.SnapLen <= 0 {
		return invalid("capture.snap_len must be positive")
	}

	// ── Decoder validation ──
	d := &cfg.Decoder
	if d.ServerPort == 0 {
		return invalid("decoder.server_port must be set")
	}
	if d.Workers <= 0 {
		return invalid("decoder.workers must be positive")
	}
	if d.FlushInterval <= 0 || d.IdleTimeout <= 0 {
		return invalid("decoder.flush_interval and decoder.idle_timeout must be positive")
	}
	if d.IdleTimeout < d.FlushInterval {
		return invalid("decoder.idle_timeout %s is shorter than decoder.flush_interval %s", d.IdleTimeout, d.FlushInterval)
	}
	if d.Reorder.Enabled && d.Reorder.Window <= 0 {
		return invalid("decoder.reorder.window must be positive when reordering is enabled")
	}

	// ── Metrics validation ──
	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return invalid("invalid metrics.listen %q: %v", cfg.Metrics.Listen, err)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return invalid("metrics.path must start with /")
		}
	}

	// ── Sinks ──
	for i, s := range cfg.Sinks {
		if s.Type == "" {
			return invalid("sinks[%d].type is required", i)
		}
	}
	if len(cfg.Sinks) == 0 {
		cfg.Sinks = []SinkConfig{{Type: "console"}}
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrConfigInvalid, fmt.Sprintf(format, args...))
}
