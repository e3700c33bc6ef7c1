// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/icom/internal/core"
	"firestige.xyz/icom/internal/core/decoder"
	"firestige.xyz/icom/internal/core/filter"
	"firestige.xyz/icom/internal/core/rewriter"
	"firestige.xyz/icom/internal/log"
)

// Config is the top-level configuration, found under the `icom:` root key.
type Config struct {
	Filter  FilterConfig     `mapstructure:"filter" yaml:"filter"`
	Capture CaptureConfig    `mapstructure:"capture" yaml:"capture"`
	Replay  ReplayConfig     `mapstructure:"replay" yaml:"replay"`
	Sinks   []SinkConfig     `mapstructure:"sinks" yaml:"sinks"`
	Inspect InspectConfig    `mapstructure:"inspect" yaml:"inspect"`
	Log     log.LoggerConfig `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

// ─── Filter ───

// FilterConfig holds the match constants. Changing them means restarting the
// process; nothing here is reloaded at runtime.
type FilterConfig struct {
	SourceIP string `mapstructure:"source_ip" yaml:"source_ip"` // Dotted IPv4 source to match
	DestPort int    `mapstructure:"dest_port" yaml:"dest_port"` // UDP destination port to match
	ScanCap  int    `mapstructure:"scan_cap" yaml:"scan_cap"`   // Payload bytes scanned for the fold
}

// ─── Capture ───

// CaptureConfig configures the live AF_PACKET source.
type CaptureConfig struct {
	Interface    string        `mapstructure:"interface" yaml:"interface"`
	SnapLen      int           `mapstructure:"snap_len" yaml:"snap_len"`
	BufferSizeMB int           `mapstructure:"buffer_size_mb" yaml:"buffer_size_mb"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	FanoutID     int           `mapstructure:"fanout_id" yaml:"fanout_id"`
	BPFFilter    string        `mapstructure:"bpf_filter" yaml:"bpf_filter"`
	MatchOnly    bool          `mapstructure:"match_only" yaml:"match_only"` // Derive the BPF filter from the match constants
	Workers      int           `mapstructure:"workers" yaml:"workers"`       // Pipelines sharing the interface through fanout
	ChannelSize  int           `mapstructure:"channel_size" yaml:"channel_size"`
}

// ─── Replay ───

// ReplayConfig names the capture files used by `icom replay`.
type ReplayConfig struct {
	Input  string `mapstructure:"input" yaml:"input"`
	Output string `mapstructure:"output" yaml:"output"`
}

// ─── Sinks ───

// SinkConfig selects a sink by type; Options are decoded by the sink itself.
type SinkConfig struct {
	Type    string         `mapstructure:"type" yaml:"type"`
	Options map[string]any `mapstructure:"options" yaml:"options,omitempty"`
}

// ─── Inspection ───

// InspectConfig toggles SIP parsing of rewritten payloads.
type InspectConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `icom: ...`.
type configRoot struct {
	Icom Config `mapstructure:"icom"`
}

// Load reads the YAML file at path (skipped when path is empty), applies
// ICOM_* environment overrides and defaults, then validates the result.
// Env keys follow the YAML path, e.g. ICOM_FILTER_SOURCE_IP.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Icom

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so that env overrides apply even when the
// file omits it.
func setDefaults(v *viper.Viper) {
	// Filter defaults
	v.SetDefault("icom.filter.source_ip", "")
	v.SetDefault("icom.filter.dest_port", 5060)
	v.SetDefault("icom.filter.scan_cap", rewriter.DefaultScanCap)

	// Capture defaults
	v.SetDefault("icom.capture.interface", "")
	v.SetDefault("icom.capture.snap_len", 65535)
	v.SetDefault("icom.capture.buffer_size_mb", 64)
	v.SetDefault("icom.capture.poll_timeout", "100ms")
	v.SetDefault("icom.capture.fanout_id", 0)
	v.SetDefault("icom.capture.bpf_filter", "")
	v.SetDefault("icom.capture.match_only", false)
	v.SetDefault("icom.capture.workers", 1)
	v.SetDefault("icom.capture.channel_size", 4096)

	// Replay defaults
	v.SetDefault("icom.replay.input", "")
	v.SetDefault("icom.replay.output", "")

	// Inspection defaults
	v.SetDefault("icom.inspect.enabled", false)

	// Log defaults
	v.SetDefault("icom.log.level", "info")
	v.SetDefault("icom.log.pattern", log.DefaultPattern)
	v.SetDefault("icom.log.time", log.DefaultTime)
	v.SetDefault("icom.log.caller", false)

	// Metrics defaults
	v.SetDefault("icom.metrics.enabled", false)
	v.SetDefault("icom.metrics.listen", ":9091")
	v.SetDefault("icom.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and fills runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("%w: log level %q", core.ErrConfigInvalid, cfg.Log.Level)
	}

	// ── Filter validation ──
	if _, err := cfg.Match(); err != nil {
		return err
	}
	if cfg.Filter.ScanCap < 0 || cfg.Filter.ScanCap > rewriter.MaxScanCap {
		return fmt.Errorf("%w: filter.scan_cap %d outside 0..%d", core.ErrConfigInvalid, cfg.Filter.ScanCap, rewriter.MaxScanCap)
	}

	// ── Capture defaults ──
	if cfg.Capture.Workers < 1 {
		cfg.Capture.Workers = 1
	}
	if cfg.Capture.Workers > 1 && cfg.Capture.FanoutID == 0 {
		return fmt.Errorf("%w: capture.workers > 1 requires capture.fanout_id", core.ErrConfigInvalid)
	}
	if cfg.Capture.ChannelSize <= 0 {
		cfg.Capture.ChannelSize = 4096
	}
	if cfg.Capture.MatchOnly && cfg.Capture.BPFFilter != "" {
		return fmt.Errorf("%w: capture.match_only and capture.bpf_filter are exclusive", core.ErrConfigInvalid)
	}

	// ── Sink validation ──
	for i, s := range cfg.Sinks {
		if s.Type == "" {
			return fmt.Errorf("%w: sinks[%d].type is required", core.ErrConfigInvalid, i)
		}
	}

	return nil
}

// Match converts the filter section to a decoder.MatchConfig.
func (cfg *Config) Match() (decoder.MatchConfig, error) {
	addr, err := netip.ParseAddr(cfg.Filter.SourceIP)
	if err != nil || !addr.Is4() {
		return decoder.MatchConfig{}, fmt.Errorf("%w: filter.source_ip %q is not an IPv4 address", core.ErrConfigInvalid, cfg.Filter.SourceIP)
	}
	if cfg.Filter.DestPort <= 0 || cfg.Filter.DestPort > 65535 {
		return decoder.MatchConfig{}, fmt.Errorf("%w: filter.dest_port %d outside 1..65535", core.ErrConfigInvalid, cfg.Filter.DestPort)
	}
	return decoder.MatchConfig{Source: addr, DestPort: uint16(cfg.Filter.DestPort)}, nil
}

// FilterConfig builds the filter configuration.
func (cfg *Config) FilterConfig() (filter.Config, error) {
	m, err := cfg.Match()
	if err != nil {
		return filter.Config{}, err
	}
	return filter.Config{Match: m, ScanCap: cfg.Filter.ScanCap}, nil
}

// MatchBPF returns a BPF expression selecting only frames the filter
// rewrites. Used when capture.match_only is set.
func (cfg *Config) MatchBPF() string {
	return fmt.Sprintf("udp and src host %s and dst port %d", cfg.Filter.SourceIP, cfg.Filter.DestPort)
}

// Dump renders cfg under the `icom:` root key as YAML.
func Dump(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(map[string]*Config{"icom": cfg})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
