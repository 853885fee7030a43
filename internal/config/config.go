// Package config loads itmview settings from YAML or TOML files and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"itmtrace/internal/common"
	"itmtrace/internal/itm"
	"itmtrace/internal/pipeline"
)

// Source kinds.
const (
	SourceFile   = "file"
	SourceSerial = "serial"
)

// Config is the top-level configuration for itmview.
type Config struct {
	Log     LogConfig     `yaml:"log" toml:"log"`
	Source  SourceConfig  `yaml:"source" toml:"source"`
	Decoder DecoderConfig `yaml:"decoder" toml:"decoder"`
	Output  OutputConfig  `yaml:"output" toml:"output"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

type LogConfig struct {
	Level string        `yaml:"level" toml:"level"`
	File  LogFileConfig `yaml:"file" toml:"file"`
}

// LogFileConfig configures the rotating log file. An empty path disables it.
type LogFileConfig struct {
	Path       string `yaml:"path" toml:"path"`
	MaxSize    int    `yaml:"max_size" toml:"max_size"` // megabytes
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAge     int    `yaml:"max_age" toml:"max_age"` // days
	Compress   bool   `yaml:"compress" toml:"compress"`
}

// SourceConfig selects where the raw SWO stream comes from.
type SourceConfig struct {
	Kind      string `yaml:"kind" toml:"kind"` // "file" or "serial"
	Path      string `yaml:"path" toml:"path"`
	Follow    bool   `yaml:"follow" toml:"follow"`
	Port      string `yaml:"port" toml:"port"`
	Baud      int    `yaml:"baud" toml:"baud"`
	ChunkSize int    `yaml:"chunk_size" toml:"chunk_size"`
}

type DecoderConfig struct {
	ClockHz     uint64 `yaml:"clock_hz" toml:"clock_hz"`
	Prescaler   uint32 `yaml:"prescaler" toml:"prescaler"`
	MaxResidual int    `yaml:"max_residual" toml:"max_residual"` // 0 = unlimited
	Formatted   bool   `yaml:"formatted" toml:"formatted"`
	TraceID     uint8  `yaml:"trace_id" toml:"trace_id"`
}

type OutputConfig struct {
	Exceptions      bool    `yaml:"exceptions" toml:"exceptions"`
	Instrumentation bool    `yaml:"instrumentation" toml:"instrumentation"`
	Packets         bool    `yaml:"packets" toml:"packets"`
	TextPorts       []uint8 `yaml:"text_ports" toml:"text_ports"`
	Stats           bool    `yaml:"stats" toml:"stats"`
}

// MetricsConfig configures the Prometheus endpoint. An empty listen address
// disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" toml:"listen"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
			File: LogFileConfig{
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
		Source: SourceConfig{
			Kind:      SourceSerial,
			Port:      "/dev/ttyUSB0",
			Baud:      1000000,
			ChunkSize: 4096,
		},
		Decoder: DecoderConfig{
			ClockHz:   itm.DefaultClockHz,
			Prescaler: itm.DefaultPrescale,
			TraceID:   1,
		},
		Output: OutputConfig{
			Exceptions:      true,
			Instrumentation: true,
		},
	}
}

// Load reads a configuration file over the defaults. The format follows the
// extension: .toml is TOML, anything else is YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := loadFileInto(path, cfg); err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func loadFileInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	return nil
}

// ApplyEnvOverrides reads ITMTRACE_* environment variables and applies them
// to the config, overriding file values. Unparseable numbers are ignored.
func (c *Config) ApplyEnvOverrides() {
	stringOverrides := map[string]*string{
		"ITMTRACE_LOG_LEVEL":      &c.Log.Level,
		"ITMTRACE_LOG_FILE":       &c.Log.File.Path,
		"ITMTRACE_SOURCE_KIND":    &c.Source.Kind,
		"ITMTRACE_SOURCE_PATH":    &c.Source.Path,
		"ITMTRACE_SOURCE_PORT":    &c.Source.Port,
		"ITMTRACE_METRICS_LISTEN": &c.Metrics.Listen,
	}
	intOverrides := map[string]*int{
		"ITMTRACE_SOURCE_BAUD":          &c.Source.Baud,
		"ITMTRACE_SOURCE_CHUNK_SIZE":    &c.Source.ChunkSize,
		"ITMTRACE_DECODER_MAX_RESIDUAL": &c.Decoder.MaxResidual,
	}
	boolOverrides := map[string]*bool{
		"ITMTRACE_SOURCE_FOLLOW":      &c.Source.Follow,
		"ITMTRACE_DECODER_FORMATTED":  &c.Decoder.Formatted,
		"ITMTRACE_OUTPUT_PACKETS":     &c.Output.Packets,
		"ITMTRACE_OUTPUT_EXCEPTIONS":  &c.Output.Exceptions,
		"ITMTRACE_OUTPUT_INSTRUMENTS": &c.Output.Instrumentation,
	}

	for key, target := range stringOverrides {
		if val := os.Getenv(key); val != "" {
			*target = val
		}
	}
	for key, target := range intOverrides {
		if val := os.Getenv(key); val != "" {
			if n, err := strconv.Atoi(val); err == nil {
				*target = n
			}
		}
	}
	for key, target := range boolOverrides {
		if val := os.Getenv(key); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				*target = b
			}
		}
	}

	if val := os.Getenv("ITMTRACE_DECODER_CLOCK_HZ"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 64); err == nil {
			c.Decoder.ClockHz = n
		}
	}
	if val := os.Getenv("ITMTRACE_DECODER_PRESCALER"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			c.Decoder.Prescaler = uint32(n)
		}
	}
	if val := os.Getenv("ITMTRACE_DECODER_TRACE_ID"); val != "" {
		if n, err := strconv.ParseUint(val, 0, 8); err == nil {
			c.Decoder.TraceID = uint8(n)
		}
	}
}

// Validate checks the config for values the session cannot run with.
func (c *Config) Validate() error {
	if _, err := common.ParseSeverity(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	switch c.Source.Kind {
	case SourceFile:
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for a file source")
		}
	case SourceSerial:
		if c.Source.Port == "" {
			return fmt.Errorf("source.port is required for a serial source")
		}
		if c.Source.Baud <= 0 {
			return fmt.Errorf("source.baud must be positive, got %d", c.Source.Baud)
		}
	default:
		return fmt.Errorf("source.kind must be %q or %q, got %q", SourceFile, SourceSerial, c.Source.Kind)
	}
	if c.Source.ChunkSize <= 0 {
		return fmt.Errorf("source.chunk_size must be positive, got %d", c.Source.ChunkSize)
	}

	if err := c.PipelineConfig().Validate(); err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	return nil
}

// ITMConfig returns the ITM decoder settings.
func (c *Config) ITMConfig() *itm.Config {
	return &itm.Config{
		ClockHz:     c.Decoder.ClockHz,
		Prescale:    c.Decoder.Prescaler,
		MaxResidual: c.Decoder.MaxResidual,
	}
}

// PipelineConfig returns the decode tree settings.
func (c *Config) PipelineConfig() *pipeline.Config {
	return &pipeline.Config{
		ITM:       c.ITMConfig(),
		Formatted: c.Decoder.Formatted,
		TraceID:   c.Decoder.TraceID,
	}
}

// LogFile returns the rotating log file settings.
func (c *Config) LogFile() common.LogFile {
	return common.LogFile{
		Path:       c.Log.File.Path,
		MaxSize:    c.Log.File.MaxSize,
		MaxBackups: c.Log.File.MaxBackups,
		MaxAge:     c.Log.File.MaxAge,
		Compress:   c.Log.File.Compress,
	}
}
