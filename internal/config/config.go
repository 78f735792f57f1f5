// Package config provides configuration types and defaults for chime.
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

// EnvPrefix prefixes environment overrides, e.g. CHIME_LOG_LEVEL.
const EnvPrefix = "CHIME"

// Config holds all configuration options for chime.
type Config struct {
	Audio        AudioConfig     `mapstructure:"audio" yaml:"audio"`
	Resources    ResourcesConfig `mapstructure:"resources" yaml:"resources"`
	Loader       LoaderConfig    `mapstructure:"loader" yaml:"loader"`
	Queue        QueueConfig     `mapstructure:"queue" yaml:"queue"`
	LoadingSound string          `mapstructure:"loading_sound" yaml:"loading_sound"`
	Telemetry    TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Log          LogConfig       `mapstructure:"log" yaml:"log"`
}

// AudioConfig configures the output device.
type AudioConfig struct {
	SampleRate int           `mapstructure:"sample_rate" yaml:"sample_rate"`
	Buffer     time.Duration `mapstructure:"buffer" yaml:"buffer"`
	// MaxChannels caps simultaneous effect channels.
	MaxChannels int `mapstructure:"max_channels" yaml:"max_channels"`
	// ResampleQuality is the resampler quality, 1 (fast) to 64 (best).
	ResampleQuality int `mapstructure:"resample_quality" yaml:"resample_quality"`
}

// ResourcesConfig says where sounds are found.
type ResourcesConfig struct {
	// Root holds downloaded sounds. Empty means bundle only.
	Root string `mapstructure:"root" yaml:"root"`
	// BundleDir replaces the built-in bundle with a directory. It must contain
	// resources/ and raw/.
	BundleDir string `mapstructure:"bundle_dir" yaml:"bundle_dir"`
	// ResolveTTL is how long a lookup under Root is remembered. Negative disables it.
	ResolveTTL time.Duration `mapstructure:"resolve_ttl" yaml:"resolve_ttl"`
	// Watch invalidates remembered lookups when files under Root change.
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// LoaderConfig configures the asset loader.
type LoaderConfig struct {
	// SyncTimeout bounds how long a play command waits for its sound. Zero waits forever.
	SyncTimeout time.Duration `mapstructure:"sync_timeout" yaml:"sync_timeout"`
}

// QueueConfig configures the command queue.
type QueueConfig struct {
	// WarnDepth logs a warning when this many commands are waiting. Zero disables it.
	WarnDepth int `mapstructure:"warn_depth" yaml:"warn_depth"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	// Exporter is one of "none", "stdout" or "otlp".
	Exporter string `mapstructure:"exporter" yaml:"exporter"`
	// Endpoint is the OTLP gRPC collector address.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	// File, if set, receives log output instead of stderr.
	File string `mapstructure:"file" yaml:"file"`
}

// Telemetry exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate:      44100,
			Buffer:          100 * time.Millisecond,
			MaxChannels:     16,
			ResampleQuality: 4,
		},
		Resources: ResourcesConfig{
			ResolveTTL: 30 * time.Second,
		},
		Queue: QueueConfig{
			WarnDepth: 256,
		},
		LoadingSound: "loadingsound",
		Telemetry: TelemetryConfig{
			Exporter: ExporterNone,
			Endpoint: "localhost:4317",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Validate checks configuration for errors.
func (c Config) Validate() error {
	var errs []error
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Audio.Buffer <= 0 {
		errs = append(errs, fmt.Errorf("audio.buffer must be positive, got %s", c.Audio.Buffer))
	}
	if c.Audio.MaxChannels <= 0 {
		errs = append(errs, fmt.Errorf("audio.max_channels must be positive, got %d", c.Audio.MaxChannels))
	}
	if c.Audio.ResampleQuality < 1 || c.Audio.ResampleQuality > 64 {
		errs = append(errs, fmt.Errorf("audio.resample_quality must be between 1 and 64, got %d", c.Audio.ResampleQuality))
	}
	if c.Loader.SyncTimeout < 0 {
		errs = append(errs, fmt.Errorf("loader.sync_timeout must not be negative, got %s", c.Loader.SyncTimeout))
	}
	if c.Queue.WarnDepth < 0 {
		errs = append(errs, fmt.Errorf("queue.warn_depth must not be negative, got %d", c.Queue.WarnDepth))
	}
	if c.LoadingSound == "" {
		errs = append(errs, errors.New("loading_sound is required"))
	}
	switch c.Telemetry.Exporter {
	case ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required for the otlp exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("telemetry.exporter must be none, stdout or otlp, got %q", c.Telemetry.Exporter))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	return errors.Join(errs...)
}

// SetDefaults registers Defaults() with v so that keys missing from the file
// and environment still unmarshal to their default values.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.buffer", d.Audio.Buffer)
	v.SetDefault("audio.max_channels", d.Audio.MaxChannels)
	v.SetDefault("audio.resample_quality", d.Audio.ResampleQuality)
	v.SetDefault("resources.root", d.Resources.Root)
	v.SetDefault("resources.bundle_dir", d.Resources.BundleDir)
	v.SetDefault("resources.resolve_ttl", d.Resources.ResolveTTL)
	v.SetDefault("resources.watch", d.Resources.Watch)
	v.SetDefault("loader.sync_timeout", d.Loader.SyncTimeout)
	v.SetDefault("queue.warn_depth", d.Queue.WarnDepth)
	v.SetDefault("loading_sound", d.LoadingSound)
	v.SetDefault("telemetry.exporter", d.Telemetry.Exporter)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// NewViper returns a viper instance with defaults and CHIME_ environment
// overrides configured. Nested keys use underscores: CHIME_AUDIO_SAMPLE_RATE.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config at path, applies environment overrides and validates
// the result. An empty path loads chime.yaml from DefaultDir if present and
// otherwise uses defaults.
func Load(path string) (Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("chime")
		v.SetConfigType("yaml")
		if dir, err := DefaultDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// DefaultDir returns the per-user configuration directory for chime.
func DefaultDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chime"), nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chime.yaml"), nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Chime Configuration

# Output device
audio:
  sample_rate: 44100     # Hz
  buffer: 100ms          # Mixing buffer; larger is smoother, smaller is snappier
  max_channels: 16       # Simultaneous sound effects; the oldest is cut when full
  resample_quality: 4    # 1 (fast) to 64 (best)

# Where sounds come from
resources:
  # Directory of downloaded sounds. "https://cdn.example.com/a.wav" is looked
  # up as <root>/cdn.example.com/a.wav; anything missing comes from the bundle.
  # root: /var/cache/game/sounds
  #
  # Replace the built-in bundle with a directory containing resources/ and raw/
  # bundle_dir: /path/to/bundle
  resolve_ttl: 30s       # How long a lookup is remembered (negative disables)
  watch: false           # Forget remembered lookups when files under root change

# Asset loader
loader:
  sync_timeout: 0s       # Max wait for a sound before a play command gives up (0 = forever)

# Command queue
queue:
  warn_depth: 256        # Log a warning at this backlog (0 = never)

# Raw resource played for the "loadingsound" URL
loading_sound: loadingsound

# Tracing
telemetry:
  exporter: none         # none, stdout or otlp
  endpoint: localhost:4317

# Logging
log:
  level: warn            # debug, info, warn or error
  # file: /tmp/chime.log

# Every key can be overridden from the environment with a CHIME_ prefix,
# e.g. CHIME_LOG_LEVEL=debug or CHIME_AUDIO_SAMPLE_RATE=48000.
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	// Create parent directory if needed
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write the template
	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
