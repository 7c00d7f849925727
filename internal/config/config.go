package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/satindergrewal/automix/internal/mixer"
	"github.com/satindergrewal/automix/internal/transition"
)

// Prefix is prepended to every environment variable name.
const Prefix = "automix"

// Config holds all runtime configuration, loaded from AUTOMIX_* environment variables.
type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"8080"`
	UploadDir   string `envconfig:"UPLOAD_DIR" default:"uploads"`
	OutputDir   string `envconfig:"OUTPUT_DIR" default:"output"`
	MaxUploadMB int64  `envconfig:"MAX_UPLOAD_MB" default:"200"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Codec
	FFmpeg       string `envconfig:"FFMPEG" default:"ffmpeg"`
	SampleRate   int    `envconfig:"SAMPLE_RATE" default:"22050"`
	OutputFormat string `envconfig:"OUTPUT_FORMAT" default:"mp3"`

	// Transitions
	FadeCurve     string        `envconfig:"FADE_CURVE" default:"equal_power"`
	AlignToBeat   bool          `envconfig:"ALIGN_TO_BEAT" default:"true"`
	SkipSilence   bool          `envconfig:"SKIP_SILENCE" default:"true"`
	MaxStretch    float64       `envconfig:"MAX_STRETCH" default:"0.15"`
	EchoDelay     time.Duration `envconfig:"ECHO_DELAY" default:"300ms"`
	EchoDecay     float64       `envconfig:"ECHO_DECAY" default:"0.5"`
	EchoTaps      int           `envconfig:"ECHO_TAPS" default:"3"`
	FeatureWindow time.Duration `envconfig:"FEATURE_WINDOW" default:"60s"`
	TrimSilence   bool          `envconfig:"TRIM_SILENCE" default:"true"`

	// CachePath is the SQLite feature cache. Empty disables caching.
	CachePath string `envconfig:"CACHE_PATH"`
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the mixer cannot run with.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	case !transition.ValidCurve(c.FadeCurve):
		return fmt.Errorf("unknown fade curve %q (available: %v)", c.FadeCurve, transition.Curves())
	case c.MaxStretch < 0 || c.MaxStretch >= 1:
		return fmt.Errorf("max stretch must be in [0, 1), got %g", c.MaxStretch)
	case c.EchoDecay < 0 || c.EchoDecay >= 1:
		return fmt.Errorf("echo decay must be in [0, 1), got %g", c.EchoDecay)
	case c.EchoTaps < 0:
		return fmt.Errorf("echo taps must not be negative, got %d", c.EchoTaps)
	case c.EchoDelay < 0:
		return fmt.Errorf("echo delay must not be negative, got %v", c.EchoDelay)
	case c.MaxUploadMB <= 0:
		return fmt.Errorf("max upload size must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}

// MixerConfig converts the settings into orchestrator options.
func (c Config) MixerConfig() mixer.Config {
	opts := transition.DefaultOptions()
	opts.Curve = c.FadeCurve
	opts.AlignToBeat = c.AlignToBeat
	opts.SkipSilence = c.SkipSilence
	opts.MaxStretch = c.MaxStretch
	opts.EchoDelay = c.EchoDelay
	opts.EchoDecay = c.EchoDecay
	opts.EchoTaps = c.EchoTaps

	return mixer.Config{
		SampleRate:    c.SampleRate,
		Transition:    opts,
		FeatureWindow: c.FeatureWindow,
		TrimSilence:   c.TrimSilence,
	}
}

// ProvideConfig loads the configuration for the fx graph.
func ProvideConfig() (Config, error) {
	return Load()
}

var Options = ProvideConfig
