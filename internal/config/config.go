// Package config loads service settings from defaults, an optional YAML
// file and VOXSERVE_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fmueller/voxserve/internal/normalize"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "VOXSERVE_"

type Log struct {
	Verbose bool `yaml:"verbose"`
	JSON    bool `yaml:"json"`
}

type Config struct {
	Model        string `yaml:"model"`
	ModelDir     string `yaml:"model_dir"`
	AutoDownload bool   `yaml:"auto_download"`
	Language     string `yaml:"language"`

	Listen      string `yaml:"listen"`
	MaxUploadMB int    `yaml:"max_upload_mb"`

	QueueCapacity        int     `yaml:"queue_capacity"`
	RequestTimeoutSecs   float64 `yaml:"request_timeout"`
	InferenceConcurrency int     `yaml:"inference_concurrency"`
	Workers              int     `yaml:"workers"`

	AudioFilters        string `yaml:"audio_filters"`
	DisableAudioFilters bool   `yaml:"disable_audio_filters"`
	FFmpegPath          string `yaml:"ffmpeg_path"`
	WhisperPath         string `yaml:"whisper_path"`
	ScratchDir          string `yaml:"scratch_dir"`

	Normalizer        string `yaml:"normalizer"`
	NormalizerCommand string `yaml:"normalizer_command"`

	SilenceGate          bool    `yaml:"silence_gate"`
	SilenceThresholdDBFS float64 `yaml:"silence_threshold_dbfs"`

	Log       Log    `yaml:"log"`
	SentryDSN string `yaml:"sentry_dsn"`
}

func Default() Config {
	return Config{
		Model:                "small",
		AutoDownload:         true,
		Language:             "auto",
		Listen:               "127.0.0.1:8000",
		MaxUploadMB:          25,
		QueueCapacity:        8,
		RequestTimeoutSecs:   60,
		InferenceConcurrency: 1,
		Workers:              1,
		AudioFilters:         "highpass=f=80,dynaudnorm",
		FFmpegPath:           "ffmpeg",
		Normalizer:           normalize.ModeNumbers,
		SilenceThresholdDBFS: -65,
	}
}

// Load reads path over the defaults. Keys the file leaves out keep their
// default value; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays VOXSERVE_<KEY> variables, e.g. VOXSERVE_QUEUE_CAPACITY.
// lookup is normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	setters := c.envSetters()
	var errs []error
	for _, key := range slices.Sorted(maps.Keys(setters)) {
		set := setters[key]
		raw, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		if err := set(strings.TrimSpace(raw)); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) envSetters() map[string]func(string) error {
	return map[string]func(string) error{
		"MODEL":                  setString(&c.Model),
		"MODEL_DIR":              setString(&c.ModelDir),
		"AUTO_DOWNLOAD":          setBool(&c.AutoDownload),
		"LANGUAGE":               setString(&c.Language),
		"LISTEN":                 setString(&c.Listen),
		"MAX_UPLOAD_MB":          setInt(&c.MaxUploadMB),
		"QUEUE_CAPACITY":         setInt(&c.QueueCapacity),
		"REQUEST_TIMEOUT":        setFloat(&c.RequestTimeoutSecs),
		"INFERENCE_CONCURRENCY":  setInt(&c.InferenceConcurrency),
		"WORKERS":                setInt(&c.Workers),
		"AUDIO_FILTERS":          setString(&c.AudioFilters),
		"DISABLE_AUDIO_FILTERS":  setBool(&c.DisableAudioFilters),
		"FFMPEG_PATH":            setString(&c.FFmpegPath),
		"WHISPER_PATH":           setString(&c.WhisperPath),
		"SCRATCH_DIR":            setString(&c.ScratchDir),
		"NORMALIZER":             setString(&c.Normalizer),
		"NORMALIZER_COMMAND":     setString(&c.NormalizerCommand),
		"SILENCE_GATE":           setBool(&c.SilenceGate),
		"SILENCE_THRESHOLD_DBFS": setFloat(&c.SilenceThresholdDBFS),
		"LOG_VERBOSE":            setBool(&c.Log.Verbose),
		"LOG_JSON":               setBool(&c.Log.JSON),
		"SENTRY_DSN":             setString(&c.SentryDSN),
	}
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", v)
		}
		*dst = b
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer %q", v)
		}
		*dst = n
		return nil
	}
}

func setFloat(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", v)
		}
		*dst = f
		return nil
	}
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("model must not be empty"))
	}
	if strings.TrimSpace(c.Listen) == "" {
		errs = append(errs, errors.New("listen address must not be empty"))
	}
	if c.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("queue_capacity must be at least 1, got %d", c.QueueCapacity))
	}
	if c.InferenceConcurrency < 1 {
		errs = append(errs, fmt.Errorf("inference_concurrency must be at least 1, got %d", c.InferenceConcurrency))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.RequestTimeoutSecs <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %g", c.RequestTimeoutSecs))
	}
	if c.MaxUploadMB < 1 {
		errs = append(errs, fmt.Errorf("max_upload_mb must be at least 1, got %d", c.MaxUploadMB))
	}
	if c.SilenceThresholdDBFS >= 0 {
		errs = append(errs, fmt.Errorf("silence_threshold_dbfs must be negative, got %g", c.SilenceThresholdDBFS))
	}

	switch c.Normalizer {
	case normalize.ModeNumbers, normalize.ModeNone:
	case normalize.ModeCommand:
		if strings.TrimSpace(c.NormalizerCommand) == "" {
			errs = append(errs, errors.New("normalizer_command is required when normalizer is \"command\""))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown normalizer %q (want numbers|command|none)", c.Normalizer))
	}

	return errors.Join(errs...)
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs * float64(time.Second))
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// FilterChain is the ffmpeg -af chain to apply, empty when disabled.
func (c Config) FilterChain() string {
	if c.DisableAudioFilters {
		return ""
	}
	return strings.TrimSpace(c.AudioFilters)
}
