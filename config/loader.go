package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"straf/log"
)

var ErrNotFound = errors.New("config file not found")

var (
	validSources   = []string{"device", "silent", "wav"}
	validProviders = []string{"auto", "deepgram", "groq", "whisper", "fake", "stub"}
	validSinks     = []string{"log", "tray", "tui", "beep", "gui"}
)

// Load reads the file at path, or the embedded sample when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg, err := LoadFromReader(bytes.NewReader(Sample))
		if err != nil {
			return nil, fmt.Errorf("config: embedded sample: %w", err)
		}
		return cfg, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: %q: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML over Default, applies environment overrides
// and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	ApplyEnv(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv applies the STRAF_* overrides.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvAudioSource); v != "" {
		cfg.Audio.Source = strings.ToLower(v)
	}
	if v := os.Getenv(EnvSTT); v != "" {
		cfg.STT.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(EnvWhisperModel); v != "" {
		cfg.STT.Model = v
	}
	if os.Getenv(EnvNoDetector) != "" {
		log.Info("config: STRAF_NO_DETECTOR set, vocabulary cleared")
		cfg.Words = nil
	}
}

// Validate returns all problems found, joined.
func Validate(cfg *Config) error {
	var errs []error
	p := cfg.Penalty

	for _, f := range []struct {
		name string
		v    int
	}{
		{"penalty.durationSeconds", p.DurationSeconds},
		{"penalty.cooldownSeconds", p.CooldownSeconds},
		{"penalty.queueLimit", p.QueueLimit},
		{"penalty.debounceSeconds", p.DebounceSeconds},
		{"penalty.phraseCooldownSeconds", p.PhraseCooldownSeconds},
	} {
		if f.v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", f.name, f.v))
		}
	}
	if p.DurationSeconds == 0 && len(p.LevelSeconds) == 0 {
		errs = append(errs, errors.New("penalty.levelSeconds must not be empty when durationSeconds is 0"))
	}
	for i, s := range p.LevelSeconds {
		if s <= 0 {
			errs = append(errs, fmt.Errorf("penalty.levelSeconds[%d] must be positive, got %d", i, s))
		}
	}

	a := cfg.Audio
	if !slices.Contains(validSources, a.Source) {
		errs = append(errs, fmt.Errorf("audio.source %q is invalid; valid values: %s", a.Source, strings.Join(validSources, ", ")))
	}
	if a.Source == "wav" && a.WAVPath == "" {
		errs = append(errs, errors.New("audio.wavPath is required when audio.source is wav"))
	}
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("audio.sampleRate %d is out of range 8000-48000", a.SampleRate))
	}
	if a.Channels != 1 && a.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels must be 1 or 2, got %d", a.Channels))
	}

	if !slices.Contains(validProviders, cfg.STT.Provider) {
		errs = append(errs, fmt.Errorf("stt.provider %q is invalid; valid values: %s", cfg.STT.Provider, strings.Join(validProviders, ", ")))
	}

	if t := cfg.Detector.FuzzyThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("detector.fuzzyThreshold must be in (0, 1], got %v", t))
	}

	for _, s := range cfg.Overlay.Sinks {
		if !slices.Contains(validSinks, s) {
			errs = append(errs, fmt.Errorf("overlay.sinks: unknown sink %q; valid values: %s", s, strings.Join(validSinks, ", ")))
		}
	}

	if _, err := log.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	if l := cfg.Metrics.Listen; l != "" {
		if _, _, err := net.SplitHostPort(l); err != nil {
			errs = append(errs, fmt.Errorf("metrics.listen %q: %w", l, err))
		}
	}

	if len(cfg.Words) == 0 {
		log.Warn("config: vocabulary is empty, nothing will be detected")
	}

	return errors.Join(errs...)
}

// ResolvePath picks the config file: the -config flag, then
// STRAF_CONFIG_PATH, then the sample when STRAF_USE_SAMPLE_CONFIG is set,
// then the per-user file, which is seeded from the sample on first run.
// An empty result means the embedded sample.
func ResolvePath(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	if os.Getenv(EnvUseSample) != "" {
		if _, err := os.Stat(SampleFileName); err == nil {
			return SampleFileName, nil
		}
		return "", nil
	}
	return EnsureUserConfig()
}

// UserPath returns the per-user config file location.
func UserPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(dir, "straf", FileName), nil
}

// EnsureUserConfig returns the per-user config path, writing the sample
// there first if no file exists yet.
func EnsureUserConfig() (string, error) {
	path, err := UserPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, Sample, 0o644); err != nil {
		return "", fmt.Errorf("writing default config: %w", err)
	}
	log.Infof("config: wrote default configuration to %s", path)
	return path, nil
}
