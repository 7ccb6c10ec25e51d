// Package config loads the YAML configuration file, applies environment
// overrides and converts it into the settings of the other packages.
package config

import (
	_ "embed"
	"time"

	"straf/audio"
	"straf/detector"
	"straf/penalty"
	"straf/transcriber"
)

//go:embed config.sample.yaml
var Sample []byte

// File and environment names.
const (
	FileName       = "config.yaml"
	SampleFileName = "config.sample.yaml"

	EnvConfigPath   = "STRAF_CONFIG_PATH"
	EnvUseSample    = "STRAF_USE_SAMPLE_CONFIG"
	EnvAudioSource  = "STRAF_AUDIO_SOURCE"
	EnvSTT          = "STRAF_STT"
	EnvWhisperModel = "STRAF_WHISPER_MODEL"
	EnvNoDetector   = "STRAF_NO_DETECTOR"
)

type Config struct {
	Words    []string       `yaml:"words"`
	Penalty  PenaltyConfig  `yaml:"penalty"`
	Audio    AudioConfig    `yaml:"audio"`
	STT      STTConfig      `yaml:"stt"`
	Detector DetectorConfig `yaml:"detector"`
	Overlay  OverlayConfig  `yaml:"overlay"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type PenaltyConfig struct {
	DurationSeconds       int   `yaml:"durationSeconds"`
	CooldownSeconds       int   `yaml:"cooldownSeconds"`
	QueueLimit            int   `yaml:"queueLimit"`
	DebounceSeconds       int   `yaml:"debounceSeconds"`
	PhraseCooldownSeconds int   `yaml:"phraseCooldownSeconds"`
	LevelSeconds          []int `yaml:"levelSeconds"`
}

type AudioConfig struct {
	Source     string `yaml:"source"`
	Device     string `yaml:"device"`
	WAVPath    string `yaml:"wavPath"`
	SampleRate int    `yaml:"sampleRate"`
	Channels   int    `yaml:"channels"`
}

type STTConfig struct {
	Provider string `yaml:"provider"`
	Language string `yaml:"language"`
	Model    string `yaml:"model"`
}

type DetectorConfig struct {
	Phonetic       bool    `yaml:"phonetic"`
	FuzzyThreshold float64 `yaml:"fuzzyThreshold"`
}

type OverlayConfig struct {
	Sinks []string `yaml:"sinks"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the settings used for keys missing from the file.
func Default() Config {
	return Config{
		Penalty: PenaltyConfig{
			CooldownSeconds:       60,
			QueueLimit:            5,
			DebounceSeconds:       3,
			PhraseCooldownSeconds: 15,
			LevelSeconds:          []int{5, 8, 12, 18, 25},
		},
		Audio: AudioConfig{
			Source:     "device",
			SampleRate: 16000,
			Channels:   1,
		},
		STT: STTConfig{
			Provider: "auto",
			Language: "en",
		},
		Detector: DetectorConfig{
			FuzzyThreshold: 0.85,
		},
		Overlay: OverlayConfig{
			Sinks: []string{"log"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Scheduler converts the penalty section. A positive durationSeconds
// replaces the level table with that single length.
func (c Config) Scheduler() penalty.Config {
	p := c.Penalty
	levels := make([]time.Duration, 0, len(p.LevelSeconds))
	if p.DurationSeconds > 0 {
		levels = append(levels, seconds(p.DurationSeconds))
	} else {
		for _, s := range p.LevelSeconds {
			levels = append(levels, seconds(s))
		}
	}
	return penalty.Config{
		QueueLimit:     p.QueueLimit,
		Debounce:       seconds(p.DebounceSeconds),
		PhraseCooldown: seconds(p.PhraseCooldownSeconds),
		LevelDurations: levels,
		Cooldown:       seconds(p.CooldownSeconds),
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Source creates the configured audio source.
func (c Config) Source() (audio.Source, error) {
	return audio.NewSource(c.Audio.Source, c.Audio.Device, c.Audio.WAVPath)
}

func (c Config) Transcriber() transcriber.Options {
	return transcriber.Options{
		Provider: c.STT.Provider,
		Config: transcriber.Config{
			SampleRate: c.Audio.SampleRate,
			Channels:   c.Audio.Channels,
			Language:   c.STT.Language,
			Model:      c.STT.Model,
		},
	}
}

// Matcher builds the vocabulary matcher.
func (c Config) Matcher() *detector.Matcher {
	var opts []detector.Option
	if c.Detector.Phonetic {
		opts = append(opts, detector.WithPhonetic(detector.DefaultPhoneticThreshold, c.Detector.FuzzyThreshold))
	}
	m := detector.New(opts...)
	m.Configure(c.Words)
	return m
}
