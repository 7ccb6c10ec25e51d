package transcriber

import (
	"errors"
	"fmt"
	"os"

	"straf/audio"
	"straf/log"
)

// PhraseFunc receives one recognized phrase. Confidence is in [0, 1].
type PhraseFunc func(text string, confidence float64)

// Transcriber turns a stream of PCM frames into phrases. Feed is called from
// the audio goroutine and must not block. Phrases are delivered on the
// transcriber's own goroutine. Stop joins that goroutine; no callback runs
// after it returns.
type Transcriber interface {
	Name() string
	Initialize(hints []string) error
	Start(onPhrase PhraseFunc) error
	Feed(pcm []byte)
	Stop()
}

// Provider names accepted by New.
const (
	ProviderAuto     = "auto"
	ProviderDeepgram = "deepgram"
	ProviderGroq     = "groq"
	ProviderWhisper  = "whisper"
	ProviderFake     = "fake"
	ProviderStub     = "stub"
)

var (
	ErrNoProvider = errors.New("no transcription provider available")
	errNotRunning = errors.New("transcriber not running")
)

// Config is the audio format and model selection shared by all providers.
type Config struct {
	SampleRate int
	Channels   int
	Language   string
	Model      string // provider model name, or the model file for whisper
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = audio.DefaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = audio.DefaultChannels
	}
	return c
}

type Options struct {
	Config
	Provider    string
	DeepgramKey string
	GroqKey     string
}

// New returns the transcriber named by opts.Provider. API keys left empty
// are read from DEEPGRAM_API_KEY and GROQ_API_KEY. The auto provider picks
// deepgram, then groq, then a configured whisper model, and falls back to
// the stub so the program still runs without recognition.
func New(opts Options) (Transcriber, error) {
	if opts.DeepgramKey == "" {
		opts.DeepgramKey = os.Getenv("DEEPGRAM_API_KEY")
	}
	if opts.GroqKey == "" {
		opts.GroqKey = os.Getenv("GROQ_API_KEY")
	}
	cfg := opts.Config.withDefaults()

	switch opts.Provider {
	case "", ProviderAuto:
		switch {
		case opts.DeepgramKey != "":
			return NewDeepgram(opts.DeepgramKey, cfg), nil
		case opts.GroqKey != "":
			return NewGroq(opts.GroqKey, cfg), nil
		case cfg.Model != "":
			return NewWhisper(cfg)
		}
		log.Warn("no transcription provider configured, speech will not be recognized")
		return NewStub(), nil
	case ProviderDeepgram:
		if opts.DeepgramKey == "" {
			return nil, fmt.Errorf("%w: set DEEPGRAM_API_KEY", ErrNoProvider)
		}
		return NewDeepgram(opts.DeepgramKey, cfg), nil
	case ProviderGroq:
		if opts.GroqKey == "" {
			return nil, fmt.Errorf("%w: set GROQ_API_KEY", ErrNoProvider)
		}
		return NewGroq(opts.GroqKey, cfg), nil
	case ProviderWhisper:
		return NewWhisper(cfg)
	case ProviderFake:
		return NewFake(), nil
	case ProviderStub:
		return NewStub(), nil
	}
	return nil, fmt.Errorf("%w: unknown provider %q", ErrNoProvider, opts.Provider)
}
