// Package pipeline wires audio capture, transcription, vocabulary matching and
// the penalty scheduler together and owns their lifetimes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"straf/audio"
	"straf/detector"
	"straf/log"
	"straf/penalty"
	"straf/transcriber"
)

const (
	DefaultTickInterval = 50 * time.Millisecond
	DefaultPhraseBuffer = 32
)

var ErrRunning = errors.New("pipeline: already running")

// Phrase is one recognized utterance.
type Phrase struct {
	Text       string
	Confidence float64
	At         time.Time
}

// Matcher finds vocabulary hits in recognized text.
type Matcher interface {
	Analyze(text string, confidence float64) []detector.Match
}

// Recorder receives pipeline counts. *metrics.Metrics implements it.
type Recorder interface {
	RecordPhrase(provider string)
	RecordMatch(word string)
}

// MatchPhrase returns the trigger reasons for one phrase, one per match.
func MatchPhrase(m Matcher, p Phrase) []string {
	matches := m.Analyze(p.Text, p.Confidence)
	if len(matches) == 0 {
		return nil
	}
	reasons := make([]string, len(matches))
	for i, match := range matches {
		reasons[i] = match.Word
	}
	return reasons
}

type Config struct {
	SampleRate   int
	Channels     int
	TickInterval time.Duration
	PhraseBuffer int
	// Hints is passed to the transcriber's Initialize.
	Hints []string
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = audio.DefaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = audio.DefaultChannels
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.PhraseBuffer <= 0 {
		c.PhraseBuffer = DefaultPhraseBuffer
	}
	return c
}

type Option func(*Driver)

func WithRecorder(r Recorder) Option {
	return func(d *Driver) { d.recorder = r }
}

// WithPhraseHook registers fn to see every phrase with its trigger reasons.
// It runs on the matcher goroutine and must not block.
func WithPhraseHook(fn func(p Phrase, reasons []string)) Option {
	return func(d *Driver) { d.hook = fn }
}

// WithSink makes Run push the initial severity to sink once the stages are
// running.
func WithSink(s penalty.Sink) Option {
	return func(d *Driver) { d.sink = s }
}

// Driver runs the stages. Frames go from the source to the transcriber only;
// phrases pass through a bounded channel to a single matcher goroutine, which
// is the only caller of Trigger. A separate goroutine calls Tick.
type Driver struct {
	cfg      Config
	source   audio.Source
	stt      transcriber.Transcriber
	matcher  Matcher
	sched    *penalty.Scheduler
	sink     penalty.Sink
	recorder Recorder
	hook     func(Phrase, []string)

	running atomic.Bool
	paused  atomic.Bool

	phrasesMu sync.RWMutex
	phrases   chan Phrase
	dropped   atomic.Int64
	frames    atomic.Int64
}

func New(cfg Config, source audio.Source, stt transcriber.Transcriber, m Matcher, sched *penalty.Scheduler, opts ...Option) *Driver {
	d := &Driver{
		cfg:     cfg.withDefaults(),
		source:  source,
		stt:     stt,
		matcher: m,
		sched:   sched,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// SetPaused stops or resumes forwarding audio to the transcriber. Capture
// keeps running so resuming is immediate.
func (d *Driver) SetPaused(p bool) {
	if d.paused.Swap(p) != p {
		log.Infof("pipeline: paused=%v", p)
	}
}

func (d *Driver) Paused() bool { return d.paused.Load() }

// Dropped returns the number of phrases discarded because the matcher fell
// behind.
func (d *Driver) Dropped() int64 { return d.dropped.Load() }

// Frames returns the number of audio frames forwarded to the transcriber.
func (d *Driver) Frames() int64 { return d.frames.Load() }

// Run initializes the source and the transcriber, starts every stage and
// blocks until ctx is cancelled. Shutdown stops the transcriber, then the
// source, then joins the matcher and finally the tick loop. Once Run
// returns no Trigger or Tick is in flight.
func (d *Driver) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer d.running.Store(false)

	if err := d.source.Initialize(d.cfg.SampleRate, d.cfg.Channels); err != nil {
		return fmt.Errorf("audio %s: %w", d.source.Name(), err)
	}
	if err := d.stt.Initialize(d.cfg.Hints); err != nil {
		d.source.Stop()
		return fmt.Errorf("transcriber %s: %w", d.stt.Name(), err)
	}

	phrases := make(chan Phrase, d.cfg.PhraseBuffer)
	d.phrasesMu.Lock()
	d.phrases = phrases
	d.phrasesMu.Unlock()

	var g errgroup.Group
	matcherDone := make(chan struct{})
	g.Go(func() error {
		defer close(matcherDone)
		for p := range phrases {
			d.handle(p)
		}
		return nil
	})

	closePhrases := func() {
		d.phrasesMu.Lock()
		d.phrases = nil
		d.phrasesMu.Unlock()
		close(phrases)
		<-matcherDone
	}

	// nothing can trigger yet, so this push cannot overwrite a penalty
	if d.sink != nil {
		d.sink.UpdateStatus(d.sched.Severity(), "")
	}
	if err := d.stt.Start(d.onPhrase); err != nil {
		closePhrases()
		d.source.Stop()
		g.Wait()
		return fmt.Errorf("transcriber %s: start: %w", d.stt.Name(), err)
	}
	if err := d.source.Start(d.onFrame); err != nil {
		d.stt.Stop()
		closePhrases()
		g.Wait()
		return fmt.Errorf("audio %s: start: %w", d.source.Name(), err)
	}

	log.Infof("pipeline: running (audio=%s stt=%s tick=%s)", d.source.Name(), d.stt.Name(), d.cfg.TickInterval)

	tickCtx, stopTicks := context.WithCancel(context.WithoutCancel(ctx))
	defer stopTicks()
	g.Go(func() error {
		d.tickLoop(tickCtx)
		return nil
	})

	<-ctx.Done()
	log.Info("pipeline: stopping")

	d.stt.Stop()
	d.source.Stop()
	closePhrases()
	stopTicks()
	err := g.Wait()

	if n := d.dropped.Load(); n > 0 {
		log.Warnf("pipeline: %d phrases dropped", n)
	}
	log.Info("pipeline: stopped")
	return err
}

func (d *Driver) onFrame(pcm []byte) {
	if d.paused.Load() {
		return
	}
	d.frames.Add(1)
	d.stt.Feed(pcm)
}

func (d *Driver) onPhrase(text string, confidence float64) {
	p := Phrase{Text: text, Confidence: confidence, At: time.Now()}

	d.phrasesMu.RLock()
	defer d.phrasesMu.RUnlock()
	if d.phrases == nil {
		return
	}
	select {
	case d.phrases <- p:
	default:
		d.dropped.Add(1)
		log.Warnf("pipeline: matcher behind, dropping phrase %q", text)
	}
}

func (d *Driver) handle(p Phrase) {
	log.Phrase(p.Text, p.Confidence)
	if d.recorder != nil {
		d.recorder.RecordPhrase(d.stt.Name())
	}
	reasons := MatchPhrase(d.matcher, p)
	if d.hook != nil {
		d.hook(p, reasons)
	}
	for _, reason := range reasons {
		log.Match(reason, p.Confidence)
		if d.recorder != nil {
			d.recorder.RecordMatch(reason)
		}
		d.sched.Trigger(reason)
	}
}

func (d *Driver) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sched.Tick()
		}
	}
}
