// Package beep plays short audible cues when a penalty starts and ends.
package beep

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"straf/log"
)

const sampleRate = 44100

var disabled atomic.Bool

// Disable silences all cues for the rest of the process.
func Disable() { disabled.Store(true) }

// tone is a decaying sine burst, repeated with silence in between.
type tone struct {
	freq     float64
	volume   float64
	decay    float64
	duration float64
	repeat   int
	gap      float64
}

var (
	penaltyTone  = tone{freq: 350, volume: 0.6, decay: 30, duration: 0.08, repeat: 2, gap: 0.05}
	escalateTone = tone{freq: 700, volume: 0.4, decay: 50, duration: 0.06, repeat: 1}
	clearTone    = tone{freq: 900, volume: 0.4, decay: 40, duration: 0.2, repeat: 1}
)

func (t tone) render(rate int) []int16 {
	burst := sine(rate, t.freq, t.duration, t.volume, t.decay)
	gap := int(float64(rate) * t.gap)
	out := make([]int16, 0, t.repeat*(len(burst)+gap))
	for i := 0; i < t.repeat; i++ {
		if i > 0 {
			out = append(out, make([]int16, gap)...)
		}
		out = append(out, burst...)
	}
	return out
}

func sine(rate int, freq, duration, volume, decay float64) []int16 {
	n := int(float64(rate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(rate)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * math.Exp(-t*decay))
	}
	return samples
}

func le16(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// speaker plays one mono 16-bit cue at sampleRate and returns when it is done.
type speaker interface {
	play(pcm []byte)
	close()
}

var (
	initOnce sync.Once
	pending  chan []byte
	rendered struct{ penalty, escalate, clear []byte }
)

// Init renders the cues and opens the audio output. Without an output
// device cues are silently dropped.
func Init() {
	initOnce.Do(func() {
		rendered.penalty = le16(penaltyTone.render(sampleRate))
		rendered.escalate = le16(escalateTone.render(sampleRate))
		rendered.clear = le16(clearTone.render(sampleRate))

		spk, err := newSpeaker()
		if err != nil {
			log.Warnf("beep: %v, cues disabled", err)
			return
		}
		pending = make(chan []byte, 1)
		go func() {
			for pcm := range pending {
				spk.play(pcm)
			}
			spk.close()
		}()
	})
}

// play hands a cue to the output goroutine. A cue arriving while another
// is still waiting is dropped.
func play(pcm []byte) {
	if disabled.Load() || pending == nil {
		return
	}
	select {
	case pending <- pcm:
	default:
	}
}

func PlayPenalty()  { Init(); play(rendered.penalty) }
func PlayEscalate() { Init(); play(rendered.escalate) }
func PlayClear()    { Init(); play(rendered.clear) }

// Sink turns penalty transitions into cues: a double beep when a penalty
// starts, a short tick when another one is queued behind it, and a soft
// tone when the last one ends. Playback never blocks the caller.
type Sink struct {
	penalty, escalate, clear func()

	mu       sync.Mutex
	severity int
}

func NewSink() *Sink {
	return &Sink{penalty: PlayPenalty, escalate: PlayEscalate, clear: PlayClear}
}

func (s *Sink) Init() error {
	Init()
	return nil
}

func (s *Sink) Close() {}

func (s *Sink) ShowPenalty(string) { s.penalty() }

func (s *Sink) UpdateStatus(severity int, label string) {
	s.mu.Lock()
	prev := s.severity
	s.severity = severity
	s.mu.Unlock()
	// a non-empty label with a higher severity is a newly queued penalty
	if label != "" && severity > prev && prev > 0 {
		s.escalate()
	}
}

func (s *Sink) Hide() {
	s.mu.Lock()
	s.severity = 0
	s.mu.Unlock()
	s.clear()
}
