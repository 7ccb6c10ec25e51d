package transcriber

import (
	"encoding/binary"
	"time"

	"straf/audio"
)

const (
	// RMS level in 16-bit PCM units above which a frame counts as speech.
	// Once an utterance is open the level only has to stay above half of it.
	defaultRMSThreshold = 300.0

	speechStartFrames    = 3
	defaultSilenceClose  = 500 * time.Millisecond
	defaultMaxUtterance  = 10 * time.Second
	defaultPreRoll       = 300 * time.Millisecond
	minUtteranceDuration = 200 * time.Millisecond
)

// Segmenter cuts a mono PCM stream into utterances using frame energy.
// An utterance opens after a few consecutive loud frames, keeps a short
// pre-roll of the audio before that, and closes after a stretch of
// silence or when it reaches the length cap. Not safe for concurrent use.
type Segmenter struct {
	threshold    float64
	frameBytes   int
	bytesPerMs   int
	silenceClose int // ms
	maxBytes     int
	preRollCap   int // frames
	minBytes     int

	onUtterance func(pcm []byte)

	pending   []byte
	preRoll   [][]byte
	utterance []byte
	inSpeech  bool
	speechRun int
	silenceMs int
}

func NewSegmenter(sampleRate int, onUtterance func(pcm []byte)) *Segmenter {
	bytesPerMs := sampleRate * audio.BytesPerSample / 1000
	return &Segmenter{
		threshold:    defaultRMSThreshold,
		frameBytes:   audio.FrameBytes(sampleRate, 1),
		bytesPerMs:   bytesPerMs,
		silenceClose: int(defaultSilenceClose / time.Millisecond),
		maxBytes:     int(defaultMaxUtterance/time.Millisecond) * bytesPerMs,
		preRollCap:   int(defaultPreRoll / (audio.FrameMs * time.Millisecond)),
		minBytes:     int(minUtteranceDuration/time.Millisecond) * bytesPerMs,
		onUtterance:  onUtterance,
	}
}

func (s *Segmenter) Write(pcm []byte) {
	s.pending = append(s.pending, pcm...)
	for len(s.pending) >= s.frameBytes {
		frame := make([]byte, s.frameBytes)
		copy(frame, s.pending[:s.frameBytes])
		s.pending = s.pending[s.frameBytes:]
		s.frame(frame)
	}
}

func (s *Segmenter) frame(frame []byte) {
	level := audio.RMS(frame)

	if !s.inSpeech {
		s.preRoll = append(s.preRoll, frame)
		if len(s.preRoll) > s.preRollCap+speechStartFrames {
			s.preRoll = s.preRoll[1:]
		}
		if level < s.threshold {
			s.speechRun = 0
			return
		}
		s.speechRun++
		if s.speechRun < speechStartFrames {
			return
		}
		s.inSpeech = true
		s.silenceMs = 0
		for _, f := range s.preRoll {
			s.utterance = append(s.utterance, f...)
		}
		s.preRoll = s.preRoll[:0]
		return
	}

	s.utterance = append(s.utterance, frame...)
	if level < s.threshold/2 {
		s.silenceMs += audio.FrameMs
	} else {
		s.silenceMs = 0
	}
	if s.silenceMs >= s.silenceClose || len(s.utterance) >= s.maxBytes {
		s.emit()
	}
}

// Flush closes an open utterance, if any.
func (s *Segmenter) Flush() {
	if s.inSpeech {
		s.emit()
	}
	s.pending = s.pending[:0]
}

func (s *Segmenter) emit() {
	utt := s.utterance
	s.utterance = nil
	s.inSpeech = false
	s.speechRun = 0
	s.silenceMs = 0
	if len(utt) >= s.minBytes {
		s.onUtterance(utt)
	}
}

// downmix averages interleaved channels into mono.
func downmix(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	stride := channels * 2
	out := make([]byte, len(pcm)/stride*2)
	for i, o := 0, 0; i+stride <= len(pcm); i, o = i+stride, o+2 {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(int16(binary.LittleEndian.Uint16(pcm[i+c*2:])))
		}
		binary.LittleEndian.PutUint16(out[o:], uint16(int16(sum/channels)))
	}
	return out
}
