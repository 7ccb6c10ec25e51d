// Package encoder compresses recognized utterances before they are uploaded
// to a batch transcription service.
package encoder

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	BitsPerSample = 16
	BlockSize     = 4096
)

// Utterance is one compressed utterance.
type Utterance struct {
	Data     []byte
	Samples  int // per channel
	Duration time.Duration
	Elapsed  time.Duration // spent encoding
	RawBytes int
}

// Ratio is the compressed size as a fraction of the raw PCM.
func (u *Utterance) Ratio() float64 {
	if u.RawBytes == 0 {
		return 0
	}
	return float64(len(u.Data)) / float64(u.RawBytes)
}

// Samples converts little-endian 16-bit PCM into samples. A trailing odd
// byte is ignored.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// deinterleave splits interleaved samples into one slice per channel,
// dropping a trailing partial frame.
func deinterleave(samples []int16, channels int) [][]int32 {
	n := len(samples) / channels
	out := make([][]int32, channels)
	for ch := range out {
		out[ch] = make([]int32, n)
		for i := 0; i < n; i++ {
			out[ch][i] = int32(samples[i*channels+ch])
		}
	}
	return out
}

func checkFormat(sampleRate, channels int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if channels != 1 && channels != 2 {
		return fmt.Errorf("unsupported channel count %d", channels)
	}
	return nil
}
