package encoder

import (
	"bytes"
	"fmt"
	"time"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// FLAC compresses interleaved 16-bit PCM. Stereo is coded as independent
// left and right channels.
func FLAC(pcm []byte, sampleRate, channels int) (*Utterance, error) {
	if err := checkFormat(sampleRate, channels); err != nil {
		return nil, err
	}
	start := time.Now()
	chans := deinterleave(Samples(pcm), channels)
	n := len(chans[0])

	var buf bytes.Buffer
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     uint8(channels),
		BitsPerSample: BitsPerSample,
		NSamples:      uint64(n),
	}
	enc, err := flac.NewEncoder(&buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)

	layout := frame.ChannelsMono
	if channels == 2 {
		layout = frame.ChannelsLR
	}
	for off := 0; off < n; off += BlockSize {
		end := min(off+BlockSize, n)
		subframes := make([]*frame.Subframe, channels)
		for ch := range subframes {
			subframes[ch] = &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   chans[ch][off:end],
				NSamples:  end - off,
			}
		}
		f := &frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(end - off),
				SampleRate:    uint32(sampleRate),
				Channels:      layout,
				BitsPerSample: BitsPerSample,
			},
			Subframes: subframes,
		}
		if err := enc.WriteFrame(f); err != nil {
			return nil, fmt.Errorf("writing flac frame at sample %d: %w", off, err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing flac stream: %w", err)
	}

	return &Utterance{
		Data:     buf.Bytes(),
		Samples:  n,
		Duration: time.Duration(n) * time.Second / time.Duration(sampleRate),
		Elapsed:  time.Since(start),
		RawBytes: len(pcm),
	}, nil
}
