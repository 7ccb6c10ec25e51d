//go:build linux

package beep

import (
	"fmt"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

type pulseSpeaker struct {
	client *pulse.Client
}

func newSpeaker() (speaker, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("straf"))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseSpeaker{client: c}, nil
}

func (s *pulseSpeaker) play(pcm []byte) {
	samples := len(pcm) / 2
	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= samples {
			return 0, pulse.EndOfData
		}
		n := 0
		for ; n < len(buf) && pos < samples; n, pos = n+1, pos+1 {
			buf[n] = int16(uint16(pcm[pos*2]) | uint16(pcm[pos*2+1])<<8)
		}
		return n, nil
	})
	stream, err := s.client.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return
	}
	defer stream.Close()
	stream.Start()
	stream.Drain()
}

func (s *pulseSpeaker) close() {
	s.client.Close()
}
