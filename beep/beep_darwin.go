//go:build darwin

package beep

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// malgoSpeaker keeps one playback device open and restarts it per cue.
type malgoSpeaker struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu   sync.Mutex
	buf  []byte
	pos  int
	done chan struct{}
}

func newSpeaker() (speaker, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio context: %w", err)
	}
	s := &malgoSpeaker{ctx: ctx}
	if err := s.open(); err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, err
	}
	return s, nil
}

func (s *malgoSpeaker) open() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = sampleRate
	dev, err := malgo.InitDevice(s.ctx.Context, cfg, malgo.DeviceCallbacks{Data: s.fill})
	if err != nil {
		return fmt.Errorf("playback device: %w", err)
	}
	s.device = dev
	return nil
}

func (s *malgoSpeaker) fill(out, _ []byte, _ uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(out, s.buf[s.pos:])
	clear(out[n:])
	s.pos += n
	if s.pos >= len(s.buf) && s.done != nil {
		close(s.done)
		s.done = nil
	}
}

func (s *malgoSpeaker) play(pcm []byte) {
	done := make(chan struct{})
	s.mu.Lock()
	s.buf, s.pos, s.done = pcm, 0, done
	s.mu.Unlock()

	if err := s.device.Start(); err != nil {
		// the device goes stale across sleep and wake
		s.device.Uninit()
		if s.open() != nil || s.device.Start() != nil {
			return
		}
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
	s.device.Stop()
}

func (s *malgoSpeaker) close() {
	s.device.Uninit()
	s.ctx.Uninit()
	s.ctx.Free()
}
