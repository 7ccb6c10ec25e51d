package audio

import (
	"sync"
	"time"
)

// pacer emits one frame per FrameMs on its own goroutine until stopped.
type pacer struct {
	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func (p *pacer) start(next func() []byte, onFrame FrameFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	stop, done := p.stop, p.done
	go func() {
		defer close(done)
		ticker := time.NewTicker(FrameMs * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				onFrame(next())
			}
		}
	}()
}

func (p *pacer) halt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return
	}
	close(p.stop)
	<-p.done
	p.stop, p.done = nil, nil
}

// SilentSource produces zeroed frames in real time. It stands in for a
// microphone when none is wanted or available.
type SilentSource struct {
	frameBytes int
	pacer      pacer
}

func NewSilentSource() *SilentSource {
	return &SilentSource{}
}

func (s *SilentSource) Name() string { return "silent" }

func (s *SilentSource) Initialize(sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return errInvalidFormat(sampleRate, channels)
	}
	s.frameBytes = FrameBytes(sampleRate, channels)
	return nil
}

func (s *SilentSource) Start(onFrame FrameFunc) error {
	if s.frameBytes == 0 {
		return ErrNotInitialized
	}
	s.pacer.start(func() []byte { return make([]byte, s.frameBytes) }, onFrame)
	return nil
}

func (s *SilentSource) Stop() { s.pacer.halt() }
