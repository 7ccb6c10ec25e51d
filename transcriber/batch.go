package transcriber

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"straf/log"
)

const batchQueueFrames = 512

type recognizeFunc func(ctx context.Context, pcm []byte) (text string, confidence float64, err error)

// batch feeds audio through a Segmenter and hands each utterance to a
// request/response recognizer on a single worker goroutine.
type batch struct {
	cfg       Config
	recognize recognizeFunc

	mu      sync.Mutex
	audio   chan []byte
	cancel  context.CancelFunc
	done    chan struct{}
	dropped atomic.Int64
}

func (b *batch) Start(onPhrase PhraseFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.audio = make(chan []byte, batchQueueFrames)
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.run(ctx, b.audio, b.done, onPhrase)
	return nil
}

func (b *batch) run(ctx context.Context, in <-chan []byte, done chan struct{}, onPhrase PhraseFunc) {
	defer close(done)
	seg := NewSegmenter(b.cfg.SampleRate, func(pcm []byte) {
		text, conf, err := b.recognize(ctx, pcm)
		if err != nil {
			if ctx.Err() == nil {
				log.Warnf("recognition failed: %v", err)
			}
			return
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		onPhrase(text, conf)
	})
	for {
		select {
		case <-ctx.Done():
			return
		case pcm := <-in:
			seg.Write(downmix(pcm, b.cfg.Channels))
		}
	}
}

func (b *batch) Feed(pcm []byte) {
	b.mu.Lock()
	in := b.audio
	b.mu.Unlock()
	if in == nil {
		return
	}
	frame := append([]byte(nil), pcm...)
	select {
	case in <- frame:
	default:
		if n := b.dropped.Add(1); n == 1 || n%100 == 0 {
			log.Warnf("recognizer falling behind, %d audio frames dropped", n)
		}
	}
}

func (b *batch) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done, b.audio = nil, nil, nil
	b.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
