package transcriber

import (
	"sync"
	"sync/atomic"
)

type fakePhrase struct {
	text       string
	confidence float64
}

// Fake emits scripted phrases. Say queues a phrase that is delivered on the
// fake's goroutine, the way a real recognizer would call back.
type Fake struct {
	// InitErr, when set, is returned by Initialize.
	InitErr error

	mu      sync.Mutex
	hints   []string
	phrases chan fakePhrase
	stop    chan struct{}
	done    chan struct{}
	fed     atomic.Int64
}

func NewFake() *Fake {
	return &Fake{phrases: make(chan fakePhrase, 64)}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Initialize(hints []string) error {
	if f.InitErr != nil {
		return f.InitErr
	}
	f.mu.Lock()
	f.hints = append([]string(nil), hints...)
	f.mu.Unlock()
	return nil
}

func (f *Fake) Hints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.hints...)
}

func (f *Fake) Start(onPhrase PhraseFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stop != nil {
		return nil
	}
	f.stop = make(chan struct{})
	f.done = make(chan struct{})
	stop, done := f.stop, f.done
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case p := <-f.phrases:
				onPhrase(p.text, p.confidence)
			}
		}
	}()
	return nil
}

// Say queues a phrase. It reports false when the queue is full.
func (f *Fake) Say(text string, confidence float64) bool {
	select {
	case f.phrases <- fakePhrase{text, confidence}:
		return true
	default:
		return false
	}
}

func (f *Fake) Feed(pcm []byte) { f.fed.Add(int64(len(pcm))) }

// Fed returns the number of PCM bytes received.
func (f *Fake) Fed() int64 { return f.fed.Load() }

func (f *Fake) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stop == nil {
		return
	}
	close(f.stop)
	<-f.done
	f.stop, f.done = nil, nil
}
