package overlay

import (
	"fmt"
	"sync"
	"time"
)

// Recorder remembers every call as a short string such as "show:label",
// "status:2:label" or "hide". It is meant for tests and the -test mode.
type Recorder struct {
	InitErr error

	mu     sync.Mutex
	calls  []string
	status Status
	notify chan struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

func (r *Recorder) Init() error { return r.InitErr }
func (r *Recorder) Close()      {}

func (r *Recorder) record(call string) {
	r.calls = append(r.calls, call)
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *Recorder) ShowPenalty(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Show(label, time.Now())
	r.record("show:" + label)
}

func (r *Recorder) UpdateStatus(severity int, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Update(severity, label)
	r.record(fmt.Sprintf("status:%d:%s", severity, label))
}

func (r *Recorder) Hide() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Hide()
	r.record("hide")
}

// Calls returns a copy of the calls so far.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Changed is signalled after each call.
func (r *Recorder) Changed() <-chan struct{} { return r.notify }
