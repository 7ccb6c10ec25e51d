// Package tray shows the penalty state in the system tray and offers pause
// and quit.
package tray

import (
	"fmt"
	"sync"
	"time"

	"straf/overlay"
)

const appName = "straf"

var (
	quitCh    = make(chan struct{})
	closeOnce sync.Once

	mu       sync.Mutex
	status   overlay.Status
	paused   bool
	pauseCb  func(bool)
	errorMsg string
)

// Done is closed once Quit has been called.
func Done() <-chan struct{} { return quitCh }

func Quit() {
	closeOnce.Do(func() {
		close(quitCh)
		quitLoop()
	})
}

// OnPause registers the callback run when the user toggles "Pause listening".
func OnPause(fn func(paused bool)) {
	mu.Lock()
	pauseCb = fn
	mu.Unlock()
}

func togglePause() bool {
	mu.Lock()
	paused = !paused
	p, cb := paused, pauseCb
	mu.Unlock()
	if cb != nil {
		cb(p)
	}
	refresh()
	return p
}

// SetSeverity updates the icon and tooltip.
func SetSeverity(severity int, label string) {
	mu.Lock()
	status.Update(severity, label)
	if severity == 0 {
		status = overlay.Status{}
	}
	mu.Unlock()
	refresh()
}

// SetError shows msg in the tooltip for ten seconds.
func SetError(msg string) {
	mu.Lock()
	errorMsg = msg
	mu.Unlock()
	refresh()
	time.AfterFunc(10*time.Second, func() {
		mu.Lock()
		if errorMsg == msg {
			errorMsg = ""
		}
		mu.Unlock()
		refresh()
	})
}

func refresh() {
	mu.Lock()
	st, p, e := status, paused, errorMsg
	mu.Unlock()
	render(st.Severity, tooltip(st, p, e))
}

func tooltip(st overlay.Status, paused bool, errMsg string) string {
	switch {
	case errMsg != "":
		return appName + " – " + errMsg
	case paused:
		return appName + " – paused"
	case st.Severity == 0:
		return appName + " – listening"
	case st.Label != "":
		return fmt.Sprintf("%s %s – %s", appName, overlay.Stars(st.Severity), st.Label)
	}
	return appName + " " + overlay.Stars(st.Severity)
}

// Sink forwards scheduler updates to the tray.
type Sink struct{}

func NewSink() *Sink { return &Sink{} }

func (*Sink) Init() error { return nil }
func (*Sink) Close()      {}

func (*Sink) ShowPenalty(label string) {
	mu.Lock()
	status.Show(label, time.Now())
	mu.Unlock()
	refresh()
}

func (*Sink) UpdateStatus(severity int, label string) { SetSeverity(severity, label) }

func (*Sink) Hide() { SetSeverity(0, "") }
