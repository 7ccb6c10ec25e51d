package overlay

import "straf/log"

// Log writes every transition to the diagnostics log.
type Log struct{}

func NewLog() *Log { return &Log{} }

func (*Log) Init() error { return nil }
func (*Log) Close()      {}

func (*Log) ShowPenalty(label string) {
	log.Infof("overlay: penalty shown for %q", label)
}

func (*Log) UpdateStatus(severity int, label string) {
	log.Infof("overlay: severity %d %s label=%q", severity, Stars(severity), label)
}

func (*Log) Hide() {
	log.Info("overlay: hidden")
}
