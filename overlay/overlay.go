// Package overlay holds the presentation side of the penalty scheduler:
// sinks that render penalties, and combinators to fan out to several of
// them without blocking the scheduler.
package overlay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"straf/penalty"
)

// Overlay is a penalty.Sink with a lifecycle. Init is called once before
// the scheduler starts; Close after it has stopped.
type Overlay interface {
	penalty.Sink
	Init() error
	Close()
}

// Status is what a sink shows, folded from the calls it received. An empty
// label in UpdateStatus keeps the previous one, and a shown penalty always
// has at least one star.
type Status struct {
	Severity int
	Label    string
	Visible  bool
	Since    time.Time
}

func (s *Status) Show(label string, now time.Time) {
	s.Visible = true
	s.Since = now
	if label != "" {
		s.Label = label
	}
	s.Severity = max(s.Severity, 1)
}

func (s *Status) Update(severity int, label string) {
	s.Severity = severity
	if label != "" {
		s.Label = label
	}
	if s.Visible {
		s.Severity = max(s.Severity, 1)
	}
}

func (s *Status) Hide() { *s = Status{} }

// Stars renders severity as filled and empty stars.
func Stars(severity int) string {
	severity = min(max(severity, 0), penalty.MaxSeverity)
	return strings.Repeat("★", severity) + strings.Repeat("☆", penalty.MaxSeverity-severity)
}

// Factory creates a named sink.
type Factory func() (Overlay, error)

// Build creates the sinks named in names, in order, and combines them.
func Build(names []string, factories map[string]Factory) (Overlay, error) {
	var sinks []Overlay
	var errs []error
	for _, name := range names {
		f, ok := factories[name]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown overlay sink %q", name))
			continue
		}
		o, err := f()
		if err != nil {
			errs = append(errs, fmt.Errorf("overlay %s: %w", name, err))
			continue
		}
		sinks = append(sinks, o)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMulti(sinks...), nil
}
