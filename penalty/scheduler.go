package penalty

import (
	"sync"
	"sync/atomic"
	"time"

	"straf/log"
)

type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observers = append(s.observers, o) }
}

// Scheduler admits penalties on Trigger and serves them one at a time on Tick.
// Trigger and Tick may be called concurrently.
type Scheduler struct {
	cfg       Config
	sink      Sink
	now       func() time.Time
	observers []Observer

	mu          sync.Mutex
	queue       []Request
	active      *Active
	ledger      map[string]time.Time
	lastTrigger time.Time
	lastEnd     time.Time
	lastSweep   time.Time

	severity atomic.Int32
}

// New builds a scheduler. A negative queue limit is treated as zero and an
// empty duration table falls back to DefaultLevelDurations.
func New(cfg Config, sink Sink, opts ...Option) *Scheduler {
	if cfg.QueueLimit < 0 {
		cfg.QueueLimit = 0
	}
	if len(cfg.LevelDurations) == 0 {
		cfg.LevelDurations = DefaultLevelDurations
	}
	cfg.LevelDurations = append([]time.Duration(nil), cfg.LevelDurations...)

	s := &Scheduler{
		cfg:    cfg,
		sink:   sink,
		now:    time.Now,
		ledger: make(map[string]time.Time),
	}
	for _, o := range opts {
		o(s)
	}
	s.lastSweep = s.now()
	return s
}

func (s *Scheduler) Config() Config { return s.cfg }

// Trigger records a match for reason. It never fails: suppressed triggers
// are dropped and reported to observers.
func (s *Scheduler) Trigger(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if !s.lastTrigger.IsZero() && now.Sub(s.lastTrigger) < s.cfg.Debounce {
		log.Debugf("penalty: debounced %q", reason)
		s.emit(Event{Outcome: OutcomeDebounced, Reason: reason, Severity: s.severityLocked()})
		return
	}
	if last, ok := s.ledger[reason]; ok && last.Add(s.cfg.PhraseCooldown).After(now) {
		log.Debugf("penalty: %q still cooling down", reason)
		s.emit(Event{Outcome: OutcomeCoolingDown, Reason: reason, Severity: s.severityLocked()})
		return
	}

	s.ledger[reason] = now
	s.lastTrigger = now

	dur := s.levelDuration(s.severityLocked())
	if len(s.queue) >= s.cfg.QueueLimit {
		log.Infof("penalty: queue full, dropping %q", reason)
		s.emit(Event{Outcome: OutcomeQueueFull, Reason: reason, Severity: s.severityLocked(), Duration: dur})
		return
	}

	s.queue = append(s.queue, Request{Reason: reason, RequestedAt: now, Duration: dur})
	sev := s.refreshSeverity()
	log.Penalty("admitted", reason, sev, dur)
	s.emit(Event{Outcome: OutcomeAdmitted, Reason: reason, Severity: sev, Duration: dur})
	s.sink.UpdateStatus(sev, reason)
}

// Tick performs time-driven transitions: ledger sweep, expiry of the active
// penalty and promotion of the next queued one.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweep(now)
		s.lastSweep = now
	}

	if s.active != nil {
		if s.active.EndsAt().After(now) {
			return
		}
		ended := *s.active
		s.active = nil
		s.lastEnd = now
		sev := s.refreshSeverity()
		log.Penalty("expired", ended.Label, sev, ended.Duration)
		s.emit(Event{Outcome: OutcomeExpired, Reason: ended.Label, Severity: sev, Duration: now.Sub(ended.StartedAt)})
		if sev == 0 {
			s.sink.Hide()
		} else {
			s.sink.UpdateStatus(sev, "")
		}
		return
	}

	if len(s.queue) == 0 {
		return
	}
	if !s.lastEnd.IsZero() && now.Sub(s.lastEnd) < s.cfg.Cooldown {
		return
	}

	next := s.queue[0]
	s.queue[0] = Request{}
	s.queue = s.queue[1:]
	s.active = &Active{Label: next.Reason, StartedAt: now, Duration: next.Duration}
	sev := s.refreshSeverity()
	log.Penalty("started", next.Reason, sev, next.Duration)
	s.emit(Event{Outcome: OutcomeStarted, Reason: next.Reason, Severity: sev, Duration: next.Duration})
	s.sink.ShowPenalty(next.Reason)
	s.sink.UpdateStatus(sev, next.Reason)
}

// Severity returns the current star count without taking the lock.
func (s *Scheduler) Severity() int {
	return int(s.severity.Load())
}

func (s *Scheduler) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Queue:    append([]Request(nil), s.queue...),
		Severity: s.severityLocked(),
		Ledger:   len(s.ledger),
	}
	if s.active != nil {
		a := *s.active
		st.Active = &a
	}
	return st
}

func (s *Scheduler) severityLocked() int {
	n := len(s.queue)
	if s.active != nil {
		n++
	}
	return min(max(n, 0), MaxSeverity)
}

func (s *Scheduler) refreshSeverity() int {
	sev := s.severityLocked()
	s.severity.Store(int32(sev))
	return sev
}

func (s *Scheduler) levelDuration(level int) time.Duration {
	return s.cfg.LevelDurations[min(level, len(s.cfg.LevelDurations)-1)]
}

func (s *Scheduler) sweep(now time.Time) {
	horizon := 2 * s.cfg.PhraseCooldown
	evicted := 0
	for reason, seen := range s.ledger {
		if now.Sub(seen) > horizon {
			delete(s.ledger, reason)
			evicted++
		}
	}
	if evicted > 0 {
		log.Debugf("penalty: evicted %d ledger entries", evicted)
	}
}

func (s *Scheduler) emit(e Event) {
	for _, o := range s.observers {
		o.Observe(e)
	}
}
