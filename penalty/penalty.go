// Package penalty turns vocabulary matches into a rate-limited, escalating
// sequence of timed penalties and drives a presentation sink from it.
package penalty

import "time"

// MaxSeverity is the highest star count reported to sinks.
const MaxSeverity = 5

// sweepInterval bounds how often Tick garbage-collects the phrase ledger.
const sweepInterval = 30 * time.Second

// DefaultLevelDurations is the escalation table indexed by current severity.
// Levels past the end plateau at the last entry.
var DefaultLevelDurations = []time.Duration{
	5 * time.Second,
	8 * time.Second,
	12 * time.Second,
	18 * time.Second,
	25 * time.Second,
}

// Sink receives presentation updates. Calls are made with the scheduler
// lock held and must not block.
type Sink interface {
	ShowPenalty(label string)
	UpdateStatus(severity int, label string)
	Hide()
}

// Config is the scheduler policy. It is copied by New and never mutated.
type Config struct {
	QueueLimit     int
	Debounce       time.Duration
	PhraseCooldown time.Duration
	LevelDurations []time.Duration
	// Cooldown is the minimum gap between one penalty ending and the next starting.
	Cooldown time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueLimit:     5,
		Debounce:       3 * time.Second,
		PhraseCooldown: 15 * time.Second,
		LevelDurations: append([]time.Duration(nil), DefaultLevelDurations...),
		Cooldown:       60 * time.Second,
	}
}

// Request is a queued penalty awaiting promotion.
type Request struct {
	Reason      string
	RequestedAt time.Time
	Duration    time.Duration
}

// Active is the penalty currently being served.
type Active struct {
	Label     string
	StartedAt time.Time
	Duration  time.Duration
}

func (a Active) EndsAt() time.Time { return a.StartedAt.Add(a.Duration) }

// State is a point-in-time copy of the scheduler, for display and tests.
type State struct {
	Active   *Active
	Queue    []Request
	Severity int
	Ledger   int
}

// Outcome classifies what happened to a Trigger or a tick transition.
type Outcome int

const (
	OutcomeAdmitted Outcome = iota
	OutcomeDebounced
	OutcomeCoolingDown
	OutcomeQueueFull
	OutcomeStarted
	OutcomeExpired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdmitted:
		return "admitted"
	case OutcomeDebounced:
		return "debounced"
	case OutcomeCoolingDown:
		return "cooldown"
	case OutcomeQueueFull:
		return "queue_full"
	case OutcomeStarted:
		return "started"
	case OutcomeExpired:
		return "expired"
	}
	return "unknown"
}

// Event describes one scheduler decision.
type Event struct {
	Outcome  Outcome
	Reason   string
	Severity int
	Duration time.Duration
}

// Observer is notified of every scheduler decision, with the lock held.
type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
