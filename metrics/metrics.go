// Package metrics records scheduler, detector and transcriber activity
// through the OpenTelemetry metrics API. Tests build a Metrics from their
// own MeterProvider; the binary uses InitProvider to export to Prometheus.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"straf/penalty"
)

const meterName = "straf"

// servedBuckets covers the penalty level table in seconds.
var servedBuckets = []float64{1, 5, 8, 12, 18, 25, 40, 60}

type Metrics struct {
	// Triggers counts Trigger calls by outcome:
	//   attribute.String("outcome", "admitted"|"debounced"|"cooldown"|"queue_full")
	Triggers metric.Int64Counter

	// Started counts penalties promoted to active.
	Started metric.Int64Counter

	// Served records how long each penalty was shown, in seconds.
	Served metric.Float64Histogram

	// Severity is the current star count.
	Severity metric.Int64Gauge

	// Matches counts vocabulary hits: attribute.String("word", ...)
	Matches metric.Int64Counter

	// Phrases counts recognized phrases: attribute.String("provider", ...)
	Phrases metric.Int64Counter
}

func New(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Triggers, err = m.Int64Counter("straf.penalty.triggers",
		metric.WithDescription("Penalty triggers by scheduler outcome."),
	); err != nil {
		return nil, err
	}
	if met.Started, err = m.Int64Counter("straf.penalty.started",
		metric.WithDescription("Penalties that became active."),
	); err != nil {
		return nil, err
	}
	if met.Served, err = m.Float64Histogram("straf.penalty.served",
		metric.WithDescription("Time a penalty was shown."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(servedBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Severity, err = m.Int64Gauge("straf.penalty.severity",
		metric.WithDescription("Current penalty severity in stars."),
	); err != nil {
		return nil, err
	}
	if met.Matches, err = m.Int64Counter("straf.detector.matches",
		metric.WithDescription("Vocabulary matches found in recognized speech."),
	); err != nil {
		return nil, err
	}
	if met.Phrases, err = m.Int64Counter("straf.transcriber.phrases",
		metric.WithDescription("Phrases produced by the transcriber."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Observe implements penalty.Observer. It runs under the scheduler lock
// and only records into instruments.
func (m *Metrics) Observe(ev penalty.Event) {
	ctx := context.Background()
	switch ev.Outcome {
	case penalty.OutcomeAdmitted, penalty.OutcomeDebounced,
		penalty.OutcomeCoolingDown, penalty.OutcomeQueueFull:
		m.Triggers.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", ev.Outcome.String())))
	case penalty.OutcomeStarted:
		m.Started.Add(ctx, 1)
	case penalty.OutcomeExpired:
		m.Served.Record(ctx, ev.Duration.Seconds())
	}
	m.Severity.Record(ctx, int64(ev.Severity))
}

func (m *Metrics) RecordMatch(word string) {
	m.Matches.Add(context.Background(), 1, metric.WithAttributes(attribute.String("word", word)))
}

func (m *Metrics) RecordPhrase(provider string) {
	m.Phrases.Add(context.Background(), 1, metric.WithAttributes(attribute.String("provider", provider)))
}
