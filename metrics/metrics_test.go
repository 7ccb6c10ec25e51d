package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"straf/penalty"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := New(mp)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumByAttr(t *testing.T, m *metricdata.Metrics, key string) map[string]int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: data is %T, want Sum[int64]", m.Name, m.Data)
	}
	out := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestObserveTriggers(t *testing.T) {
	m, reader := newTestMetrics(t)

	for _, o := range []penalty.Outcome{
		penalty.OutcomeAdmitted, penalty.OutcomeAdmitted,
		penalty.OutcomeDebounced, penalty.OutcomeCoolingDown, penalty.OutcomeQueueFull,
	} {
		m.Observe(penalty.Event{Outcome: o, Severity: 1})
	}

	rm := collect(t, reader)
	triggers := findMetric(rm, "straf.penalty.triggers")
	if triggers == nil {
		t.Fatal("straf.penalty.triggers not recorded")
	}
	got := sumByAttr(t, triggers, "outcome")
	want := map[string]int64{"admitted": 2, "debounced": 1, "cooldown": 1, "queue_full": 1}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("outcome %s = %d, want %d", k, got[k], v)
		}
	}
}

func TestObserveLifecycle(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.Observe(penalty.Event{Outcome: penalty.OutcomeStarted, Severity: 2, Duration: 8 * time.Second})
	m.Observe(penalty.Event{Outcome: penalty.OutcomeExpired, Severity: 1, Duration: 8 * time.Second})

	rm := collect(t, reader)

	started := findMetric(rm, "straf.penalty.started")
	if started == nil {
		t.Fatal("started not recorded")
	}
	if s := started.Data.(metricdata.Sum[int64]); s.DataPoints[0].Value != 1 {
		t.Errorf("started = %d, want 1", s.DataPoints[0].Value)
	}

	served := findMetric(rm, "straf.penalty.served")
	if served == nil {
		t.Fatal("served not recorded")
	}
	h := served.Data.(metricdata.Histogram[float64])
	if h.DataPoints[0].Count != 1 || h.DataPoints[0].Sum != 8 {
		t.Errorf("served count=%d sum=%v", h.DataPoints[0].Count, h.DataPoints[0].Sum)
	}

	sev := findMetric(rm, "straf.penalty.severity")
	if sev == nil {
		t.Fatal("severity not recorded")
	}
	if g := sev.Data.(metricdata.Gauge[int64]); g.DataPoints[0].Value != 1 {
		t.Errorf("severity = %d, want last observed 1", g.DataPoints[0].Value)
	}
}

func TestRecordMatchAndPhrase(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordMatch("darn")
	m.RecordMatch("darn")
	m.RecordPhrase("fake")

	rm := collect(t, reader)
	if got := sumByAttr(t, findMetric(rm, "straf.detector.matches"), "word"); got["darn"] != 2 {
		t.Errorf("matches = %v", got)
	}
	if got := sumByAttr(t, findMetric(rm, "straf.transcriber.phrases"), "provider"); got["fake"] != 1 {
		t.Errorf("phrases = %v", got)
	}
}

func TestSchedulerObserver(t *testing.T) {
	m, reader := newTestMetrics(t)
	now := time.Unix(1000, 0)
	s := penalty.New(penalty.DefaultConfig(), nopSink{},
		penalty.WithClock(func() time.Time { return now }),
		penalty.WithObserver(m))

	s.Trigger("a")
	s.Trigger("b")
	s.Tick()

	rm := collect(t, reader)
	got := sumByAttr(t, findMetric(rm, "straf.penalty.triggers"), "outcome")
	if got["admitted"] != 1 || got["debounced"] != 1 {
		t.Errorf("triggers = %v", got)
	}
}

type nopSink struct{}

func (nopSink) ShowPenalty(string)       {}
func (nopSink) UpdateStatus(int, string) {}
func (nopSink) Hide()                    {}

func TestPrometheusHandler(t *testing.T) {
	p, err := InitProvider()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown(context.Background())

	m, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	m.RecordPhrase("stub")

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "straf_transcriber_phrases") {
		t.Errorf("exposition missing phrases counter:\n%s", body)
	}
}
