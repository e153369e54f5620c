package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vburojevic/qcdash/internal/source"
	"github.com/vburojevic/qcdash/internal/transform"
)

// Cycle outcomes
const (
	OutcomeOK         = "ok"
	OutcomeDegraded   = "degraded"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
)

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	attempts *prometheus.CounterVec
	cycles   *prometheus.CounterVec
	duration prometheus.Histogram
	dropped  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "source_attempts_total",
			Help:      "Source fetch attempts by source and result",
		}, []string{"source", "result"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "cycles_total",
			Help:      "Load cycles by outcome",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qcdash",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of completed load cycles",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "records_dropped_total",
			Help:      "Records dropped during ingestion by reason",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.cycles, m.duration, m.dropped)
	}
	return m
}

// AttemptHook returns a resolver hook counting fetch attempts
func (m *Metrics) AttemptHook() source.AttemptHook {
	return func(d source.Descriptor, attempt int, err error) {
		if m == nil {
			return
		}
		result := "success"
		if err != nil {
			result = "failure"
		}
		m.attempts.WithLabelValues(d.Name, result).Inc()
	}
}

func (m *Metrics) observeCycle(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSuperseded {
		m.duration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) observeIngest(r transform.IngestReport) {
	if m == nil {
		return
	}
	if r.Invalid > 0 {
		m.dropped.WithLabelValues("invalid").Add(float64(r.Invalid))
	}
	if r.Unattributed > 0 {
		m.dropped.WithLabelValues("unattributed").Add(float64(r.Unattributed))
	}
}
