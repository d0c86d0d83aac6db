package artifact

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/c360studio/semvault/errors"
)

// Metrics contains the lifecycle metrics of a Manager.
type Metrics struct {
	Operations            *prometheus.CounterVec
	Duration              *prometheus.HistogramVec
	DanglingRemoved       prometheus.Counter
	PlaceholdersConverted prometheus.Counter
	CachedOntologies      prometheus.Gauge
}

// NewMetrics creates unregistered lifecycle metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "semvault",
				Subsystem: "artifact",
				Name:      "operations_total",
				Help:      "Total number of lifecycle operations by outcome",
			},
			[]string{"operation", "outcome"},
		),

		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "semvault",
				Subsystem: "artifact",
				Name:      "operation_duration_seconds",
				Help:      "Lifecycle operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		DanglingRemoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "semvault",
				Subsystem: "artifact",
				Name:      "dangling_removed_total",
				Help:      "Total number of disconnected objects removed under force-clean",
			},
		),

		PlaceholdersConverted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "semvault",
				Subsystem: "artifact",
				Name:      "placeholders_converted_total",
				Help:      "Total number of temporary identifiers rewritten to permanent ones",
			},
		),

		CachedOntologies: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "semvault",
				Subsystem: "artifact",
				Name:      "cached_ontologies",
				Help:      "Ontologies currently held in the reasoning cache",
			},
		),
	}
}

// Register registers every metric with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.Operations, m.Duration, m.DanglingRemoved, m.PlaceholdersConverted, m.CachedOntologies,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// observe records one finished operation. Nil metrics are a no-op.
func (m *Metrics) observe(op string, start time.Time, errp *error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err := *errp; err != nil {
		outcome = "error"
		if kind, ok := pkgerrors.KindOf(err); ok {
			outcome = kind.String()
		}
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) danglingRemoved(n int) {
	if m != nil && n > 0 {
		m.DanglingRemoved.Add(float64(n))
	}
}

func (m *Metrics) placeholders(n int) {
	if m != nil && n > 0 {
		m.PlaceholdersConverted.Add(float64(n))
	}
}

func (m *Metrics) cached(n int) {
	if m != nil {
		m.CachedOntologies.Set(float64(n))
	}
}
