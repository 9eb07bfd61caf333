package host

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports invocation counters.
type Metrics struct {
	invocations *prometheus.CounterVec
	gasUsed     *prometheus.HistogramVec
	events      prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contractkit",
			Name:      "invocations_total",
			Help:      "Top-level invocations by kind and final status.",
		}, []string{"kind", "status"}),
		gasUsed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "contractkit",
			Name:      "gas_used",
			Help:      "Gas consumed per top-level invocation.",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 10),
		}, []string{"kind"}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contractkit",
			Name:      "events_total",
			Help:      "Committed contract events.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.invocations, m.gasUsed, m.events)
	}
	return m
}

func (m *Metrics) observe(kind string, res *Result) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(kind, res.Status.String()).Inc()
	m.gasUsed.WithLabelValues(kind).Observe(float64(res.GasUsed))
	if kind != kindQuery {
		m.events.Add(float64(len(res.Events)))
	}
}
