package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes pipeline counters on a caller-supplied registerer.
type Metrics struct {
	DispatchedTotal      *prometheus.CounterVec
	ParseFailuresTotal   prometheus.Counter
	PublishFailuresTotal prometheus.Counter
}

// NewMetrics registers and returns the pipeline metric set.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "relay_dispatched_total", Help: "Messages dispatched downstream, by operation and result."},
			[]string{"operation", "result"},
		),
		ParseFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "relay_parse_failures_total", Help: "Inbound messages skipped because they could not be parsed."},
		),
		PublishFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "relay_publish_failures_total", Help: "Response envelopes that could not be published."},
		),
	}
	reg.MustRegister(m.DispatchedTotal, m.ParseFailuresTotal, m.PublishFailuresTotal)
	return m
}

func (m *Metrics) observeDispatched(operation, result string) {
	if m == nil {
		return
	}
	m.DispatchedTotal.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) observeParseFailure() {
	if m == nil {
		return
	}
	m.ParseFailuresTotal.Inc()
}

func (m *Metrics) observePublishFailure() {
	if m == nil {
		return
	}
	m.PublishFailuresTotal.Inc()
}
