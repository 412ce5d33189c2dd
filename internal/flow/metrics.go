package flow

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Probe outcome labels.
const (
	probeSuccess       = "success"
	probeCannotConnect = "cannot_connect"
)

// Metrics holds the pairing flow's Prometheus collectors.
type Metrics struct {
	probes        *prometheus.CounterVec
	probeDuration prometheus.Histogram
	results       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "obegraensad_probe_total",
				Help: "Connectivity probes by result.",
			},
			[]string{"result"},
		),
		probeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "obegraensad_probe_duration_seconds",
				Help:    "Time taken by connectivity probes.",
				Buckets: []float64{0.1, 0.5, 1, 2, 3, 4, 5, 7.5, 10},
			},
		),
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "obegraensad_flow_results_total",
				Help: "Pairing flow step results by type and reason.",
			},
			[]string{"type", "reason"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.probes, m.probeDuration, m.results)
	}
	return m
}

func (m *Metrics) observeProbe(ok bool, seconds float64) {
	if m == nil {
		return
	}
	result := probeSuccess
	if !ok {
		result = probeCannotConnect
	}
	m.probes.WithLabelValues(result).Inc()
	m.probeDuration.Observe(seconds)
}

func (m *Metrics) observeResult(r Result) {
	if m == nil {
		return
	}
	reason := r.Reason
	if r.Type == ResultTypeForm {
		for _, code := range r.Errors {
			reason = code
		}
	}
	m.results.WithLabelValues(string(r.Type), reason).Inc()
}
