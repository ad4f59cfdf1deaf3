package metrics

import "github.com/prometheus/client_golang/prometheus"

// IVRMetrics exposes counters/histograms for call flows and their upstreams.
type IVRMetrics struct {
	stepsTotal      *prometheus.CounterVec
	upstreamTotal   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	storeErrors     *prometheus.CounterVec
}

func NewIVRMetrics(reg prometheus.Registerer) *IVRMetrics {
	m := &IVRMetrics{
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bakame",
			Subsystem: "ivr",
			Name:      "steps_total",
			Help:      "Dialogue steps handled, by outcome",
		}, []string{"step", "outcome"}),
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bakame",
			Subsystem: "ivr",
			Name:      "upstream_total",
			Help:      "Calls to hosted AI and transcription services",
		}, []string{"service", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bakame",
			Subsystem: "ivr",
			Name:      "upstream_latency_seconds",
			Help:      "Latency of hosted AI and transcription calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bakame",
			Subsystem: "ivr",
			Name:      "session_store_errors_total",
			Help:      "Session store operations that degraded to defaults",
		}, []string{"op"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.stepsTotal, m.upstreamTotal, m.upstreamLatency, m.storeErrors)
	return m
}

func (m *IVRMetrics) ObserveStep(step, outcome string) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(step, outcome).Inc()
}

func (m *IVRMetrics) ObserveUpstream(service, status string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamTotal.WithLabelValues(service, status).Inc()
	m.upstreamLatency.WithLabelValues(service).Observe(seconds)
}

func (m *IVRMetrics) ObserveStoreError(op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op).Inc()
}
