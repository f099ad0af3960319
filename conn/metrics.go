package conn

import "github.com/prometheus/client_golang/prometheus"

// Metrics receives connection lifecycle observations. NopMetrics is the
// default; PrometheusMetrics is provided for callers who want it, but
// wiring it in is opt-in (nil-disableable per SPEC_FULL.md §10) because not
// every embedder of this engine runs a Prometheus registry.
type Metrics interface {
	ObserveHealthCheck(latency float64, err error)
	ObserveIdle(seconds float64)
	ObserveWriteBatch(entries int, totalCmds int64)
	IncReconnect()
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) ObserveHealthCheck(float64, error) {}
func (NopMetrics) ObserveIdle(float64)               {}
func (NopMetrics) ObserveWriteBatch(int, int64)      {}
func (NopMetrics) IncReconnect()                     {}

// PrometheusMetrics reports the same observations through collectors
// registered under the given namespace.
type PrometheusMetrics struct {
	HealthCheckLatency prometheus.Histogram
	HealthCheckErrors  prometheus.Counter
	IdleSeconds        prometheus.Gauge
	WriteBatchEntries  prometheus.Histogram
	Reconnects         prometheus.Counter
}

// NewPrometheusMetrics builds and registers a PrometheusMetrics under
// namespace, using reg (pass prometheus.DefaultRegisterer for the global
// registry).
func NewPrometheusMetrics(namespace string, reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		HealthCheckLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conn",
			Name:      "health_check_latency_seconds",
			Help:      "Latency of health-loop ping round trips.",
		}),
		HealthCheckErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conn",
			Name:      "health_check_errors_total",
			Help:      "Health-loop pings that failed.",
		}),
		IdleSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "conn",
			Name:      "idle_seconds",
			Help:      "Seconds since the last byte was read from the connection.",
		}),
		WriteBatchEntries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conn",
			Name:      "write_batch_entries",
			Help:      "Number of queued requests coalesced into a single writer-loop write.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conn",
			Name:      "reconnects_total",
			Help:      "Number of times Run has been (re-)invoked.",
		}),
	}
	reg.MustRegister(m.HealthCheckLatency, m.HealthCheckErrors, m.IdleSeconds, m.WriteBatchEntries, m.Reconnects)
	return m
}

func (m *PrometheusMetrics) ObserveHealthCheck(latency float64, err error) {
	m.HealthCheckLatency.Observe(latency)
	if err != nil {
		m.HealthCheckErrors.Inc()
	}
}

func (m *PrometheusMetrics) ObserveIdle(seconds float64) { m.IdleSeconds.Set(seconds) }

func (m *PrometheusMetrics) ObserveWriteBatch(entries int, totalCmds int64) {
	m.WriteBatchEntries.Observe(float64(entries))
}

func (m *PrometheusMetrics) IncReconnect() { m.Reconnects.Inc() }
