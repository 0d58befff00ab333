package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type OrchestratorMetrics interface {
	IncRequests(namespace, method, outcome string)
	ObserveRequestDuration(namespace string, duration time.Duration)
	SetPending(pending bool)
}

var METRICS_SUBSYSTEM = "dapp_orchestrator"

const (
	OutcomeValid        = "valid"
	OutcomeInvalid      = "invalid"
	OutcomeFailed       = "failed"
	OutcomePrecondition = "precondition"
)

type orchestratorMetrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	pending         prometheus.Gauge
}

func InitMetrics(registry prometheus.Registerer) *orchestratorMetrics {
	metrics := &orchestratorMetrics{}

	metrics.requests = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "requests_total",
		Help: "Signing requests by namespace, method and outcome", Subsystem: METRICS_SUBSYSTEM}, []string{"namespace", "method", "outcome"})
	metrics.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "request_duration_ms",
		Help: "Signing request round trip including verification", Subsystem: METRICS_SUBSYSTEM,
		Buckets: []float64{5, 10, 50, 100, 500, 1000, 5000, 30000, 120000}}, []string{"namespace"})
	metrics.pending = prometheus.NewGauge(prometheus.GaugeOpts{Name: "pending",
		Help: "1 while a request is in flight", Subsystem: METRICS_SUBSYSTEM})
	registry.MustRegister(metrics.requests)
	registry.MustRegister(metrics.requestDuration)
	registry.MustRegister(metrics.pending)
	return metrics
}

func (m *orchestratorMetrics) IncRequests(namespace, method, outcome string) {
	m.requests.WithLabelValues(namespace, method, outcome).Inc()
}

func (m *orchestratorMetrics) ObserveRequestDuration(namespace string, duration time.Duration) {
	m.requestDuration.WithLabelValues(namespace).Observe(float64(duration.Milliseconds()))
}

func (m *orchestratorMetrics) SetPending(pending bool) {
	if pending {
		m.pending.Set(1)
		return
	}
	m.pending.Set(0)
}

type noopMetrics struct{}

// Noop discards every observation.
func Noop() OrchestratorMetrics { return noopMetrics{} }

func (noopMetrics) IncRequests(string, string, string)           {}
func (noopMetrics) ObserveRequestDuration(string, time.Duration) {}
func (noopMetrics) SetPending(bool)                              {}
