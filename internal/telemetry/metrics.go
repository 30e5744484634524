package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics exposes Prometheus observability primitives for the payment gate.
type Metrics struct {
	tokenRefreshes  prometheus.Counter
	stkPushes       *prometheus.CounterVec
	statusQueries   *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	verifications   *prometheus.CounterVec
	callbacks       *prometheus.CounterVec
}

// NewMetrics registers and returns Prometheus metrics for telemetry.
func NewMetrics() *Metrics {
	tokenRefreshes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "paygate_token_refreshes_total",
		Help: "Counts gateway access token refreshes.",
	})

	stkPushes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paygate_stk_push_total",
		Help: "Counts push payment requests by status.",
	}, []string{"status"})

	statusQueries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paygate_status_query_total",
		Help: "Counts payment status queries by outcome.",
	}, []string{"outcome"})

	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paygate_gateway_duration_seconds",
		Help:    "Gateway call roundtrip latency per operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paygate_verification_total",
		Help: "Counts verification resolutions by outcome.",
	}, []string{"outcome"})

	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paygate_callback_total",
		Help: "Counts gateway callback deliveries by status.",
	}, []string{"status"})

	prometheus.MustRegister(
		tokenRefreshes,
		stkPushes,
		statusQueries,
		gatewayDuration,
		verifications,
		callbacks,
	)

	return &Metrics{
		tokenRefreshes:  tokenRefreshes,
		stkPushes:       stkPushes,
		statusQueries:   statusQueries,
		gatewayDuration: gatewayDuration,
		verifications:   verifications,
		callbacks:       callbacks,
	}
}

func (m *Metrics) IncTokenRefresh() {
	if m == nil {
		return
	}
	m.tokenRefreshes.Inc()
}

func (m *Metrics) IncSTKPush(status string) {
	if m == nil {
		return
	}
	m.stkPushes.WithLabelValues(status).Inc()
}

func (m *Metrics) IncStatusQuery(outcome string) {
	if m == nil {
		return
	}
	m.statusQueries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveGateway(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) IncVerification(outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCallback(status string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(status).Inc()
}

// Module wires the Prometheus metrics registry.
var Module = fx.Module("telemetry",
	fx.Provide(NewMetrics),
)
