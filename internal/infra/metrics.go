package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: длительность auth-операций (register/login/refresh/logout/authenticate)
	AuthDuration *prometheus.HistogramVec

	// Traffic + исход: success, unauthenticated, conflict, invalid_input, fatal
	AuthTotal *prometheus.CounterVec

	// Решения гарда: allow / deny / unauthenticated
	AuthzDecisions *prometheus.CounterVec

	// Отказы rate limiter'а по эндпоинтам
	RateLimited *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker кэша (0 - ок, 1 - выбило)
	CacheBreakerState prometheus.Gauge

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge
	AuditDropped    prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		AuthDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wsapi_auth_duration_seconds",
			Help:    "Histogram of auth operation latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),

		AuthTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "wsapi_auth_operations_total",
			Help: "Total number of auth operations by outcome.",
		}, []string{"operation", "outcome"}),

		AuthzDecisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "wsapi_authz_decisions_total",
			Help: "Authorization decisions taken by the guard.",
		}, []string{"transport", "decision"}),

		RateLimited: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "wsapi_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"endpoint"}),

		CacheBreakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "wsapi_cache_breaker_state",
			Help: "Current state of the token cache circuit breaker (0=closed, 1=open).",
		}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "wsapi_audit_buffer_utilization",
			Help: "Current number of events in audit buffer.",
		}),

		AuditDropped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "wsapi_audit_dropped_total",
			Help: "Audit events dropped because the buffer was full or closed.",
		}),
	}
}
