package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions    prometheus.Gauge
	SessionEvents     *prometheus.CounterVec
	WSMessages        *prometheus.CounterVec
	WSWriteErrors     *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	JobPolls          *prometheus.CounterVec
	JobOutcomes       *prometheus.CounterVec
	GenerationSeconds *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live interview sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		WSWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_write_errors_total",
			Help:      "WebSocket write failures by operation.",
		}, []string{"op"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Capability client errors by provider and code.",
		}, []string{"provider", "code"}),
		JobPolls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_polls_total",
			Help:      "Generation job status polls by kind.",
		}, []string{"kind"}),
		JobOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_outcomes_total",
			Help:      "Terminal generation job outcomes by kind and outcome.",
		}, []string{"kind", "outcome"}),
		GenerationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_seconds",
			Help:      "Wall time of one generation job run in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 240, 480},
		}, []string{"kind"}),
	}
}

func (m *Metrics) ObserveGeneration(kind string, d time.Duration) {
	m.GenerationSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
