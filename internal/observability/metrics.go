package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the relay.
type Metrics struct {
	ActiveCalls    prometheus.Gauge
	CallEvents     *prometheus.CounterVec
	ModelEvents    *prometheus.CounterVec
	MediaForwarded *prometheus.CounterVec
	MediaDropped   prometheus.Counter
	StoreErrors    *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of active call sessions.",
		}),
		CallEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Call lifecycle events by type.",
		}, []string{"event"}),
		ModelEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_events_total",
			Help:      "Inbound model events by type.",
		}, []string{"type"}),
		MediaForwarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_forwarded_total",
			Help:      "Audio frames forwarded by direction.",
		}, []string{"direction"}),
		MediaDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_dropped_total",
			Help:      "Caller audio frames dropped while the model leg was down.",
		}),
		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Call log store failures by operation.",
		}, []string{"op"}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
