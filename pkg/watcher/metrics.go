package watcher

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "resc"

// Error kinds reported by [Metrics.Errors].
const (
	ErrorKindRedis    = "redis"
	ErrorKindExpand   = "expand"
	ErrorKindDispatch = "dispatch"
	ErrorKindAck      = "ack"
	ErrorKindPublish  = "publish"
)

// Metrics holds the Prometheus collectors updated by [Watcher]s.
type Metrics struct {
	Taken          *prometheus.CounterVec
	Dispatched     *prometheus.CounterVec
	Deduplicated   *prometheus.CounterVec
	Errors         *prometheus.CounterVec
	ExpandDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Taken: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tasks_taken_total",
			Help:      "Tasks moved from an input queue to its taken queue.",
		}, []string{"input_queue"}),
		Dispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "results_dispatched_total",
			Help:      "Produced tasks pushed to their destination queue.",
		}, []string{"input_queue", "rule"}),
		Deduplicated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "results_deduplicated_total",
			Help:      "Produced tasks skipped because their set already held them.",
		}, []string{"input_queue", "rule"}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_total",
			Help:      "Errors by kind.",
		}, []string{"input_queue", "kind"}),
		ExpandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "expand_duration_seconds",
			Help:      "Time spent selecting and expanding rules for one task.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"input_queue"}),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
