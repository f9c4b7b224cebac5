package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "toursync"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	invocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "invocations_total",
			Help:      "Channel invocations by channel and outcome (ok or error kind).",
		},
		[]string{"channel", "outcome"},
	)

	invocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "invocation_duration_seconds",
			Help:      "Channel invocation latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
	)

	eventClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "event_stream_clients",
			Help:      "Connected event stream clients.",
		},
	)

	retentionRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "removed_tours_total",
			Help:      "Tours removed by the retention sweep.",
		},
	)

	retentionRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "runs_total",
			Help:      "Retention sweeps by result.",
		},
		[]string{"result"},
	)

	updateChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "updater",
			Name:      "checks_total",
			Help:      "Update checks by result.",
		},
		[]string{"result"},
	)
)

// Collectors lists every toursync metric, for registering on a custom registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequests, invocations, invocationDuration, rateLimited,
		eventClients, retentionRemoved, retentionRuns, updateChecks,
	}
}

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(Collectors()...)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// ObserveInvocation records one channel call.
func ObserveInvocation(channel, outcome string, took time.Duration) {
	invocations.WithLabelValues(channel, outcome).Inc()
	invocationDuration.WithLabelValues(channel).Observe(took.Seconds())
}

func IncRateLimited() {
	rateLimited.Inc()
}

func EventClientConnected() {
	eventClients.Inc()
}

func EventClientDisconnected() {
	eventClients.Dec()
}

// ObserveRetention records a sweep; err nil means success.
func ObserveRetention(removed int64, err error) {
	if err != nil {
		retentionRuns.WithLabelValues("error").Inc()
		return
	}
	retentionRuns.WithLabelValues("ok").Inc()
	retentionRemoved.Add(float64(removed))
}

func IncUpdateCheck(result string) {
	updateChecks.WithLabelValues(result).Inc()
}
