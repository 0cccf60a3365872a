package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gardenctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"garden", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gardenctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"garden", "method", "path", "status"},
	)
	routedOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gardenctl",
			Subsystem: "routing",
			Name:      "operations_total",
			Help:      "Operations routed, by type and disposition (local or forward).",
		},
		[]string{"type", "disposition"},
	)
	forwardRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gardenctl",
			Subsystem: "forward",
			Name:      "total",
			Help:      "Operations delivered to other gardens.",
		},
		[]string{"garden", "type", "success"},
	)
	forwardDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gardenctl",
			Subsystem: "forward",
			Name:      "duration_seconds",
			Help:      "Forward delivery duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"garden", "type"},
	)
	forwardReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gardenctl",
			Subsystem: "forward",
			Name:      "received_total",
			Help:      "Operations received on the forward endpoint, by type, sending garden and status class.",
		},
		[]string{"garden", "type", "source", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, routedOperations, forwardRequests, forwardDuration, forwardReceived)
	})
}

func RecordHTTPRequest(garden, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(garden, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(garden, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordOperationRouted(opType, disposition string) {
	RegisterMetrics()
	routedOperations.WithLabelValues(opType, disposition).Inc()
}

func RecordForward(garden, opType string, duration time.Duration, success bool) {
	RegisterMetrics()
	forwardRequests.WithLabelValues(garden, opType, strconv.FormatBool(success)).Inc()
	forwardDuration.WithLabelValues(garden, opType).Observe(duration.Seconds())
}

func RecordForwardReceived(garden, opType, source string, status int) {
	RegisterMetrics()
	forwardReceived.WithLabelValues(garden, opType, source, statusClass(status)).Inc()
}
