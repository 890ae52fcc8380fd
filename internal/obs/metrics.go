package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServiceName identifies this service in logs, metrics and traces.
const ServiceName = "cafe-inventory"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafe",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cafe",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	stockAdjustments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafe",
			Subsystem: "stock",
			Name:      "adjustments_total",
			Help:      "Stock adjustments by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	eventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafe",
			Subsystem: "events",
			Name:      "processed_total",
			Help:      "Change events drained by the worker pool.",
		},
		[]string{"kind"},
	)

	eventsBacklog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cafe",
			Subsystem: "events",
			Name:      "backlog",
			Help:      "Change events waiting for a worker.",
		},
	)

	lowStockProducts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cafe",
			Subsystem: "stock",
			Name:      "low_stock_products",
			Help:      "Products at or below the low-stock threshold at the last audit.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		stockAdjustments,
		eventsProcessed,
		eventsBacklog,
		lowStockProducts,
	)
}

// MetricsHandler serves the Prometheus exposition format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one handled request.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveStock records a restock or sell attempt.
func ObserveStock(kind, outcome string) {
	stockAdjustments.WithLabelValues(kind, outcome).Inc()
}

// ObserveEvent records a drained change event.
func ObserveEvent(kind string) {
	eventsProcessed.WithLabelValues(kind).Inc()
}

// SetEventBacklog publishes the current event backlog size.
func SetEventBacklog(n int) {
	eventsBacklog.Set(float64(n))
}

// SetLowStock publishes the number of low-stock products.
func SetLowStock(n int) {
	lowStockProducts.Set(float64(n))
}
