package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Count of http requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of http requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	httpErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "errors_total",
		Help:      "Count of http requests that returned an error.",
	})

	httpPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "panics_total",
		Help:      "Count of http requests that panicked.",
	})

	rpcRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "Count of rpc requests by method and outcome.",
	}, []string{"method", "status"})
)

// HTTP tracks metrics for the http and rpc entry points.
type HTTP struct{}

// ObserveRequest records a completed http request.
func (HTTP) ObserveRequest(method string, route string, code int, started time.Time) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(started).Seconds())
}

// ObserveError records a request that returned an error.
func (HTTP) ObserveError() {
	httpErrorsTotal.Inc()
}

// ObservePanic records a request that panicked.
func (HTTP) ObservePanic() {
	httpPanicsTotal.Inc()
}

// ObserveRPC records the outcome of an rpc request.
func (HTTP) ObserveRPC(method string, err error) {
	rpcRequestsTotal.WithLabelValues(method, status(err)).Inc()
}
