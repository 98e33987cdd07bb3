// Package metrics exposes Prometheus collectors for waterfalls client calls.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clientRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterfalls",
		Subsystem: "client",
		Name:      "operations_total",
		Help:      "Count of index server operations.",
	}, []string{"operation", "network", "status"})
	clientRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "waterfalls",
		Subsystem: "client",
		Name:      "operation_duration_seconds",
		Help:      "Duration of index server operations, retries included.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "network", "status"})
	clientRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterfalls",
		Subsystem: "client",
		Name:      "retries_total",
		Help:      "Count of retried requests by response status.",
	}, []string{"operation", "network", "http_status"})
)

// Client records outcomes of waterfalls client operations.
type Client struct {
	network string
}

// NewClient constructs a metrics collector labelled with the network name.
func NewClient(network string) *Client {
	if network == "" {
		network = "unknown"
	}
	return &Client{network: network}
}

// Observe records a single operation outcome and duration.
func (m Client) Observe(operation string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}

	clientRequestsTotal.WithLabelValues(operation, m.network, status).Inc()
	clientRequestDuration.WithLabelValues(operation, m.network, status).Observe(time.Since(started).Seconds())
}

// ObserveRetry records a retry triggered by the given HTTP status.
func (m Client) ObserveRetry(operation string, status int) {
	clientRetriesTotal.WithLabelValues(operation, m.network, strconv.Itoa(status)).Inc()
}
