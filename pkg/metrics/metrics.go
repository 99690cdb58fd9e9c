package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPRequests counts handled HTTP requests by method, path and status
var HTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "nick_http_requests_total",
		Help: "Total number of HTTP requests handled",
	},
	[]string{"method", "path", "status"},
)

// HTTPLatency records request latency distribution per path
var HTTPLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "nick_http_request_latency_seconds",
		Help:    "Latency in seconds to handle HTTP requests",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"path"},
)

// LifecycleTransitions counts document lifecycle transitions by target status
var LifecycleTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "nick_document_transitions_total",
		Help: "Total number of document lifecycle transitions",
	},
	[]string{"to_status"},
)

// CertificatesIssued counts issued training certificates
var CertificatesIssued = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "nick_certificates_issued_total",
		Help: "Total number of training certificates issued",
	},
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nick_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
		[]string{"db"},
	)

	DBIdleConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nick_db_idle_connections",
			Help: "Number of idle connections in the DB pool",
		},
		[]string{"db"},
	)

	DBInUseConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nick_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
		[]string{"db"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPLatency)
	prometheus.MustRegister(LifecycleTransitions, CertificatesIssued)
	prometheus.MustRegister(DBOpenConns, DBIdleConns, DBInUseConns)
}
