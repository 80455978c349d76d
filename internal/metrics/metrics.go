package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newstracker_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newstracker_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	QueriesAnsweredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newstracker_queries_answered_total",
			Help: "Total number of tracker queries answered, by response source tier.",
		},
		[]string{"source"},
	)

	ItemsIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newstracker_items_indexed_total",
			Help: "Total number of source items processed by the indexer.",
		},
		[]string{"kind", "result"},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newstracker_embedding_requests_total",
			Help: "Total number of embedding API calls.",
		},
		[]string{"status"},
	)

	MemoryRecordsRetrieved = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newstracker_memory_records_retrieved",
			Help:    "Number of memory records returned per retrieval.",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		QueriesAnsweredTotal,
		ItemsIndexedTotal,
		EmbeddingRequestsTotal,
		MemoryRecordsRetrieved,
	)
}
