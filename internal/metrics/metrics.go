// Package metrics exposes Prometheus instrumentation for the cache
// tiers, the database, and the extraction pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric registered by the process.
type Metrics struct {
	// Cache metrics, shared by the persistent and memory tiers via the
	// "cache_name" label. Sidecar hits are counted by SidecarHits only.
	CacheHitsTotal         prometheus.CounterVec
	CacheMissesTotal       prometheus.CounterVec
	CacheOperationsTotal   prometheus.CounterVec
	CacheOperationDuration prometheus.HistogramVec
	CacheEvictionsTotal    prometheus.CounterVec

	// Database metrics.
	DatabaseQueryDuration   prometheus.HistogramVec
	DatabaseQueriesTotal    prometheus.CounterVec
	DatabaseConnectionsOpen prometheus.GaugeVec

	// Pipeline terminal-state counters. Every job increments exactly one
	// of these on completion.
	ExtractedLocal        prometheus.Counter
	ExtractedRemote        prometheus.Counter
	SidecarHits            prometheus.Counter
	MemoryCacheHits         prometheus.Counter
	PersistentCacheHits     prometheus.Counter
	FailedPermanent        prometheus.Counter
	FailedRetriesExceeded   prometheus.Counter

	// Pipeline gauges.
	QueueDepth      prometheus.Gauge
	InFlightJobs    prometheus.Gauge
	WorkerCount     prometheus.Gauge
	JobDuration     prometheus.HistogramVec

	// Remote analyzer client metrics.
	AnalyzerRequestDuration prometheus.HistogramVec
	AnalyzerRequestsTotal   prometheus.CounterVec

	ErrorsTotal prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics. Safe to call
// multiple times; only the first call registers anything.
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			CacheHitsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{Name: "cache_hits_total", Help: "Total number of cache hits"},
				[]string{"cache_name"},
			),
			CacheMissesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{Name: "cache_misses_total", Help: "Total number of cache misses"},
				[]string{"cache_name"},
			),
			CacheOperationsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{Name: "cache_operations_total", Help: "Total number of cache operations"},
				[]string{"operation", "cache_name"},
			),
			CacheOperationDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "cache_operation_duration_seconds",
					Help:    "Cache operation latency in seconds",
					Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
				},
				[]string{"operation", "cache_name"},
			),
			CacheEvictionsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{Name: "cache_evictions_total", Help: "Total number of cache evictions"},
				[]string{"cache_name"},
			),

			DatabaseQueryDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "database_query_duration_seconds",
					Help:    "Database query latency in seconds",
					Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"query_type", "table"},
			),
			DatabaseQueriesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{Name: "database_queries_total", Help: "Total number of database queries"},
				[]string{"query_type", "table", "status"},
			),
			DatabaseConnectionsOpen: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{Name: "database_connections_open", Help: "Number of currently open database connections"},
				[]string{"database"},
			),

			ExtractedLocal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "extraction_extracted_local_total", Help: "Jobs completed by local analysis",
			}),
			ExtractedRemote: promauto.NewCounter(prometheus.CounterOpts{
				Name: "extraction_extracted_remote_total", Help: "Jobs completed by the remote analyzer",
			}),
			SidecarHits: promauto.NewCounter(prometheus.CounterOpts{
				Name: "extraction_sidecar_hit_total", Help: "Jobs short-circuited by a valid sidecar file",
			}),
			MemoryCacheHits: promauto.NewCounter(prometheus.CounterOpts{
				Name: "extraction_memory_hit_total", Help: "Jobs short-circuited by the in-process memory cache",
			}),
			PersistentCacheHits: promauto.NewCounter(prometheus.CounterOpts{
				Name: "extraction_persistent_hit_total", Help: "Jobs short-circuited by the persistent cache",
			}),
			FailedPermanent: promauto.NewCounter(prometheus.CounterOpts{
				Name: "extraction_failed_permanent_total", Help: "Jobs dead-lettered on a permanent error",
			}),
			FailedRetriesExceeded: promauto.NewCounter(prometheus.CounterOpts{
				Name: "extraction_failed_retries_exceeded_total", Help: "Jobs dead-lettered after exhausting retries",
			}),

			QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "extraction_queue_depth", Help: "Current number of jobs waiting in the queue",
			}),
			InFlightJobs: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "extraction_in_flight_jobs", Help: "Current number of jobs being worked on",
			}),
			WorkerCount: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "extraction_worker_count", Help: "Configured worker pool size",
			}),
			JobDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "extraction_job_duration_seconds",
					Help:    "Wall-clock time from dequeue to terminal state",
					Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
				},
				[]string{"outcome"},
			),

			AnalyzerRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "analyzer_client_request_duration_seconds",
					Help:    "Remote analyzer HTTP request latency",
					Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30},
				},
				[]string{"operation", "status"},
			),
			AnalyzerRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{Name: "analyzer_client_requests_total", Help: "Total remote analyzer requests"},
				[]string{"operation", "status"},
			),

			ErrorsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{Name: "errors_total", Help: "Total number of errors by type"},
				[]string{"error_type", "component"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance, initializing it if needed.
func Get() *Metrics {
	if instance == nil {
		return Initialize()
	}
	return instance
}
