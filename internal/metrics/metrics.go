// Package metrics exposes Prometheus instruments for the cache store and the
// query engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every instrument the service records.
type Metrics struct {
	Writes            *prometheus.CounterVec
	WriteBytes        prometheus.Histogram
	CompressionErrors prometheus.Counter
	Reads             *prometheus.CounterVec
	Queries           *prometheus.CounterVec
	QueryCacheHits    prometheus.Counter
	CleanupDeleted    prometheus.Counter
	Intents           *prometheus.CounterVec
	IntentLatency     prometheus.Histogram
	Fallbacks         prometheus.Counter
	Sessions          prometheus.Gauge
}

// New creates the instruments and registers them on reg. A nil reg leaves
// them unregistered, which tests rely on.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canvas_store_writes_total",
			Help: "Records written to the cache store by type tag and compression.",
		}, []string{"type", "compressed"}),
		WriteBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "canvas_store_write_bytes",
			Help:    "Serialized size of written records before compression.",
			Buckets: prometheus.ExponentialBuckets(128, 2, 10),
		}),
		CompressionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canvas_store_compression_errors_total",
			Help: "Compression or decompression failures.",
		}),
		Reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canvas_store_reads_total",
			Help: "Record reads by type tag and outcome (memory, durable, miss).",
		}, []string{"type", "outcome"}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canvas_store_queries_total",
			Help: "Query layer calls by query type.",
		}, []string{"type"}),
		QueryCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canvas_store_query_cache_hits_total",
			Help: "Query results served from the query cache.",
		}),
		CleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canvas_store_cleanup_deleted_total",
			Help: "Records removed by cleanup sweeps.",
		}),
		Intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canvas_engine_queries_total",
			Help: "Processed student queries by classified intent.",
		}, []string{"intent"}),
		IntentLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "canvas_engine_query_duration_seconds",
			Help:    "Time to classify a query and render its response.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		Fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canvas_engine_fallbacks_total",
			Help: "Queries answered with the fallback response after an internal failure.",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "canvas_engine_sessions",
			Help: "Conversation sessions held in memory, including expired ones not yet swept.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Writes, m.WriteBytes, m.CompressionErrors, m.Reads, m.Queries,
			m.QueryCacheHits, m.CleanupDeleted, m.Intents, m.IntentLatency, m.Fallbacks,
			m.Sessions,
		)
	}
	return m
}
