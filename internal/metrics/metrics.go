package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TableLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "energydash_table_loads_total",
			Help: "Total table loads from a source",
		},
		[]string{"kind", "scheme", "status"},
	)

	TableLoadLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "energydash_table_load_seconds",
			Help:    "Table load latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "scheme"},
	)

	RowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "energydash_rows_skipped_total",
			Help: "Rows skipped at load because a required value was missing",
		},
		[]string{"kind"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "energydash_cache_lookups_total",
			Help: "Load cache lookups by result",
		},
		[]string{"cache", "result"},
	)

	RendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "energydash_renders_total",
			Help: "Dashboard render passes by view",
		},
		[]string{"view"},
	)

	AnomaliesFlagged = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "energydash_anomalies_flagged",
			Help: "Anomalies flagged in the most recent render, per device and metric",
		},
		[]string{"device", "metric"},
	)

	NarrativesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "energydash_narratives_generated_total",
			Help: "Narratives generated by backend and status",
		},
		[]string{"backend", "status"},
	)
)
