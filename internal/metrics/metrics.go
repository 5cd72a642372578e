// Package metrics holds the prometheus collectors shared by the pricer
// components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pricer"

// Metrics groups every collector. Components accept a nil *Metrics and fall
// back to Discard.
type Metrics struct {
	RegistryRefreshes *prometheus.CounterVec
	RegistryPools     prometheus.Gauge
	DisabledPools     prometheus.Gauge

	FetchChunks        *prometheus.CounterVec
	FetchChunkDuration prometheus.Histogram
	DecodeErrors       *prometheus.CounterVec

	SnapshotBlock  prometheus.Gauge
	EventsApplied  *prometheus.CounterVec
	StateLookups   *prometheus.CounterVec
	FallbackResets prometheus.Counter

	QuoteDuration    prometheus.Histogram
	PoolDegradations *prometheus.CounterVec
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RegistryRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_refreshes_total",
			Help:      "Pool metadata refreshes by list and result.",
		}, []string{"list", "result"}),
		RegistryPools: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_pools",
			Help:      "Pools currently known to the registry.",
		}),
		DisabledPools: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_disabled_pools",
			Help:      "Pools excluded from event sync.",
		}),

		FetchChunks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_chunks_total",
			Help:      "Multicall chunks submitted, by result.",
		}, []string{"result"}),
		FetchChunkDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_chunk_duration_seconds",
			Help:      "Latency of one multicall chunk.",
			Buckets:   prometheus.DefBuckets,
		}),
		DecodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_decode_errors_total",
			Help:      "Pools dropped from a refresh batch by decode failures.",
		}, []string{"pool_type"}),

		SnapshotBlock: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state_snapshot_block",
			Help:      "Block of the newest event-synced snapshot.",
		}),
		EventsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_events_applied_total",
			Help:      "Vault events applied to snapshots, by event name.",
		}, []string{"event"}),
		StateLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_lookups_total",
			Help:      "Pool state lookups by the layer that answered.",
		}, []string{"source"}),
		FallbackResets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_fallback_resets_total",
			Help:      "Times the block-pinned cache was discarded for a new block.",
		}),

		QuoteDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_seconds",
			Help:      "Latency of GetPrices.",
			Buckets:   prometheus.DefBuckets,
		}),
		PoolDegradations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_pool_degradations_total",
			Help:      "Pools that contributed no price, by reason.",
		}, []string{"reason"}),
	}
}

// Discard returns collectors registered on a throwaway registry.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}
