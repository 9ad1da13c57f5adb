package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var LinesParsed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ns_lines_parsed_total",
		Help: "Log lines accepted by the parser, per source.",
	},
	[]string{"source"},
)

var LinesRejected = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ns_lines_rejected_total",
		Help: "Log lines rejected by the parser, per source.",
	},
	[]string{"source"},
)

var EventsPersisted = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ns_events_persisted_total",
		Help: "Enriched events upserted into the store.",
	},
)

var BatchesFailed = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ns_batches_failed_total",
		Help: "Persistence batches that failed after retries.",
	},
)

var CacheHits = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ns_enrich_cache_hits_total",
		Help: "Enrichment cache hits, per lookup kind.",
	},
	[]string{"kind"},
)

var CacheMisses = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ns_enrich_cache_misses_total",
		Help: "Enrichment cache misses, per lookup kind.",
	},
	[]string{"kind"},
)

var LookupFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ns_enrich_lookup_failures_total",
		Help: "External lookups that returned no result, per kind.",
	},
	[]string{"kind"},
)

var UnknownPorts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ns_unknown_ports_total",
		Help: "Distinct ports resolved to the Unknown service label.",
	},
)

var RollupGroups = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "ns_rollup_groups",
		Help: "Identity-key groups written by the last rollup run.",
	},
)

func Register(registry *prometheus.Registry) {
	registry.MustRegister(
		LinesParsed, LinesRejected,
		EventsPersisted, BatchesFailed,
		CacheHits, CacheMisses, LookupFailures,
		UnknownPorts, RollupGroups,
	)
}
