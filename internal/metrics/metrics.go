package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miniquoter_quotes_total",
			Help: "Total quote requests by outcome",
		},
		[]string{"outcome"},
	)

	GeocodeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miniquoter_geocode_lookups_total",
			Help: "Postal code lookups by result",
		},
		[]string{"result"},
	)

	NarrativeCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miniquoter_narrative_calls_total",
			Help: "Total narrative generation calls",
		},
		[]string{"status"},
	)

	NarrativeLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "miniquoter_narrative_latency_seconds",
			Help:    "Narrative generation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "miniquoter_rate_limit_rejections_total",
			Help: "Quote requests rejected by the daily limit",
		},
	)

	PostalCodesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "miniquoter_postal_codes_loaded",
			Help: "Postal codes available to the geocoder",
		},
	)
)
