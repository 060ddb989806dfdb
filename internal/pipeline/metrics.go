package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	regionsDetected = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fukidashi_regions_detected_per_page",
			Help:    "Number of text regions detected per processed page",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	regionsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fukidashi_regions_dropped_total",
			Help: "Total number of detected regions dropped by the confidence filter",
		},
	)

	translationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fukidashi_translation_failures_total",
			Help: "Total number of regions whose translation failed and got the sentinel",
		},
	)

	heapBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fukidashi_heap_bytes",
			Help: "Heap bytes in use after the last processed page",
		},
	)
)
