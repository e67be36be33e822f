// Package metrics exposes Prometheus collectors for the audit service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesAuditedTotal  prometheus.Counter
	probeFailuresTotal *prometheus.CounterVec
	overallScore       prometheus.Histogram
	crawlDepth         prometheus.Gauge
	navFailuresTotal   prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesAuditedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sitegauge_pages_audited_total",
				Help: "Total number of pages fully audited.",
			},
		)

		probeFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitegauge_probe_failures_total",
				Help: "Total probe failures, labeled by probe and failure kind.",
			},
			[]string{"probe", "kind"},
		)

		overallScore = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitegauge_overall_score",
				Help:    "Distribution of combined overall page scores.",
				Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		)

		crawlDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitegauge_crawl_depth",
				Help: "Depth of the page currently being audited.",
			},
		)

		navFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sitegauge_navigation_failures_total",
				Help: "Total navigations that failed before audit.",
			},
		)
	})
}

// RecordPageAudited counts a completed page audit and observes its score.
func RecordPageAudited(overall int) {
	if pagesAuditedTotal == nil {
		return
	}
	pagesAuditedTotal.Inc()
	overallScore.Observe(float64(overall))
}

// RecordProbeFailure counts one probe-level failure or skip.
func RecordProbeFailure(probe, kind string) {
	if probeFailuresTotal == nil {
		return
	}
	probeFailuresTotal.WithLabelValues(probe, kind).Inc()
}

// RecordNavigationFailure counts a failed navigation.
func RecordNavigationFailure() {
	if navFailuresTotal == nil {
		return
	}
	navFailuresTotal.Inc()
}

// SetCrawlDepth publishes the depth of the page being audited.
func SetCrawlDepth(depth int) {
	if crawlDepth == nil {
		return
	}
	crawlDepth.Set(float64(depth))
}
