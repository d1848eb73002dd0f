// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes recorded by ObserveFetch.
const (
	FetchOK      = "ok"
	FetchError   = "error"
	FetchDenied  = "denied"
	FetchSkipped = "skipped"
)

// Document statuses recorded by ObserveDocument.
const (
	DocumentDownloaded  = "downloaded"
	DocumentUnchanged   = "unchanged"
	DocumentNonDocument = "non_document"
	DocumentProcessed   = "processed"
	DocumentFailed      = "failed"
)

var (
	harvesterFetchesTotal          *prometheus.CounterVec
	harvesterBytesTotal            *prometheus.CounterVec
	harvesterDocumentsTotal        *prometheus.CounterVec
	harvesterRobotsFallbacksTotal  *prometheus.CounterVec
	harvesterExtractionTierTotal   *prometheus.CounterVec
	harvesterRateLimitDelaySeconds *prometheus.HistogramVec
	harvesterRunDurationSeconds    prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvesterFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_fetches_total",
				Help: "Outbound fetches, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		harvesterBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_bytes_total",
				Help: "Bytes of document payload downloaded, labeled by site.",
			},
			[]string{"site"},
		)

		harvesterDocumentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_documents_total",
				Help: "Documents seen by the pipeline, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		harvesterRobotsFallbacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_robots_fallbacks_total",
				Help: "robots.txt lookups that failed and fell back to the configured default.",
			},
			[]string{"site", "decision"},
		)

		harvesterExtractionTierTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_extraction_tier_total",
				Help: "Metadata fields resolved, labeled by field and the tier that produced them.",
			},
			[]string{"field", "tier"},
		)

		harvesterRateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_rate_limit_delay_seconds",
				Help:    "Histogram of politeness delay waits.",
				Buckets: []float64{0.1, 0.5, 1, 1.5, 2, 5, 10},
			},
			[]string{"scope"},
		)

		harvesterRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_run_duration_seconds",
				Help:    "Wall-clock duration of harvest runs.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records an outbound fetch attempt and its payload size.
func ObserveFetch(rawURL, outcome string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	harvesterFetchesTotal.WithLabelValues(site, outcome).Inc()
	if bytesFetched > 0 {
		harvesterBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveDocument records a document lifecycle transition for a site.
func ObserveDocument(site, status string) {
	Init()
	harvesterDocumentsTotal.WithLabelValues(SanitizeSite(site), status).Inc()
}

// ObserveRobotsFallback records a robots.txt lookup failure and the decision taken.
func ObserveRobotsFallback(host string, allowed bool) {
	Init()
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	harvesterRobotsFallbacksTotal.WithLabelValues(SanitizeSite(host), decision).Inc()
}

// ObserveExtractionTier records which extraction tier resolved a metadata field.
func ObserveExtractionTier(field, tier string) {
	Init()
	harvesterExtractionTierTotal.WithLabelValues(field, tier).Inc()
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(scope string, duration time.Duration) {
	Init()
	harvesterRateLimitDelaySeconds.WithLabelValues(scope).Observe(duration.Seconds())
}

// ObserveRun records the duration of a completed harvest run.
func ObserveRun(duration time.Duration) {
	Init()
	harvesterRunDurationSeconds.Observe(duration.Seconds())
}
