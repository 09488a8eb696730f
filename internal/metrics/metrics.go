package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	errs "github.com/mikeyhost/homedash/internal/errors"
)

var (
	// Upstream status checks
	UpstreamChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homedash_upstream_checks_total",
			Help: "Total number of service status checks by outcome",
		},
		[]string{"service", "outcome"},
	)

	UpstreamCheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "homedash_upstream_check_duration_seconds",
			Help:    "Duration of service status checks including all upstream calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"service"},
	)

	// Feed aggregation
	FeedSourceFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homedash_feed_source_failures_total",
			Help: "Total number of feed sources that failed to fetch or parse",
		},
		[]string{"kind"}, // rss, youtube, reddit
	)

	// Login
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homedash_login_attempts_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"}, // success, invalid, rate_limited
	)
)

// Outcome labels a finished status check.
func Outcome(err error) string {
	if err == nil {
		return "online"
	}
	if kind := errs.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

// RecordUpstreamCheck records one status check.
func RecordUpstreamCheck(service string, err error, elapsed time.Duration) {
	UpstreamChecksTotal.WithLabelValues(service, Outcome(err)).Inc()
	UpstreamCheckDuration.WithLabelValues(service).Observe(elapsed.Seconds())
}

// RecordFeedFailure counts a failed feed source.
func RecordFeedFailure(kind string) {
	FeedSourceFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordLogin counts a login attempt.
func RecordLogin(result string) {
	LoginAttemptsTotal.WithLabelValues(result).Inc()
}
