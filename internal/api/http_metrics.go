package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const maxRouteSegments = 4

var (
	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "homedash_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status"},
	)

	apiRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homedash_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	apiRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homedash_http_request_errors_total",
			Help: "Total number of 4xx and 5xx responses",
		},
		[]string{"method", "route", "status_class"},
	)
)

func recordAPIRequest(method, route string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	apiRequestDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
	apiRequestTotal.WithLabelValues(method, route, code).Inc()

	if class := classifyStatus(status); class != "none" {
		apiRequestErrors.WithLabelValues(method, route, class).Inc()
	}
}

func classifyStatus(status int) string {
	switch {
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "client_error"
	default:
		return "none"
	}
}

// normalizeRoute bounds label cardinality. Everything outside /api/ is the
// frontend and shares one label; API paths keep at most four segments
// after /api with ids collapsed.
func normalizeRoute(path string) string {
	path, _, _ = strings.Cut(path, "?")
	if path == "" || path == "/" {
		return "/"
	}
	if path != "/api" && !strings.HasPrefix(path, "/api/") {
		return "/static"
	}

	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if len(segments) > maxRouteSegments {
			break
		}
		segments = append(segments, normalizeSegment(seg))
	}
	return "/" + strings.Join(segments, "/")
}

func normalizeSegment(seg string) string {
	switch {
	case seg == "":
		return seg
	case strings.Trim(seg, "0123456789") == "":
		return ":id"
	case len(seg) == 36 && uuid.Validate(seg) == nil:
		return ":uuid"
	case len(seg) > 32:
		return ":token"
	}
	return seg
}
