package api

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   string
	}{
		{"500 internal server error", 500, "server_error"},
		{"502 bad gateway", 502, "server_error"},
		{"400 bad request", 400, "client_error"},
		{"401 unauthorized", 401, "client_error"},
		{"429 too many requests", 429, "client_error"},
		{"200 OK", 200, "none"},
		{"302 found", 302, "none"},
		{"399 boundary below client error", 399, "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyStatus(tt.status)
			if got != tt.want {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestNormalizeSegment(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"123", ":id"},
		{"550e8400-e29b-41d4-a716-446655440000", ":uuid"},
		{"abcdefghijklmnopqrstuvwxyz1234567", ":token"},
		{"qbittorrent", "qbittorrent"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizeSegment(tt.input); got != tt.want {
			t.Errorf("normalizeSegment(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty string", "", "/"},
		{"root path", "/", "/"},
		{"status route", "/api/proxmox", "/api/proxmox"},
		{"feed route", "/api/feeds/rss", "/api/feeds/rss"},
		{"query stripped", "/api/feeds/reddit?x=1", "/api/feeds/reddit"},
		{"numeric id", "/api/things/42", "/api/things/:id"},
		{"deep path capped", "/api/a/b/c/d/e/f", "/api/a/b/c/d"},
		{"page", "/services", "/static"},
		{"asset", "/assets/index-4f2a.js", "/static"},
		{"double slash", "//", "/static"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeRoute(tt.input); got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRecordAPIRequestCountsErrors(t *testing.T) {
	recordAPIRequest("GET", "/api/metrics-test", 503, 10*time.Millisecond)
	recordAPIRequest("GET", "/api/metrics-test", 200, 10*time.Millisecond)

	if got := testutil.ToFloat64(apiRequestTotal.WithLabelValues("GET", "/api/metrics-test", "503")); got != 1 {
		t.Errorf("requests_total{503} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(apiRequestErrors.WithLabelValues("GET", "/api/metrics-test", "server_error")); got != 1 {
		t.Errorf("request_errors_total{server_error} = %v, want 1", got)
	}
}
