package adguard

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeyhost/homedash/internal/config"
	"github.com/mikeyhost/homedash/internal/upstream"
	"github.com/mikeyhost/homedash/internal/upstream/upstreamtest"
)

func TestStatus(t *testing.T) {
	server := upstreamtest.NewServer(t, map[string]upstreamtest.Response{
		"/control/status": {Body: `{"protection_enabled":true,"dhcp_available":false,"running":true,"version":"v0.107.52"}`},
		"/control/stats": {Body: `{"num_dns_queries":2000,"num_blocked_filtering":250,"num_replaced_safebrowsing":3,
			"num_replaced_parental":1,"num_replaced_safesearch":7,"avg_processing_time":0.01234}`},
	}, func(t *testing.T, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "pw" {
			t.Errorf("missing basic auth")
		}
	})

	svc := New(config.ServiceConfig{URL: server.URL, Username: "admin", Password: "pw"}, 0)
	status, err := svc.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &Status{
		Online:              true,
		Protection:          "Enabled",
		DNSQueries:          2000,
		BlockedQueries:      250,
		BlockRate:           "12.5%",
		SafeBrowsingBlocked: 3,
		ParentalBlocked:     1,
		SafeSearchEnforced:  7,
		AvgProcessingTime:   "12.34 ms",
		DHCPEnabled:         "No",
		RunningStatus:       "Running",
		Version:             "v0.107.52",
	}, status)
}

func TestStatusStatsUnavailable(t *testing.T) {
	server := upstreamtest.NewServer(t, map[string]upstreamtest.Response{
		"/control/status": {Body: `{"protection_enabled":false}`},
		"/control/stats":  {Status: http.StatusInternalServerError},
	}, nil)

	status, err := New(config.ServiceConfig{URL: server.URL, Username: "a", Password: "b"}, 0).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Disabled", status.Protection)
	assert.Equal(t, "0%", status.BlockRate)
	assert.Equal(t, "0 ms", status.AvgProcessingTime)
	assert.Equal(t, "Stopped", status.RunningStatus)
	assert.Equal(t, "Unknown", status.Version)
}

func TestStatusBadCredentials(t *testing.T) {
	server := upstreamtest.NewServer(t, map[string]upstreamtest.Response{
		"/control/status": {Status: http.StatusUnauthorized},
	}, nil)

	_, err := New(config.ServiceConfig{URL: server.URL, Username: "a", Password: "b"}, 0).Status(context.Background())
	require.Error(t, err)
	assert.Equal(t, "AdGuard API error (401). Check credentials and URL.", upstream.Describe(err))
}

func TestStatusNotConfigured(t *testing.T) {
	server := upstreamtest.NewServer(t, nil, nil)

	svc := New(config.ServiceConfig{URL: server.URL, Username: "admin"}, 0)
	assert.False(t, svc.Configured())
	_, err := svc.Status(context.Background())
	require.Error(t, err)
	assert.Equal(t, "AdGuard credentials not configured", upstream.Describe(err))
	assert.Zero(t, server.Total())
}
