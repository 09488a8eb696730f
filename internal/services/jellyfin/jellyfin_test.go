package jellyfin

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeyhost/homedash/internal/config"
	"github.com/mikeyhost/homedash/internal/upstream"
	"github.com/mikeyhost/homedash/internal/upstream/upstreamtest"
)

const sessionsBody = `[
	{"UserName":"alice","Client":"Jellyfin Web","DeviceName":"Firefox",
	 "NowPlayingItem":{"Name":"Pilot","SeriesName":"Severance","Type":"Episode","ParentIndexNumber":1,"IndexNumber":1}},
	{"UserName":"bob","Client":"Android TV","DeviceName":"Shield"},
	{"NowPlayingItem":{"Name":"Dune","Type":"Movie"}}
]`

func TestStatus(t *testing.T) {
	server := upstreamtest.NewServer(t, map[string]upstreamtest.Response{
		"/System/Info":  {Body: `{"Version":"10.9.7","ServerName":"media"}`},
		"/Items/Counts": {Body: `{"MovieCount":412,"SeriesCount":37,"EpisodeCount":1650}`},
		"/Sessions":     {Body: sessionsBody},
	}, func(t *testing.T, r *http.Request) {
		if !strings.Contains(r.Header.Get("X-Emby-Authorization"), `Token="key"`) {
			t.Errorf("missing MediaBrowser token header")
		}
	})

	status, err := New(config.ServiceConfig{URL: server.URL, APIKey: "key"}, 0).Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "10.9.7", status.Version)
	assert.Equal(t, "media", status.ServerName)
	assert.Equal(t, int64(412), status.MovieCount)
	assert.Equal(t, int64(1650), status.EpisodeCount)
	assert.Equal(t, 2, status.ActiveStreams)
	assert.Equal(t, []Viewer{
		{User: "alice", Content: "Severance - S1E1", Type: "Episode", Client: "Jellyfin Web", DeviceName: "Firefox"},
		{User: "Unknown User", Content: "Dune", Type: "Movie", Client: "Unknown", DeviceName: "Unknown Device"},
	}, status.Viewers)
}

func TestStatusLegacyEmbyPath(t *testing.T) {
	server := upstreamtest.NewServer(t, map[string]upstreamtest.Response{
		"/emby/System/Info":  {Body: `{}`},
		"/emby/Items/Counts": {Body: `{"MovieCount":5}`},
	}, nil)

	status, err := New(config.ServiceConfig{URL: server.URL, APIKey: "key"}, 0).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Unknown", status.Version)
	assert.Equal(t, "Jellyfin", status.ServerName)
	assert.Equal(t, int64(5), status.MovieCount)
	assert.Empty(t, status.Viewers)
	assert.NotNil(t, status.Viewers)
}

func TestStatusServerError(t *testing.T) {
	server := upstreamtest.NewServer(t, map[string]upstreamtest.Response{
		"/System/Info": {Status: http.StatusServiceUnavailable},
	}, nil)

	_, err := New(config.ServiceConfig{URL: server.URL, APIKey: "key"}, 0).Status(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Jellyfin API returned 503", upstream.Describe(err))
	assert.Zero(t, server.Hits("/emby/System/Info"))
}

func TestStatusNotConfigured(t *testing.T) {
	_, err := New(config.ServiceConfig{URL: "http://127.0.0.1:1"}, 0).Status(context.Background())
	assert.Equal(t, "Jellyfin API key not configured", upstream.Describe(err))
}
