package qbittorrent

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

const torrents = `[
	{"name":"ubuntu.iso","state":"downloading","progress":0.5,"dlspeed":1048576,"upspeed":0,"size":4294967296,"downloaded":2147483648},
	{"name":"debian.iso","state":"stalledUP","progress":1,"dlspeed":0,"upspeed":2048,"size":1073741824},
	{"name":"paused","state":"pausedDL","progress":0.1,"size":1024},
	{"name":"a","state":"uploading","progress":1},
	{"name":"b","state":"uploading","progress":1},
	{"name":"c","state":"stalledDL","progress":0},
	{"name":"d","state":"downloading","progress":0.25}
]`

func loginOK(cookie string) upstreamtest.Response {
	return upstreamtest.Response{
		Body:        "Ok.",
		ContentType: "text/plain",
		Header:      map[string]string{"Set-Cookie": cookie + "=abc123; HttpOnly; path=/"},
	}
}

func TestStatusLogsInAndSummarizes(t *testing.T) {
	server := upstreamtest.NewServer(t, map[string]upstreamtest.Response{
		"/api/v2/auth/login":    loginOK("SID"),
		"/api/v2/torrents/info": {Body: torrents},
		"/api/v2/transfer/info": {Body: `{"dl_info_speed":3145728,"up_info_speed":512}`},
	}, func(t *testing.T, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/auth/login":
			if r.Method != http.MethodPost {
				t.Errorf("login method = %s", r.Method)
			}
			if r.Header.Get("Referer") == "" {
				t.Errorf("login without Referer")
			}
			if err := r.ParseForm(); err != nil || r.PostForm.Get("username") != "admin" || r.PostForm.Get("password") != "pw" {
				t.Errorf("unexpected login form %v (%v)", r.PostForm, err)
			}
		default:
			if c, err := r.Cookie("SID"); err != nil || c.Value != "abc123" {
				t.Errorf("%s missing session cookie", r.URL.Path)
			}
		}
	})

	svc := New(config.ServiceConfig{URL: server.URL, Username: "admin", Password: "pw"}, 0)
	status, err := svc.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Connected", status.Status)
	assert.Equal(t, 7, status.TorrentCount)
	assert.Equal(t, int64(3145728), status.DownloadSpeed)
	assert.Equal(t, int64(512), status.UploadSpeed)
	require.Len(t, status.ActiveTorrents, 5)
	assert.Equal(t, Torrent{
		Name: "ubuntu.iso", Progress: "50.0%", DLSpeed: 1048576, UPSpeed: 0,
		State: "downloading", Size: 4294967296, Downloaded: 2147483648,
	}, status.ActiveTorrents[0])
	assert.Equal(t, "debian.iso", status.ActiveTorrents[1].Name)
	assert.Equal(t, "c", status.ActiveTorrents[4].Name)
}

func TestStatusAcceptsPrefixedSessionCookie(t *testing.T) {
	server := upstreamtest.NewServer(t, map[string]upstreamtest.Response{
		"/api/v2/auth/login":    loginOK("QBT_SID_8080"),
		"/api/v2/torrents/info": {Body: `[]`},
	}, nil)

	status, err := New(config.ServiceConfig{URL: server.URL, Username: "u", Password: "p"}, 0).Status(context.Background())
	require.NoError(t, err)
	assert.Empty(t, status.ActiveTorrents)
	assert.Zero(t, status.DownloadSpeed)
}

func TestStatusLoginFailures(t *testing.T) {
	tests := []struct {
		name  string
		login upstreamtest.Response
		want  string
	}{
		{
			name:  "forbidden",
			login: upstreamtest.Response{Status: http.StatusForbidden},
			want:  "Login failed with status 403. Check username/password.",
		},
		{
			name:  "wrong password",
			login: upstreamtest.Response{Body: "Fails.", ContentType: "text/plain"},
			want:  "Login failed. Invalid credentials.",
		},
		{
			name:  "no cookie",
			login: upstreamtest.Response{Body: "Ok.", ContentType: "text/plain"},
			want:  "Failed to get session ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := upstreamtest.NewServer(t, map[string]upstreamtest.Response{
				"/api/v2/auth/login": tt.login,
			}, nil)

			_, err := New(config.ServiceConfig{URL: server.URL, Username: "u", Password: "p"}, 0).Status(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.want, upstream.Describe(err))
			assert.Zero(t, server.Hits("/api/v2/torrents/info"))
		})
	}
}

func TestStatusTorrentListFailure(t *testing.T) {
	server := upstreamtest.NewServer(t, map[string]upstreamtest.Response{
		"/api/v2/auth/login":    loginOK("SID"),
		"/api/v2/torrents/info": {Status: http.StatusInternalServerError},
	}, nil)

	_, err := New(config.ServiceConfig{URL: server.URL, Username: "u", Password: "p"}, 0).Status(context.Background())
	assert.Equal(t, "Failed to get torrents: 500", upstream.Describe(err))
}

func TestStatusNotConfigured(t *testing.T) {
	svc := New(config.ServiceConfig{URL: "http://qbit"}, 0)
	assert.False(t, svc.Configured())
	_, err := svc.Status(context.Background())
	assert.True(t, strings.Contains(upstream.Describe(err), "not configured"))
}
