package portainer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeyhost/homedash/internal/config"
	"github.com/mikeyhost/homedash/internal/upstream"
)

// newPortainer fakes Portainer's REST API plus the Docker Engine proxy for
// the given endpoints.
func newPortainer(t *testing.T, endpoints string, containers map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		path := r.URL.Path
		switch {
		case path == "/api/endpoints":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(endpoints))
		case strings.HasSuffix(path, "/_ping"):
			w.Header().Set("API-Version", "1.41")
			w.Header().Set("OSType", "linux")
			_, _ = w.Write([]byte("OK"))
		case strings.HasSuffix(path, "/containers/json"):
			if r.URL.Query().Get("all") != "1" {
				t.Errorf("container list without all=1: %s", r.URL.RawQuery)
			}
			prefix := strings.SplitN(path, "/docker/", 2)[0]
			body, ok := containers[prefix]
			if !ok {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStatusCountsContainersOnActiveEndpoints(t *testing.T) {
	server := newPortainer(t,
		`[{"Id":1,"Name":"local","Status":1},{"Id":2,"Name":"nas","Status":1},{"Id":3,"Name":"offline","Status":2}]`,
		map[string]string{
			"/api/endpoints/1": `[{"Id":"a","State":"running"},{"Id":"b","State":"Running"},{"Id":"c","State":"exited"}]`,
			"/api/endpoints/2": `[{"Id":"d","State":"paused"},{"Id":"e","State":"created"}]`,
		})

	status, err := New(config.ServiceConfig{URL: server.URL, APIKey: "key"}, 0).Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &Status{
		Online:            true,
		Endpoints:         3,
		ActiveEndpoints:   2,
		TotalContainers:   5,
		RunningContainers: 2,
		StoppedContainers: 2,
		PausedContainers:  1,
	}, status)
}

func TestStatusSkipsFailingEndpoint(t *testing.T) {
	server := newPortainer(t,
		`[{"Id":1,"Name":"local","Status":1},{"Id":2,"Name":"broken","Status":1}]`,
		map[string]string{
			"/api/endpoints/1": `[{"Id":"a","State":"running"}]`,
		})

	status, err := New(config.ServiceConfig{URL: server.URL, APIKey: "key"}, 0).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, status.ActiveEndpoints)
	assert.Equal(t, 1, status.TotalContainers)
	assert.Equal(t, 1, status.RunningContainers)
}

type stubDocker struct {
	containers []container.Summary
	err        error
	closed     *atomic.Int32
}

func (s stubDocker) ContainerList(context.Context, container.ListOptions) ([]container.Summary, error) {
	return s.containers, s.err
}

func (s stubDocker) Close() error {
	s.closed.Add(1)
	return nil
}

func TestStatusClosesDockerClients(t *testing.T) {
	server := newPortainer(t, `[{"Id":7,"Status":1},{"Id":8,"Status":1}]`, nil)

	var closed atomic.Int32
	calls := 0
	orig := newDockerClientFn
	t.Cleanup(func() { newDockerClientFn = orig })
	newDockerClientFn = func(...client.Opt) (dockerClient, error) {
		calls++
		if calls == 2 {
			return stubDocker{err: errors.New("boom"), closed: &closed}, nil
		}
		return stubDocker{containers: []container.Summary{{State: "dead"}}, closed: &closed}, nil
	}

	status, err := New(config.ServiceConfig{URL: server.URL, APIKey: "key"}, 0).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.StoppedContainers)
	assert.Equal(t, int32(2), closed.Load())
}

func TestStatusErrors(t *testing.T) {
	server := newPortainer(t, `[]`, nil)

	_, err := New(config.ServiceConfig{URL: server.URL, APIKey: "wrong"}, 0).Status(context.Background())
	assert.Equal(t, "Portainer API error (401). Check API key and URL.", upstream.Describe(err))

	_, err = New(config.ServiceConfig{URL: server.URL}, 0).Status(context.Background())
	assert.Equal(t, "Portainer API key not configured", upstream.Describe(err))
}

func TestDockerOptionsRejectsBadURL(t *testing.T) {
	svc := New(config.ServiceConfig{URL: "not a url", APIKey: "key"}, 0)
	_, err := svc.dockerOptions(1)
	assert.Error(t, err)
}
