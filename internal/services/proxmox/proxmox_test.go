package proxmox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeyhost/homedash/internal/config"
	errs "github.com/mikeyhost/homedash/internal/errors"
	"github.com/mikeyhost/homedash/internal/upstream"
	"github.com/mikeyhost/homedash/internal/upstream/upstreamtest"
)

const clusterResources = `{"data":[
	{"type":"node","node":"pve1","status":"online","cpu":0.10,"mem":4294967296,"maxmem":17179869184},
	{"type":"node","node":"pve2","status":"online","cpu":0.30,"mem":4294967296,"maxmem":17179869184},
	{"type":"qemu","vmid":101,"name":"web","status":"running","cpu":0.125,"mem":1073741824,"maxmem":2147483648},
	{"type":"lxc","vmid":200,"name":"Adguard","status":"running","cpu":0.01,"mem":268435456,"maxmem":536870912},
	{"type":"qemu","vmid":102,"name":"backup","status":"stopped","mem":0,"maxmem":4294967296},
	{"type":"lxc","vmid":201,"status":"running","mem":0,"maxmem":0},
	{"type":"storage","storage":"local","status":"available"}
]}`

func tlsServer(t *testing.T) *upstreamtest.Server {
	return upstreamtest.NewTLSServer(t, map[string]upstreamtest.Response{
		"/api2/json/cluster/resources": {Body: clusterResources},
	}, func(t *testing.T, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "PVEAPIToken=root@pam!dash=secret" {
			t.Errorf("unexpected auth header %q", got)
		}
	})
}

func TestStatusAggregatesSelfSignedCluster(t *testing.T) {
	server := tlsServer(t)

	svc := New(config.ServiceConfig{URL: server.URL, TokenID: "root@pam!dash", TokenSecret: "secret"}, 0)
	status, err := svc.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, status.TotalGuests)
	assert.Equal(t, 3, status.RunningGuests)
	assert.Equal(t, 1, status.StoppedGuests)
	assert.Equal(t, "20.0%", status.CPUUsage)
	assert.Equal(t, "25.0%", status.MemoryUsage)
	assert.Equal(t, "8.0 GiB", status.MemoryUsed)
	assert.Equal(t, "32.0 GiB", status.MemoryTotal)

	assert.Equal(t, []Guest{
		{Name: "Adguard", Type: "LXC", VMID: 200, Status: "running", CPU: "1.0%", Memory: "50.0%", MemoryUsed: "256.0 MiB", MemoryMax: "512.0 MiB"},
		{Name: "lxc-201", Type: "LXC", VMID: 201, Status: "running", CPU: "0%", Memory: "0%", MemoryUsed: "0 B", MemoryMax: "0 B"},
		{Name: "web", Type: "VM", VMID: 101, Status: "running", CPU: "12.5%", Memory: "50.0%", MemoryUsed: "1.0 GiB", MemoryMax: "2.0 GiB"},
	}, status.Guests)
}

func TestStatusPinnedFingerprint(t *testing.T) {
	server := tlsServer(t)
	sum := sha256.Sum256(server.Certificate().Raw)

	good := New(config.ServiceConfig{
		URL: server.URL, TokenID: "root@pam!dash", TokenSecret: "secret",
		Fingerprint: hex.EncodeToString(sum[:]),
	}, 0)
	_, err := good.Status(context.Background())
	require.NoError(t, err)

	bad := New(config.ServiceConfig{
		URL: server.URL, TokenID: "root@pam!dash", TokenSecret: "secret",
		Fingerprint: "00:11",
	}, 0)
	_, err = bad.Status(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnreachable))
}

func TestStatusEmptyCluster(t *testing.T) {
	status := summarize(nil)
	assert.Equal(t, "0%", status.CPUUsage)
	assert.Equal(t, "0%", status.MemoryUsage)
	assert.Equal(t, "0 B", status.MemoryTotal)
	assert.NotNil(t, status.Guests)
}

func TestStatusErrors(t *testing.T) {
	server := upstreamtest.NewTLSServer(t, map[string]upstreamtest.Response{
		"/api2/json/cluster/resources": {Status: http.StatusUnauthorized},
	}, nil)

	_, err := New(config.ServiceConfig{URL: server.URL, TokenID: "a", TokenSecret: "b"}, 0).Status(context.Background())
	assert.Equal(t, "Proxmox API returned 401", upstream.Describe(err))

	_, err = New(config.ServiceConfig{URL: server.URL, TokenID: "a"}, 0).Status(context.Background())
	assert.Equal(t, "Proxmox credentials not configured", upstream.Describe(err))
}
