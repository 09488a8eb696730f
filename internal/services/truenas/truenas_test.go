package truenas

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeyhost/homedash/internal/config"
	"github.com/mikeyhost/homedash/internal/upstream"
	"github.com/mikeyhost/homedash/internal/upstream/upstreamtest"
)

const poolsJSON = `[
	{"name":"tank","status":"ONLINE","topology":{"data":[
		{"stats":{"size":4398046511104,"allocated":1099511627776}},
		{"stats":{"size":"4398046511104","allocated":"1099511627776"}}
	]}},
	{"healthy":false,"topology":{"data":[]}}
]`

const reportingJSON = `[
	{"name":"cpu","legend":["cpu","cpu0"],"aggregations":{"mean":{"cpu":12.345,"cpu0":50}}},
	{"name":"memory","aggregations":{"mean":{"available":8589934592}}},
	{"name":"arcsize","aggregations":{"mean":{"arc_total":4294967296,"arc_max":0}}}
]`

func TestStatusFullReport(t *testing.T) {
	orig := nowFn
	t.Cleanup(func() { nowFn = orig })
	nowFn = func() time.Time { return time.Unix(1_700_000_000, 0) }

	server := upstreamtest.NewServer(t, map[string]upstreamtest.Response{
		"/api/v2.0/system/info":         {Body: `{"physmem":34359738368,"hostname":"nas"}`},
		"/api/v2.0/pool":                {Body: poolsJSON},
		"/api/v2.0/reporting/get_data": {Body: reportingJSON},
	}, func(t *testing.T, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/api/v2.0/reporting/get_data" {
			return
		}
		body, _ := io.ReadAll(r.Body)
		var payload reportingRequest
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("bad reporting payload: %v", err)
			return
		}
		if payload.Query.End-payload.Query.Start != 300 || !payload.Query.Aggregate || len(payload.Graphs) != 3 {
			t.Errorf("unexpected reporting query %+v", payload)
		}
	})

	status, err := New(config.ServiceConfig{URL: server.URL, APIKey: "key"}, 0).Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "12.3%", status.CPUUsage)
	assert.Equal(t, "75.0%", status.MemoryUsage)
	assert.Equal(t, "8.0 GiB", status.MemoryFree)
	assert.Equal(t, "4.0 GiB", status.MemoryZFSCache)
	assert.Equal(t, "20.0 GiB", status.MemoryServices)
	assert.Equal(t, "32.0 GiB", status.MemoryTotal)

	assert.Equal(t, 2, status.PoolCount)
	assert.Equal(t, "8.0 TiB", status.TotalCapacity)
	assert.Equal(t, "2.0 TiB", status.TotalUsed)
	assert.Equal(t, "25.0%", status.StorageUsage)
	assert.Equal(t, []Pool{
		{Name: "tank", Status: "ONLINE", Capacity: "8.0 TiB", Used: "2.0 TiB", UsedPercentage: "25.0%", UsedPctNum: 25},
		{Name: "Unknown", Status: "DEGRADED", Capacity: "0 B", Used: "0 B", UsedPercentage: "0.0%", UsedPctNum: 0},
	}, status.Pools)
}

func TestStatusWithoutReporting(t *testing.T) {
	server := upstreamtest.NewServer(t, map[string]upstreamtest.Response{
		"/api/v2.0/system/info":         {Body: `{"physmem":0}`},
		"/api/v2.0/reporting/get_data": {Status: http.StatusUnprocessableEntity, Body: `{"message":"bad"}`},
	}, nil)

	status, err := New(config.ServiceConfig{URL: server.URL, APIKey: "key"}, 0).Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, unknown, status.CPUUsage)
	assert.Equal(t, unknown, status.MemoryUsage)
	assert.Equal(t, unknown, status.MemoryFree)
	assert.Equal(t, unknown, status.MemoryZFSCache)
	assert.Equal(t, unknown, status.MemoryServices)
	assert.Equal(t, "0 B", status.MemoryTotal)
	assert.Equal(t, "0%", status.StorageUsage)
	assert.Zero(t, status.PoolCount)
	assert.NotNil(t, status.Pools)
}

func TestStatusErrors(t *testing.T) {
	server := upstreamtest.NewServer(t, map[string]upstreamtest.Response{
		"/api/v2.0/system/info": {Status: http.StatusUnauthorized},
	}, nil)

	_, err := New(config.ServiceConfig{URL: server.URL, APIKey: "key"}, 0).Status(context.Background())
	assert.Equal(t, "TrueNAS API returned 401", upstream.Describe(err))

	_, err = New(config.ServiceConfig{URL: server.URL}, 0).Status(context.Background())
	assert.Equal(t, "TrueNAS API key not configured", upstream.Describe(err))
}

func TestOrderedMeans(t *testing.T) {
	var means orderedMeans
	require.NoError(t, json.Unmarshal([]byte(`{"z":null,"b":2,"a":"x"}`), &means))

	_, ok := means.Get("z")
	assert.False(t, ok)
	v, ok := means.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)
	assert.Equal(t, 2.0, means.First("a", "b"))
	assert.Zero(t, means.FirstValue())

	require.NoError(t, json.Unmarshal([]byte(`null`), &means))
	assert.Empty(t, means)
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &means))
}

func TestLooseInt(t *testing.T) {
	var values []looseInt
	require.NoError(t, json.Unmarshal([]byte(`[1, "2", 3.9, "junk", null, true]`), &values))
	assert.Equal(t, []looseInt{1, 2, 3, 0, 0, 0}, values)
}
