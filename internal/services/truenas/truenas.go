// Package truenas reports memory, CPU and pool capacity from the TrueNAS
// REST API (v2.0).
package truenas

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mikeyhost/homedash/internal/config"
	errs "github.com/mikeyhost/homedash/internal/errors"
	"github.com/mikeyhost/homedash/internal/upstream"
	"github.com/mikeyhost/homedash/internal/utils"
)

const (
	displayName = "TrueNAS"
	apiPrefix   = "/api/v2.0"

	reportingWindow = 5 * time.Minute
	unknown         = "N/A"
)

var nowFn = time.Now

type Status struct {
	Online         bool   `json:"online"`
	CPUUsage       string `json:"cpuUsage"`
	MemoryUsage    string `json:"memoryUsage"`
	MemoryFree     string `json:"memoryFree"`
	MemoryZFSCache string `json:"memoryZfsCache"`
	MemoryServices string `json:"memoryServices"`
	MemoryTotal    string `json:"memoryTotal"`
	StorageUsage   string `json:"storageUsage"`
	PoolCount      int    `json:"poolCount"`
	TotalCapacity  string `json:"totalCapacity"`
	TotalUsed      string `json:"totalUsed"`
	Pools          []Pool `json:"pools"`
}

type Pool struct {
	Name           string  `json:"name"`
	Status         string  `json:"status"`
	Capacity       string  `json:"capacity"`
	Used           string  `json:"used"`
	UsedPercentage string  `json:"usedPercentage"`
	UsedPctNum     float64 `json:"usedPctNum"`
}

type Service struct {
	client     *upstream.Client
	configured bool
}

func New(cfg config.ServiceConfig, timeout time.Duration) *Service {
	return &Service{
		configured: cfg.APIKey != "",
		client: upstream.New(upstream.Config{
			Service:            displayName,
			BaseURL:            cfg.URL,
			Timeout:            timeout,
			Headers:            map[string]string{"Authorization": "Bearer " + cfg.APIKey},
			Fingerprint:        cfg.Fingerprint,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}),
	}
}

func (s *Service) Configured() bool { return s.configured }

func (s *Service) Status(ctx context.Context) (*Status, error) {
	if !s.configured {
		return nil, errs.ConfigMissing(displayName, "TrueNAS API key not configured")
	}

	var info systemInfoResponse
	if err := s.client.GetJSON(ctx, apiPrefix+"/system/info", &info); err != nil {
		return nil, err
	}
	physMem := float64(info.PhysMem)

	var pools []poolResponse
	if err := s.client.GetJSON(ctx, apiPrefix+"/pool", &pools); err != nil {
		log.Debug().Err(err).Str("service", displayName).Msg("Pool listing unavailable")
		pools = nil
	}

	status := &Status{
		Online:         true,
		CPUUsage:       unknown,
		MemoryUsage:    unknown,
		MemoryFree:     unknown,
		MemoryZFSCache: unknown,
		MemoryServices: unknown,
		MemoryTotal:    utils.FormatBytes(physMem, 1),
	}
	s.applyReporting(ctx, status, physMem)
	applyPools(status, pools)
	return status, nil
}

// applyReporting fills the CPU and memory breakdown from the averaged
// reporting graphs. Any failure leaves the fields at N/A.
func (s *Service) applyReporting(ctx context.Context, status *Status, physMem float64) {
	end := nowFn().Unix()
	request := reportingRequest{
		Graphs: []reportingGraph{{Name: "cpu"}, {Name: "memory"}, {Name: "arcsize"}},
		Query: reportingQuery{
			Start:     end - int64(reportingWindow/time.Second),
			End:       end,
			Aggregate: true,
		},
	}

	var graphs []reportingResponse
	if err := s.client.PostJSON(ctx, apiPrefix+"/reporting/get_data", request, &graphs); err != nil {
		log.Debug().Err(err).Str("service", displayName).Msg("Reporting data unavailable")
		return
	}

	var available, arc float64
	for _, graph := range graphs {
		means := graph.Aggregations.Mean
		switch graph.Name {
		case "cpu":
			if cpu, ok := means.Get("cpu"); ok {
				status.CPUUsage = fmt.Sprintf("%.1f%%", cpu)
			}
		case "memory":
			available = means.First("available", "free")
			if available > 0 {
				status.MemoryFree = utils.FormatBytes(available, 1)
				if physMem > 0 {
					status.MemoryUsage = utils.FormatPercent(physMem-available, physMem, 1, unknown)
				}
			}
		case "arcsize":
			arc = means.First("arcsize", "arc_size", "size")
			if arc == 0 {
				arc = means.FirstValue()
			}
			if arc > 0 {
				status.MemoryZFSCache = utils.FormatBytes(arc, 1)
			}
		}
	}

	if physMem > 0 && available > 0 {
		if services := physMem - available - arc; services > 0 {
			status.MemoryServices = utils.FormatBytes(services, 1)
		}
	}
}

func applyPools(status *Status, pools []poolResponse) {
	var totalCapacity, totalUsed float64
	status.Pools = make([]Pool, 0, len(pools))

	for _, p := range pools {
		var capacity, used float64
		for _, vdev := range p.Topology.Data {
			capacity += float64(vdev.Stats.Size)
			used += float64(vdev.Stats.Allocated)
		}
		totalCapacity += capacity
		totalUsed += used

		pct := utils.Round(utils.Percent(used, capacity), 1)
		status.Pools = append(status.Pools, Pool{
			Name:           p.name(),
			Status:         p.status(),
			Capacity:       utils.FormatBytes(capacity, 1),
			Used:           utils.FormatBytes(used, 1),
			UsedPercentage: fmt.Sprintf("%.1f%%", pct),
			UsedPctNum:     pct,
		})
	}

	status.PoolCount = len(pools)
	status.TotalCapacity = utils.FormatBytes(totalCapacity, 1)
	status.TotalUsed = utils.FormatBytes(totalUsed, 1)
	status.StorageUsage = utils.FormatPercent(totalUsed, totalCapacity, 1, "0%")
}
