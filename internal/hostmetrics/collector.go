// Package hostmetrics samples the dashboard host's own CPU, memory and disk
// usage for the host widget.
package hostmetrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	gocpu "github.com/shirou/gopsutil/v4/cpu"
	godisk "github.com/shirou/gopsutil/v4/disk"
	gohost "github.com/shirou/gopsutil/v4/host"
	goload "github.com/shirou/gopsutil/v4/load"
	gomem "github.com/shirou/gopsutil/v4/mem"

	"github.com/mikeyhost/homedash/internal/utils"
	"github.com/mikeyhost/homedash/pkg/fsfilters"
)

// System call wrappers for testing
var (
	hostInfo       = gohost.InfoWithContext
	cpuCounts      = gocpu.CountsWithContext
	cpuPercent     = gocpu.PercentWithContext
	loadAvg        = goload.AvgWithContext
	virtualMemory  = gomem.VirtualMemoryWithContext
	diskPartitions = godisk.PartitionsWithContext
	diskUsage      = godisk.UsageWithContext
)

const cpuSampleInterval = 250 * time.Millisecond

// Snapshot is a point-in-time view of the host.
type Snapshot struct {
	Hostname        string    `json:"hostname"`
	Platform        string    `json:"platform"`
	UptimeSeconds   uint64    `json:"uptimeSeconds"`
	CPUCount        int       `json:"cpuCount"`
	CPUUsagePercent float64   `json:"cpuUsagePercent"`
	CPUUsage        string    `json:"cpuUsage"`
	LoadAverage     []float64 `json:"loadAverage"`
	Memory          Memory    `json:"memory"`
	Disks           []Disk    `json:"disks"`
}

type Memory struct {
	TotalBytes uint64 `json:"totalBytes"`
	UsedBytes  uint64 `json:"usedBytes"`
	Total      string `json:"total"`
	Used       string `json:"used"`
	Usage      string `json:"usage"`
}

type Disk struct {
	Mountpoint string `json:"mountpoint"`
	Filesystem string `json:"filesystem"`
	TotalBytes uint64 `json:"totalBytes"`
	UsedBytes  uint64 `json:"usedBytes"`
	Total      string `json:"total"`
	Used       string `json:"used"`
	Usage      string `json:"usage"`
}

// Collect gathers a snapshot. Only a memory failure is fatal; other readings
// leave their fields zero. Mounts matching diskExclude are left out.
func Collect(ctx context.Context, diskExclude []string) (Snapshot, error) {
	collectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	snapshot := Snapshot{LoadAverage: []float64{}, Disks: []Disk{}}

	if info, err := hostInfo(collectCtx); err == nil && info != nil {
		snapshot.Hostname = info.Hostname
		snapshot.Platform = strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
		snapshot.UptimeSeconds = info.Uptime
	}

	if cpuCount, err := cpuCounts(collectCtx, true); err == nil {
		snapshot.CPUCount = cpuCount
	}

	if usage, err := collectCPUUsage(collectCtx); err == nil {
		snapshot.CPUUsagePercent = usage
	}
	snapshot.CPUUsage = fmt.Sprintf("%.1f%%", snapshot.CPUUsagePercent)

	if avg, err := loadAvg(collectCtx); err == nil && avg != nil {
		snapshot.LoadAverage = []float64{avg.Load1, avg.Load5, avg.Load15}
	}

	memStats, err := virtualMemory(collectCtx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("memory stats: %w", err)
	}
	snapshot.Memory = Memory{
		TotalBytes: memStats.Total,
		UsedBytes:  memStats.Used,
		Total:      utils.FormatBytes(float64(memStats.Total), 1),
		Used:       utils.FormatBytes(float64(memStats.Used), 1),
		Usage:      utils.FormatPercent(float64(memStats.Used), float64(memStats.Total), 1, "0%"),
	}

	snapshot.Disks = collectDisks(collectCtx, diskExclude)
	return snapshot, nil
}

func collectCPUUsage(ctx context.Context) (float64, error) {
	percentages, err := cpuPercent(ctx, cpuSampleInterval, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, nil
	}

	usage := percentages[0]
	if usage < 0 {
		usage = 0
	}
	if usage > 100 {
		usage = 100
	}
	return usage, nil
}

func collectDisks(ctx context.Context, exclude []string) []Disk {
	partitions, err := diskPartitions(ctx, false)
	if err != nil {
		return []Disk{}
	}

	disks := make([]Disk, 0, len(partitions))
	seen := make(map[string]struct{}, len(partitions))

	for _, part := range partitions {
		if part.Mountpoint == "" || fsfilters.MatchesExclude(part.Device, part.Mountpoint, exclude) {
			continue
		}
		if skip, reasons := fsfilters.ShouldSkipFilesystem(part.Fstype, part.Mountpoint); skip {
			log.Trace().Str("mountpoint", part.Mountpoint).Strs("reasons", reasons).Msg("Skipping filesystem")
			continue
		}
		if _, ok := seen[part.Mountpoint]; ok {
			continue
		}
		seen[part.Mountpoint] = struct{}{}

		usage, err := diskUsage(ctx, part.Mountpoint)
		if err != nil || usage.Total == 0 {
			continue
		}
		if fsfilters.ShouldIgnoreReadOnlyFilesystem(part.Fstype, usage.Total, usage.Used) {
			continue
		}

		disks = append(disks, Disk{
			Mountpoint: part.Mountpoint,
			Filesystem: part.Fstype,
			TotalBytes: usage.Total,
			UsedBytes:  usage.Used,
			Total:      utils.FormatBytes(float64(usage.Total), 1),
			Used:       utils.FormatBytes(float64(usage.Used), 1),
			Usage:      fmt.Sprintf("%.1f%%", usage.UsedPercent),
		})
	}

	sort.Slice(disks, func(i, j int) bool { return disks[i].Mountpoint < disks[j].Mountpoint })
	return disks
}
