// Package proxmox aggregates cluster-wide guest and node usage from Proxmox VE.
package proxmox

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mikeyhost/homedash/internal/config"
	errs "github.com/mikeyhost/homedash/internal/errors"
	"github.com/mikeyhost/homedash/internal/upstream"
	"github.com/mikeyhost/homedash/internal/utils"
)

const displayName = "Proxmox"

type Status struct {
	Online        bool    `json:"online"`
	TotalGuests   int     `json:"totalGuests"`
	RunningGuests int     `json:"runningGuests"`
	StoppedGuests int     `json:"stoppedGuests"`
	CPUUsage      string  `json:"cpuUsage"`
	MemoryUsage   string  `json:"memoryUsage"`
	MemoryUsed    string  `json:"memoryUsed"`
	MemoryTotal   string  `json:"memoryTotal"`
	Guests        []Guest `json:"guests"`
}

// Guest is a running VM or LXC container.
type Guest struct {
	Name       string `json:"name"`
	Type       string `json:"type"` // VM or LXC
	VMID       int    `json:"vmid"`
	Status     string `json:"status"`
	CPU        string `json:"cpu"`
	Memory     string `json:"memory"`
	MemoryUsed string `json:"memoryUsed"`
	MemoryMax  string `json:"memoryMax"`
}

type resourcesResponse struct {
	Data []resource `json:"data"`
}

type resource struct {
	Type   string   `json:"type"`
	Status string   `json:"status"`
	Name   string   `json:"name"`
	Node   string   `json:"node"`
	VMID   int      `json:"vmid"`
	CPU    *float64 `json:"cpu"`
	Mem    float64  `json:"mem"`
	MaxMem float64  `json:"maxmem"`
}

type Service struct {
	client     *upstream.Client
	configured bool
}

// New creates the checker. Certificates are not verified unless a
// fingerprint is pinned, since Proxmox ships self-signed by default.
func New(cfg config.ServiceConfig, timeout time.Duration) *Service {
	return &Service{
		configured: cfg.TokenID != "" && cfg.TokenSecret != "",
		client: upstream.New(upstream.Config{
			Service:            displayName,
			BaseURL:            cfg.URL,
			Timeout:            timeout,
			Headers:            map[string]string{"Authorization": fmt.Sprintf("PVEAPIToken=%s=%s", cfg.TokenID, cfg.TokenSecret)},
			Fingerprint:        cfg.Fingerprint,
			InsecureSkipVerify: cfg.Fingerprint == "",
		}),
	}
}

func (s *Service) Configured() bool { return s.configured }

func (s *Service) Status(ctx context.Context) (*Status, error) {
	if !s.configured {
		return nil, errs.ConfigMissing(displayName, "Proxmox credentials not configured")
	}

	var resources resourcesResponse
	if err := s.client.GetJSON(ctx, "/api2/json/cluster/resources", &resources); err != nil {
		return nil, err
	}

	return summarize(resources.Data), nil
}

func summarize(resources []resource) *Status {
	var (
		guests                     []resource
		nodeCount                  int
		totalCPU, totalMem, maxMem float64
	)

	for _, r := range resources {
		switch r.Type {
		case "qemu", "lxc":
			guests = append(guests, r)
		case "node":
			nodeCount++
			if r.CPU != nil {
				totalCPU += *r.CPU
			}
			totalMem += r.Mem
			maxMem += r.MaxMem
		}
	}

	status := &Status{
		Online:      true,
		TotalGuests: len(guests),
		CPUUsage:    "0%",
		MemoryUsage: utils.FormatPercent(totalMem, maxMem, 1, "0%"),
		MemoryUsed:  utils.FormatBytes(totalMem, 1),
		MemoryTotal: utils.FormatBytes(maxMem, 1),
		Guests:      make([]Guest, 0),
	}
	if nodeCount > 0 {
		status.CPUUsage = fmt.Sprintf("%.1f%%", totalCPU/float64(nodeCount)*100)
	}

	for _, g := range guests {
		if g.Status != "running" {
			continue
		}
		status.RunningGuests++
		status.Guests = append(status.Guests, toGuest(g))
	}
	status.StoppedGuests = status.TotalGuests - status.RunningGuests

	sort.SliceStable(status.Guests, func(i, j int) bool {
		return strings.ToLower(status.Guests[i].Name) < strings.ToLower(status.Guests[j].Name)
	})
	return status
}

func toGuest(r resource) Guest {
	name := r.Name
	if name == "" {
		name = fmt.Sprintf("%s-%d", r.Type, r.VMID)
	}
	guestType := "LXC"
	if r.Type == "qemu" {
		guestType = "VM"
	}
	cpu := "0%"
	if r.CPU != nil {
		cpu = fmt.Sprintf("%.1f%%", *r.CPU*100)
	}

	return Guest{
		Name:       name,
		Type:       guestType,
		VMID:       r.VMID,
		Status:     r.Status,
		CPU:        cpu,
		Memory:     utils.FormatPercent(r.Mem, r.MaxMem, 1, "0%"),
		MemoryUsed: utils.FormatBytes(r.Mem, 1),
		MemoryMax:  utils.FormatBytes(r.MaxMem, 1),
	}
}
