// Package adguard reports AdGuard Home protection status and query stats.
package adguard

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

const displayName = "AdGuard"

// Status is the widget payload.
type Status struct {
	Online              bool   `json:"online"`
	Protection          string `json:"protection"`
	DNSQueries          int64  `json:"dnsQueries"`
	BlockedQueries      int64  `json:"blockedQueries"`
	BlockRate           string `json:"blockRate"`
	SafeBrowsingBlocked int64  `json:"safeBrowsingBlocked"`
	ParentalBlocked     int64  `json:"parentalBlocked"`
	SafeSearchEnforced  int64  `json:"safeSearchEnforced"`
	AvgProcessingTime   string `json:"avgProcessingTime"`
	DHCPEnabled         string `json:"dhcpEnabled"`
	RunningStatus       string `json:"runningStatus"`
	Version             string `json:"version"`
}

type statusResponse struct {
	ProtectionEnabled bool   `json:"protection_enabled"`
	DHCPAvailable     bool   `json:"dhcp_available"`
	Running           bool   `json:"running"`
	Version           string `json:"version"`
}

type statsResponse struct {
	NumDNSQueries           int64   `json:"num_dns_queries"`
	NumBlockedFiltering     int64   `json:"num_blocked_filtering"`
	NumReplacedSafebrowsing int64   `json:"num_replaced_safebrowsing"`
	NumReplacedParental     int64   `json:"num_replaced_parental"`
	NumReplacedSafesearch   int64   `json:"num_replaced_safesearch"`
	AvgProcessingTime       float64 `json:"avg_processing_time"` // seconds
}

// Service checks one AdGuard Home instance.
type Service struct {
	client     *upstream.Client
	configured bool
}

// New creates the checker. Basic auth credentials are required.
func New(cfg config.ServiceConfig, timeout time.Duration) *Service {
	return &Service{
		configured: cfg.Username != "" && cfg.Password != "",
		client: upstream.New(upstream.Config{
			Service:            displayName,
			BaseURL:            cfg.URL,
			Timeout:            timeout,
			Username:           cfg.Username,
			Password:           cfg.Password,
			Fingerprint:        cfg.Fingerprint,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}),
	}
}

// Configured reports whether credentials are set.
func (s *Service) Configured() bool { return s.configured }

// Status fetches /control/status and, best effort, /control/stats.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	if !s.configured {
		return nil, errs.ConfigMissing(displayName, "AdGuard credentials not configured")
	}

	var status statusResponse
	if err := s.client.GetJSON(ctx, "/control/status", &status); err != nil {
		return nil, errs.WithStatusMessage(err, "AdGuard API error (%d). Check credentials and URL.")
	}

	var stats statsResponse
	if err := s.client.GetJSON(ctx, "/control/stats", &stats); err != nil {
		log.Debug().Err(err).Str("service", displayName).Msg("Stats unavailable")
		stats = statsResponse{}
	}

	avgTime := "0 ms"
	if stats.AvgProcessingTime != 0 {
		avgTime = fmt.Sprintf("%.2f ms", stats.AvgProcessingTime*1000)
	}

	version := status.Version
	if version == "" {
		version = "Unknown"
	}

	return &Status{
		Online:              true,
		Protection:          choose(status.ProtectionEnabled, "Enabled", "Disabled"),
		DNSQueries:          stats.NumDNSQueries,
		BlockedQueries:      stats.NumBlockedFiltering,
		BlockRate:           utils.FormatPercent(float64(stats.NumBlockedFiltering), float64(stats.NumDNSQueries), 1, "0%"),
		SafeBrowsingBlocked: stats.NumReplacedSafebrowsing,
		ParentalBlocked:     stats.NumReplacedParental,
		SafeSearchEnforced:  stats.NumReplacedSafesearch,
		AvgProcessingTime:   avgTime,
		DHCPEnabled:         choose(status.DHCPAvailable, "Yes", "No"),
		RunningStatus:       choose(status.Running, "Running", "Stopped"),
		Version:             version,
	}, nil
}

func choose(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
