// Package immich reports Immich library counts and storage usage.
package immich

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mikeyhost/homedash/internal/config"
	errs "github.com/mikeyhost/homedash/internal/errors"
	"github.com/mikeyhost/homedash/internal/upstream"
	"github.com/mikeyhost/homedash/internal/utils"
)

const displayName = "Immich"

// Newer servers (v1.95+) serve /api/server-info/*, older ones /api/server/*.
var (
	pingPaths       = []string{"/api/server-info/ping", "/api/server/ping"}
	statisticsPaths = []string{"/api/server-info/statistics", "/api/server/statistics"}
	storagePaths    = []string{"/api/server-info/storage", "/api/server/storage"}
)

// Status is the widget payload.
type Status struct {
	Online       bool   `json:"online"`
	Photos       int64  `json:"photos"`
	Videos       int64  `json:"videos"`
	Usage        string `json:"usage"`
	DiskSize     string `json:"diskSize,omitempty"`
	DiskUsage    string `json:"diskUsage,omitempty"`
	TotalObjects int64  `json:"totalObjects"`
}

type statisticsResponse struct {
	Photos    int64   `json:"photos"`
	Videos    int64   `json:"videos"`
	Usage     float64 `json:"usage"`
	DiskUsage float64 `json:"diskUsage"`
}

type storageResponse struct {
	DiskUse             string   `json:"diskUse"`
	DiskSize            string   `json:"diskSize"`
	DiskUsagePercentage *float64 `json:"diskUsagePercentage"`
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
			Headers:            map[string]string{"x-api-key": cfg.APIKey},
			Fingerprint:        cfg.Fingerprint,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}),
	}
}

func (s *Service) Configured() bool { return s.configured }

func (s *Service) Status(ctx context.Context) (*Status, error) {
	if !s.configured {
		return nil, errs.ConfigMissing(displayName, "Immich API key not configured")
	}

	if _, err := s.client.GetJSONWithFallback(ctx, pingPaths, nil); err != nil {
		return nil, errs.WithStatusMessage(err, "Immich server not responding (%d). Check URL and API key.")
	}

	var stats statisticsResponse
	if _, err := s.client.GetJSONWithFallback(ctx, statisticsPaths, &stats); err != nil {
		log.Debug().Err(err).Str("service", displayName).Msg("Statistics unavailable")
		stats = statisticsResponse{}
	}

	var storage storageResponse
	if _, err := s.client.GetJSONWithFallback(ctx, storagePaths, &storage); err != nil {
		log.Debug().Err(err).Str("service", displayName).Msg("Storage info unavailable")
		storage = storageResponse{}
	}

	// Storage matches what the Immich UI shows; statistics is the fallback.
	usage := storage.DiskUse
	if usage == "" {
		bytes := stats.Usage
		if bytes == 0 {
			bytes = stats.DiskUsage
		}
		usage = utils.FormatBytes(bytes, 2)
	}

	status := &Status{
		Online:       true,
		Photos:       stats.Photos,
		Videos:       stats.Videos,
		Usage:        usage,
		DiskSize:     storage.DiskSize,
		TotalObjects: stats.Photos + stats.Videos,
	}
	if storage.DiskUsagePercentage != nil {
		status.DiskUsage = strconv.FormatFloat(*storage.DiskUsagePercentage, 'f', -1, 64) + "%"
	}
	return status, nil
}
