// Package jellyseerr reports Jellyseerr version and request counts.
package jellyseerr

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mikeyhost/homedash/internal/config"
	errs "github.com/mikeyhost/homedash/internal/errors"
	"github.com/mikeyhost/homedash/internal/upstream"
)

const displayName = "Jellyseerr"

type Status struct {
	Online           bool   `json:"online"`
	Version          string `json:"version"`
	PendingRequests  int64  `json:"pendingRequests"`
	ApprovedRequests int64  `json:"approvedRequests"`
	TotalRequests    int64  `json:"totalRequests"`
}

type statusResponse struct {
	Version string `json:"version"`
}

type requestCountResponse struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Total    int64 `json:"total"`
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
			Headers:            map[string]string{"X-Api-Key": cfg.APIKey},
			Fingerprint:        cfg.Fingerprint,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}),
	}
}

func (s *Service) Configured() bool { return s.configured }

func (s *Service) Status(ctx context.Context) (*Status, error) {
	if !s.configured {
		return nil, errs.ConfigMissing(displayName, "Jellyseerr API key not configured")
	}

	var status statusResponse
	if err := s.client.GetJSON(ctx, "/api/v1/status", &status); err != nil {
		return nil, err
	}

	var counts requestCountResponse
	if err := s.client.GetJSON(ctx, "/api/v1/request/count", &counts); err != nil {
		log.Debug().Err(err).Str("service", displayName).Msg("Request counts unavailable")
		counts = requestCountResponse{}
	}

	version := status.Version
	if version == "" {
		version = "Unknown"
	}

	return &Status{
		Online:           true,
		Version:          version,
		PendingRequests:  counts.Pending,
		ApprovedRequests: counts.Approved,
		TotalRequests:    counts.Total,
	}, nil
}
