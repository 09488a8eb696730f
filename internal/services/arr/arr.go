// Package arr reports Radarr and Sonarr status. Both expose the same v3 API
// and differ only in the library endpoint.
package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mikeyhost/homedash/internal/config"
	errs "github.com/mikeyhost/homedash/internal/errors"
	"github.com/mikeyhost/homedash/internal/upstream"
)

// Flavor describes one *arr application.
type Flavor struct {
	Name        string
	LibraryPath string
	Series      bool // library counts series rather than movies
}

var (
	Radarr = Flavor{Name: "Radarr", LibraryPath: "/api/v3/movie"}
	Sonarr = Flavor{Name: "Sonarr", LibraryPath: "/api/v3/series", Series: true}
)

// Status is the widget payload. Exactly one of MovieCount and SeriesCount
// is set, depending on the flavor.
type Status struct {
	Online      bool   `json:"online"`
	Version     string `json:"version"`
	QueueCount  int    `json:"queueCount"`
	MovieCount  *int   `json:"movieCount,omitempty"`
	SeriesCount *int   `json:"seriesCount,omitempty"`
	Status      string `json:"status"`
}

type systemStatusResponse struct {
	Version string `json:"version"`
	// Older builds report a status string; newer ones omit it.
	Status string `json:"status"`
}

type pagedQueue struct {
	TotalRecords int               `json:"totalRecords"`
	Records      []json.RawMessage `json:"records"`
}

type Service struct {
	flavor     Flavor
	client     *upstream.Client
	configured bool
}

func New(flavor Flavor, cfg config.ServiceConfig, timeout time.Duration) *Service {
	return &Service{
		flavor:     flavor,
		configured: cfg.APIKey != "",
		client: upstream.New(upstream.Config{
			Service:            flavor.Name,
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
		return nil, errs.ConfigMissing(s.flavor.Name, s.flavor.Name+" API key not configured")
	}

	var system systemStatusResponse
	if err := s.client.GetJSON(ctx, "/api/v3/system/status", &system); err != nil {
		return nil, err
	}

	queueCount := 0
	var queue json.RawMessage
	if err := s.client.GetJSON(ctx, "/api/v3/queue", &queue); err != nil {
		log.Debug().Err(err).Str("service", s.flavor.Name).Msg("Queue unavailable")
	} else {
		queueCount = countQueue(queue)
	}

	libraryCount := 0
	var library []json.RawMessage
	if err := s.client.GetJSON(ctx, s.flavor.LibraryPath, &library); err != nil {
		log.Debug().Err(err).Str("service", s.flavor.Name).Msg("Library unavailable")
	} else {
		libraryCount = len(library)
	}

	status := &Status{
		Online:     true,
		Version:    system.Version,
		QueueCount: queueCount,
		Status:     system.Status,
	}
	if s.flavor.Series {
		status.SeriesCount = &libraryCount
	} else {
		status.MovieCount = &libraryCount
	}
	return status, nil
}

// countQueue accepts both the bare array of older releases and the paged
// envelope of v3.
func countQueue(raw json.RawMessage) int {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err == nil {
			return len(items)
		}
	case '{':
		var paged pagedQueue
		if err := json.Unmarshal(trimmed, &paged); err == nil {
			if paged.TotalRecords > 0 {
				return paged.TotalRecords
			}
			return len(paged.Records)
		}
	}
	return 0
}
