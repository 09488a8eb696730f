// Package homeassistant reports Home Assistant entity counts by domain.
package homeassistant

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mikeyhost/homedash/internal/config"
	errs "github.com/mikeyhost/homedash/internal/errors"
	"github.com/mikeyhost/homedash/internal/upstream"
)

const displayName = "Home Assistant"

type Status struct {
	Online        bool   `json:"online"`
	Version       string `json:"version"`
	TotalEntities int    `json:"totalEntities"`
	Lights        int    `json:"lights"`
	Switches      int    `json:"switches"`
	Sensors       int    `json:"sensors"`
	Automations   int    `json:"automations"`
}

type apiResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

type stateResponse struct {
	EntityID string `json:"entity_id"`
}

type Service struct {
	client     *upstream.Client
	configured bool
}

func New(cfg config.ServiceConfig, timeout time.Duration) *Service {
	return &Service{
		configured: cfg.Token != "",
		client: upstream.New(upstream.Config{
			Service:            displayName,
			BaseURL:            cfg.URL,
			Timeout:            timeout,
			Headers:            map[string]string{"Authorization": "Bearer " + cfg.Token},
			Fingerprint:        cfg.Fingerprint,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}),
	}
}

func (s *Service) Configured() bool { return s.configured }

func (s *Service) Status(ctx context.Context) (*Status, error) {
	if !s.configured {
		return nil, errs.ConfigMissing(displayName, "Home Assistant token not configured")
	}

	var api apiResponse
	if err := s.client.GetJSON(ctx, "/api/", &api); err != nil {
		return nil, err
	}

	// /api/ rarely carries a version; /api/config always does.
	version := api.Version
	if version == "" {
		var cfg apiResponse
		if err := s.client.GetJSON(ctx, "/api/config", &cfg); err == nil {
			version = cfg.Version
		}
	}
	if version == "" {
		version = "Unknown"
	}

	var states []stateResponse
	if err := s.client.GetJSON(ctx, "/api/states", &states); err != nil {
		log.Debug().Err(err).Str("service", displayName).Msg("States unavailable")
		states = nil
	}

	status := &Status{
		Online:        true,
		Version:       version,
		TotalEntities: len(states),
	}
	for _, state := range states {
		domain, _, _ := strings.Cut(state.EntityID, ".")
		switch domain {
		case "light":
			status.Lights++
		case "switch":
			status.Switches++
		case "sensor":
			status.Sensors++
		case "automation":
			status.Automations++
		}
	}
	return status, nil
}
