// Package jellyfin reports Jellyfin library counts and active playback sessions.
package jellyfin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mikeyhost/homedash/internal/config"
	errs "github.com/mikeyhost/homedash/internal/errors"
	"github.com/mikeyhost/homedash/internal/upstream"
)

const (
	displayName    = "Jellyfin"
	systemInfoPath = "/System/Info"
	legacyPrefix   = "/emby"
)

// Status is the widget payload.
type Status struct {
	Online        bool     `json:"online"`
	Version       string   `json:"version"`
	ServerName    string   `json:"serverName"`
	MovieCount    int64    `json:"movieCount"`
	SeriesCount   int64    `json:"seriesCount"`
	EpisodeCount  int64    `json:"episodeCount"`
	ActiveStreams int      `json:"activeStreams"`
	Viewers       []Viewer `json:"viewers"`
}

// Viewer is one session with something playing.
type Viewer struct {
	User       string `json:"user"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	Client     string `json:"client"`
	DeviceName string `json:"deviceName"`
}

type systemInfoResponse struct {
	Version    string `json:"Version"`
	ServerName string `json:"ServerName"`
}

type itemCountsResponse struct {
	MovieCount   int64 `json:"MovieCount"`
	SeriesCount  int64 `json:"SeriesCount"`
	EpisodeCount int64 `json:"EpisodeCount"`
}

type sessionResponse struct {
	UserName       string          `json:"UserName"`
	Client         string          `json:"Client"`
	DeviceName     string          `json:"DeviceName"`
	NowPlayingItem *nowPlayingItem `json:"NowPlayingItem"`
}

type nowPlayingItem struct {
	Name              string `json:"Name"`
	SeriesName        string `json:"SeriesName"`
	Type              string `json:"Type"`
	ParentIndexNumber int    `json:"ParentIndexNumber"`
	IndexNumber       int    `json:"IndexNumber"`
}

type Service struct {
	client     *upstream.Client
	configured bool
}

func New(cfg config.ServiceConfig, timeout time.Duration) *Service {
	auth := fmt.Sprintf(`MediaBrowser Client="homedash", Device="Web", DeviceId="homedash-web", Version="1.0.0", Token="%s"`, cfg.APIKey)
	return &Service{
		configured: cfg.APIKey != "",
		client: upstream.New(upstream.Config{
			Service:            displayName,
			BaseURL:            cfg.URL,
			Timeout:            timeout,
			Headers:            map[string]string{"X-Emby-Authorization": auth},
			Fingerprint:        cfg.Fingerprint,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}),
	}
}

func (s *Service) Configured() bool { return s.configured }

func (s *Service) Status(ctx context.Context) (*Status, error) {
	if !s.configured {
		return nil, errs.ConfigMissing(displayName, "Jellyfin API key not configured")
	}

	var info systemInfoResponse
	path, err := s.client.GetJSONWithFallback(ctx, []string{systemInfoPath, legacyPrefix + systemInfoPath}, &info)
	if err != nil {
		return nil, err
	}
	// Servers that only answer under /emby keep that prefix for every call.
	prefix := strings.TrimSuffix(path, systemInfoPath)

	var counts itemCountsResponse
	if err := s.client.GetJSON(ctx, prefix+"/Items/Counts", &counts); err != nil {
		log.Debug().Err(err).Str("service", displayName).Msg("Item counts unavailable")
		counts = itemCountsResponse{}
	}

	var sessions []sessionResponse
	if err := s.client.GetJSON(ctx, prefix+"/Sessions", &sessions); err != nil {
		log.Debug().Err(err).Str("service", displayName).Msg("Sessions unavailable")
		sessions = nil
	}

	viewers := make([]Viewer, 0)
	for _, session := range sessions {
		if session.NowPlayingItem == nil {
			continue
		}
		viewers = append(viewers, toViewer(session))
	}

	return &Status{
		Online:        true,
		Version:       fallback(info.Version, "Unknown"),
		ServerName:    fallback(info.ServerName, "Jellyfin"),
		MovieCount:    counts.MovieCount,
		SeriesCount:   counts.SeriesCount,
		EpisodeCount:  counts.EpisodeCount,
		ActiveStreams: len(viewers),
		Viewers:       viewers,
	}, nil
}

func toViewer(session sessionResponse) Viewer {
	item := session.NowPlayingItem
	content := item.Name
	if item.SeriesName != "" {
		content = fmt.Sprintf("%s - S%dE%d", item.SeriesName, item.ParentIndexNumber, item.IndexNumber)
	}

	return Viewer{
		User:       fallback(session.UserName, "Unknown User"),
		Content:    content,
		Type:       item.Type,
		Client:     fallback(session.Client, "Unknown"),
		DeviceName: fallback(session.DeviceName, "Unknown Device"),
	}
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
