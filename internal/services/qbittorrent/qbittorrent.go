// Package qbittorrent reports transfer rates and active torrents from the
// qBittorrent Web API.
package qbittorrent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mikeyhost/homedash/internal/config"
	errs "github.com/mikeyhost/homedash/internal/errors"
	"github.com/mikeyhost/homedash/internal/upstream"
)

const (
	displayName = "qBittorrent"

	maxActiveTorrents = 5
)

var activeStates = map[string]bool{
	"downloading": true,
	"uploading":   true,
	"stalledDL":   true,
	"stalledUP":   true,
}

// Status carries raw byte counts; the widget formats them.
type Status struct {
	Online         bool      `json:"online"`
	Status         string    `json:"status"`
	TorrentCount   int       `json:"torrentCount"`
	DownloadSpeed  int64     `json:"downloadSpeed"`
	UploadSpeed    int64     `json:"uploadSpeed"`
	ActiveTorrents []Torrent `json:"activeTorrents"`
}

type Torrent struct {
	Name       string `json:"name"`
	Progress   string `json:"progress"`
	DLSpeed    int64  `json:"dlspeed"`
	UPSpeed    int64  `json:"upspeed"`
	State      string `json:"state"`
	Size       int64  `json:"size"`
	Downloaded int64  `json:"downloaded"`
}

type torrentInfo struct {
	Name       string  `json:"name"`
	State      string  `json:"state"`
	Progress   float64 `json:"progress"`
	DLSpeed    int64   `json:"dlspeed"`
	UPSpeed    int64   `json:"upspeed"`
	Size       int64   `json:"size"`
	Downloaded int64   `json:"downloaded"`
}

type transferInfo struct {
	DLInfoSpeed int64 `json:"dl_info_speed"`
	UPInfoSpeed int64 `json:"up_info_speed"`
}

type Service struct {
	client     *upstream.Client
	username   string
	password   string
	configured bool
}

func New(cfg config.ServiceConfig, timeout time.Duration) *Service {
	return &Service{
		username:   cfg.Username,
		password:   cfg.Password,
		configured: cfg.Username != "" && cfg.Password != "",
		client: upstream.New(upstream.Config{
			Service:            displayName,
			BaseURL:            cfg.URL,
			Timeout:            timeout,
			Fingerprint:        cfg.Fingerprint,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}),
	}
}

func (s *Service) Configured() bool { return s.configured }

func (s *Service) Status(ctx context.Context) (*Status, error) {
	if !s.configured {
		return nil, errs.ConfigMissing(displayName, "qBittorrent credentials not configured")
	}

	session, err := s.login(ctx)
	if err != nil {
		return nil, err
	}
	cookie := upstream.WithHeader("Cookie", session.String())

	var torrents []torrentInfo
	if err := s.client.GetJSON(ctx, "/api/v2/torrents/info", &torrents, cookie); err != nil {
		return nil, errs.WithStatusMessage(err, "Failed to get torrents: %d")
	}

	var transfer transferInfo
	if err := s.client.GetJSON(ctx, "/api/v2/transfer/info", &transfer, cookie); err != nil {
		log.Debug().Err(err).Str("service", displayName).Msg("Transfer info unavailable")
		transfer = transferInfo{}
	}

	status := &Status{
		Online:         true,
		Status:         "Connected",
		TorrentCount:   len(torrents),
		DownloadSpeed:  transfer.DLInfoSpeed,
		UploadSpeed:    transfer.UPInfoSpeed,
		ActiveTorrents: make([]Torrent, 0, maxActiveTorrents),
	}
	for _, t := range torrents {
		if !activeStates[t.State] {
			continue
		}
		status.ActiveTorrents = append(status.ActiveTorrents, Torrent{
			Name:       t.Name,
			Progress:   fmt.Sprintf("%.1f%%", t.Progress*100),
			DLSpeed:    t.DLSpeed,
			UPSpeed:    t.UPSpeed,
			State:      t.State,
			Size:       t.Size,
			Downloaded: t.Downloaded,
		})
		if len(status.ActiveTorrents) == maxActiveTorrents {
			break
		}
	}
	return status, nil
}

// login posts the form credentials and returns the session cookie, which
// newer releases name QBT_SID_<port>. qBittorrent rejects logins whose
// Referer does not match its own origin.
func (s *Service) login(ctx context.Context) (*http.Cookie, error) {
	form := url.Values{}
	form.Set("username", s.username)
	form.Set("password", s.password)

	response, err := s.client.Do(ctx, http.MethodPost, "/api/v2/auth/login", []byte(form.Encode()),
		upstream.WithHeader("Content-Type", "application/x-www-form-urlencoded"),
		upstream.WithHeader("Referer", s.client.BaseURL()),
	)
	if err != nil {
		return nil, err
	}
	if !response.OK() {
		return nil, errs.WithStatusMessage(
			errs.BadStatus(displayName, s.client.BaseURL(), response.StatusCode),
			"Login failed with status %d. Check username/password.")
	}
	if strings.TrimSpace(string(response.Body)) != "Ok." {
		return nil, &errs.UpstreamError{
			Kind:    errs.KindBadStatus,
			Service: displayName,
			URL:     s.client.BaseURL(),
			Message: "Login failed. Invalid credentials.",
			Err:     errs.ErrBadStatus,
		}
	}

	for _, c := range response.Cookies {
		if c.Name == "SID" || strings.HasPrefix(c.Name, "QBT_SID") {
			return &http.Cookie{Name: c.Name, Value: c.Value}, nil
		}
	}
	return nil, &errs.UpstreamError{
		Kind:    errs.KindParse,
		Service: displayName,
		URL:     s.client.BaseURL(),
		Message: "Failed to get session ID",
		Err:     errs.ErrParse,
	}
}
