// Package portainer counts containers across the Docker environments that a
// Portainer instance manages. Container listings go through Portainer's
// Docker Engine proxy using the Docker SDK.
package portainer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog/log"

	"github.com/mikeyhost/homedash/internal/config"
	errs "github.com/mikeyhost/homedash/internal/errors"
	"github.com/mikeyhost/homedash/internal/upstream"
)

const (
	displayName = "Portainer"

	endpointStatusUp = 1
	endpointTimeout  = 5 * time.Second
)

type Status struct {
	Online            bool `json:"online"`
	Endpoints         int  `json:"endpoints"`
	ActiveEndpoints   int  `json:"activeEndpoints"`
	TotalContainers   int  `json:"totalContainers"`
	RunningContainers int  `json:"runningContainers"`
	StoppedContainers int  `json:"stoppedContainers"`
	PausedContainers  int  `json:"pausedContainers"`
}

type endpoint struct {
	ID     int    `json:"Id"`
	Name   string `json:"Name"`
	Status int    `json:"Status"`
}

type dockerClient interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	Close() error
}

var newDockerClientFn = func(opts ...client.Opt) (dockerClient, error) {
	return client.NewClientWithOpts(opts...)
}

type Service struct {
	client     *upstream.Client
	apiKey     string
	configured bool
}

func New(cfg config.ServiceConfig, timeout time.Duration) *Service {
	return &Service{
		apiKey:     cfg.APIKey,
		configured: cfg.APIKey != "",
		client: upstream.New(upstream.Config{
			Service:            displayName,
			BaseURL:            cfg.URL,
			Timeout:            timeout,
			Headers:            map[string]string{"X-API-Key": cfg.APIKey},
			Fingerprint:        cfg.Fingerprint,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}),
	}
}

func (s *Service) Configured() bool { return s.configured }

func (s *Service) Status(ctx context.Context) (*Status, error) {
	if !s.configured {
		return nil, errs.ConfigMissing(displayName, "Portainer API key not configured")
	}

	var endpoints []endpoint
	if err := s.client.GetJSON(ctx, "/api/endpoints", &endpoints); err != nil {
		return nil, errs.WithStatusMessage(err, "Portainer API error (%d). Check API key and URL.")
	}

	status := &Status{Online: true, Endpoints: len(endpoints)}
	for _, ep := range endpoints {
		if ep.Status != endpointStatusUp {
			continue
		}
		status.ActiveEndpoints++

		containers, err := s.listContainers(ctx, ep.ID)
		if err != nil {
			log.Warn().
				Err(err).
				Str("service", displayName).
				Int("endpoint", ep.ID).
				Str("endpointName", ep.Name).
				Msg("Failed to list containers for endpoint")
			continue
		}

		status.TotalContainers += len(containers)
		for _, c := range containers {
			switch strings.ToLower(string(c.State)) {
			case "running":
				status.RunningContainers++
			case "paused":
				status.PausedContainers++
			default:
				status.StoppedContainers++
			}
		}
	}
	return status, nil
}

// listContainers lists every container, stopped ones included, on one
// Portainer environment.
func (s *Service) listContainers(ctx context.Context, endpointID int) ([]container.Summary, error) {
	opts, err := s.dockerOptions(endpointID)
	if err != nil {
		return nil, err
	}

	cli, err := newDockerClientFn(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client for endpoint %d: %w", endpointID, err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(ctx, endpointTimeout)
	defer cancel()

	return cli.ContainerList(ctx, container.ListOptions{All: true})
}

func (s *Service) dockerOptions(endpointID int) ([]client.Opt, error) {
	base, err := url.Parse(s.client.BaseURL())
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid Portainer URL %q", s.client.BaseURL())
	}

	// The tcp scheme makes the SDK keep the path as its base path.
	host := fmt.Sprintf("tcp://%s%s/api/endpoints/%d/docker", base.Host, strings.TrimRight(base.Path, "/"), endpointID)

	return []client.Opt{
		client.WithHost(host),
		client.WithScheme(base.Scheme),
		client.WithHTTPClient(s.client.HTTPClient()),
		client.WithHTTPHeaders(map[string]string{"X-API-Key": s.apiKey}),
		client.WithAPIVersionNegotiation(),
	}, nil
}
