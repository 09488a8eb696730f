// Package services wires the per-integration status checkers to the
// current configuration.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikeyhost/homedash/internal/config"
	errs "github.com/mikeyhost/homedash/internal/errors"
	"github.com/mikeyhost/homedash/internal/logging"
	"github.com/mikeyhost/homedash/internal/metrics"
	"github.com/mikeyhost/homedash/internal/services/adguard"
	"github.com/mikeyhost/homedash/internal/services/arr"
	"github.com/mikeyhost/homedash/internal/services/homeassistant"
	"github.com/mikeyhost/homedash/internal/services/immich"
	"github.com/mikeyhost/homedash/internal/services/jellyfin"
	"github.com/mikeyhost/homedash/internal/services/jellyseerr"
	"github.com/mikeyhost/homedash/internal/services/portainer"
	"github.com/mikeyhost/homedash/internal/services/proxmox"
	"github.com/mikeyhost/homedash/internal/services/qbittorrent"
	"github.com/mikeyhost/homedash/internal/services/truenas"
	"github.com/mikeyhost/homedash/internal/upstream"
)

// Failure is the body returned for any check that did not succeed.
type Failure struct {
	Online bool   `json:"online"`
	Error  string `json:"error"`
}

// Entry describes one registered integration.
type Entry struct {
	Slug       string
	Name       string
	URL        string
	Configured bool

	check func(ctx context.Context) (any, error)
}

type statusSource[T any] interface {
	Configured() bool
	Status(ctx context.Context) (*T, error)
}

// Registry holds the integrations built from one config snapshot.
type Registry struct {
	entries map[string]*Entry
	order   []string
}

// NewRegistry builds every integration from cfg.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{entries: make(map[string]*Entry)}
	svc := cfg.Services
	timeout := cfg.Server.UpstreamTimeout

	register[adguard.Status](r, "adguard", "AdGuard", svc.AdGuard, adguard.New(svc.AdGuard, timeout))
	register[immich.Status](r, "immich", "Immich", svc.Immich, immich.New(svc.Immich, timeout))
	register[jellyfin.Status](r, "jellyfin", "Jellyfin", svc.Jellyfin, jellyfin.New(svc.Jellyfin, timeout))
	register[jellyseerr.Status](r, "jellyseerr", "Jellyseerr", svc.Jellyseerr, jellyseerr.New(svc.Jellyseerr, timeout))
	register[portainer.Status](r, "portainer", "Portainer", svc.Portainer, portainer.New(svc.Portainer, timeout))
	register[proxmox.Status](r, "proxmox", "Proxmox", svc.Proxmox, proxmox.New(svc.Proxmox, timeout))
	register[qbittorrent.Status](r, "qbittorrent", "qBittorrent", svc.QBittorrent, qbittorrent.New(svc.QBittorrent, timeout))
	register[arr.Status](r, "radarr", "Radarr", svc.Radarr, arr.New(arr.Radarr, svc.Radarr, timeout))
	register[arr.Status](r, "sonarr", "Sonarr", svc.Sonarr, arr.New(arr.Sonarr, svc.Sonarr, timeout))
	register[truenas.Status](r, "truenas", "TrueNAS", svc.TrueNAS, truenas.New(svc.TrueNAS, timeout))
	register[homeassistant.Status](r, "homeassistant", "Home Assistant", svc.HomeAssistant, homeassistant.New(svc.HomeAssistant, timeout))

	return r
}

func register[T any](r *Registry, slug, name string, cfg config.ServiceConfig, src statusSource[T]) {
	r.entries[slug] = &Entry{
		Slug:       slug,
		Name:       name,
		URL:        cfg.URL,
		Configured: src.Configured(),
		check: func(ctx context.Context) (any, error) {
			status, err := src.Status(ctx)
			if err != nil {
				return nil, err
			}
			return status, nil
		},
	}
	r.order = append(r.order, slug)
}

// Entries returns the integrations in registration order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, slug := range r.order {
		out = append(out, *r.entries[slug])
	}
	return out
}

// Lookup reports whether slug is a known integration.
func (r *Registry) Lookup(slug string) (Entry, bool) {
	entry, ok := r.entries[slug]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Check runs the status check for slug. The returned body is either the
// integration's status or a Failure; err is only set for an unknown slug.
func (r *Registry) Check(ctx context.Context, slug string) (any, error) {
	entry, ok := r.entries[slug]
	if !ok {
		return nil, fmt.Errorf("unknown service %q", slug)
	}

	start := time.Now()
	status, err := entry.check(ctx)
	elapsed := time.Since(start)
	metrics.RecordUpstreamCheck(slug, err, elapsed)

	if err != nil {
		logger := logging.FromContext(ctx)
		event := logger.Warn()
		if errs.KindOf(err) == errs.KindConfigMissing {
			event = logger.Debug()
		}
		event.
			Err(err).
			Str("service", slug).
			Str("kind", string(errs.KindOf(err))).
			Dur("elapsed", elapsed).
			Msg("Service status check failed")
		return Failure{Online: false, Error: upstream.Describe(err)}, nil
	}
	return status, nil
}

// Provider keeps a registry in step with a config store, rebuilding it
// when the snapshot changes.
type Provider struct {
	store *config.Store

	mu       sync.Mutex
	snapshot *config.Config
	registry *Registry
}

func NewProvider(store *config.Store) *Provider {
	return &Provider{store: store}
}

// Registry returns the registry for the current snapshot.
func (p *Provider) Registry() *Registry {
	cfg := p.store.Current()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registry == nil || p.snapshot != cfg {
		p.registry = NewRegistry(cfg)
		p.snapshot = cfg
	}
	return p.registry
}

// Check runs a status check against the current registry.
func (p *Provider) Check(ctx context.Context, slug string) (any, error) {
	return p.Registry().Check(ctx, slug)
}
