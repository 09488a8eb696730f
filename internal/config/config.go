package config

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/mikeyhost/homedash/internal/utils"
)

const (
	DefaultDataDir         = "./data"
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 4321
	DefaultMetricsPort     = 9091
	DefaultUpstreamTimeout = 10 * time.Second
	DefaultDNSCacheTTL     = 5 * time.Minute
	DefaultAuthUsername    = "admin"
)

// Config is an immutable snapshot of the runtime configuration.
// Replace it whole; never mutate a published snapshot.
type Config struct {
	DataDir   string
	StaticDir string

	Server   ServerConfig
	Auth     AuthConfig
	Logging  LoggingConfig
	Services ServicesConfig
	Feeds    FeedsConfig
	Content  ContentConfig

	// ProtectedPages are wildcard patterns for pages behind the login.
	ProtectedPages  []string
	// HostDiskExclude hides mounts or devices from the host widget.
	HostDiskExclude []string
	// TrustedProxies may set X-Forwarded-For and X-Real-IP.
	TrustedProxies  []netip.Prefix

	vars map[string]string
}

type ServerConfig struct {
	Host            string
	Port            int
	MetricsPort     int
	HTTPSEnabled    bool
	UpstreamTimeout time.Duration
	DNSCacheTTL     time.Duration
}

// Addr returns host:port for the main listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type AuthConfig struct {
	Username string
	Password string // plain text or bcrypt hash
	Secret   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// ServiceConfig holds the connection settings of one integration. Which
// credential fields matter depends on the service.
type ServiceConfig struct {
	URL                string
	APIKey             string
	Token              string
	Username           string
	Password           string
	TokenID            string
	TokenSecret        string
	Fingerprint        string
	InsecureSkipVerify bool
}

type ServicesConfig struct {
	AdGuard       ServiceConfig
	Immich        ServiceConfig
	Jellyfin      ServiceConfig
	Jellyseerr    ServiceConfig
	Portainer     ServiceConfig
	Proxmox       ServiceConfig
	QBittorrent   ServiceConfig
	Radarr        ServiceConfig
	Sonarr        ServiceConfig
	TrueNAS       ServiceConfig
	HomeAssistant ServiceConfig
}

type FeedsConfig struct {
	RSSURLs           []string
	YouTubeChannelIDs []string
	Subreddits        []string
	YouTubeBaseURL    string
	RedditBaseURL     string
}

type ContentConfig struct {
	BookmarksFile string
	ResumeFile    string
}

// Getenv returns a variable from the environment the snapshot was built
// from, including values read from .env files.
func (c *Config) Getenv(key string) string {
	if c == nil {
		return ""
	}
	return c.vars[key]
}

// Loader builds Config snapshots. Variables from the process environment
// win over the data dir .env, which wins over ./.env.
type Loader struct {
	DataDir string
	// WorkDir is searched for a development .env. Empty skips it.
	WorkDir string
	// Env is the process environment captured at startup.
	Env map[string]string
}

// NewLoader captures the current process environment.
func NewLoader() *Loader {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	dataDir := strings.TrimSpace(env["HOMEDASH_DATA_DIR"])
	if dataDir == "" {
		dataDir = DefaultDataDir
	}

	return &Loader{DataDir: dataDir, WorkDir: ".", Env: env}
}

// EnvPath is the data dir .env watched for reloads.
func (l *Loader) EnvPath() string {
	return filepath.Join(l.DataDir, ".env")
}

// Load reads the process environment and .env files from disk.
func Load() (*Config, error) {
	return NewLoader().Load()
}

// Load builds a fresh snapshot.
func (l *Loader) Load() (*Config, error) {
	vars := make(map[string]string)

	if l.WorkDir != "" {
		mergeEnvFile(vars, filepath.Join(l.WorkDir, ".env"))
	}
	mergeEnvFile(vars, l.EnvPath())
	for k, v := range l.Env {
		vars[k] = v
	}

	return fromVars(l.DataDir, vars)
}

func mergeEnvFile(vars map[string]string, path string) {
	envMap, err := godotenv.Read(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", path).Msg("Failed to read .env file")
		}
		return
	}
	for k, v := range envMap {
		vars[k] = v
	}
	log.Debug().Str("file", path).Int("keys", len(envMap)).Msg("Loaded .env file")
}

func fromVars(dataDir string, vars map[string]string) (*Config, error) {
	r := reader{vars: vars}

	cfg := &Config{
		DataDir:   dataDir,
		StaticDir: r.str("STATIC_DIR", ""),
		Server: ServerConfig{
			Host:            r.str("HOMEDASH_HOST", DefaultHost),
			Port:            r.integer(DefaultPort, "HOMEDASH_PORT", "PORT"),
			MetricsPort:     r.integer(DefaultMetricsPort, "METRICS_PORT"),
			HTTPSEnabled:    r.boolean("HTTPS_ENABLED"),
			UpstreamTimeout: r.duration("UPSTREAM_TIMEOUT", DefaultUpstreamTimeout),
			DNSCacheTTL:     r.duration("DNS_CACHE_TTL", DefaultDNSCacheTTL),
		},
		Auth: AuthConfig{
			Username: r.str("AUTH_USERNAME", DefaultAuthUsername),
			Password: r.str("AUTH_PASSWORD", ""),
			Secret:   r.str("AUTH_SECRET", ""),
		},
		Logging: LoggingConfig{
			Level:  r.str("LOG_LEVEL", "info"),
			Format: r.str("LOG_FORMAT", "auto"),
		},
		Services: ServicesConfig{
			AdGuard:       r.service("ADGUARD", "http://localhost:3000"),
			Immich:        r.service("IMMICH", "http://localhost:2283"),
			Jellyfin:      r.service("JELLYFIN", "http://localhost:8096"),
			Jellyseerr:    r.service("JELLYSEERR", "http://localhost:5055"),
			Portainer:     r.service("PORTAINER", "http://localhost:9000"),
			Proxmox:       r.service("PROXMOX", "https://localhost:8006"),
			QBittorrent:   r.service("QBITTORRENT", "http://localhost:8080"),
			Radarr:        r.service("RADARR", "http://localhost:7878"),
			Sonarr:        r.service("SONARR", "http://localhost:8989"),
			TrueNAS:       r.service("TRUENAS", "http://localhost:80"),
			HomeAssistant: r.service("HOMEASSISTANT", "http://localhost:8123"),
		},
		Feeds: FeedsConfig{
			RSSURLs:           r.list("RSS_FEED_URLS"),
			YouTubeChannelIDs: r.list("YOUTUBE_CHANNEL_IDS"),
			Subreddits:        r.list("REDDIT_SUBREDDITS"),
			YouTubeBaseURL:    r.str("YOUTUBE_BASE_URL", "https://www.youtube.com"),
			RedditBaseURL:     r.str("REDDIT_BASE_URL", "https://old.reddit.com"),
		},
		Content: ContentConfig{
			BookmarksFile: r.str("BOOKMARKS_FILE", filepath.Join(dataDir, "bookmarks.yaml")),
			ResumeFile:    r.str("RESUME_FILE", filepath.Join(dataDir, "resume.yaml")),
		},
		ProtectedPages:  r.list("PROTECTED_PAGES"),
		HostDiskExclude: r.list("HOST_DISK_EXCLUDE"),
		vars:            vars,
	}

	if proxies, err := utils.ParseTrustedProxies(r.list("TRUSTED_PROXIES")); err != nil {
		r.errs = append(r.errs, "TRUSTED_PROXIES: "+err.Error())
	} else {
		cfg.TrustedProxies = proxies
	}

	if len(cfg.ProtectedPages) == 0 {
		cfg.ProtectedPages = []string{"/services", "/services/*"}
	}

	if len(r.errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(r.errs, "; "))
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid configuration: port %d out of range", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return nil, fmt.Errorf("invalid configuration: metrics port %d out of range", cfg.Server.MetricsPort)
	}

	return cfg, nil
}

type reader struct {
	vars map[string]string
	errs []string
}

func (r *reader) get(key string) string {
	return strings.TrimSpace(r.vars[key])
}

func (r *reader) str(key, def string) string {
	if v := r.get(key); v != "" {
		return v
	}
	return def
}

func (r *reader) boolean(key string) bool {
	return utils.ParseBool(r.get(key))
}

// integer returns the first non-empty key parsed as an int.
func (r *reader) integer(def int, keys ...string) int {
	for _, key := range keys {
		v := r.get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Sprintf("%s: %q is not a number", key, v))
			return def
		}
		return n
	}
	return def
}

// duration accepts Go durations ("15s") or bare seconds ("15").
func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.get(key)
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.errs = append(r.errs, fmt.Sprintf("%s: %q is not a valid duration", key, v))
		return def
	}
	return d
}

func (r *reader) list(key string) []string {
	return utils.SplitList(r.get(key))
}

func (r *reader) service(prefix, defaultURL string) ServiceConfig {
	return ServiceConfig{
		URL:                utils.TrimBaseURL(r.str(prefix+"_URL", defaultURL)),
		APIKey:             r.get(prefix + "_API_KEY"),
		Token:              r.get(prefix + "_TOKEN"),
		Username:           r.get(prefix + "_USERNAME"),
		Password:           r.get(prefix + "_PASSWORD"),
		TokenID:            r.get(prefix + "_TOKEN_ID"),
		TokenSecret:        r.get(prefix + "_TOKEN_SECRET"),
		Fingerprint:        r.get(prefix + "_FINGERPRINT"),
		InsecureSkipVerify: r.boolean(prefix + "_INSECURE_SKIP_VERIFY"),
	}
}
