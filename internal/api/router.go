package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mikeyhost/homedash/internal/auth"
	"github.com/mikeyhost/homedash/internal/config"
	"github.com/mikeyhost/homedash/internal/content"
	"github.com/mikeyhost/homedash/internal/feeds"
	"github.com/mikeyhost/homedash/internal/hostmetrics"
	"github.com/mikeyhost/homedash/internal/logging"
	"github.com/mikeyhost/homedash/internal/services"
	"github.com/mikeyhost/homedash/internal/utils"
)

// Options wires a Router.
type Options struct {
	Store    *config.Store
	Sessions *auth.Manager
	Version  string
	// Feeds defaults to a service built from the current snapshot.
	Feeds *feeds.Service
	// CollectHost defaults to hostmetrics.Collect.
	CollectHost func(ctx context.Context, diskExclude []string) (hostmetrics.Snapshot, error)
}

// Router handles HTTP routing
type Router struct {
	mux         *http.ServeMux
	handler     http.Handler
	store       *config.Store
	services    *services.Provider
	feeds       *feeds.Service
	sessions    *auth.Manager
	loginLimit  *RateLimiter
	collectHost func(ctx context.Context, diskExclude []string) (hostmetrics.Snapshot, error)
	version     string
	startTime   time.Time
}

// NewRouter creates a new router instance
func NewRouter(opts Options) *Router {
	cfg := opts.Store.Current()

	r := &Router{
		mux:         http.NewServeMux(),
		store:       opts.Store,
		services:    services.NewProvider(opts.Store),
		feeds:       opts.Feeds,
		sessions:    opts.Sessions,
		loginLimit:  NewRateLimiter(loginAttemptLimit, loginAttemptWindow),
		collectHost: opts.CollectHost,
		version:     opts.Version,
		startTime:   time.Now(),
	}
	if r.feeds == nil {
		r.feeds = feeds.New(feeds.Options{
			YouTubeBaseURL: cfg.Feeds.YouTubeBaseURL,
			RedditBaseURL:  cfg.Feeds.RedditBaseURL,
		})
	}
	if r.collectHost == nil {
		r.collectHost = hostmetrics.Collect
	}

	r.setupRoutes()
	r.handler = RequireAuth(r.sessions, r.protectedPages, r.mux)
	return r
}

// Handler returns the router wrapped in the error and metrics middleware.
func (r *Router) Handler() http.Handler {
	return ErrorHandler(r)
}

// Stop releases background resources.
func (r *Router) Stop() {
	r.loginLimit.Stop()
}

// setupRoutes configures all routes
func (r *Router) setupRoutes() {
	r.mux.HandleFunc("/api/health", r.handleHealth)

	// Auth
	r.mux.HandleFunc("/api/auth/login", r.loginLimit.Middleware(r.clientIP, r.handleLogin))
	r.mux.HandleFunc("/api/auth/logout", r.handleLogout)

	// Service widgets
	for _, entry := range r.services.Registry().Entries() {
		r.mux.HandleFunc("/api/"+entry.Slug, r.handleServiceStatus(entry.Slug))
	}

	// Feeds
	r.mux.HandleFunc("/api/feeds/rss", r.handleRSS)
	r.mux.HandleFunc("/api/feeds/youtube", r.handleYouTube)
	r.mux.HandleFunc("/api/feeds/reddit", r.handleReddit)

	// Content and host
	r.mux.HandleFunc("/api/bookmarks", r.handleBookmarks)
	r.mux.HandleFunc("/api/resume", r.handleResume)
	r.mux.HandleFunc("/api/host", r.handleHost)

	r.mux.HandleFunc("/", r.handleStatic)
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if strings.HasPrefix(req.URL.Path, "/api/") {
		addSecurityHeaders(w)
	}

	start := time.Now()
	r.handler.ServeHTTP(w, req)
	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Dur("duration", time.Since(start)).
		Msg("Request handled")
}

// addSecurityHeaders adds security headers to the response
func addSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Cache-Control", "no-store")
}

// clientIP trusts forwarding headers only from TRUSTED_PROXIES.
func (r *Router) clientIP(req *http.Request) string {
	return utils.ClientIP(req.RemoteAddr, req.Header.Get("X-Forwarded-For"), req.Header.Get("X-Real-IP"),
		r.store.Current().TrustedProxies)
}

func (r *Router) protectedPages() []string {
	return r.store.Current().ProtectedPages
}

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// handleHealth handles health check requests
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Version:       r.version,
		UptimeSeconds: time.Since(r.startTime).Seconds(),
	})
}

// handleServiceStatus serves one integration widget. Upstream failures are
// part of the body, so the status is 200 unless the slug is unknown.
func (r *Router) handleServiceStatus(slug string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		result, err := r.services.Check(req.Context(), slug)
		if err != nil {
			writeErrorResponse(w, req, http.StatusNotFound, "not_found", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (r *Router) handleRSS(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, r.feeds.RSS(req.Context(), r.store.Current().Feeds.RSSURLs))
}

func (r *Router) handleYouTube(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, r.feeds.YouTube(req.Context(), r.store.Current().Feeds.YouTubeChannelIDs))
}

func (r *Router) handleReddit(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, r.feeds.Reddit(req.Context(), r.store.Current().Feeds.Subreddits))
}

func (r *Router) handleBookmarks(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := r.store.Current()
	bookmarks, err := content.LoadBookmarks(cfg.Content.BookmarksFile, cfg.Getenv)
	if err != nil {
		logger := logging.FromContext(req.Context())
		logger.Error().Err(err).Msg("Failed to load bookmarks")
		writeErrorResponse(w, req, http.StatusInternalServerError, "content_error", "Failed to load bookmarks")
		return
	}
	writeJSON(w, http.StatusOK, bookmarks)
}

func (r *Router) handleResume(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resume, err := content.LoadResume(r.store.Current().Content.ResumeFile)
	switch {
	case errors.Is(err, content.ErrNotFound):
		writeErrorResponse(w, req, http.StatusNotFound, "not_found", "Resume not found")
	case err != nil:
		logger := logging.FromContext(req.Context())
		logger.Error().Err(err).Msg("Failed to load resume")
		writeErrorResponse(w, req, http.StatusInternalServerError, "content_error", "Failed to load resume")
	default:
		writeJSON(w, http.StatusOK, resume)
	}
}

func (r *Router) handleHost(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot, err := r.collectHost(req.Context(), r.store.Current().HostDiskExclude)
	if err != nil {
		logger := logging.FromContext(req.Context())
		logger.Warn().Err(err).Msg("Host metrics unavailable")
		writeErrorResponse(w, req, http.StatusServiceUnavailable, "host_metrics_unavailable", "Host metrics unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleStatic serves the frontend build. Unknown non-API paths fall back
// to index.html so client-side routes resolve.
func (r *Router) handleStatic(w http.ResponseWriter, req *http.Request) {
	if strings.HasPrefix(req.URL.Path, "/api/") || req.URL.Path == "/api" {
		writeErrorResponse(w, req, http.StatusNotFound, "not_found", "Not found")
		return
	}

	staticDir := r.store.Current().StaticDir
	if staticDir == "" {
		http.NotFound(w, req)
		return
	}

	name := path.Clean("/" + req.URL.Path)
	if name == "/" {
		name = "/index.html"
	}
	if info, err := os.Stat(filepath.Join(staticDir, filepath.FromSlash(name))); err != nil || info.IsDir() {
		name = "/index.html"
		if _, err := os.Stat(filepath.Join(staticDir, "index.html")); err != nil {
			http.NotFound(w, req)
			return
		}
	}

	http.ServeFile(w, req, filepath.Join(staticDir, filepath.FromSlash(name)))
}
