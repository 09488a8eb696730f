package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/rs/zerolog/log"

	"github.com/mikeyhost/homedash/internal/auth"
	"github.com/mikeyhost/homedash/internal/logging"
	"github.com/mikeyhost/homedash/internal/metrics"
)

// publicAPIRoutes are reachable without a session. Everything else under
// /api/ requires one.
var publicAPIRoutes = []string{
	"/api/auth/login",
	"/api/auth/logout",
	"/api/adguard",
	"/api/homeassistant",
	"/api/immich",
	"/api/portainer",
	"/api/truenas",
	"/api/health",
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type unauthorizedResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func isProtectedAPI(path string) bool {
	return strings.HasPrefix(path, "/api/") && !slices.Contains(publicAPIRoutes, path)
}

func isProtectedPage(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if wildcard.Match(pattern, path) {
			return true
		}
	}
	return false
}

// RequireAuth gates protected pages and API routes behind a valid session.
// Pages redirect to the login page; API routes get a JSON 401.
func RequireAuth(sessions *auth.Manager, protectedPages func() []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		protectedAPI := isProtectedAPI(path)
		if !protectedAPI && !isProtectedPage(path, protectedPages()) {
			next.ServeHTTP(w, r)
			return
		}

		if session := sessions.SessionFromRequest(r); session != nil {
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), session.Username)))
			return
		}

		if protectedAPI {
			writeJSON(w, http.StatusUnauthorized, unauthorizedResponse{
				Error:   "Unauthorized",
				Message: "Authentication required",
			})
			return
		}

		http.Redirect(w, r, "/login?redirect="+url.QueryEscape(path), http.StatusFound)
	})
}

// handleLogin checks the shared credentials and sets the session cookie.
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	logger := logging.FromContext(req.Context())

	var body loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 64<<10)).Decode(&body); err != nil {
		logger.Debug().Err(err).Msg("Malformed login request")
		writeJSON(w, http.StatusBadRequest, loginResponse{Error: "Invalid request body"})
		return
	}

	if body.Username == "" || body.Password == "" {
		writeJSON(w, http.StatusBadRequest, loginResponse{Error: "Username and password are required"})
		return
	}

	if !r.sessions.ValidateCredentials(body.Username, body.Password) {
		metrics.RecordLogin("invalid")
		logger.Warn().Str("ip", r.clientIP(req)).Msg("Failed login attempt")
		writeJSON(w, http.StatusUnauthorized, loginResponse{Error: "Invalid username or password"})
		return
	}

	token, err := r.sessions.CreateSessionToken(body.Username)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create session token")
		writeJSON(w, http.StatusInternalServerError, loginResponse{Error: "An error occurred during login"})
		return
	}

	secure := r.isSecure(req)
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})

	metrics.RecordLogin("success")
	logger.Info().Str("user", body.Username).Bool("secure", secure).Msg("User logged in")
	writeJSON(w, http.StatusOK, loginResponse{Success: true, Message: "Login successful"})
}

// handleLogout clears the session cookie. POST answers with JSON, GET
// redirects home.
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost, http.MethodGet:
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.isSecure(req),
		SameSite: http.SameSiteLaxMode,
	})
	log.Debug().Msg("Session cookie cleared")

	if req.Method == http.MethodGet {
		http.Redirect(w, req, "/", http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Success: true, Message: "Logged out successfully"})
}

// isSecure reports whether cookies should carry the Secure flag.
func (r *Router) isSecure(req *http.Request) bool {
	if r.store.Current().Server.HTTPSEnabled || req.TLS != nil {
		return true
	}
	return strings.EqualFold(req.Header.Get("X-Forwarded-Proto"), "https")
}
