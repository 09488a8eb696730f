// Package auth implements the single shared login and the signed session
// cookie that gates protected pages and API routes.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mikeyhost/homedash/internal/config"
)

const (
	// CookieName is the session cookie set at login.
	CookieName = "auth_session"
	// SessionDuration is how long a token stays valid.
	SessionDuration = 24 * time.Hour
)

// Session is the payload carried by a session token.
type Session struct {
	Username  string `json:"username"`
	ExpiresAt int64  `json:"expiresAt"` // Unix milliseconds
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt < now.UnixMilli()
}

// Manager validates credentials and issues and verifies session tokens.
// Reload swaps credentials without invalidating sessions unless the
// configured secret changes.
type Manager struct {
	mu         sync.RWMutex
	username   string
	password   string
	secret     []byte
	fromConfig string // AUTH_SECRET the current key was derived from

	now func() time.Time
}

// NewManager creates a manager from the auth settings. Without AUTH_SECRET
// a random per-process key is generated, so sessions end at restart.
func NewManager(cfg config.AuthConfig) (*Manager, error) {
	m := &Manager{now: time.Now}
	if err := m.Reload(cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload applies new auth settings.
func (m *Manager) Reload(cfg config.AuthConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.username = cfg.Username
	m.password = cfg.Password

	switch {
	case cfg.Secret != "":
		m.secret = []byte(cfg.Secret)
	case m.secret == nil || m.fromConfig != "":
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generate session secret: %w", err)
		}
		m.secret = secret
		log.Warn().Msg("AUTH_SECRET not set - using a random session secret; sessions will not survive a restart")
	}
	m.fromConfig = cfg.Secret

	if cfg.Password == "" {
		log.Warn().Msg("AUTH_PASSWORD not set - login is disabled")
	}
	return nil
}

// ValidateCredentials checks username and password against the configured
// login. It always fails when no password is configured.
func (m *Manager) ValidateCredentials(username, password string) bool {
	m.mu.RLock()
	expectedUser, expectedPassword := m.username, m.password
	m.mu.RUnlock()

	if expectedPassword == "" {
		log.Warn().Msg("AUTH_PASSWORD not set - rejecting login")
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(expectedUser)) == 1
	passwordOK := checkPassword(password, expectedPassword)
	return userOK && passwordOK
}

// CreateSessionToken issues "<base64url(payload)>.<base64url(hmac)>".
func (m *Manager) CreateSessionToken(username string) (string, error) {
	payload, err := json.Marshal(Session{
		Username:  username,
		ExpiresAt: m.now().Add(SessionDuration).UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + m.sign(encoded), nil
}

// ValidateSessionToken returns the session for a well-formed, correctly
// signed, unexpired token and nil otherwise.
func (m *Manager) ValidateSessionToken(token string) *Session {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || strings.Contains(signature, ".") {
		return nil
	}

	if !hmac.Equal([]byte(signature), []byte(m.sign(encoded))) {
		return nil
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}
	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil
	}
	if session.Expired(m.now()) {
		return nil
	}
	return &session
}

// SessionFromRequest validates the session cookie on r.
func (m *Manager) SessionFromRequest(r *http.Request) *Session {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	return m.ValidateSessionToken(cookie.Value)
}

func (m *Manager) sign(encoded string) string {
	m.mu.RLock()
	mac := hmac.New(sha256.New, m.secret)
	m.mu.RUnlock()

	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

type contextKey string

const contextKeyUser contextKey = "user"

// WithUser adds a username to the context
func WithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, contextKeyUser, username)
}

// GetUser extracts the username from the context
func GetUser(ctx context.Context) string {
	if user, ok := ctx.Value(contextKeyUser).(string); ok {
		return user
	}
	return ""
}
