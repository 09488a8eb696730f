package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "limits are per IP")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.Allow("10.0.0.1")

	now = now.Add(2 * time.Minute)
	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.attempts)
}

func TestRateLimiterStopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.Stop()
	rl.Stop()
}

func loginAttempt(remoteAddr, forwardedFor string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"admin","password":"nope"}`))
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
		req.Header.Set("X-Real-IP", forwardedFor)
	}
	return req
}

func TestLoginLimitIgnoresForwardedHeadersFromUntrustedPeers(t *testing.T) {
	tr := newTestRouter(t, nil)

	limited := 0
	for i := 0; i < 3*loginAttemptLimit; i++ {
		rec := tr.do(t, loginAttempt("203.0.113.9:40000", fmt.Sprintf("10.0.0.%d", i)))
		if rec.Code == http.StatusTooManyRequests {
			limited++
			continue
		}
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i)
		require.Less(t, i, loginAttemptLimit, "attempt %d was not limited", i)
	}
	assert.Equal(t, 2*loginAttemptLimit, limited)
}

func TestLoginLimitKeysOnForwardedClientBehindTrustedProxy(t *testing.T) {
	tr := newTestRouter(t, map[string]string{"TRUSTED_PROXIES": "172.18.0.0/16"})

	for i := 0; i < loginAttemptLimit; i++ {
		rec := tr.do(t, loginAttempt("172.18.0.2:40000", "198.51.100.1"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := tr.do(t, loginAttempt("172.18.0.2:40000", "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client behind the same proxy has its own budget.
	rec = tr.do(t, loginAttempt("172.18.0.2:40000", "198.51.100.2"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
