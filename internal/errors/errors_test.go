package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestUpstreamErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"timeout", NewUpstreamError(KindTimeout, "Immich", "http://x", context.DeadlineExceeded), ErrTimeout, true},
		{"timeout wraps cause", NewUpstreamError(KindTimeout, "Immich", "http://x", context.DeadlineExceeded), context.DeadlineExceeded, true},
		{"unreachable", NewUpstreamError(KindUnreachable, "Jellyfin", "http://x", errors.New("dial")), ErrUnreachable, true},
		{"unreachable is not timeout", NewUpstreamError(KindUnreachable, "Jellyfin", "http://x", nil), ErrTimeout, false},
		{"bad status", BadStatus("AdGuard", "http://x", 401), ErrBadStatus, true},
		{"config", ConfigMissing("Radarr", ""), ErrConfigMissing, true},
		{"parse", NewUpstreamError(KindParse, "Sonarr", "http://x", errors.New("eof")), ErrParse, true},
		{"nil target", ConfigMissing("Radarr", ""), nil, false},
		{"wrapped", fmt.Errorf("outer: %w", BadStatus("AdGuard", "http://x", 500)), ErrBadStatus, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Fatalf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindAndStatusHelpers(t *testing.T) {
	err := fmt.Errorf("status: %w", BadStatus("TrueNAS", "http://nas", 503))
	if got := KindOf(err); got != KindBadStatus {
		t.Fatalf("KindOf() = %q, want %q", got, KindBadStatus)
	}
	if got := StatusCodeOf(err); got != 503 {
		t.Fatalf("StatusCodeOf() = %d, want 503", got)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("KindOf(plain) = %q, want empty", got)
	}
	if got := StatusCodeOf(nil); got != 0 {
		t.Fatalf("StatusCodeOf(nil) = %d, want 0", got)
	}
}

func TestUpstreamErrorMessage(t *testing.T) {
	if got := BadStatus("AdGuard", "http://x", 401).Error(); got != "AdGuard returned HTTP 401" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := ConfigMissing("Proxmox", "").Error(); got != "Proxmox credentials not configured" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestWithStatusMessage(t *testing.T) {
	err := WithStatusMessage(BadStatus("AdGuard", "http://x", 401), "AdGuard API error (%d). Check credentials and URL.")
	if got := err.Error(); got != "AdGuard API error (401). Check credentials and URL." {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(err, ErrBadStatus) {
		t.Fatalf("annotated error lost its kind")
	}

	timeout := NewUpstreamError(KindTimeout, "AdGuard", "http://x", context.DeadlineExceeded)
	if got := WithStatusMessage(timeout, "ignored %d"); got != error(timeout) {
		t.Fatalf("non-status errors must pass through unchanged")
	}

	if got := ConfigMissing("Immich", "Immich API key not configured").Error(); got != "Immich API key not configured" {
		t.Fatalf("unexpected message %q", got)
	}
}
