package errors

import (
	"errors"
	"fmt"
)

// Base error types
var (
	ErrConfigMissing = errors.New("config missing")
	ErrTimeout       = errors.New("timeout")
	ErrUnreachable   = errors.New("unreachable")
	ErrBadStatus     = errors.New("bad status")
	ErrParse         = errors.New("parse error")
)

// Kind represents the category of an upstream failure.
type Kind string

const (
	KindConfigMissing Kind = "config_missing"
	KindTimeout       Kind = "timeout"
	KindUnreachable   Kind = "unreachable"
	KindBadStatus     Kind = "bad_status"
	KindParse         Kind = "parse"
)

// UpstreamError is a structured error for calls to a third-party service.
type UpstreamError struct {
	Kind       Kind
	Service    string // Display name, e.g. "AdGuard"
	URL        string // Configured base URL
	StatusCode int    // HTTP status code for KindBadStatus
	Message    string // Optional user-facing text
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Kind {
	case KindBadStatus:
		return fmt.Sprintf("%s returned HTTP %d", e.Service, e.StatusCode)
	case KindConfigMissing:
		return fmt.Sprintf("%s credentials not configured", e.Service)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s (%s): %v", e.Service, e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s (%s)", e.Service, e.Kind, e.URL)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *UpstreamError) Is(target error) bool {
	if target == nil {
		return false
	}

	switch target {
	case ErrConfigMissing:
		return e.Kind == KindConfigMissing
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrUnreachable:
		return e.Kind == KindUnreachable
	case ErrBadStatus:
		return e.Kind == KindBadStatus
	case ErrParse:
		return e.Kind == KindParse
	}

	return errors.Is(e.Err, target)
}

// NewUpstreamError creates a new UpstreamError
func NewUpstreamError(kind Kind, service, url string, err error) *UpstreamError {
	return &UpstreamError{
		Kind:    kind,
		Service: service,
		URL:     url,
		Err:     err,
	}
}

// WithStatusCode adds HTTP status code to the error
func (e *UpstreamError) WithStatusCode(code int) *UpstreamError {
	e.StatusCode = code
	return e
}

// Helper functions

// ConfigMissing reports that a service has no usable credentials. An empty
// message falls back to "<service> credentials not configured".
func ConfigMissing(service, message string) error {
	e := NewUpstreamError(KindConfigMissing, service, "", nil)
	e.Message = message
	return e
}

// BadStatus wraps a non-2xx response.
func BadStatus(service, url string, code int) error {
	return NewUpstreamError(KindBadStatus, service, url, nil).WithStatusCode(code)
}

// KindOf returns the kind of an upstream error, or "" when err is not one.
func KindOf(err error) Kind {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Kind
	}
	return ""
}

// StatusCodeOf returns the HTTP status carried by err, or 0.
func StatusCodeOf(err error) int {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.StatusCode
	}
	return 0
}

// WithStatusMessage sets a user-facing message on a KindBadStatus error.
// format receives the status code as its only verb. Other errors are
// returned unchanged.
func WithStatusMessage(err error, format string) error {
	var upErr *UpstreamError
	if !errors.As(err, &upErr) || upErr.Kind != KindBadStatus {
		return err
	}
	annotated := *upErr
	annotated.Message = fmt.Sprintf(format, upErr.StatusCode)
	return &annotated
}
