package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	errs "github.com/mikeyhost/homedash/internal/errors"
	"github.com/mikeyhost/homedash/internal/utils"
	"github.com/mikeyhost/homedash/pkg/tlsutil"
)

const (
	// DefaultTimeout bounds every upstream call unless a shorter one is asked for.
	DefaultTimeout = 10 * time.Second

	maxResponseBodyBytes int64 = 32 * 1024 * 1024
)

// Config configures a client for one third-party service.
type Config struct {
	Service string // display name used in errors and logs
	BaseURL string
	Timeout time.Duration

	// Headers are added to every request, typically the auth header.
	Headers map[string]string
	// Username/Password enable HTTP basic auth when both are set.
	Username string
	Password string

	InsecureSkipVerify bool
	Fingerprint        string

	// HTTPClient overrides the transport. Mostly for tests.
	HTTPClient *http.Client
}

// Client is a thin HTTP wrapper that turns transport and status failures
// into typed upstream errors.
type Client struct {
	service    string
	baseURL    string
	timeout    time.Duration
	headers    map[string]string
	username   string
	password   string
	httpClient *http.Client
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Cookies    []*http.Cookie
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// CallOption adjusts a single request.
type CallOption func(*callOptions)

type callOptions struct {
	header  http.Header
	timeout time.Duration
}

// WithHeader sets a header on one request.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		o.header.Set(key, value)
	}
}

// WithCallTimeout overrides the client timeout for one request.
func WithCallTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}

// New creates a client. A zero timeout means DefaultTimeout.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = tlsutil.NewHTTPClient(tlsutil.ClientOptions{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			Fingerprint:        cfg.Fingerprint,
		})
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &Client{
		service:    cfg.Service,
		baseURL:    utils.TrimBaseURL(cfg.BaseURL),
		timeout:    timeout,
		headers:    headers,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
	}
}

// Service returns the display name.
func (c *Client) Service() string { return c.service }

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient exposes the underlying client for SDKs that bring their own
// request building.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// Do performs one request and reads the whole body. Only transport failures
// are returned as errors; any HTTP status yields a Response.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, opts ...CallOption) (*Response, error) {
	o := callOptions{header: make(http.Header), timeout: c.timeout}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return nil, errs.NewUpstreamError(errs.KindUnreachable, c.service, c.baseURL,
			fmt.Errorf("build request %s %s: %w", method, path, err))
	}

	request.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		request.Header.Set(k, v)
	}
	if c.username != "" && c.password != "" {
		request.SetBasicAuth(c.username, c.password)
	}
	for k, values := range o.header {
		request.Header[k] = values
	}

	start := time.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		log.Debug().
			Err(err).
			Str("service", c.service).
			Str("method", method).
			Str("path", path).
			Dur("elapsed", time.Since(start)).
			Msg("Upstream request failed")
		return nil, c.classify(err)
	}

	data, err := readBody(response.Body)
	if err != nil {
		return nil, c.classify(fmt.Errorf("read %s %s: %w", method, path, err))
	}

	log.Debug().
		Str("service", c.service).
		Str("method", method).
		Str("path", path).
		Int("status", response.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Upstream request")

	return &Response{
		StatusCode: response.StatusCode,
		Header:     response.Header,
		Body:       data,
		Cookies:    response.Cookies(),
	}, nil
}

// GetJSON fetches path and decodes a 2xx JSON body into destination.
func (c *Client) GetJSON(ctx context.Context, path string, destination any, opts ...CallOption) error {
	response, err := c.Do(ctx, http.MethodGet, path, nil, opts...)
	if err != nil {
		return err
	}
	return c.DecodeJSON(response, destination)
}

// PostJSON sends payload as JSON and decodes a 2xx JSON body into destination.
func (c *Client) PostJSON(ctx context.Context, path string, payload, destination any, opts ...CallOption) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request body for %s: %w", c.service, path, err)
	}
	opts = append([]CallOption{WithHeader("Content-Type", "application/json")}, opts...)

	response, err := c.Do(ctx, http.MethodPost, path, body, opts...)
	if err != nil {
		return err
	}
	return c.DecodeJSON(response, destination)
}

// GetJSONWithFallback tries each path in order. A 404 moves on to the next
// path; any other outcome is final. It returns the path that answered.
func (c *Client) GetJSONWithFallback(ctx context.Context, paths []string, destination any, opts ...CallOption) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("%s: no paths to try", c.service)
	}

	var response *Response
	var path string
	for i, candidate := range paths {
		resp, err := c.Do(ctx, http.MethodGet, candidate, nil, opts...)
		if err != nil {
			return candidate, err
		}
		response, path = resp, candidate
		if resp.StatusCode != http.StatusNotFound || i == len(paths)-1 {
			break
		}
		log.Debug().
			Str("service", c.service).
			Str("path", candidate).
			Msg("Upstream path not found, trying legacy path")
	}

	return path, c.DecodeJSON(response, destination)
}

// DecodeJSON checks the status and decodes the body. A nil destination only
// checks the status.
func (c *Client) DecodeJSON(response *Response, destination any) error {
	if !response.OK() {
		return errs.BadStatus(c.service, c.baseURL, response.StatusCode)
	}
	if destination == nil {
		return nil
	}
	if err := json.Unmarshal(response.Body, destination); err != nil {
		return errs.NewUpstreamError(errs.KindParse, c.service, c.baseURL, err)
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return c.baseURL + path
	}
	return c.baseURL + "/" + path
}

func (c *Client) classify(err error) error {
	kind := errs.KindUnreachable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = errs.KindTimeout
	}
	return errs.NewUpstreamError(kind, c.service, c.baseURL, err)
}

func readBody(body io.ReadCloser) (data []byte, err error) {
	defer func() {
		if closeErr := body.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close response body: %w", closeErr))
		}
	}()

	data, err = io.ReadAll(io.LimitReader(body, maxResponseBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxResponseBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxResponseBodyBytes)
	}
	return data, nil
}
