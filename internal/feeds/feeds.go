// Package feeds aggregates RSS/Atom feeds, YouTube channel uploads and
// subreddit listings into capped, sorted item lists.
package feeds

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	errs "github.com/mikeyhost/homedash/internal/errors"
	"github.com/mikeyhost/homedash/internal/metrics"
	"github.com/mikeyhost/homedash/internal/upstream"
)

const (
	// MaxItems caps every merged list.
	MaxItems = 20
	// SourceTimeout bounds each individual source fetch.
	SourceTimeout = 10 * time.Second

	maxConcurrentSources = 4
	maxDescriptionRunes  = 200

	DefaultYouTubeBaseURL = "https://www.youtube.com"
	DefaultRedditBaseURL  = "https://old.reddit.com"
)

// Result is the body of every feed endpoint.
type Result[T any] struct {
	Items []T    `json:"items"`
	Error string `json:"error,omitempty"`
}

// Options configures a Service.
type Options struct {
	YouTubeBaseURL string
	RedditBaseURL  string
	Timeout        time.Duration
}

// Service fetches feeds. It is safe for concurrent use; source lists are
// passed per call so a config reload takes effect immediately.
type Service struct {
	rss     *upstream.Client
	youtube *upstream.Client
	reddit  *upstream.Client
}

func New(opts Options) *Service {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = SourceTimeout
	}
	if opts.YouTubeBaseURL == "" {
		opts.YouTubeBaseURL = DefaultYouTubeBaseURL
	}
	if opts.RedditBaseURL == "" {
		opts.RedditBaseURL = DefaultRedditBaseURL
	}

	return &Service{
		rss:     upstream.New(upstream.Config{Service: "RSS", Timeout: timeout}),
		youtube: upstream.New(upstream.Config{Service: "YouTube", BaseURL: opts.YouTubeBaseURL, Timeout: timeout}),
		reddit:  upstream.New(upstream.Config{Service: "Reddit", BaseURL: opts.RedditBaseURL, Timeout: timeout}),
	}
}

type fetchFunc[T any] func(ctx context.Context, source string) ([]T, error)

// collect fetches every source in parallel, merges the items in source
// order, stable-sorts them with cmp and truncates to MaxItems. Failed
// sources are skipped; their errors only surface when nothing was fetched.
func collect[T any](ctx context.Context, kind, label string, sources []string, fetch fetchFunc[T], cmp func(a, b T) int) Result[T] {
	if len(sources) == 0 {
		return Result[T]{Items: []T{}, Error: "No " + label + " configured"}
	}

	results := make([][]T, len(sources))
	failures := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(maxConcurrentSources)
	for i, source := range sources {
		g.Go(func() error {
			sourceCtx, cancel := context.WithTimeout(ctx, SourceTimeout)
			defer cancel()

			items, err := fetch(sourceCtx, source)
			if err != nil {
				failures[i] = err
				metrics.RecordFeedFailure(kind)
				log.Warn().Err(err).Str("kind", kind).Str("source", source).Msg("Feed source failed")
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]T, 0, MaxItems)
	var messages []string
	for i := range sources {
		merged = append(merged, results[i]...)
		if failures[i] != nil {
			messages = append(messages, failures[i].Error())
		}
	}

	slices.SortStableFunc(merged, cmp)
	if len(merged) > MaxItems {
		merged = merged[:MaxItems]
	}

	result := Result[T]{Items: merged}
	if len(merged) == 0 && len(messages) > 0 {
		result.Error = strings.Join(messages, "; ")
	}
	return result
}

// newestFirst orders by publish time, unknown dates last.
func newestFirst(a, b time.Time) int {
	return b.Compare(a)
}

// sourceError renders a fetch failure as "<label>: <reason>".
func sourceError(label string, err error) error {
	var upErr *errs.UpstreamError
	if !errors.As(err, &upErr) {
		return errors.New(label + ": " + err.Error())
	}

	reason := "request failed"
	switch upErr.Kind {
	case errs.KindBadStatus:
		return errors.New(label + ": HTTP " + strconv.Itoa(upErr.StatusCode))
	case errs.KindTimeout:
		reason = "timeout"
	default:
		if upErr.Err != nil {
			reason = upErr.Err.Error()
		}
	}
	return errors.New(label + ": " + reason)
}
