package feeds

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mikeyhost/homedash/internal/upstream"
)

// Article is one RSS item or Atom entry.
type Article struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	PubDate     string `json:"pubDate"`
	Source      string `json:"source"`
	Description string `json:"description,omitempty"`

	published time.Time
}

// RSS merges the given RSS/Atom feeds, newest first.
func (s *Service) RSS(ctx context.Context, feedURLs []string) Result[Article] {
	return collect(ctx, "rss", "RSS feed URLs", feedURLs, s.fetchFeed, func(a, b Article) int {
		return newestFirst(a.published, b.published)
	})
}

func (s *Service) fetchFeed(ctx context.Context, feedURL string) ([]Article, error) {
	feed, err := s.parseFeed(ctx, s.rss, feedURL, "application/rss+xml, application/atom+xml, application/xml, text/xml")
	if err != nil {
		return nil, sourceError(feedURL, err)
	}

	source := feed.Title
	if source == "" {
		if u, err := url.Parse(feedURL); err == nil {
			source = u.Hostname()
		}
	}

	articles := make([]Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		title := plainText(item.Title)
		if title == "" {
			continue
		}

		date, published := formatDate(item.PublishedParsed, item.Published)
		if date == "" {
			date, published = formatDate(item.UpdatedParsed, item.Updated)
		}

		articles = append(articles, Article{
			Title:       title,
			Link:        firstNonEmpty(item.Link, firstLink(item.Links)),
			PubDate:     date,
			Source:      source,
			Description: truncate(plainText(firstNonEmpty(item.Description, item.Content)), maxDescriptionRunes),
			published:   published,
		})
	}
	return articles, nil
}

var errInvalidFeed = errors.New("invalid feed")

// parseFeed downloads path (absolute for RSS, relative to the client's base
// URL otherwise) and parses it with the universal RSS/Atom parser.
func (s *Service) parseFeed(ctx context.Context, client *upstream.Client, path, accept string) (*gofeed.Feed, error) {
	response, err := client.Do(ctx, http.MethodGet, path, nil, upstream.WithHeader("Accept", accept))
	if err != nil {
		return nil, err
	}
	if err := client.DecodeJSON(response, nil); err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(response.Body))
	if err != nil {
		return nil, errInvalidFeed
	}
	return feed, nil
}

func firstLink(links []string) string {
	if len(links) == 0 {
		return ""
	}
	return links[0]
}
