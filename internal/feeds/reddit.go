package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mikeyhost/homedash/internal/upstream"
)

const redditUserAgent = "Mozilla/5.0 (compatible; homedash/1.0; +https://mikey.host)"

// Post is one hot post from a subreddit.
type Post struct {
	Title       string  `json:"title"`
	Link        string  `json:"link"`
	Subreddit   string  `json:"subreddit"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	NumComments int     `json:"numComments"`
	Thumbnail   *string `json:"thumbnail"`
	PubDate     string  `json:"pubDate"`
	SelfText    string  `json:"selfText,omitempty"`
}

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title                 string  `json:"title"`
				Permalink             string  `json:"permalink"`
				SubredditNamePrefixed string  `json:"subreddit_name_prefixed"`
				Author                string  `json:"author"`
				Score                 int     `json:"score"`
				NumComments           int     `json:"num_comments"`
				Thumbnail             string  `json:"thumbnail"`
				CreatedUTC            float64 `json:"created_utc"`
				SelfText              string  `json:"selftext"`
				Stickied              bool    `json:"stickied"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Reddit merges hot posts of the given subreddits, highest score first.
func (s *Service) Reddit(ctx context.Context, subreddits []string) Result[Post] {
	return collect(ctx, "reddit", "Reddit subreddits", subreddits, s.fetchSubreddit, func(a, b Post) int {
		return b.Score - a.Score
	})
}

func (s *Service) fetchSubreddit(ctx context.Context, subreddit string) ([]Post, error) {
	label := "r/" + subreddit
	path := "/r/" + url.PathEscape(subreddit) + "/hot.json?limit=10&raw_json=1"

	response, err := s.reddit.Do(ctx, http.MethodGet, path, nil, upstream.WithHeader("User-Agent", redditUserAgent))
	if err != nil {
		return nil, sourceError(label, err)
	}
	if !response.OK() {
		return nil, sourceError(label, s.reddit.DecodeJSON(response, nil))
	}

	var data listing
	if err := json.Unmarshal(response.Body, &data); err != nil {
		return nil, errors.New(label + ": invalid JSON response")
	}

	posts := make([]Post, 0, len(data.Data.Children))
	for _, child := range data.Data.Children {
		d := child.Data
		if d.Stickied {
			continue
		}

		var thumbnail *string
		if strings.HasPrefix(d.Thumbnail, "http") {
			thumb := d.Thumbnail
			thumbnail = &thumb
		}
		prefixed := d.SubredditNamePrefixed
		if prefixed == "" {
			prefixed = label
		}
		sec, frac := math.Modf(d.CreatedUTC)

		posts = append(posts, Post{
			Title:       d.Title,
			Link:        "https://www.reddit.com" + d.Permalink,
			Subreddit:   prefixed,
			Author:      d.Author,
			Score:       d.Score,
			NumComments: d.NumComments,
			Thumbnail:   thumbnail,
			PubDate:     time.Unix(int64(sec), int64(frac*1e9)).UTC().Format(time.RFC3339),
			SelfText:    truncate(d.SelfText, maxDescriptionRunes),
		})
	}
	return posts, nil
}
