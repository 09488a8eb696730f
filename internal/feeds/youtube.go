package feeds

import (
	"context"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// Video is one upload from a channel's Atom feed.
type Video struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	ChannelName string `json:"channelName"`
	VideoID     string `json:"videoId"`
	Thumbnail   string `json:"thumbnail"`
	PubDate     string `json:"pubDate"`
	Description string `json:"description,omitempty"`

	published time.Time
}

// YouTube merges recent uploads of the given channel IDs, newest first.
func (s *Service) YouTube(ctx context.Context, channelIDs []string) Result[Video] {
	return collect(ctx, "youtube", "YouTube channel IDs", channelIDs, s.fetchChannel, func(a, b Video) int {
		return newestFirst(a.published, b.published)
	})
}

func (s *Service) fetchChannel(ctx context.Context, channelID string) ([]Video, error) {
	path := "/feeds/videos.xml?channel_id=" + url.QueryEscape(channelID)
	feed, err := s.parseFeed(ctx, s.youtube, path, "application/atom+xml, application/xml")
	if err != nil {
		return nil, sourceError(channelID, err)
	}

	channel := channelID
	if len(feed.Authors) > 0 && feed.Authors[0] != nil && feed.Authors[0].Name != "" {
		channel = feed.Authors[0].Name
	} else if feed.Title != "" {
		channel = feed.Title
	}

	videos := make([]Video, 0, len(feed.Items))
	for _, item := range feed.Items {
		videoID := extensionValue(item.Extensions, "yt", "videoId")
		if item.Title == "" || videoID == "" {
			continue
		}

		date, published := formatDate(item.PublishedParsed, item.Published)
		videos = append(videos, Video{
			Title:       item.Title,
			Link:        "https://www.youtube.com/watch?v=" + videoID,
			ChannelName: channel,
			VideoID:     videoID,
			Thumbnail:   "https://i.ytimg.com/vi/" + videoID + "/mqdefault.jpg",
			PubDate:     date,
			Description: truncate(mediaDescription(item), maxDescriptionRunes),
			published:   published,
		})
	}
	return videos, nil
}

func extensionValue(extensions ext.Extensions, namespace, name string) string {
	values := extensions[namespace][name]
	if len(values) == 0 {
		return ""
	}
	return values[0].Value
}

// mediaDescription reads media:group/media:description.
func mediaDescription(item *gofeed.Item) string {
	groups := item.Extensions["media"]["group"]
	if len(groups) == 0 {
		return ""
	}
	descriptions := groups[0].Children["description"]
	if len(descriptions) == 0 {
		return ""
	}
	return descriptions[0].Value
}
