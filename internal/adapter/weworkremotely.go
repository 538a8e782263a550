package adapter

import (
	"context"
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

const wwrDefaultURL = "https://weworkremotely.com/remote-jobs.rss"

// wwrFeed mirrors the We Work Remotely RSS feed.
type wwrFeed struct {
	Channel struct {
		Items []wwrItem `xml:"item"`
	} `xml:"channel"`
}

type wwrItem struct {
	Title       string   `xml:"title"` // "Company: Job Title"
	Region      string   `xml:"region"`
	Categories  []string `xml:"category"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate"` // RFC1123Z
	Link        string   `xml:"link"`
}

// WeWorkRemotelyAdapter fetches jobs from the WWR RSS feed.
type WeWorkRemotelyAdapter struct {
	feedURL string
	client  *http.Client
}

var _ model.SourceAdapter = (*WeWorkRemotelyAdapter)(nil)

// NewWeWorkRemotelyAdapter creates the adapter. feedURL may be empty to use
// the public feed.
func NewWeWorkRemotelyAdapter(feedURL string, client *http.Client) *WeWorkRemotelyAdapter {
	if feedURL == "" {
		feedURL = wwrDefaultURL
	}
	return &WeWorkRemotelyAdapter{feedURL: feedURL, client: client}
}

func (a *WeWorkRemotelyAdapter) Platform() string { return "weworkremotely" }

// Fetch retrieves the feed and keeps items published at or after since.
func (a *WeWorkRemotelyAdapter) Fetch(ctx context.Context, since time.Time) ([]model.RawListing, error) {
	resp, err := get(ctx, a.client, a.Platform(), a.feedURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var feed wwrFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, parseErr(a.Platform(), err)
	}

	listings := make([]model.RawListing, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		company, title := splitFeedTitle(item.Title)

		listing := model.RawListing{
			Platform:    a.Platform(),
			Title:       title,
			Company:     company,
			Location:    item.Region,
			Description: item.Description,
			Tags:        item.Categories,
			URL:         item.Link,
		}

		if item.PubDate != "" {
			if t, err := time.Parse(time.RFC1123Z, item.PubDate); err == nil {
				listing.PostedAt = &t
			} else if t, err := time.Parse(time.RFC1123, item.PubDate); err == nil {
				listing.PostedAt = &t
			}
		}

		if !postedSince(listing.PostedAt, since) {
			continue
		}
		listings = append(listings, listing)
	}

	return listings, nil
}

// splitFeedTitle splits WWR's "Company: Job Title" convention. Titles with
// no separator come back with an empty company; the normalizer drops those
// as incomplete.
func splitFeedTitle(s string) (company, title string) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return "", strings.TrimSpace(s)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
