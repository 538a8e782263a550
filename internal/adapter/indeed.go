package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobsift/jobsift/internal/model"
)

const indeedDefaultURL = "https://www.indeed.com"

// IndeedAdapter scrapes the Indeed search results page for a configured
// query. Indeed has no public API, so this adapter parses job cards out of
// the HTML; a layout change surfaces as a non-transient parse error.
type IndeedAdapter struct {
	baseURL string
	query   string
	client  *http.Client
}

var _ model.SourceAdapter = (*IndeedAdapter)(nil)

// NewIndeedAdapter creates the adapter for one search query, e.g.
// "remote software engineer".
func NewIndeedAdapter(baseURL, query string, client *http.Client) *IndeedAdapter {
	if baseURL == "" {
		baseURL = indeedDefaultURL
	}
	return &IndeedAdapter{baseURL: baseURL, query: query, client: client}
}

func (a *IndeedAdapter) Platform() string { return "indeed" }

// Fetch scrapes the first results page for the configured query. Indeed
// does not expose posting timestamps in card markup reliably, so the since
// cursor only filters cards that carry a parseable relative age.
func (a *IndeedAdapter) Fetch(ctx context.Context, since time.Time) ([]model.RawListing, error) {
	searchURL := fmt.Sprintf("%s/jobs?q=%s&sc=0kf%%3Aattr(DSQF7)%%3B", a.baseURL, url.QueryEscape(a.query))

	resp, err := get(ctx, a.client, a.Platform(), searchURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, parseErr(a.Platform(), err)
	}

	// A verification interstitial serves valid HTML with no job cards but a
	// challenge form; treat that as bot detection, not an empty result.
	if doc.Find("#challenge-form, form[action*='captcha']").Length() > 0 {
		return nil, &model.AdapterError{
			Platform: a.Platform(),
			Kind:     model.FailureChallenge,
			Err:      fmt.Errorf("challenge page served for %q", a.query),
		}
	}

	cards := doc.Find("div.job_seen_beacon")
	if cards.Length() == 0 && doc.Find("[data-testid='no-results']").Length() == 0 {
		// Neither cards nor the explicit empty-state marker: the page
		// structure changed under us.
		return nil, parseErr(a.Platform(), fmt.Errorf("no job cards found in results markup"))
	}

	var listings []model.RawListing
	cards.Each(func(_ int, card *goquery.Selection) {
		title := strings.TrimSpace(card.Find("h2.jobTitle span[title]").First().Text())
		if title == "" {
			title = strings.TrimSpace(card.Find("h2.jobTitle").First().Text())
		}
		company := strings.TrimSpace(card.Find("[data-testid='company-name']").First().Text())
		location := strings.TrimSpace(card.Find("[data-testid='text-location']").First().Text())
		salary := strings.TrimSpace(card.Find("[data-testid='attribute_snippet_testid']").First().Text())
		snippet := strings.TrimSpace(card.Find("[data-testid='jobsnippet_footer'], .job-snippet").First().Text())

		href, _ := card.Find("h2.jobTitle a").First().Attr("href")
		jobKey, _ := card.Find("h2.jobTitle a").First().Attr("data-jk")

		listing := model.RawListing{
			Platform:    a.Platform(),
			ExternalID:  jobKey,
			Title:       title,
			Company:     company,
			Location:    location,
			Description: snippet,
			SalaryText:  salary,
			URL:         absoluteURL(a.baseURL, href),
		}

		if age := strings.TrimSpace(card.Find("[data-testid='myJobsStateDate'], .date").First().Text()); age != "" {
			if t, ok := parseRelativeAge(age, time.Now()); ok {
				listing.PostedAt = &t
			}
		}

		if postedSince(listing.PostedAt, since) {
			listings = append(listings, listing)
		}
	})

	return listings, nil
}

// absoluteURL resolves a card's relative href against the board base URL.
func absoluteURL(base, href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	return strings.TrimSuffix(base, "/") + href
}

// parseRelativeAge turns Indeed's "Posted 3 days ago" / "Today" strings into
// an absolute timestamp. Unknown phrasings report false.
func parseRelativeAge(s string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "today"), strings.Contains(lower, "just posted"):
		return now, true
	}

	var n int
	if _, err := fmt.Sscanf(lower, "posted %d day", &n); err == nil {
		return now.AddDate(0, 0, -n), true
	}
	if _, err := fmt.Sscanf(lower, "%d day", &n); err == nil {
		return now.AddDate(0, 0, -n), true
	}
	return time.Time{}, false
}
