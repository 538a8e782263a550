package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

const remoteOKDefaultURL = "https://remoteok.com/api"

// remoteOKJob mirrors one entry of the RemoteOK API response. The first
// array element is a legal notice object with none of these fields set.
type remoteOKJob struct {
	ID          string   `json:"id"`
	Company     string   `json:"company"`
	Position    string   `json:"position"`
	Tags        []string `json:"tags"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Date        string   `json:"date"` // RFC3339
	SalaryMin   int      `json:"salary_min"`
	SalaryMax   int      `json:"salary_max"`
	URL         string   `json:"url"`
	ApplyURL    string   `json:"apply_url"`
}

// RemoteOKAdapter fetches jobs from the RemoteOK public JSON API.
type RemoteOKAdapter struct {
	baseURL string
	client  *http.Client
}

var _ model.SourceAdapter = (*RemoteOKAdapter)(nil)

// NewRemoteOKAdapter creates the adapter. baseURL may be empty to use the
// public endpoint.
func NewRemoteOKAdapter(baseURL string, client *http.Client) *RemoteOKAdapter {
	if baseURL == "" {
		baseURL = remoteOKDefaultURL
	}
	return &RemoteOKAdapter{baseURL: baseURL, client: client}
}

func (a *RemoteOKAdapter) Platform() string { return "remoteok" }

// Fetch retrieves the full feed and keeps listings posted at or after since.
func (a *RemoteOKAdapter) Fetch(ctx context.Context, since time.Time) ([]model.RawListing, error) {
	resp, err := get(ctx, a.client, a.Platform(), a.baseURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var entries []remoteOKJob
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, parseErr(a.Platform(), err)
	}

	listings := make([]model.RawListing, 0, len(entries))
	for _, e := range entries {
		if e.Position == "" && e.Company == "" {
			// Legal-notice header element.
			continue
		}

		listing := model.RawListing{
			Platform:    a.Platform(),
			ExternalID:  e.ID,
			Title:       e.Position,
			Company:     e.Company,
			Location:    e.Location,
			Description: e.Description,
			Tags:        e.Tags,
			URL:         firstNonEmpty(e.ApplyURL, e.URL),
		}

		if e.SalaryMin > 0 || e.SalaryMax > 0 {
			listing.SalaryText = formatSalaryRange(e.SalaryMin, e.SalaryMax)
		}

		if e.Date != "" {
			if t, err := time.Parse(time.RFC3339, e.Date); err == nil {
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
