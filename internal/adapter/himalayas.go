package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

const himalayasDefaultURL = "https://himalayas.app/jobs/api"

// himalayasResponse mirrors the Himalayas jobs API.
type himalayasResponse struct {
	Jobs []himalayasJob `json:"jobs"`
}

type himalayasJob struct {
	Title                string   `json:"title"`
	CompanyName          string   `json:"companyName"`
	LocationRestrictions []string `json:"locationRestrictions"`
	Description          string   `json:"description"`
	MinSalary            float64  `json:"minSalary"`
	MaxSalary            float64  `json:"maxSalary"`
	Seniority            []string `json:"seniority"`
	Categories           []string `json:"categories"`
	ApplicationLink      string   `json:"applicationLink"`
	PubDate              int64    `json:"pubDate"` // unix seconds
}

// HimalayasAdapter fetches jobs from the Himalayas public JSON API.
type HimalayasAdapter struct {
	baseURL string
	client  *http.Client
}

var _ model.SourceAdapter = (*HimalayasAdapter)(nil)

// NewHimalayasAdapter creates the adapter. baseURL may be empty to use the
// public endpoint.
func NewHimalayasAdapter(baseURL string, client *http.Client) *HimalayasAdapter {
	if baseURL == "" {
		baseURL = himalayasDefaultURL
	}
	return &HimalayasAdapter{baseURL: baseURL, client: client}
}

func (a *HimalayasAdapter) Platform() string { return "himalayas" }

// Fetch retrieves the feed and keeps jobs published at or after since.
func (a *HimalayasAdapter) Fetch(ctx context.Context, since time.Time) ([]model.RawListing, error) {
	resp, err := get(ctx, a.client, a.Platform(), a.baseURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var hr himalayasResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return nil, parseErr(a.Platform(), err)
	}

	listings := make([]model.RawListing, 0, len(hr.Jobs))
	for _, j := range hr.Jobs {
		listing := model.RawListing{
			Platform:    a.Platform(),
			Title:       j.Title,
			Company:     j.CompanyName,
			Location:    strings.Join(j.LocationRestrictions, ", "),
			Description: j.Description,
			Tags:        append(append([]string{}, j.Categories...), j.Seniority...),
			URL:         j.ApplicationLink,
		}

		if j.MinSalary > 0 || j.MaxSalary > 0 {
			listing.SalaryText = formatSalaryRange(int(j.MinSalary), int(j.MaxSalary))
		}

		if j.PubDate > 0 {
			t := time.Unix(j.PubDate, 0).UTC()
			listing.PostedAt = &t
		}

		if !postedSince(listing.PostedAt, since) {
			continue
		}
		listings = append(listings, listing)
	}

	return listings, nil
}
