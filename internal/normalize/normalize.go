// Package normalize canonicalizes raw listings into the shared JobPosting
// vocabulary: country names, technology names, salary currency/period, and
// experience-level buckets. All lookup tables come from configuration.
package normalize

import (
	"log/slog"
	"strings"
	"time"

	"github.com/jobsift/jobsift/internal/config"
	"github.com/jobsift/jobsift/internal/model"
)

// Normalizer maps RawListing to JobPosting using the configured tables.
type Normalizer struct {
	countries map[string]string // lower-cased source string -> canonical country
	tech      *techTable
	salary    *salaryParser
	logger    *slog.Logger
	now       func() time.Time
}

// New builds a Normalizer from the configured lookup tables.
func New(cfg config.NormalizeConfig, logger *slog.Logger) *Normalizer {
	countries := make(map[string]string, len(cfg.Countries))
	for k, v := range cfg.Countries {
		countries[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &Normalizer{
		countries: countries,
		tech:      newTechTable(cfg.TechSynonyms),
		salary:    newSalaryParser(cfg.ExchangeRates, cfg.ReferenceCurrency),
		logger:    logger,
		now:       time.Now,
	}
}

// Normalize converts one raw listing. Listings missing mandatory fields
// (title, company) fail with IncompleteDataError and are dropped by the
// caller; everything else degrades field by field.
func (n *Normalizer) Normalize(raw model.RawListing) (model.JobPosting, error) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return model.JobPosting{}, &model.IncompleteDataError{Platform: raw.Platform, Missing: "title", URL: raw.URL}
	}
	company := strings.TrimSpace(raw.Company)
	if company == "" {
		return model.JobPosting{}, &model.IncompleteDataError{Platform: raw.Platform, Missing: "company", URL: raw.URL}
	}

	now := n.now()
	posting := model.JobPosting{
		Title:       title,
		Company:     company,
		Description: strings.TrimSpace(raw.Description),
		Salary:      n.salary.parse(raw.SalaryText),
		PostedAt:    raw.PostedAt,
		Source:      raw.Platform,
		URL:         raw.URL,
		FirstSeen:   now,
		LastSeen:    now,
	}

	posting.Location, posting.LowConfidenceLocation = n.normalizeLocation(raw.Location)
	posting.Technologies = n.tech.canonicalize(raw.Tags)
	posting.Experience = bucketExperience(title, raw.Description, raw.Tags)

	return posting, nil
}

// normalizeLocation maps a free-text location through the country table.
// Remote phrasings collapse to the Remote sentinel; unmatched strings are
// preserved as-is with the low-confidence flag set.
func (n *Normalizer) normalizeLocation(location string) (string, bool) {
	trimmed := strings.TrimSpace(location)
	if trimmed == "" {
		return model.RemoteSentinel, false
	}

	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "remote") || strings.Contains(lower, "anywhere") || strings.Contains(lower, "worldwide") {
		return model.RemoteSentinel, false
	}

	if canonical, ok := n.countries[lower]; ok {
		return canonical, false
	}

	// Locations often arrive as "City, Country"; try the last segment.
	if i := strings.LastIndexByte(lower, ','); i >= 0 {
		if canonical, ok := n.countries[strings.TrimSpace(lower[i+1:])]; ok {
			return canonical, false
		}
	}

	return trimmed, true
}
