// Package dedupe collapses postings that share the case-insensitive
// (title, company) natural key, within a run and against the store. The
// key is deliberately coarse: a rare false positive between two distinct
// postings with the same title and company is accepted in exchange for a
// cheap, deterministic comparison.
package dedupe

import (
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

// Key is the natural dedup key.
type Key struct {
	Title   string
	Company string
}

// KeyOf returns the natural key for a posting.
func KeyOf(p model.JobPosting) Key {
	title, company := p.NaturalKey()
	return Key{Title: title, Company: company}
}

// Collapse merges postings that share a natural key into one record each.
// Results from different adapters arrive in arbitrary completion order, so
// Merge is commutative and Collapse is insertion-order-independent apart
// from the ordering of the returned slice, which follows first appearance.
func Collapse(postings []model.JobPosting) []model.JobPosting {
	byKey := make(map[Key]model.JobPosting, len(postings))
	var order []Key
	for _, p := range postings {
		k := KeyOf(p)
		existing, ok := byKey[k]
		if !ok {
			byKey[k] = p
			order = append(order, k)
			continue
		}
		byKey[k] = Merge(existing, p)
	}

	out := make([]model.JobPosting, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k])
	}
	return out
}

// Merge combines two postings for the same natural key. The record with
// more populated optional fields wins as the base; timestamps always take
// the most recent non-null value, and first-seen the earliest. The result
// is independent of argument order.
func Merge(a, b model.JobPosting) model.JobPosting {
	base, other := a, b
	sa, sb := completeness(a), completeness(b)
	if sb > sa || (sb == sa && KeyTieBreak(a, b)) {
		base, other = b, a
	}

	merged := base

	// Fill gaps in the winner from the loser.
	if merged.Description == "" {
		merged.Description = other.Description
	}
	if merged.Salary.Unspecified && !other.Salary.Unspecified {
		merged.Salary = other.Salary
	}
	if len(merged.Technologies) == 0 {
		merged.Technologies = other.Technologies
	}
	if merged.Experience == model.ExperienceUnknown || merged.Experience == "" {
		merged.Experience = other.Experience
	}
	if merged.URL == "" {
		merged.URL = other.URL
	}
	if merged.Location == "" || (merged.LowConfidenceLocation && !other.LowConfidenceLocation && other.Location != "") {
		merged.Location = other.Location
		merged.LowConfidenceLocation = other.LowConfidenceLocation
	}

	merged.PostedAt = latestTime(a.PostedAt, b.PostedAt)
	if !a.FirstSeen.IsZero() && (b.FirstSeen.IsZero() || a.FirstSeen.Before(b.FirstSeen)) {
		merged.FirstSeen = a.FirstSeen
	} else {
		merged.FirstSeen = b.FirstSeen
	}
	if a.LastSeen.After(b.LastSeen) {
		merged.LastSeen = a.LastSeen
	} else {
		merged.LastSeen = b.LastSeen
	}

	// Identity and user state stick with whichever record has them.
	if merged.ID == "" {
		merged.ID = other.ID
	}
	merged.Saved = a.Saved || b.Saved

	return merged
}

// KeyTieBreak makes Merge deterministic when completeness scores tie: the
// record whose source sorts lower wins, independent of argument order.
func KeyTieBreak(a, b model.JobPosting) bool {
	if a.Source != b.Source {
		return b.Source < a.Source
	}
	return b.URL < a.URL
}

// completeness scores the populated optional fields: salary, description
// length, technologies, location confidence, posted date.
func completeness(p model.JobPosting) int {
	score := 0
	if !p.Salary.Unspecified {
		score += 3
	}
	if len(p.Description) > 200 {
		score += 2
	} else if p.Description != "" {
		score++
	}
	if len(p.Technologies) > 0 {
		score += 2
	}
	if p.PostedAt != nil {
		score++
	}
	if p.Location != "" && !p.LowConfidenceLocation {
		score++
	}
	if p.Experience != model.ExperienceUnknown && p.Experience != "" {
		score++
	}
	return score
}

// Decision says what Reconcile decided for one incoming posting.
type Decision int

const (
	// Insert means no stored posting matches the natural key.
	Insert Decision = iota
	// UpdateLastSeen means the stored record already covers the incoming
	// one; only the seen/posted timestamps move forward. Re-posted jobs
	// (same key, newer posted date) land here and never create a new row.
	UpdateLastSeen
	// MergeRecords means the incoming posting carries new material that
	// must be merged into the stored record.
	MergeRecords
)

// Reconcile decides how an incoming posting relates to the stored record
// with the same natural key (existing == nil means no match). The returned
// posting is what should be upserted. Reconciling the same input twice is
// idempotent beyond the LastSeen timestamp.
func Reconcile(incoming model.JobPosting, existing *model.JobPosting) (Decision, model.JobPosting) {
	if existing == nil {
		return Insert, incoming
	}

	merged := Merge(*existing, incoming)
	// Identity is stable across re-scrapes of the same key.
	merged.ID = existing.ID
	merged.FirstSeen = existing.FirstSeen
	merged.Saved = existing.Saved || incoming.Saved

	if onlyTimestampsChanged(*existing, merged) {
		return UpdateLastSeen, merged
	}
	return MergeRecords, merged
}

func onlyTimestampsChanged(before, after model.JobPosting) bool {
	a, b := before, after
	a.LastSeen, b.LastSeen = before.LastSeen, before.LastSeen
	a.PostedAt, b.PostedAt = nil, nil
	return equalPostings(a, b)
}

func equalPostings(a, b model.JobPosting) bool {
	if a.ID != b.ID || a.Title != b.Title || a.Company != b.Company ||
		a.Location != b.Location || a.Description != b.Description ||
		a.URL != b.URL || a.Source != b.Source || a.Saved != b.Saved ||
		a.Experience != b.Experience || a.Salary != b.Salary ||
		a.LowConfidenceLocation != b.LowConfidenceLocation ||
		len(a.Technologies) != len(b.Technologies) {
		return false
	}
	for i := range a.Technologies {
		if a.Technologies[i] != b.Technologies[i] {
			return false
		}
	}
	return true
}

// latestTime returns the most recent non-nil timestamp.
func latestTime(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.After(*b):
		return a
	default:
		return b
	}
}
