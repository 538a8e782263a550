package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jobsift/jobsift/internal/model"
)

var yearsPattern = regexp.MustCompile(`(\d+)\+?\s*(?:years|yrs)`)

// bucketExperience derives the seniority bucket from title keywords first,
// then years-of-experience phrases in the description, then tags.
func bucketExperience(title, description string, tags []string) model.ExperienceLevel {
	titleLower := strings.ToLower(title)

	switch {
	case containsAny(titleLower, "principal", "staff", "lead", "head of", "director", "architect"):
		return model.ExperienceLead
	case containsAny(titleLower, "senior", "sr.", "sr "):
		return model.ExperienceSenior
	case containsAny(titleLower, "junior", "jr.", "jr ", "entry level", "entry-level", "intern", "graduate"):
		return model.ExperienceJunior
	case containsAny(titleLower, "mid level", "mid-level", "intermediate"):
		return model.ExperienceMid
	}

	for _, tag := range tags {
		switch strings.ToLower(strings.TrimSpace(tag)) {
		case "senior":
			return model.ExperienceSenior
		case "junior", "entry level", "entry-level":
			return model.ExperienceJunior
		case "mid", "mid level", "mid-level":
			return model.ExperienceMid
		case "lead", "principal", "staff":
			return model.ExperienceLead
		}
	}

	if m := yearsPattern.FindStringSubmatch(strings.ToLower(description)); m != nil {
		years, err := strconv.Atoi(m[1])
		if err == nil {
			switch {
			case years >= 8:
				return model.ExperienceLead
			case years >= 5:
				return model.ExperienceSenior
			case years >= 2:
				return model.ExperienceMid
			default:
				return model.ExperienceJunior
			}
		}
	}

	return model.ExperienceUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
