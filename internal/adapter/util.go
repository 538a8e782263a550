package adapter

import "fmt"

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// formatSalaryRange renders a numeric USD range the way boards print them,
// so the normalizer sees one consistent raw shape.
func formatSalaryRange(min, max int) string {
	switch {
	case min > 0 && max > 0:
		return fmt.Sprintf("$%d-$%d", min, max)
	case min > 0:
		return fmt.Sprintf("$%d", min)
	case max > 0:
		return fmt.Sprintf("$%d", max)
	default:
		return ""
	}
}
