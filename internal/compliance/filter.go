package compliance

import (
	"strings"

	"github.com/dshills/watchgraph/internal/schema"
)

// Matches reports whether m passes a search. status "" or "all" matches every
// status; an empty query matches everything, otherwise it must be a
// case-insensitive substring of the title, article or description.
func Matches(m schema.Mapping, query string, status schema.Status) bool {
	return matchesStatus(m, status) && matchesQuery(m, strings.ToLower(query))
}

// Filter returns the mappings that pass Matches, in input order.
func Filter(mappings []schema.Mapping, query string, status schema.Status) []schema.Mapping {
	out := make([]schema.Mapping, 0, len(mappings))
	for _, m := range mappings {
		if Matches(m, query, status) {
			out = append(out, m)
		}
	}
	return out
}

// IsValidFilterStatus reports whether s can be used as a status filter.
func IsValidFilterStatus(s schema.Status) bool {
	return s == "" || s == schema.StatusAll || schema.IsValidStatus(s)
}

func matchesStatus(m schema.Mapping, status schema.Status) bool {
	return status == "" || status == schema.StatusAll || m.Status == status
}

// matchesQuery expects q already lower-cased.
func matchesQuery(m schema.Mapping, q string) bool {
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(m.Title), q) ||
		strings.Contains(strings.ToLower(m.Article), q) ||
		strings.Contains(strings.ToLower(m.Description), q)
}
