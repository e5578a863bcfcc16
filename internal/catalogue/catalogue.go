// Package catalogue holds the fixed catalogue of EU AI Act requirements and
// the rules that decide which of them apply to a system's risk tier.
package catalogue

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/watchgraph/internal/schema"
)

// Requirement is one regulatory obligation in the catalogue.
type Requirement struct {
	ID          string `json:"requirement_id" yaml:"requirement_id"`
	Article     string `json:"article" yaml:"article"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// Catalogue is the set of requirements that applies to one risk tier.
type Catalogue struct {
	Risk         schema.RiskCategory
	Requirements []Requirement
}

// Get returns the built-in catalogue for the given risk tier.
func Get(risk schema.RiskCategory) (*Catalogue, error) {
	switch risk {
	case schema.RiskHigh:
		return highRisk(), nil
	case schema.RiskLimited:
		return limitedRisk(), nil
	case schema.RiskMinimal:
		return minimalRisk(), nil
	case schema.RiskUnacceptable:
		return unacceptableRisk(), nil
	default:
		return nil, fmt.Errorf("unknown risk category %q: valid categories are unacceptable, high, limited, minimal", risk)
	}
}

// All returns every requirement in the catalogue once, ordered by tier
// (unacceptable, high, limited, minimal) and then by article.
func All() []Requirement {
	seen := make(map[string]bool)
	var out []Requirement
	for _, c := range []*Catalogue{unacceptableRisk(), highRisk(), limitedRisk(), minimalRisk()} {
		for _, r := range c.Requirements {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	return out
}

// Lookup finds a requirement by id, case-insensitively.
func Lookup(id string) (Requirement, bool) {
	for _, r := range All() {
		if strings.EqualFold(r.ID, id) {
			return r, true
		}
	}
	return Requirement{}, false
}

// Assign turns the catalogue into not_started mappings for systemID. newID
// supplies mapping ids so callers control the id scheme.
func (c *Catalogue) Assign(systemID string, now time.Time, newID func() string) []schema.Mapping {
	out := make([]schema.Mapping, 0, len(c.Requirements))
	for _, r := range c.Requirements {
		out = append(out, schema.Mapping{
			MappingID:     newID(),
			SystemID:      systemID,
			RequirementID: r.ID,
			Article:       r.Article,
			Title:         r.Title,
			Description:   r.Description,
			Status:        schema.StatusNotStarted,
			UpdatedAt:     now,
		})
	}
	return out
}
