// Package compliance rolls per-requirement statuses up into system-level and
// portfolio-level compliance metrics.
//
// Every function is a pure computation over its arguments: no I/O, no package
// state beyond immutable tables. Callers may invoke them concurrently.
package compliance

import (
	"fmt"
	"math"
	"sort"

	"github.com/dshills/watchgraph/internal/schema"
)

// ComputeSystem computes the compliance snapshot of one system's mappings.
// All mappings are expected to share one system id; the snapshot takes its
// SystemID from the first mapping. Empty input yields a zero snapshot.
//
// Only completed mappings count toward the percentage. A mapping with an
// unrecognised status fails the whole call with *InvalidStatusError.
func ComputeSystem(mappings []schema.Mapping) (schema.Snapshot, error) {
	breakdown := newBreakdown()
	for _, m := range mappings {
		if !schema.IsValidStatus(m.Status) {
			return schema.Snapshot{}, &InvalidStatusError{MappingID: m.MappingID, SystemID: m.SystemID, Status: m.Status}
		}
		breakdown[m.Status]++
	}

	snap := schema.Snapshot{
		TotalRequirements:    len(mappings),
		StatusBreakdown:      breakdown,
		CompliancePercentage: Percentage(breakdown[schema.StatusCompleted], len(mappings)),
	}
	if len(mappings) > 0 {
		snap.SystemID = mappings[0].SystemID
	}
	return snap, nil
}

// ComputePortfolio aggregates per-system snapshots into a portfolio.
// totalSystems may exceed len(snapshots) when some systems have no snapshot.
//
// The overall percentage is weighted by requirement count and computed from
// raw completed/total counts, so the result does not depend on snapshot order
// or on the rounding of per-system percentages. Systems with zero
// requirements contribute nothing to either side of the ratio.
func ComputePortfolio(totalSystems int, snapshots []schema.Snapshot) schema.Portfolio {
	var total, completed int
	for _, s := range snapshots {
		total += s.TotalRequirements
		completed += s.Completed()
	}
	return schema.Portfolio{
		TotalSystems:                totalSystems,
		TotalRequirements:           total,
		CompletedRequirements:       completed,
		OverallCompliancePercentage: Percentage(completed, total),
	}
}

// ComputeMany computes one snapshot per system id. Each snapshot's SystemID is
// set from the map key, so systems with no mappings still carry their id.
// The first invalid status encountered (in system id order) fails the call.
func ComputeMany(bySystem map[string][]schema.Mapping) (map[string]schema.Snapshot, error) {
	ids := make([]string, 0, len(bySystem))
	for id := range bySystem {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]schema.Snapshot, len(bySystem))
	for _, id := range ids {
		snap, err := ComputeSystem(bySystem[id])
		if err != nil {
			return nil, fmt.Errorf("system %q: %w", id, err)
		}
		snap.SystemID = id
		out[id] = snap
	}
	return out, nil
}

// Partition splits mappings into those with a recognised status and one
// *InvalidStatusError per rejected record, preserving input order.
func Partition(mappings []schema.Mapping) (valid []schema.Mapping, invalid []error) {
	valid = make([]schema.Mapping, 0, len(mappings))
	for _, m := range mappings {
		if schema.IsValidStatus(m.Status) {
			valid = append(valid, m)
			continue
		}
		invalid = append(invalid, &InvalidStatusError{MappingID: m.MappingID, SystemID: m.SystemID, Status: m.Status})
	}
	return valid, invalid
}

// Percentage returns completed/total*100 rounded to one decimal place, half
// away from zero. A zero total yields 0.
func Percentage(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	// Scale by 1000 before dividing so the rounding step sees the exact
	// tenth-of-a-percent quotient.
	return math.Round(float64(completed)*1000/float64(total)) / 10
}

// GroupBySystem groups mappings by system id, preserving order within each group.
func GroupBySystem(mappings []schema.Mapping) map[string][]schema.Mapping {
	out := make(map[string][]schema.Mapping)
	for _, m := range mappings {
		out[m.SystemID] = append(out[m.SystemID], m)
	}
	return out
}

func newBreakdown() schema.StatusBreakdown {
	b := make(schema.StatusBreakdown, 4)
	for _, s := range schema.AllStatuses() {
		b[s] = 0
	}
	return b
}
