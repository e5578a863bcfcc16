// Package dashboard assembles the portfolio report from a Source. Per-system
// failures degrade that system's row; only a failure to list systems fails
// the build.
package dashboard

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/watchgraph/internal/compliance"
	"github.com/dshills/watchgraph/internal/dataset"
	"github.com/dshills/watchgraph/internal/schema"
)

// DefaultConcurrency bounds in-flight requirement fetches when Options leaves
// it unset.
const DefaultConcurrency = 8

// Source supplies systems and their mappings. *api.Client satisfies it.
type Source interface {
	ListSystems(ctx context.Context) ([]schema.System, error)
	ListRequirements(ctx context.Context, systemID string) ([]schema.Mapping, error)
}

// Options controls Build.
type Options struct {
	Tool         string
	Version      string
	Label        string        // echoed as DashboardReport.Source
	Concurrency  int           // 0 means DefaultConcurrency
	FetchTimeout time.Duration // per-system; 0 means none
	Now          func() time.Time
}

// Build lists systems, fetches every system's mappings with bounded
// concurrency and aggregates them. Rows are sorted by system name.
func Build(ctx context.Context, src Source, opts Options) (*schema.DashboardReport, error) {
	systems, err := src.ListSystems(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing systems: %w", err)
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	rows := make([]schema.SystemRow, len(systems))
	warns := make([][]schema.Warning, len(systems))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, sys := range systems {
		g.Go(func() error {
			rows[i], warns[i] = loadRow(ctx, src, sys, opts.FetchTimeout)
			return nil
		})
	}
	_ = g.Wait() // loadRow never fails; failures become warnings
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Or(
			cmp.Compare(rows[a].System.Name, rows[b].System.Name),
			cmp.Compare(rows[a].System.ID, rows[b].System.ID),
		)
	})

	report := &schema.DashboardReport{
		Tool:     opts.Tool,
		Version:  opts.Version,
		Source:   opts.Label,
		Systems:  make([]schema.SystemRow, 0, len(rows)),
		Warnings: []schema.Warning{},
	}
	snapshots := make([]schema.Snapshot, 0, len(rows))
	for _, i := range order {
		report.Systems = append(report.Systems, rows[i])
		report.Warnings = append(report.Warnings, warns[i]...)
		snapshots = append(snapshots, rows[i].Snapshot)
	}
	report.Portfolio = compliance.ComputePortfolio(len(systems), snapshots)
	report.Band = schema.BandFor(report.Portfolio.OverallCompliancePercentage)

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	report.GeneratedAt = now().UTC()
	return report, nil
}

// loadRow fetches and aggregates one system. A failed fetch yields an empty,
// degraded snapshot; invalid statuses are dropped with one warning each.
func loadRow(ctx context.Context, src Source, sys schema.System, timeout time.Duration) (schema.SystemRow, []schema.Warning) {
	fctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	row := schema.SystemRow{System: sys}
	var warns []schema.Warning

	mappings, err := src.ListRequirements(fctx, sys.ID)
	if err != nil {
		row.Degraded = true
		warns = append(warns, schema.Warning{
			SystemID: sys.ID,
			Message:  fmt.Sprintf("requirements unavailable: %v", err),
		})
	}

	valid, invalid := compliance.Partition(mappings)
	for _, e := range invalid {
		warns = append(warns, schema.Warning{SystemID: sys.ID, Message: e.Error()})
	}
	if len(invalid) > 0 {
		row.Degraded = true
	}

	// Partition guarantees every status in valid is recognised.
	snap, _ := compliance.ComputeSystem(valid)
	snap.SystemID = sys.ID
	row.Snapshot = snap
	row.Band = schema.BandFor(snap.CompliancePercentage)
	return row, warns
}

// datasetSource serves a loaded dataset as a Source.
type datasetSource struct {
	systems  []schema.System
	bySystem map[string][]schema.Mapping
}

// FromDataset adapts an offline dataset to Source.
func FromDataset(ds *dataset.Dataset) Source {
	return &datasetSource{systems: ds.Systems, bySystem: ds.BySystem()}
}

func (d *datasetSource) ListSystems(context.Context) ([]schema.System, error) {
	return slices.Clone(d.systems), nil
}

func (d *datasetSource) ListRequirements(_ context.Context, systemID string) ([]schema.Mapping, error) {
	ms, ok := d.bySystem[systemID]
	if !ok {
		return nil, fmt.Errorf("system %q not in dataset", systemID)
	}
	return slices.Clone(ms), nil
}
