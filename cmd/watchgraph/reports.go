package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/watchgraph/internal/compliance"
	"github.com/dshills/watchgraph/internal/dashboard"
	"github.com/dshills/watchgraph/internal/dataset"
	"github.com/dshills/watchgraph/internal/redact"
	"github.com/dshills/watchgraph/internal/render"
	"github.com/dshills/watchgraph/internal/schema"
)

func newDashboardCmd(g *globalFlags) *cobra.Command {
	var failUnder float64
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show portfolio compliance across all registered systems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd.Context(), g, failUnder)
		},
	}
	cmd.Flags().Float64Var(&failUnder, "fail-under", 0, "Exit 2 if overall compliance is below this percentage")
	return cmd
}

func runDashboard(ctx context.Context, g *globalFlags, failUnder float64) error {
	if err := validateFailUnder(failUnder); err != nil {
		return err
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	r, err := g.connect(cfg)
	if err != nil {
		return err
	}
	defer r.persist()

	g.logger.Info("building dashboard", slog.String("api_url", cfg.APIURL), slog.Int("concurrency", cfg.Concurrency))
	report, err := dashboard.Build(ctx, r.client, dashboard.Options{
		Tool:         toolName,
		Version:      version,
		Label:        cfg.APIURL,
		Concurrency:  cfg.Concurrency,
		FetchTimeout: cfg.Timeout,
	})
	if err != nil {
		return remoteError("loading dashboard", err)
	}
	for _, w := range report.Warnings {
		g.logger.Warn("degraded system", slog.String("system_id", w.SystemID), slog.String("message", w.Message))
	}
	if err := g.emitDashboard(cfg.Format, report); err != nil {
		return err
	}
	return checkThreshold(report.Portfolio.OverallCompliancePercentage, failUnder)
}

func newReportCmd(g *globalFlags) *cobra.Command {
	var failUnder float64
	cmd := &cobra.Command{
		Use:   "report <dataset-file>",
		Short: "Aggregate an exported dataset (JSON or YAML) offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), g, args[0], failUnder)
		},
	}
	cmd.Flags().Float64Var(&failUnder, "fail-under", 0, "Exit 2 if overall compliance is below this percentage")
	return cmd
}

func runReport(ctx context.Context, g *globalFlags, path string, failUnder float64) error {
	if err := validateFailUnder(failUnder); err != nil {
		return err
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	g.logger.Info("loading dataset", slog.String("path", path))
	ds, err := dataset.Load(path)
	if err != nil {
		return codeError(exitInput, "loading dataset: %s", err)
	}

	report, err := dashboard.Build(ctx, dashboard.FromDataset(ds), dashboard.Options{
		Tool:        toolName,
		Version:     version,
		Label:       fmt.Sprintf("%s (%s)", ds.Path, ds.Hash),
		Concurrency: cfg.Concurrency,
	})
	if err != nil {
		return codeError(exitGeneric, "building report: %s", err)
	}
	if err := g.emitDashboard(cfg.Format, report); err != nil {
		return err
	}
	return checkThreshold(report.Portfolio.OverallCompliancePercentage, failUnder)
}

func (g *globalFlags) emitDashboard(format string, report *schema.DashboardReport) error {
	if g.redact {
		redact.Dashboard(report)
	}
	renderer, err := render.NewRenderer(format)
	if err != nil {
		return codeError(exitInput, "invalid format: %s", err)
	}
	out, err := renderer.Dashboard(report)
	if err != nil {
		return codeError(exitGeneric, "rendering output: %s", err)
	}
	return g.writeOutput(out)
}

type systemFlags struct {
	query  string
	status string
}

func newSystemCmd(g *globalFlags) *cobra.Command {
	var flags systemFlags
	cmd := &cobra.Command{
		Use:   "system <system-id>",
		Short: "Show one system's compliance and its requirements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSystem(cmd.Context(), g, args[0], flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.query, "query", "", "Case-insensitive search over title, article and description")
	f.StringVar(&flags.status, "status", "all", "Show only requirements with this status, or all")
	return cmd
}

func runSystem(ctx context.Context, g *globalFlags, systemID string, flags systemFlags) error {
	status := schema.Status(flags.status)
	if !compliance.IsValidFilterStatus(status) {
		return codeError(exitInput, "--status must be all, not_started, in_progress, completed or non_compliant, got %q", flags.status)
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	r, err := g.connect(cfg)
	if err != nil {
		return err
	}
	defer r.persist()

	sys, err := r.client.GetSystem(ctx, systemID)
	if err != nil {
		return remoteError("loading system", err)
	}
	mappings, err := r.client.ListRequirements(ctx, systemID)
	if err != nil {
		return remoteError("loading requirements", err)
	}

	report := buildSystemReport(sys, mappings, schema.Filter{Query: flags.query, Status: status})
	for _, w := range report.Warnings {
		g.logger.Warn("dropped mapping", slog.String("message", w.Message))
	}

	if g.redact {
		redact.SystemReport(report)
	}
	renderer, err := render.NewRenderer(cfg.Format)
	if err != nil {
		return codeError(exitInput, "invalid format: %s", err)
	}
	out, err := renderer.System(report)
	if err != nil {
		return codeError(exitGeneric, "rendering output: %s", err)
	}
	return g.writeOutput(out)
}

// buildSystemReport aggregates every valid mapping and then applies the
// filter; the snapshot never depends on the filter.
func buildSystemReport(sys schema.System, mappings []schema.Mapping, filter schema.Filter) *schema.SystemReport {
	valid, invalid := compliance.Partition(mappings)
	warnings := make([]schema.Warning, 0, len(invalid))
	for _, e := range invalid {
		warnings = append(warnings, schema.Warning{SystemID: sys.ID, Message: e.Error()})
	}
	snap, _ := compliance.ComputeSystem(valid)
	snap.SystemID = sys.ID

	shown := compliance.Filter(valid, filter.Query, filter.Status)
	return &schema.SystemReport{
		Tool:     toolName,
		Version:  version,
		System:   sys,
		Snapshot: snap,
		Band:     schema.BandFor(snap.CompliancePercentage),
		Filter:   filter,
		Shown:    len(shown),
		Total:    len(valid),
		Mappings: shown,
		Warnings: warnings,
	}
}

func newComplianceCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "compliance <system-id>...",
		Short: "Fetch server-computed compliance for one or more systems in one request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompliance(cmd.Context(), g, args)
		},
	}
}

func runCompliance(ctx context.Context, g *globalFlags, systemIDs []string) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	r, err := g.connect(cfg)
	if err != nil {
		return err
	}
	defer r.persist()

	results, err := r.client.BatchCompliance(ctx, systemIDs)
	if err != nil {
		return remoteError("loading compliance", err)
	}

	ids := make([]string, 0, len(systemIDs))
	seen := make(map[string]bool, len(systemIDs))
	for _, id := range systemIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := results[id]; !ok {
			g.logger.Warn("unknown system", slog.String("system_id", id))
			continue
		}
		ids = append(ids, id)
	}

	switch cfg.Format {
	case "json":
		return g.writeJSON(results)
	case "md":
		var buf bytes.Buffer
		buf.WriteString("| System | Requirements | Completed | Compliance | Band |\n|---|---|---|---|---|\n")
		for _, id := range ids {
			s := results[id]
			fmt.Fprintf(&buf, "| %s | %d | %d | %.1f%% | %s |\n", id, s.TotalRequirements, s.Completed(), s.CompliancePercentage, schema.BandFor(s.CompliancePercentage))
		}
		return g.writeOutput(buf.Bytes())
	default:
		var buf bytes.Buffer
		tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SYSTEM\tREQUIREMENTS\tCOMPLETED\tCOMPLIANCE\tBAND")
		for _, id := range ids {
			s := results[id]
			fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f%%\t%s\n", id, s.TotalRequirements, s.Completed(), s.CompliancePercentage, schema.BandFor(s.CompliancePercentage))
		}
		_ = tw.Flush()
		return g.writeOutput(buf.Bytes())
	}
}
