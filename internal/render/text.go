package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/watchgraph/internal/schema"
)

var (
	colorGood  = lipgloss.Color("#2CD7C7")
	colorFair  = lipgloss.Color("#F4D03F")
	colorPoor  = lipgloss.Color("#E74C3C")
	colorMuted = lipgloss.Color("#2C4A54")
)

var styles = struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Muted   lipgloss.Style
	Warning lipgloss.Style
	Band    map[schema.Band]lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorGood),
	Header:  lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Warning: lipgloss.NewStyle().Foreground(colorFair),
	Band: map[schema.Band]lipgloss.Style{
		schema.BandGood: lipgloss.NewStyle().Foreground(colorGood),
		schema.BandFair: lipgloss.NewStyle().Foreground(colorFair),
		schema.BandPoor: lipgloss.NewStyle().Foreground(colorPoor).Bold(true),
	},
}

type textRenderer struct{}

func banded(b schema.Band, pct float64) string {
	return styles.Band[b].Render(fmt.Sprintf("%5.1f%%", pct))
}

func (r *textRenderer) Dashboard(report *schema.DashboardReport) ([]byte, error) {
	var sb strings.Builder
	p := report.Portfolio
	sb.WriteString(styles.Title.Render("WatchGraph compliance") + "\n")
	fmt.Fprintf(&sb, "Overall %s  %d systems, %d/%d requirements completed\n\n",
		banded(report.Band, p.OverallCompliancePercentage), p.TotalSystems, p.CompletedRequirements, p.TotalRequirements)

	if len(report.Systems) == 0 {
		sb.WriteString(styles.Muted.Render("No systems registered.") + "\n")
	} else {
		nameW := len("SYSTEM")
		for _, row := range report.Systems {
			nameW = max(nameW, lipgloss.Width(row.System.Name))
		}
		sb.WriteString(styles.Header.Render(fmt.Sprintf("%-*s  %-12s  %9s  %s", nameW, "SYSTEM", "RISK", "DONE", "COMPLIANCE")) + "\n")
		for _, row := range report.Systems {
			mark := ""
			if row.Degraded {
				mark = " " + styles.Warning.Render("!")
			}
			done := fmt.Sprintf("%d/%d", row.Snapshot.Completed(), row.Snapshot.TotalRequirements)
			fmt.Fprintf(&sb, "%s%s  %-12s  %9s  %s%s\n",
				row.System.Name, strings.Repeat(" ", nameW-lipgloss.Width(row.System.Name)),
				row.System.RiskCategory, done, banded(row.Band, row.Snapshot.CompliancePercentage), mark)
		}
	}

	writeWarnings(&sb, report.Warnings)
	return []byte(sb.String()), nil
}

func (r *textRenderer) System(report *schema.SystemReport) ([]byte, error) {
	var sb strings.Builder
	s := report.System
	snap := report.Snapshot
	sb.WriteString(styles.Title.Render(s.Name) + styles.Muted.Render("  "+s.ID) + "\n")
	fmt.Fprintf(&sb, "Risk %s  Organization %s\n", s.RiskCategory, s.Organization)
	fmt.Fprintf(&sb, "Compliance %s  %d of %d requirements complete\n",
		banded(report.Band, snap.CompliancePercentage), snap.Completed(), snap.TotalRequirements)
	for _, st := range schema.AllStatuses() {
		fmt.Fprintf(&sb, "  %-14s %d\n", st, snap.StatusBreakdown[st])
	}

	fmt.Fprintf(&sb, "\nShowing %d of %d requirements%s\n", report.Shown, report.Total, filterLabel(report.Filter))
	for _, m := range report.Mappings {
		fmt.Fprintf(&sb, "  %-10s %-14s %s\n", m.Article, m.Status, m.Title)
		if m.Notes != "" {
			sb.WriteString(styles.Muted.Render("             "+strings.ReplaceAll(m.Notes, "\n", " ")) + "\n")
		}
	}

	writeWarnings(&sb, report.Warnings)
	return []byte(sb.String()), nil
}

func writeWarnings(sb *strings.Builder, warns []schema.Warning) {
	if len(warns) == 0 {
		return
	}
	sb.WriteString("\n" + styles.Warning.Render(fmt.Sprintf("%d warning(s)", len(warns))) + "\n")
	for _, w := range warns {
		if w.SystemID != "" {
			fmt.Fprintf(sb, "  %s: %s\n", w.SystemID, w.Message)
			continue
		}
		fmt.Fprintf(sb, "  %s\n", w.Message)
	}
}
