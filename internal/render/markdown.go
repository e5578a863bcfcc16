package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/dshills/watchgraph/internal/schema"
)

type markdownRenderer struct{}

var funcs = template.FuncMap{
	"pct":    func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
	"count":  func(b schema.StatusBreakdown, s string) int { return b[schema.Status(s)] },
	"cell":   mdCell,
	"filter": filterLabel,
}

var mdDashboard = template.Must(template.New("dashboard").Funcs(funcs).Parse(`# WatchGraph Compliance Dashboard

**Overall:** {{ pct .Portfolio.OverallCompliancePercentage }} ({{ .Band }})
**Systems:** {{ .Portfolio.TotalSystems }} | **Requirements:** {{ .Portfolio.TotalRequirements }} | **Completed:** {{ .Portfolio.CompletedRequirements }}
{{ if .Systems }}
| System | Risk | Organization | Completed | Total | Compliance | Band |
|---|---|---|---|---|---|---|
{{ range .Systems }}| {{ cell .System.Name }}{{ if .Degraded }} ⚠{{ end }} | {{ .System.RiskCategory }} | {{ cell .System.Organization }} | {{ .Snapshot.Completed }} | {{ .Snapshot.TotalRequirements }} | {{ pct .Snapshot.CompliancePercentage }} | {{ .Band }} |
{{ end }}{{ end }}{{ if .Warnings }}
## Warnings
{{ range .Warnings }}
- {{ if .SystemID }}` + "`{{ .SystemID }}`" + `: {{ end }}{{ .Message }}{{ end }}
{{ end }}
---
*{{ .Tool }} {{ .Version }} | source: {{ .Source }} | generated {{ .GeneratedAt.Format "2006-01-02T15:04:05Z07:00" }}*
`))

var mdSystem = template.Must(template.New("system").Funcs(funcs).Parse(`# {{ .System.Name }}

**Risk:** {{ .System.RiskCategory }} | **Organization:** {{ .System.Organization }}{{ if .System.Department }} / {{ .System.Department }}{{ end }}
**Compliance:** {{ pct .Snapshot.CompliancePercentage }} ({{ .Band }}), {{ .Snapshot.Completed }} of {{ .Snapshot.TotalRequirements }} requirements complete
**Breakdown:** completed {{ count .Snapshot.StatusBreakdown "completed" }} | in progress {{ count .Snapshot.StatusBreakdown "in_progress" }} | not started {{ count .Snapshot.StatusBreakdown "not_started" }} | non-compliant {{ count .Snapshot.StatusBreakdown "non_compliant" }}

## Requirements ({{ .Shown }} of {{ .Total }}{{ filter .Filter }})
{{ if .Mappings }}
| Article | Title | Status | Notes |
|---|---|---|---|
{{ range .Mappings }}| {{ cell .Article }} | {{ cell .Title }} | {{ .Status }} | {{ cell .Notes }} |
{{ end }}{{ else }}
No requirements match.
{{ end }}{{ if .Warnings }}
## Warnings
{{ range .Warnings }}
- {{ .Message }}{{ end }}
{{ end }}`))

func (r *markdownRenderer) Dashboard(report *schema.DashboardReport) ([]byte, error) {
	return execute(mdDashboard, report)
}

func (r *markdownRenderer) System(report *schema.SystemReport) ([]byte, error) {
	return execute(mdSystem, report)
}

func execute(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// mdCell keeps free text from breaking a table row.
func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func filterLabel(f schema.Filter) string {
	var parts []string
	if f.Query != "" {
		parts = append(parts, fmt.Sprintf("query %q", f.Query))
	}
	if f.Status != "" && f.Status != schema.StatusAll {
		parts = append(parts, "status "+string(f.Status))
	}
	if len(parts) == 0 {
		return ""
	}
	return ", " + strings.Join(parts, ", ")
}
