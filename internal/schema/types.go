package schema

import "time"

// Status is the single-valued compliance state of one requirement mapping.
type Status string

const (
	StatusNotStarted   Status = "not_started"
	StatusInProgress   Status = "in_progress"
	StatusCompleted    Status = "completed"
	StatusNonCompliant Status = "non_compliant"
)

// StatusAll is the filter value that matches every status. It is never a valid
// mapping status.
const StatusAll Status = "all"

// AllStatuses returns the four recognised statuses in display order.
func AllStatuses() []Status {
	return []Status{StatusNotStarted, StatusInProgress, StatusCompleted, StatusNonCompliant}
}

// IsValidStatus reports whether s is one of the four recognised statuses.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusNonCompliant:
		return true
	}
	return false
}

// RiskCategory is the EU AI Act risk tier of a system.
type RiskCategory string

const (
	RiskUnacceptable RiskCategory = "unacceptable"
	RiskHigh         RiskCategory = "high"
	RiskLimited      RiskCategory = "limited"
	RiskMinimal      RiskCategory = "minimal"
)

// IsValidRiskCategory reports whether r is one of the four risk tiers.
func IsValidRiskCategory(r RiskCategory) bool {
	switch r {
	case RiskUnacceptable, RiskHigh, RiskLimited, RiskMinimal:
		return true
	}
	return false
}

// System is a registered AI system. The core treats it as read-only input.
type System struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name" validate:"required,notblank"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	RiskCategory RiskCategory `json:"risk_category" yaml:"risk_category" validate:"required,riskcategory"`
	Organization string       `json:"organization" yaml:"organization" validate:"required,notblank"`
	Department   string       `json:"department,omitempty" yaml:"department,omitempty"`
	OwnerEmail   string       `json:"owner_email,omitempty" yaml:"owner_email,omitempty" validate:"omitempty,email"`
	CreatedAt    time.Time    `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Mapping links one system to one catalogue requirement and carries its status.
// Article, Title and Description are denormalised from the catalogue so that
// search does not need a second lookup.
type Mapping struct {
	MappingID     string    `json:"mapping_id" yaml:"mapping_id" validate:"required"`
	SystemID      string    `json:"system_id" yaml:"system_id" validate:"required"`
	RequirementID string    `json:"requirement_id,omitempty" yaml:"requirement_id,omitempty"`
	Article       string    `json:"article,omitempty" yaml:"article,omitempty"`
	Title         string    `json:"title,omitempty" yaml:"title,omitempty"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
	Status        Status    `json:"status" yaml:"status" validate:"required,status"`
	Notes         string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"updated_at"`
}

// StatusUpdate is the payload of a status mutation. A nil Notes leaves the
// existing notes untouched.
type StatusUpdate struct {
	Status Status  `json:"status" validate:"required,status"`
	Notes  *string `json:"notes,omitempty"`
}

// StatusBreakdown counts mappings per status. Every status key is present.
type StatusBreakdown map[Status]int

// Sum returns the total of all counts.
func (b StatusBreakdown) Sum() int {
	n := 0
	for _, c := range b {
		n += c
	}
	return n
}

// Snapshot is the derived compliance state of one system. It is recomputed on
// every call and never stored.
type Snapshot struct {
	SystemID             string          `json:"system_id,omitempty"`
	TotalRequirements    int             `json:"total_requirements"`
	StatusBreakdown      StatusBreakdown `json:"status_breakdown"`
	CompliancePercentage float64         `json:"compliance_percentage"`
}

// Completed returns the number of completed mappings in the snapshot.
func (s Snapshot) Completed() int {
	return s.StatusBreakdown[StatusCompleted]
}

// Portfolio is the requirement-weighted aggregate over many systems.
type Portfolio struct {
	TotalSystems                int     `json:"total_systems"`
	TotalRequirements           int     `json:"total_requirements"`
	CompletedRequirements       int     `json:"completed_requirements"`
	OverallCompliancePercentage float64 `json:"overall_compliance_percentage"`
}

// Band is a coarse grade of a compliance percentage used for display.
type Band string

const (
	BandGood Band = "good"
	BandFair Band = "fair"
	BandPoor Band = "poor"
)

// BandFor grades pct: ≥80 good, ≥50 fair, otherwise poor.
func BandFor(pct float64) Band {
	switch {
	case pct >= 80:
		return BandGood
	case pct >= 50:
		return BandFair
	default:
		return BandPoor
	}
}

// SystemRow pairs a system with its snapshot in a dashboard report.
type SystemRow struct {
	System   System   `json:"system"`
	Snapshot Snapshot `json:"compliance"`
	Band     Band     `json:"band"`
	Degraded bool     `json:"degraded,omitempty"`
}

// Warning records a per-system problem that degraded the report without
// failing it.
type Warning struct {
	SystemID string `json:"system_id,omitempty"`
	Message  string `json:"message"`
}

// DashboardReport is the portfolio view rendered by `watchgraph dashboard`
// and `watchgraph report`.
type DashboardReport struct {
	Tool        string      `json:"tool"`
	Version     string      `json:"version"`
	Source      string      `json:"source"`
	GeneratedAt time.Time   `json:"generated_at"`
	Portfolio   Portfolio   `json:"portfolio"`
	Band        Band        `json:"band"`
	Systems     []SystemRow `json:"systems"`
	Warnings    []Warning   `json:"warnings"`
}

// Filter echoes the search applied to a system report.
type Filter struct {
	Query  string `json:"query"`
	Status Status `json:"status"`
}

// SystemReport is the single-system view rendered by `watchgraph system`.
// Snapshot always reflects all mappings; Mappings holds only those that pass
// Filter.
type SystemReport struct {
	Tool     string    `json:"tool"`
	Version  string    `json:"version"`
	System   System    `json:"system"`
	Snapshot Snapshot  `json:"compliance"`
	Band     Band      `json:"band"`
	Filter   Filter    `json:"filter"`
	Shown    int       `json:"shown"`
	Total    int       `json:"total"`
	Mappings []Mapping `json:"mappings"`
	Warnings []Warning `json:"warnings"`
}

// DashboardStats is the server-side summary returned by /api/dashboard/stats.
type DashboardStats struct {
	TotalSystems    int                  `json:"total_systems"`
	SystemsByRisk   map[RiskCategory]int `json:"systems_by_risk"`
	Portfolio       Portfolio            `json:"portfolio"`
	StatusBreakdown StatusBreakdown      `json:"status_breakdown"`
}

// Evidence describes a file attached to a mapping. The blob itself lives in
// external storage.
type Evidence struct {
	ID         string    `json:"id"`
	MappingID  string    `json:"mapping_id"`
	FileName   string    `json:"file_name"`
	FileType   string    `json:"file_type"`
	FileSize   int64     `json:"file_size"`
	UploadedBy string    `json:"uploaded_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
