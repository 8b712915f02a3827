package model

import "time"

// HealthMetrics are the raw inputs to health scoring, fetched from the
// hosting provider at scoring time. The Has* booleans flag which optional
// groups actually had underlying data; sub-scores without data contribute
// zero to the weighted total rather than being dropped from the denominator.
type HealthMetrics struct {
	// Issue metrics.
	AvgIssueResponseHours float64
	HasIssueData          bool
	OpenIssues            int
	ClosedIssues          int

	// Pull request metrics.
	MergedPRs int
	ClosedPRs int // closed without merging
	OpenPRs   int

	// Release metrics.
	DaysSinceLastRelease int
	HasReleaseData       bool
	ReleasesLastYear     int

	// Contributor metrics.
	ContributorCount         int
	TopContributorPercentage float64

	// Documentation presence.
	HasReadme       bool
	HasLicense      bool
	HasContributing bool

	// Externally supplied dependency risk signal, 0-100. Zero with
	// HasDependencyData false means no data.
	DependencyScore   float64
	HasDependencyData bool

	// Recent star growth rate (stars/day), taken from the velocity metric.
	StarVelocity float64
}

// HealthScore is the composite 0-100 project health score for one
// repository. All seven sub-scores and the overall score are replaced
// wholesale on every recalculation; there is at most one row per repository.
type HealthScore struct {
	RepoID       int64
	OverallScore float64
	Grade        string

	IssueResponseScore  float64
	PRMergeScore        float64
	ReleaseCadenceScore float64
	BusFactorScore      float64
	DocumentationScore  float64
	DependencyScore     float64
	VelocityScore       float64

	CalculatedAt time.Time
}
