package model

import "time"

// SignalType classifies a detected early-growth signal.
type SignalType string

const (
	SignalSuddenSpike  SignalType = "sudden_spike"  // short-window delta far above trailing average
	SignalRisingStar   SignalType = "rising_star"   // small repo with sustained notable velocity
	SignalBreakout     SignalType = "breakout"      // growth after a flat or declining stretch
	SignalViralMention SignalType = "viral_mention" // high-scoring external mention
)

// Severity is the detector-assigned urgency bucket for a signal.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities for comparison: low < medium < high.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Signal is a detected growth anomaly for one repository. A signal stays
// active until ExpiresAt passes; re-detection of the same type refreshes
// the expiry instead of inserting a duplicate. Acknowledged is the only
// user-authored field and survives recomputation.
type Signal struct {
	ID             int64
	RepoID         int64
	Type           SignalType
	Severity       Severity
	Description    string
	VelocityValue  float64
	StarCount      int
	PercentileRank float64
	DetectedAt     time.Time
	ExpiresAt      time.Time
	Acknowledged   bool
	AcknowledgedAt *time.Time
}

// Active reports whether the signal has not yet expired at the given instant.
func (s Signal) Active(now time.Time) bool {
	return s.ExpiresAt.After(now)
}
