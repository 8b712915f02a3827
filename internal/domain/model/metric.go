package model

import "time"

// MetricType identifies a derived per-repository metric computed from
// snapshots after each fetch.
type MetricType string

const (
	MetricStarsDelta7d  MetricType = "stars_delta_7d"
	MetricStarsDelta30d MetricType = "stars_delta_30d"
	MetricVelocity      MetricType = "velocity"     // stars per day over the trailing week
	MetricAcceleration  MetricType = "acceleration" // week-over-week velocity change ratio
	MetricTrend         MetricType = "trend"        // -1 declining, 0 stable, 1 growing
)

// KnownMetricType reports whether t is one of the metric types the
// analyzer produces. Alert rules referencing anything else are rejected.
func KnownMetricType(t MetricType) bool {
	switch t {
	case MetricStarsDelta7d, MetricStarsDelta30d, MetricVelocity, MetricAcceleration, MetricTrend:
		return true
	}
	return false
}

// Metric is the latest value of one derived metric for one repository.
// There is at most one row per (repository, type); recomputation upserts.
type Metric struct {
	RepoID       int64
	Type         MetricType
	Value        float64
	CalculatedAt time.Time
}
