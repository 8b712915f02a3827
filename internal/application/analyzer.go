// Package application contains use-case orchestration services.
package application

import (
	"context"
	"log/slog"
	"math"
	"time"

	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

const (
	day = 24 * time.Hour

	// Velocities below this magnitude are treated as zero when computing
	// week-over-week acceleration.
	nearZeroVelocity = 0.001

	trendGrowthVelocity  = 0.5
	trendDeclineVelocity = -0.5
	trendDeclineAccel    = -0.3
	trendGrowthAccelMin  = -0.1
)

// Analyzer derives per-repository growth metrics from the snapshot series
// and upserts them into the metric store after each fetch.
type Analyzer struct {
	snapshots driven.SnapshotStore
	metrics   driven.MetricStore
}

// NewAnalyzer creates a new Analyzer.
func NewAnalyzer(snapshots driven.SnapshotStore, metrics driven.MetricStore) *Analyzer {
	return &Analyzer{snapshots: snapshots, metrics: metrics}
}

// Recalculate computes and stores all derived metrics for one repository.
// Metrics whose windows the snapshot series cannot yet span are left at
// their previous values. Fewer than two snapshots is nothing-to-do, not
// an error.
func (a *Analyzer) Recalculate(ctx context.Context, repoID int64, now time.Time) error {
	history, err := a.snapshots.History(ctx, repoID)
	if err != nil {
		return err
	}
	if len(history) < 2 {
		slog.Debug("not enough snapshots for metrics", "repo_id", repoID, "snapshots", len(history))
		return nil
	}

	var computed []model.Metric
	add := func(t model.MetricType, value float64) {
		computed = append(computed, model.Metric{
			RepoID: repoID, Type: t, Value: value, CalculatedAt: now,
		})
	}

	var velocity, accel *float64

	if delta, ok := deltaOver(history, 7*day); ok {
		add(model.MetricStarsDelta7d, float64(delta))
		v := float64(delta) / 7
		velocity = &v
		add(model.MetricVelocity, v)
	}
	if delta, ok := deltaOver(history, 30*day); ok {
		add(model.MetricStarsDelta30d, float64(delta))
	}
	if acc, ok := acceleration(history); ok {
		accel = &acc
		add(model.MetricAcceleration, acc)
	}
	add(model.MetricTrend, float64(computeTrend(velocity, accel)))

	for _, metric := range computed {
		if err := a.metrics.Upsert(ctx, metric); err != nil {
			return err
		}
	}

	return nil
}

// deltaOver returns the star growth between the latest snapshot and the most
// recent snapshot captured at least window before it. The second return is
// false when the series does not yet span the window.
func deltaOver(history []model.Snapshot, window time.Duration) (int, bool) {
	latest := history[len(history)-1]
	baseline, ok := snapshotAtOrBefore(history, latest.CapturedAt.Add(-window))
	if !ok {
		return 0, false
	}
	return latest.Stars - baseline.Stars, true
}

// snapshotAtOrBefore returns the most recent snapshot captured at or before t.
func snapshotAtOrBefore(history []model.Snapshot, t time.Time) (model.Snapshot, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].CapturedAt.After(t) {
			return history[i], true
		}
	}
	return model.Snapshot{}, false
}

// acceleration compares this week's velocity to last week's and returns the
// relative change. A near-zero previous week maps to ±1 (strong move from a
// flat baseline) or 0 (both flat) instead of dividing by zero.
func acceleration(history []model.Snapshot) (float64, bool) {
	latest := history[len(history)-1]

	weekAgo, ok := snapshotAtOrBefore(history, latest.CapturedAt.Add(-7*day))
	if !ok {
		return 0, false
	}
	twoWeeksAgo, ok := snapshotAtOrBefore(history, latest.CapturedAt.Add(-14*day))
	if !ok {
		return 0, false
	}
	if weekAgo.ID == twoWeeksAgo.ID {
		return 0, false
	}

	thisWeek := float64(latest.Stars-weekAgo.Stars) / 7
	lastWeek := float64(weekAgo.Stars-twoWeeksAgo.Stars) / 7

	if math.Abs(lastWeek) < nearZeroVelocity {
		switch {
		case thisWeek > nearZeroVelocity:
			return 1, true
		case thisWeek < -nearZeroVelocity:
			return -1, true
		default:
			return 0, true
		}
	}

	return (thisWeek - lastWeek) / math.Abs(lastWeek), true
}

// computeTrend classifies growth direction: 1 growing, 0 stable, -1 declining.
func computeTrend(velocity, accel *float64) int {
	if velocity == nil {
		return 0
	}

	if *velocity > trendGrowthVelocity && (accel == nil || *accel > trendGrowthAccelMin) {
		return 1
	}
	if *velocity < trendDeclineVelocity || (accel != nil && *accel < trendDeclineAccel) {
		return -1
	}
	return 0
}
