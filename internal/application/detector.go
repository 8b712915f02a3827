package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

// Detection thresholds. These are tuning constants for the classifier, not
// per-call parameters.
const (
	risingStarMaxStars      = 5000
	risingStarMinVelocity   = 10.0
	risingStarVelocityRatio = 0.01

	suddenSpikeMultiplier  = 3.0
	suddenSpikeMinAbsolute = 100
	suddenSpikeWindow      = 30 // trailing snapshots considered

	breakoutMinWeeklyVelocity = 2.0

	viralMentionMinScore = 100
	viralMentionWindow   = 48 * time.Hour

	severityHighPercentile   = 90.0
	severityMediumPercentile = 70.0
	severityHighSpikeRatio   = 5.0

	shortSignalTTL = 3 * day // sudden_spike, viral_mention
	longSignalTTL  = 7 * day // rising_star, breakout
)

// detection is a classifier hit before persistence.
type detection struct {
	Type          model.SignalType
	Description   string
	VelocityValue float64
	StarCount     int
	SpikeRatio    float64
	TTL           time.Duration
}

// Detector classifies abnormal star growth into typed signals. Re-detection
// of a signal type already active for a repository refreshes its expiry
// instead of inserting a duplicate row, so acknowledgement state survives.
type Detector struct {
	repos     driven.RepoStore
	snapshots driven.SnapshotStore
	metrics   driven.MetricStore
	mentions  driven.MentionStore
	signals   driven.SignalStore
}

// NewDetector creates a new Detector.
func NewDetector(
	repos driven.RepoStore,
	snapshots driven.SnapshotStore,
	metrics driven.MetricStore,
	mentions driven.MentionStore,
	signals driven.SignalStore,
) *Detector {
	return &Detector{
		repos:     repos,
		snapshots: snapshots,
		metrics:   metrics,
		mentions:  mentions,
		signals:   signals,
	}
}

// DetectAll runs every detector against every tracked repository. The
// percentile baseline is read once before any write so one pass ranks all
// repositories against the same velocity table. Per-repository failures are
// logged and do not stop the pass.
func (d *Detector) DetectAll(ctx context.Context, now time.Time) error {
	repos, err := d.repos.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		slog.Debug("no tracked repositories, skipping detection")
		return nil
	}

	velocities, err := d.metrics.LatestByType(ctx, model.MetricVelocity)
	if err != nil {
		return err
	}
	velocityByRepo := make(map[int64]float64, len(velocities))
	allVelocities := make([]float64, 0, len(velocities))
	for _, m := range velocities {
		velocityByRepo[m.RepoID] = m.Value
		allVelocities = append(allVelocities, m.Value)
	}

	var detected, refreshed int
	for _, repo := range repos {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, r, err := d.detectRepo(ctx, repo, velocityByRepo, allVelocities, now)
		if err != nil {
			slog.Error("signal detection failed", "repo", repo.FullName, "error", err)
			continue
		}
		detected += n
		refreshed += r
	}

	slog.Info("signal detection complete",
		"repos", len(repos),
		"detected", detected,
		"refreshed", refreshed,
	)

	return nil
}

func (d *Detector) detectRepo(
	ctx context.Context,
	repo model.Repository,
	velocityByRepo map[int64]float64,
	allVelocities []float64,
	now time.Time,
) (detected, refreshed int, err error) {
	recent, err := d.snapshots.Recent(ctx, repo.ID, suddenSpikeWindow)
	if err != nil {
		return 0, 0, err
	}
	if len(recent) < 2 {
		slog.Debug("not enough snapshots for detection", "repo", repo.FullName, "snapshots", len(recent))
		return 0, 0, nil
	}

	stars := recent[0].Stars
	velocity, hasVelocity := velocityByRepo[repo.ID]

	var hits []detection
	if hit, ok := detectSuddenSpike(recent); ok {
		hits = append(hits, hit)
	}
	if hasVelocity {
		if hit, ok := detectRisingStar(stars, velocity); ok {
			hits = append(hits, hit)
		}
		if hit, ok := d.detectBreakout(ctx, repo.ID, stars); ok {
			hits = append(hits, hit)
		}
	}
	if hit, ok := d.detectViralMention(ctx, repo.ID, stars, now); ok {
		hits = append(hits, hit)
	}

	percentile := percentileRank(velocity, allVelocities)

	for _, hit := range hits {
		active, err := d.signals.ActiveByRepoAndType(ctx, repo.ID, hit.Type, now)
		if err != nil {
			return detected, refreshed, err
		}

		if active != nil {
			if err := d.signals.RefreshExpiry(ctx, active.ID, now.Add(hit.TTL)); err != nil {
				return detected, refreshed, err
			}
			refreshed++
			continue
		}

		signal := model.Signal{
			RepoID:         repo.ID,
			Type:           hit.Type,
			Severity:       classifySeverity(percentile, hit.SpikeRatio),
			Description:    hit.Description,
			VelocityValue:  hit.VelocityValue,
			StarCount:      hit.StarCount,
			PercentileRank: percentile,
			DetectedAt:     now,
			ExpiresAt:      now.Add(hit.TTL),
		}
		if _, err := d.signals.Insert(ctx, signal); err != nil {
			return detected, refreshed, err
		}
		detected++

		slog.Info("signal detected",
			"repo", repo.FullName,
			"type", string(hit.Type),
			"severity", string(signal.Severity),
			"percentile", fmt.Sprintf("%.0f", percentile),
		)
	}

	return detected, refreshed, nil
}

// detectSuddenSpike fires when the latest inter-snapshot delta exceeds both
// the spike multiple of the trailing average delta and the absolute floor.
// recent is newest first.
func detectSuddenSpike(recent []model.Snapshot) (detection, bool) {
	deltas := make([]int, 0, len(recent)-1)
	for i := 0; i < len(recent)-1; i++ {
		deltas = append(deltas, recent[i].Stars-recent[i+1].Stars)
	}

	latest := deltas[0]
	var trailingAvg float64
	if len(deltas) > 1 {
		var sum int
		for _, d := range deltas[1:] {
			sum += d
		}
		trailingAvg = float64(sum) / float64(len(deltas)-1)
	}

	if float64(latest) <= trailingAvg*suddenSpikeMultiplier || latest < suddenSpikeMinAbsolute {
		return detection{}, false
	}

	ratio := 0.0
	if trailingAvg > 0 {
		ratio = float64(latest) / trailingAvg
	} else {
		// Spiking from a flat baseline is as abnormal as growth gets.
		ratio = severityHighSpikeRatio
	}

	return detection{
		Type:          model.SignalSuddenSpike,
		Description:   fmt.Sprintf("Sudden spike: +%d stars in the last interval (vs avg %.0f)", latest, trailingAvg),
		VelocityValue: float64(latest),
		StarCount:     recent[0].Stars,
		SpikeRatio:    ratio,
		TTL:           shortSignalTTL,
	}, true
}

// detectRisingStar fires for small repositories with notable velocity in
// absolute terms or relative to their size.
func detectRisingStar(stars int, velocity float64) (detection, bool) {
	if stars >= risingStarMaxStars {
		return detection{}, false
	}

	var ratio float64
	if stars > 0 {
		ratio = velocity / float64(stars)
	}
	if velocity < risingStarMinVelocity && ratio < risingStarVelocityRatio {
		return detection{}, false
	}

	return detection{
		Type:          model.SignalRisingStar,
		Description:   fmt.Sprintf("Rising star: %d stars with %.1f stars/day velocity", stars, velocity),
		VelocityValue: velocity,
		StarCount:     stars,
		TTL:           longSignalTTL,
	}, true
}

// detectBreakout fires when growth resumes after a flat or declining stretch:
// the weeks before the current one show no net growth while the current week
// clears the breakout velocity floor.
func (d *Detector) detectBreakout(ctx context.Context, repoID int64, stars int) (detection, bool) {
	delta7, err := d.metrics.Latest(ctx, repoID, model.MetricStarsDelta7d)
	if err != nil || delta7 == nil {
		return detection{}, false
	}
	delta30, err := d.metrics.Latest(ctx, repoID, model.MetricStarsDelta30d)
	if err != nil || delta30 == nil {
		return detection{}, false
	}

	currentWeekly := delta7.Value / 7
	prevWeeks := (delta30.Value - delta7.Value) / 23

	if prevWeeks > 0 || currentWeekly < breakoutMinWeeklyVelocity {
		return detection{}, false
	}

	return detection{
		Type:          model.SignalBreakout,
		Description:   fmt.Sprintf("Breakout: velocity went from %.1f to %.1f stars/day", prevWeeks, currentWeekly),
		VelocityValue: currentWeekly,
		StarCount:     stars,
		TTL:           longSignalTTL,
	}, true
}

// detectViralMention fires on a high-scoring external mention within the
// viral window.
func (d *Detector) detectViralMention(ctx context.Context, repoID int64, stars int, now time.Time) (detection, bool) {
	mentions, err := d.mentions.RecentByRepo(ctx, repoID, now.Add(-viralMentionWindow))
	if err != nil || len(mentions) == 0 {
		return detection{}, false
	}

	// Mentions come highest score first.
	top := mentions[0]
	if top.Score < viralMentionMinScore {
		return detection{}, false
	}

	// Truncate by runes so a multibyte title cannot be cut mid-character.
	title := top.Title
	if runes := []rune(title); len(runes) > 50 {
		title = string(runes[:50]) + "..."
	}

	return detection{
		Type:          model.SignalViralMention,
		Description:   fmt.Sprintf("Viral on Hacker News: %q (%d points)", title, top.Score),
		VelocityValue: float64(top.Score),
		StarCount:     stars,
		TTL:           shortSignalTTL,
	}, true
}

// percentileRank is the share of tracked velocities strictly below v, 0-100.
func percentileRank(v float64, all []float64) float64 {
	if len(all) == 0 {
		return 0
	}

	var below int
	for _, other := range all {
		if other < v {
			below++
		}
	}
	return float64(below) / float64(len(all)) * 100
}

// classifySeverity buckets a detection by percentile rank, with a spike
// ratio override for growth far outside the repository's own baseline.
// Severity never decreases as percentile rank increases.
func classifySeverity(percentile, spikeRatio float64) model.Severity {
	if percentile >= severityHighPercentile || spikeRatio >= severityHighSpikeRatio {
		return model.SeverityHigh
	}
	if percentile >= severityMediumPercentile {
		return model.SeverityMedium
	}
	return model.SeverityLow
}
