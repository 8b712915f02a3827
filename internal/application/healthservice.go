package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

// ErrNoGitHubClient indicates no GitHub client is configured, so nothing
// requiring the API can run.
var ErrNoGitHubClient = errors.New("no github client configured")

// Sub-score weights, in percent. They sum to 100; sub-scores without
// underlying data contribute zero against the full denominator, so a
// repository is never rewarded for hiding information.
const (
	weightIssueResponse  = 20
	weightPRMerge        = 20
	weightReleaseCadence = 15
	weightBusFactor      = 15
	weightDocumentation  = 10
	weightDependency     = 10
	weightVelocity       = 10

	// Dependency risk defaults to a neutral-positive score when no
	// external dependency data was supplied.
	defaultDependencyScore = 70
)

// HealthService computes composite 0-100 health scores from freshly
// fetched repository metrics.
type HealthService struct {
	provider *GitHubClientProvider
	repos    driven.RepoStore
	metrics  driven.MetricStore
	scores   driven.HealthScoreStore
}

// NewHealthService creates a new HealthService.
func NewHealthService(
	provider *GitHubClientProvider,
	repos driven.RepoStore,
	metrics driven.MetricStore,
	scores driven.HealthScoreStore,
) *HealthService {
	return &HealthService{
		provider: provider,
		repos:    repos,
		metrics:  metrics,
		scores:   scores,
	}
}

// RescoreRepo fetches fresh health metrics for one repository, computes the
// composite score, and atomically replaces the stored row. When the fetch
// fails the previous score is left untouched.
func (s *HealthService) RescoreRepo(ctx context.Context, repoID int64, now time.Time) (*model.HealthScore, error) {
	repo, err := s.repos.GetByID(ctx, repoID)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, driven.ErrRepoNotFound
	}

	client := s.provider.Get()
	if client == nil {
		return nil, ErrNoGitHubClient
	}

	metrics, err := client.FetchHealthMetrics(ctx, repo.Owner, repo.Name)
	if err != nil {
		return nil, fmt.Errorf("fetching health metrics for %s: %w", repo.FullName, err)
	}

	if velocity, err := s.metrics.Latest(ctx, repoID, model.MetricVelocity); err != nil {
		return nil, err
	} else if velocity != nil {
		metrics.StarVelocity = velocity.Value
	}

	score := CalculateHealthScore(*metrics, now)
	score.RepoID = repoID

	if err := s.scores.Replace(ctx, score); err != nil {
		return nil, err
	}

	slog.Info("health score updated",
		"repo", repo.FullName,
		"score", score.OverallScore,
		"grade", score.Grade,
	)

	return &score, nil
}

// RescoreAll recomputes every tracked repository's health score. A failure
// on one repository is logged and does not stop the pass.
func (s *HealthService) RescoreAll(ctx context.Context, now time.Time) error {
	if !s.provider.HasClient() {
		return ErrNoGitHubClient
	}

	repos, err := s.repos.ListAll(ctx)
	if err != nil {
		return err
	}

	for _, repo := range repos {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.RescoreRepo(ctx, repo.ID, now); err != nil {
			slog.Error("health rescore failed", "repo", repo.FullName, "error", err)
		}
	}

	return nil
}

// CalculateHealthScore computes the weighted composite score and letter
// grade from raw metrics. It is a pure function of its inputs.
func CalculateHealthScore(m model.HealthMetrics, now time.Time) model.HealthScore {
	score := model.HealthScore{CalculatedAt: now}

	if m.HasIssueData {
		score.IssueResponseScore = issueResponseScore(m.AvgIssueResponseHours)
	}
	if m.MergedPRs+m.ClosedPRs > 0 {
		rate := float64(m.MergedPRs) / float64(m.MergedPRs+m.ClosedPRs) * 100
		score.PRMergeScore = prMergeScore(rate)
	}
	if m.HasReleaseData {
		score.ReleaseCadenceScore = releaseCadenceScore(m.DaysSinceLastRelease)
	}
	if m.ContributorCount > 0 {
		score.BusFactorScore = busFactorScore(m.ContributorCount, m.TopContributorPercentage)
	}
	score.DocumentationScore = documentationScore(m)
	if m.HasDependencyData {
		score.DependencyScore = m.DependencyScore
	} else {
		score.DependencyScore = defaultDependencyScore
	}
	score.VelocityScore = velocityScore(m.StarVelocity)

	total := score.IssueResponseScore*weightIssueResponse +
		score.PRMergeScore*weightPRMerge +
		score.ReleaseCadenceScore*weightReleaseCadence +
		score.BusFactorScore*weightBusFactor +
		score.DocumentationScore*weightDocumentation +
		score.DependencyScore*weightDependency +
		score.VelocityScore*weightVelocity

	score.OverallScore = math.Round(total/100*10) / 10
	score.Grade = GradeFor(score.OverallScore)

	return score
}

func issueResponseScore(hours float64) float64 {
	switch {
	case hours < 24:
		return 100
	case hours < 72:
		return 80
	case hours < 168:
		return 60
	case hours < 720:
		return 40
	default:
		return 20
	}
}

func prMergeScore(ratePercent float64) float64 {
	switch {
	case ratePercent >= 90:
		return 100
	case ratePercent >= 70:
		return 80
	case ratePercent >= 50:
		return 60
	case ratePercent >= 30:
		return 40
	default:
		return 20
	}
}

func releaseCadenceScore(daysSinceLast int) float64 {
	switch {
	case daysSinceLast < 30:
		return 100
	case daysSinceLast < 90:
		return 80
	case daysSinceLast < 180:
		return 60
	case daysSinceLast < 365:
		return 40
	default:
		return 20
	}
}

// busFactorScore averages contributor breadth with how concentrated the
// work is in the top contributor.
func busFactorScore(contributors int, topPercent float64) float64 {
	breadth := math.Min(100, float64(contributors)*10)

	var concentration float64
	switch {
	case topPercent < 30:
		concentration = 100
	case topPercent < 50:
		concentration = 80
	case topPercent < 70:
		concentration = 60
	case topPercent < 90:
		concentration = 40
	default:
		concentration = 20
	}

	return (breadth + concentration) / 2
}

func documentationScore(m model.HealthMetrics) float64 {
	var score float64
	if m.HasReadme {
		score += 40
	}
	if m.HasLicense {
		score += 30
	}
	if m.HasContributing {
		score += 20
	}
	return score
}

func velocityScore(starsPerDay float64) float64 {
	switch {
	case starsPerDay >= 10:
		return 100
	case starsPerDay >= 5:
		return 80
	case starsPerDay >= 1:
		return 60
	case starsPerDay >= 0.1:
		return 40
	default:
		return 20
	}
}

// GradeFor maps a 0-100 overall score to its letter grade.
func GradeFor(overall float64) string {
	switch {
	case overall >= 94:
		return "A+"
	case overall >= 85:
		return "A"
	case overall >= 80:
		return "B+"
	case overall >= 75:
		return "B"
	case overall >= 70:
		return "C+"
	case overall >= 65:
		return "C"
	case overall >= 50:
		return "D"
	default:
		return "F"
	}
}
