package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.HealthScoreStore = (*HealthScoreRepo)(nil)

// HealthScoreRepo is the SQLite implementation of the HealthScoreStore
// port interface. health_scores is keyed by repository: Replace swaps the
// whole row in one statement, so a reader never observes a score whose
// sub-scores come from two different calculations.
type HealthScoreRepo struct {
	db *DB
}

// NewHealthScoreRepo creates a new HealthScoreRepo backed by the given DB.
func NewHealthScoreRepo(db *DB) *HealthScoreRepo {
	return &HealthScoreRepo{db: db}
}

// Replace inserts or fully overwrites the repository's score row.
func (r *HealthScoreRepo) Replace(ctx context.Context, score model.HealthScore) error {
	const query = `INSERT INTO health_scores
		(repo_id, overall_score, grade, issue_response_score, pr_merge_score,
		 release_cadence_score, bus_factor_score, documentation_score,
		 dependency_score, velocity_score, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (repo_id) DO UPDATE SET
			overall_score = excluded.overall_score,
			grade = excluded.grade,
			issue_response_score = excluded.issue_response_score,
			pr_merge_score = excluded.pr_merge_score,
			release_cadence_score = excluded.release_cadence_score,
			bus_factor_score = excluded.bus_factor_score,
			documentation_score = excluded.documentation_score,
			dependency_score = excluded.dependency_score,
			velocity_score = excluded.velocity_score,
			calculated_at = excluded.calculated_at`

	_, err := r.db.Writer.ExecContext(ctx, query,
		score.RepoID, score.OverallScore, score.Grade,
		score.IssueResponseScore, score.PRMergeScore, score.ReleaseCadenceScore,
		score.BusFactorScore, score.DocumentationScore, score.DependencyScore,
		score.VelocityScore, formatTime(score.CalculatedAt),
	)
	if err != nil {
		return fmt.Errorf("replace health score for repo %d: %w", score.RepoID, err)
	}

	return nil
}

// GetByRepo returns the current score, or nil if never calculated.
func (r *HealthScoreRepo) GetByRepo(ctx context.Context, repoID int64) (*model.HealthScore, error) {
	const query = `SELECT repo_id, overall_score, grade, issue_response_score,
		pr_merge_score, release_cadence_score, bus_factor_score,
		documentation_score, dependency_score, velocity_score, calculated_at
		FROM health_scores WHERE repo_id = ?`

	var score model.HealthScore
	var calculatedAt string

	err := r.db.Reader.QueryRowContext(ctx, query, repoID).Scan(
		&score.RepoID, &score.OverallScore, &score.Grade,
		&score.IssueResponseScore, &score.PRMergeScore, &score.ReleaseCadenceScore,
		&score.BusFactorScore, &score.DocumentationScore, &score.DependencyScore,
		&score.VelocityScore, &calculatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get health score for repo %d: %w", repoID, err)
	}

	if score.CalculatedAt, err = parseTime(calculatedAt); err != nil {
		return nil, fmt.Errorf("parse calculated_at: %w", err)
	}

	return &score, nil
}
