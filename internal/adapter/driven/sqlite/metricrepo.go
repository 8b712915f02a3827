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
var _ driven.MetricStore = (*MetricRepo)(nil)

// MetricRepo is the SQLite implementation of the MetricStore port interface.
type MetricRepo struct {
	db *DB
}

// NewMetricRepo creates a new MetricRepo backed by the given DB.
func NewMetricRepo(db *DB) *MetricRepo {
	return &MetricRepo{db: db}
}

// Upsert inserts or replaces the (repo_id, metric_type) row.
func (r *MetricRepo) Upsert(ctx context.Context, metric model.Metric) error {
	const query = `INSERT INTO metrics (repo_id, metric_type, value, calculated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (repo_id, metric_type) DO UPDATE SET
			value = excluded.value,
			calculated_at = excluded.calculated_at`

	_, err := r.db.Writer.ExecContext(ctx, query,
		metric.RepoID, string(metric.Type), metric.Value, formatTime(metric.CalculatedAt))
	if err != nil {
		return fmt.Errorf("upsert metric %s for repo %d: %w", metric.Type, metric.RepoID, err)
	}

	return nil
}

// Latest returns the current value of one metric for one repository, or
// nil if it has never been calculated.
func (r *MetricRepo) Latest(ctx context.Context, repoID int64, t model.MetricType) (*model.Metric, error) {
	const query = `SELECT repo_id, metric_type, value, calculated_at FROM metrics
		WHERE repo_id = ? AND metric_type = ?`

	metric, err := scanMetric(r.db.Reader.QueryRowContext(ctx, query, repoID, string(t)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest metric %s for repo %d: %w", t, repoID, err)
	}

	return metric, nil
}

// LatestByType returns the current value of one metric across all
// repositories, ordered by repository id ascending.
func (r *MetricRepo) LatestByType(ctx context.Context, t model.MetricType) ([]model.Metric, error) {
	const query = `SELECT repo_id, metric_type, value, calculated_at FROM metrics
		WHERE metric_type = ? ORDER BY repo_id ASC`

	rows, err := r.db.Reader.QueryContext(ctx, query, string(t))
	if err != nil {
		return nil, fmt.Errorf("list metrics %s: %w", t, err)
	}
	defer rows.Close()

	var metrics []model.Metric
	for rows.Next() {
		metric, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		metrics = append(metrics, *metric)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics: %w", err)
	}

	return metrics, nil
}

func scanMetric(s scanner) (*model.Metric, error) {
	var metric model.Metric
	var metricType, calculatedAt string

	if err := s.Scan(&metric.RepoID, &metricType, &metric.Value, &calculatedAt); err != nil {
		return nil, err
	}

	metric.Type = model.MetricType(metricType)

	var err error
	metric.CalculatedAt, err = parseTime(calculatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse calculated_at: %w", err)
	}

	return &metric, nil
}
