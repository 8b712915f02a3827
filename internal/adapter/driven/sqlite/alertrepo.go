package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AlertStore = (*AlertRepo)(nil)

// AlertRepo is the SQLite implementation of the AlertStore port interface.
type AlertRepo struct {
	db *DB
}

// NewAlertRepo creates a new AlertRepo backed by the given DB.
func NewAlertRepo(db *DB) *AlertRepo {
	return &AlertRepo{db: db}
}

// CreateRule stores a new alert rule and returns its id.
func (r *AlertRepo) CreateRule(ctx context.Context, rule model.AlertRule) (int64, error) {
	const query = `INSERT INTO alert_rules
		(name, description, repo_id, metric_type, operator, threshold, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	createdAt := rule.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := rule.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		rule.Name, rule.Description, rule.RepoID, string(rule.MetricType),
		string(rule.Operator), rule.Threshold, boolToInt(rule.Enabled),
		formatTime(createdAt), formatTime(updatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("create alert rule %q: %w", rule.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create alert rule: last insert id: %w", err)
	}

	return id, nil
}

// DeleteRule removes a rule and, via cascade, its triggered alerts.
// Returns ErrRuleNotFound if the rule does not exist.
func (r *AlertRepo) DeleteRule(ctx context.Context, id int64) error {
	const query = `DELETE FROM alert_rules WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete alert rule %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete alert rule %d: %w", id, driven.ErrRuleNotFound)
	}

	return nil
}

// ListRules returns rules ordered by id, optionally only enabled ones.
func (r *AlertRepo) ListRules(ctx context.Context, enabledOnly bool) ([]model.AlertRule, error) {
	query := `SELECT id, name, description, repo_id, metric_type, operator, threshold, enabled, created_at, updated_at
		FROM alert_rules`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY id ASC`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list alert rules: %w", err)
	}
	defer rows.Close()

	var rules []model.AlertRule
	for rows.Next() {
		rule, err := scanAlertRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rules: %w", err)
	}

	return rules, nil
}

// InsertTriggered records one firing of a rule and returns its id.
func (r *AlertRepo) InsertTriggered(ctx context.Context, alert model.TriggeredAlert) (int64, error) {
	const query = `INSERT INTO triggered_alerts
		(rule_id, repo_id, metric_value, triggered_at, acknowledged, acknowledged_at)
		VALUES (?, ?, ?, ?, ?, NULL)`

	result, err := r.db.Writer.ExecContext(ctx, query,
		alert.RuleID, alert.RepoID, alert.MetricValue,
		formatTime(alert.TriggeredAt), boolToInt(alert.Acknowledged),
	)
	if err != nil {
		return 0, fmt.Errorf("insert triggered alert for rule %d: %w", alert.RuleID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert triggered alert: last insert id: %w", err)
	}

	return id, nil
}

// ListTriggered returns firings newest first, optionally only unacknowledged.
func (r *AlertRepo) ListTriggered(ctx context.Context, unackOnly bool) ([]model.TriggeredAlert, error) {
	query := `SELECT id, rule_id, repo_id, metric_value, triggered_at, acknowledged, acknowledged_at
		FROM triggered_alerts`
	if unackOnly {
		query += ` WHERE acknowledged = 0`
	}
	query += ` ORDER BY triggered_at DESC, id DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list triggered alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.TriggeredAlert
	for rows.Next() {
		alert, err := scanTriggeredAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan triggered alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate triggered alerts: %w", err)
	}

	return alerts, nil
}

// AcknowledgeAlert marks one firing as seen.
// Returns ErrAlertNotFound if the firing does not exist.
func (r *AlertRepo) AcknowledgeAlert(ctx context.Context, id int64, at time.Time) error {
	const query = `UPDATE triggered_alerts SET acknowledged = 1, acknowledged_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("acknowledge alert %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("acknowledge alert %d: %w", id, driven.ErrAlertNotFound)
	}

	return nil
}

// AcknowledgeAll marks every unacknowledged firing and returns the count.
func (r *AlertRepo) AcknowledgeAll(ctx context.Context, at time.Time) (int64, error) {
	const query = `UPDATE triggered_alerts SET acknowledged = 1, acknowledged_at = ? WHERE acknowledged = 0`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(at))
	if err != nil {
		return 0, fmt.Errorf("acknowledge all alerts: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}

	return count, nil
}

func scanAlertRule(s scanner) (*model.AlertRule, error) {
	var rule model.AlertRule
	var repoID sql.NullInt64
	var metricType, operator, createdAt, updatedAt string
	var enabled int

	err := s.Scan(
		&rule.ID, &rule.Name, &rule.Description, &repoID, &metricType,
		&operator, &rule.Threshold, &enabled, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if repoID.Valid {
		rule.RepoID = &repoID.Int64
	}
	rule.MetricType = model.MetricType(metricType)
	rule.Operator = model.Operator(operator)
	rule.Enabled = enabled != 0

	if rule.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rule.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &rule, nil
}

func scanTriggeredAlert(s scanner) (*model.TriggeredAlert, error) {
	var alert model.TriggeredAlert
	var triggeredAt string
	var acknowledged int
	var acknowledgedAt sql.NullString

	err := s.Scan(
		&alert.ID, &alert.RuleID, &alert.RepoID, &alert.MetricValue,
		&triggeredAt, &acknowledged, &acknowledgedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.Acknowledged = acknowledged != 0

	if alert.TriggeredAt, err = parseTime(triggeredAt); err != nil {
		return nil, fmt.Errorf("parse triggered_at: %w", err)
	}
	if alert.AcknowledgedAt, err = parseNullTimePtr(acknowledgedAt); err != nil {
		return nil, fmt.Errorf("parse acknowledged_at: %w", err)
	}

	return &alert, nil
}
