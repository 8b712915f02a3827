package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

// ErrInvalidRule indicates an alert rule that cannot be created as given.
var ErrInvalidRule = errors.New("invalid alert rule")

// AlertService manages user-defined metric threshold rules and evaluates
// them against the latest derived metrics. Every evaluation pass in which
// a condition holds fires a new alert; silencing is the user's job via
// acknowledgement, not the evaluator's.
type AlertService struct {
	alerts  driven.AlertStore
	repos   driven.RepoStore
	metrics driven.MetricStore
}

// NewAlertService creates a new AlertService.
func NewAlertService(alerts driven.AlertStore, repos driven.RepoStore, metrics driven.MetricStore) *AlertService {
	return &AlertService{alerts: alerts, repos: repos, metrics: metrics}
}

// CreateRule validates and persists a new rule. The created rule is
// returned with its assigned id.
func (s *AlertService) CreateRule(ctx context.Context, rule model.AlertRule, now time.Time) (*model.AlertRule, error) {
	if strings.TrimSpace(rule.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if !model.KnownMetricType(rule.MetricType) {
		return nil, fmt.Errorf("%w: unknown metric type %q", ErrInvalidRule, rule.MetricType)
	}
	if !model.KnownOperator(rule.Operator) {
		return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidRule, rule.Operator)
	}
	if math.IsNaN(rule.Threshold) || math.IsInf(rule.Threshold, 0) {
		return nil, fmt.Errorf("%w: threshold must be finite", ErrInvalidRule)
	}
	if rule.RepoID != nil {
		repo, err := s.repos.GetByID(ctx, *rule.RepoID)
		if err != nil {
			return nil, err
		}
		if repo == nil {
			return nil, fmt.Errorf("%w: repository %d is not tracked", ErrInvalidRule, *rule.RepoID)
		}
	}

	rule.CreatedAt = now
	rule.UpdatedAt = now

	id, err := s.alerts.CreateRule(ctx, rule)
	if err != nil {
		return nil, err
	}
	rule.ID = id

	return &rule, nil
}

// DeleteRule removes a rule and its firing history.
func (s *AlertService) DeleteRule(ctx context.Context, id int64) error {
	return s.alerts.DeleteRule(ctx, id)
}

// EvaluateAll runs every enabled rule against the latest metrics and
// fires an alert per matching (rule, repository) pair. One broken rule is
// logged and skipped; the rest of the pass continues. Returns the number
// of alerts fired.
func (s *AlertService) EvaluateAll(ctx context.Context, now time.Time) (int, error) {
	rules, err := s.alerts.ListRules(ctx, true)
	if err != nil {
		return 0, err
	}
	if len(rules) == 0 {
		return 0, nil
	}

	var fired int
	for _, rule := range rules {
		if ctx.Err() != nil {
			return fired, ctx.Err()
		}

		n, err := s.evaluateRule(ctx, rule, now)
		if err != nil {
			slog.Error("alert rule evaluation failed", "rule", rule.Name, "error", err)
			continue
		}
		fired += n
	}

	slog.Info("alert evaluation complete", "rules", len(rules), "fired", fired)
	return fired, nil
}

func (s *AlertService) evaluateRule(ctx context.Context, rule model.AlertRule, now time.Time) (int, error) {
	repos, err := s.ruleTargets(ctx, rule)
	if err != nil {
		return 0, err
	}

	var fired int
	for _, repo := range repos {
		metric, err := s.metrics.Latest(ctx, repo.ID, rule.MetricType)
		if err != nil {
			return fired, err
		}
		if metric == nil {
			continue
		}
		if !rule.Operator.Evaluate(metric.Value, rule.Threshold) {
			continue
		}

		if _, err := s.alerts.InsertTriggered(ctx, model.TriggeredAlert{
			RuleID:      rule.ID,
			RepoID:      repo.ID,
			MetricValue: metric.Value,
			TriggeredAt: now,
		}); err != nil {
			return fired, err
		}
		fired++

		slog.Info("alert fired",
			"rule", rule.Name,
			"repo", repo.FullName,
			"value", metric.Value,
			"threshold", rule.Threshold,
		)
	}

	return fired, nil
}

// ruleTargets resolves the repositories a rule applies to: one specific
// repository, or the whole watchlist for a global rule.
func (s *AlertService) ruleTargets(ctx context.Context, rule model.AlertRule) ([]model.Repository, error) {
	if rule.RepoID == nil {
		return s.repos.ListAll(ctx)
	}

	repo, err := s.repos.GetByID(ctx, *rule.RepoID)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		// The repository was removed after the rule was created.
		return nil, nil
	}
	return []model.Repository{*repo}, nil
}
