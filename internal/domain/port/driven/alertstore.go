package driven

import (
	"context"
	"errors"
	"time"

	"starscope/internal/domain/model"
)

// Sentinel errors returned by AlertStore implementations.
var (
	// ErrRuleNotFound indicates the requested alert rule does not exist.
	ErrRuleNotFound = errors.New("alert rule not found")

	// ErrAlertNotFound indicates the requested triggered alert does not exist.
	ErrAlertNotFound = errors.New("triggered alert not found")
)

// AlertStore defines the driven port for alert rules and their firings.
type AlertStore interface {
	CreateRule(ctx context.Context, rule model.AlertRule) (int64, error)
	DeleteRule(ctx context.Context, id int64) error
	// ListRules returns rules ordered by id; enabledOnly filters to
	// enabled rules.
	ListRules(ctx context.Context, enabledOnly bool) ([]model.AlertRule, error)
	InsertTriggered(ctx context.Context, alert model.TriggeredAlert) (int64, error)
	// ListTriggered returns firings newest first; unackOnly filters to
	// unacknowledged ones.
	ListTriggered(ctx context.Context, unackOnly bool) ([]model.TriggeredAlert, error)
	AcknowledgeAlert(ctx context.Context, id int64, at time.Time) error
	// AcknowledgeAll marks every unacknowledged firing; returns the count.
	AcknowledgeAll(ctx context.Context, at time.Time) (int64, error)
}
