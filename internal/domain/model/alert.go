package model

import "time"

// Operator is a comparison operator in an alert rule condition.
type Operator string

const (
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
)

// KnownOperator reports whether op is one of the five supported operators.
func KnownOperator(op Operator) bool {
	switch op {
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpEqual:
		return true
	}
	return false
}

// Evaluate applies the operator to value against threshold.
// Unknown operators evaluate to false.
func (op Operator) Evaluate(value, threshold float64) bool {
	switch op {
	case OpGreater:
		return value > threshold
	case OpGreaterEqual:
		return value >= threshold
	case OpLess:
		return value < threshold
	case OpLessEqual:
		return value <= threshold
	case OpEqual:
		return value == threshold
	}
	return false
}

// AlertRule is a user-defined condition over a derived metric.
// RepoID nil means the rule applies to every tracked repository.
type AlertRule struct {
	ID          int64
	Name        string
	Description string
	RepoID      *int64
	MetricType  MetricType
	Operator    Operator
	Threshold   float64
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TriggeredAlert records one firing of a rule for one repository.
// Every evaluation pass in which the condition holds produces a new row;
// acknowledgement, not deduplication, silences recurring fires.
type TriggeredAlert struct {
	ID             int64
	RuleID         int64
	RepoID         int64
	MetricValue    float64
	TriggeredAt    time.Time
	Acknowledged   bool
	AcknowledgedAt *time.Time
}
