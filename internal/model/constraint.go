package model

import "strings"

// Operator is the comparison a Constraint applies to an item property.
type Operator string

const (
	OpEquals      Operator = "EQUALS"
	OpNotEquals   Operator = "NOT_EQUALS"
	OpIn          Operator = "IN"
	OpNotIn       Operator = "NOT_IN"
	OpGreaterThan Operator = "GREATER_THAN"
	OpLessThan    Operator = "LESS_THAN"
	OpExists      Operator = "EXISTS"
	OpNotExists   Operator = "NOT_EXISTS"
)

// Normalize upper-cases and trims the operator as it may be authored loosely in the graph.
func (o Operator) Normalize() Operator {
	return Operator(strings.ToUpper(strings.TrimSpace(string(o))))
}

// Severity ranks how strongly a violation affects the outcome.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// Rank orders severities: CRITICAL=0, WARNING=1, INFO=2, unknown=3.
func (s Severity) Rank() int {
	switch Severity(strings.ToUpper(string(s))) {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	default:
		return 3
	}
}

func (s Severity) IsCritical() bool {
	return s.Rank() == 0
}

// Constraint is a requirement a Context imposes on an item property.
type Constraint struct {
	ID            string   `json:"id"`
	TargetKey     string   `json:"target_key"`
	Operator      Operator `json:"operator"`
	RequiredValue Value    `json:"required_value"`
	Severity      Severity `json:"severity"`
	Reason        string   `json:"reason,omitempty"`
	SourceContext string   `json:"source_context,omitempty"`
}

// ConstraintViolation is the result of one item failing one constraint.
// Actual is nil when the item does not carry the target property.
type ConstraintViolation struct {
	ItemID     string     `json:"item_id"`
	ItemName   string     `json:"item_name"`
	Constraint Constraint `json:"constraint"`
	Actual     *Value     `json:"actual,omitempty"`
	Message    string     `json:"message"`
}

// Rejection pairs a rejected item with the violation reported for it.
type Rejection struct {
	Item      Item                `json:"item"`
	Violation ConstraintViolation `json:"violation"`
}
