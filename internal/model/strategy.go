package model

// DefaultStrategyPriority applies to strategies authored without a priority.
const DefaultStrategyPriority = 99

type StrategyKind string

const (
	StrategyCrossSell      StrategyKind = "CROSS_SELL"
	StrategyWarning        StrategyKind = "WARNING"
	StrategyRecommendation StrategyKind = "RECOMMENDATION"
)

func (k StrategyKind) Known() bool {
	switch k {
	case StrategyCrossSell, StrategyWarning, StrategyRecommendation:
		return true
	}
	return false
}

// Strategy is a triggered recommendation, warning or cross-sell suggestion.
// Priority is nil when the graph does not carry one.
type Strategy struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Kind        StrategyKind `json:"type,omitempty"`
	Priority    *int         `json:"priority,omitempty"`
	Description string       `json:"description,omitempty"`
	TriggeredBy string       `json:"triggered_by,omitempty"`
}

// EffectivePriority returns the priority used for ordering.
func (s Strategy) EffectivePriority() int {
	if s.Priority == nil {
		return DefaultStrategyPriority
	}
	return *s.Priority
}
