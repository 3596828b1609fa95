package reasoning

import (
	"fmt"
	"strings"
	"time"

	"basegraph.app/reasoner/internal/model"
)

// Evaluate checks one item against one constraint and returns the violation,
// or nil when the item satisfies it. It reads nothing but its arguments.
//
// A missing property violates every operator except NOT_EXISTS. Numeric
// operators treat an unparsable side as unsatisfied, and an operator the
// engine does not know is reported rather than passed.
func Evaluate(item model.Item, c model.Constraint) *model.ConstraintViolation {
	actual, present := item.Property(c.TargetKey)
	op := c.Operator.Normalize()

	switch op {
	case model.OpExists:
		if present {
			return nil
		}
		return violation(item, c, nil, fmt.Sprintf("%s is missing but must exist (required by %s)", c.TargetKey, requiredBy(c)))
	case model.OpNotExists:
		if !present {
			return nil
		}
		return violation(item, c, &actual, fmt.Sprintf("%s = %q must not be set (required by %s)", c.TargetKey, actual.String(), requiredBy(c)))
	}

	if !present {
		return violation(item, c, nil, fmt.Sprintf("%s is missing, cannot satisfy %s (required by %s)", c.TargetKey, describe(c), requiredBy(c)))
	}

	ok, known := satisfies(op, actual, c.RequiredValue)
	if !known {
		return violation(item, c, &actual, fmt.Sprintf("unsupported operator %q on %s (required by %s)", string(c.Operator), c.TargetKey, requiredBy(c)))
	}
	if ok {
		return nil
	}
	return violation(item, c, &actual, fmt.Sprintf("%s = %q violates %s (required by %s)", c.TargetKey, actual.String(), describe(c), requiredBy(c)))
}

func satisfies(op model.Operator, actual, required model.Value) (ok bool, known bool) {
	switch op {
	case model.OpEquals:
		return sameText(actual, required), true
	case model.OpNotEquals:
		return !sameText(actual, required), true
	case model.OpIn:
		return inList(actual, required), true
	case model.OpNotIn:
		return !inList(actual, required), true
	case model.OpGreaterThan, model.OpLessThan:
		a, aok := actual.Float()
		r, rok := required.Float()
		if !aok || !rok {
			return false, true
		}
		if op == model.OpGreaterThan {
			return a > r, true
		}
		return a < r, true
	default:
		return false, false
	}
}

func sameText(a, b model.Value) bool {
	return strings.EqualFold(strings.TrimSpace(a.String()), strings.TrimSpace(b.String()))
}

// inList matches actual against a comma-separated list, ignoring case and
// surrounding spaces. Empty elements never match.
func inList(actual, list model.Value) bool {
	want := strings.TrimSpace(actual.String())
	for _, elem := range strings.Split(list.String(), ",") {
		elem = strings.TrimSpace(elem)
		if elem != "" && strings.EqualFold(elem, want) {
			return true
		}
	}
	return false
}

func describe(c model.Constraint) string {
	return fmt.Sprintf("%s %s %q", c.TargetKey, c.Operator.Normalize(), c.RequiredValue.String())
}

func requiredBy(c model.Constraint) string {
	by := c.SourceContext
	if by == "" {
		by = "constraint " + c.ID
	}
	if c.Reason != "" {
		return by + ": " + c.Reason
	}
	return by
}

func violation(item model.Item, c model.Constraint, actual *model.Value, msg string) *model.ConstraintViolation {
	return &model.ConstraintViolation{
		ItemID:     item.ID,
		ItemName:   item.Name,
		Constraint: c,
		Actual:     actual,
		Message:    msg,
	}
}

// EvaluateAll partitions items into valid ones and rejections. Constraints
// are checked in the order given; a rejected item reports its first CRITICAL
// violation, or its first violation when none is critical. Input order of
// items is preserved in both outputs.
func EvaluateAll(items []model.Item, constraints []model.Constraint) ([]model.Item, []model.Rejection) {
	valid := make([]model.Item, 0, len(items))
	rejected := make([]model.Rejection, 0)

	for _, item := range items {
		var first, critical *model.ConstraintViolation
		for _, c := range constraints {
			v := Evaluate(item, c)
			if v == nil {
				continue
			}
			if first == nil {
				first = v
			}
			if c.Severity.IsCritical() {
				critical = v
				break
			}
		}

		switch {
		case critical != nil:
			rejected = append(rejected, model.Rejection{Item: item, Violation: *critical})
		case first != nil:
			rejected = append(rejected, model.Rejection{Item: item, Violation: *first})
		default:
			valid = append(valid, item)
		}
	}

	return valid, rejected
}

func evaluateItems(items []model.Item, constraints []model.Constraint) ([]model.Item, []model.Rejection, model.TraceStep) {
	started := time.Now()
	valid, rejected := EvaluateAll(items, constraints)

	summary := fmt.Sprintf("%d of %d item(s) valid against %d constraint(s)", len(valid), len(items), len(constraints))
	if len(rejected) > 0 {
		ids := make([]string, 0, len(rejected))
		for _, r := range rejected {
			ids = append(ids, r.Item.ID)
		}
		summary += "; rejected " + strings.Join(ids, ", ")
	}
	return valid, rejected, stepEvaluation.record(started, model.StepOK, summary)
}
