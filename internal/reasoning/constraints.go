package reasoning

import (
	"context"
	"fmt"
	"sort"
	"time"

	"basegraph.app/reasoner/internal/model"
)

// ResolveConstraints expands the detected Contexts into the Constraints they
// imply, in canonical order. No contexts means no constraints, never "all".
func ResolveConstraints(ctx context.Context, env Env, contextIDs []string) ([]model.Constraint, model.TraceStep, error) {
	started := time.Now()

	if len(contextIDs) == 0 {
		return []model.Constraint{}, stepConstraints.record(started, model.StepSkipped, "no contexts, no constraints apply"), nil
	}

	ctx, cancel := env.bound(ctx)
	defer cancel()

	found, err := env.Graph.ConstraintsForContexts(ctx, contextIDs)
	if err != nil {
		return nil, stepConstraints.record(started, model.StepFailed, "constraint lookup failed"), err
	}

	constraints := CanonicalOrder(found)
	critical := 0
	for _, c := range constraints {
		if c.Severity.IsCritical() {
			critical++
		}
	}

	summary := fmt.Sprintf("%d constraint(s) from %d context(s), %d critical", len(constraints), len(contextIDs), critical)
	return constraints, stepConstraints.record(started, model.StepOK, summary), nil
}

// CanonicalOrder sorts constraints by severity (CRITICAL, WARNING, INFO,
// unknown), then id, then source context name, and keeps the first of any
// repeated id. Evaluation reports violations in this order, which makes the
// reported violation independent of graph traversal order.
func CanonicalOrder(constraints []model.Constraint) []model.Constraint {
	sorted := append([]model.Constraint(nil), constraints...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra < rb
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.SourceContext < b.SourceContext
	})

	out := make([]model.Constraint, 0, len(sorted))
	seen := make(map[string]bool, len(sorted))
	for _, c := range sorted {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}
