package reasoning

import (
	"context"
	"fmt"
	"sort"
	"time"

	"basegraph.app/reasoner/internal/model"
)

// ActivateStrategies collects strategies triggered by the detected contexts
// and enabled by the valid items, ranked by priority.
func ActivateStrategies(ctx context.Context, env Env, contextIDs, itemIDs []string) ([]model.Strategy, model.TraceStep, error) {
	started := time.Now()

	if len(contextIDs) == 0 && len(itemIDs) == 0 {
		return []model.Strategy{}, stepStrategy.record(started, model.StepSkipped, "no contexts or items, no strategies"), nil
	}

	var fromContexts, fromItems []model.Strategy
	if len(contextIDs) > 0 {
		c, cancel := env.bound(ctx)
		found, err := env.Graph.StrategiesForContexts(c, contextIDs)
		cancel()
		if err != nil {
			return nil, stepStrategy.record(started, model.StepFailed, "context strategy lookup failed"), err
		}
		fromContexts = found
	}
	if len(itemIDs) > 0 {
		c, cancel := env.bound(ctx)
		found, err := env.Graph.StrategiesForItems(c, itemIDs)
		cancel()
		if err != nil {
			return nil, stepStrategy.record(started, model.StepFailed, "item strategy lookup failed"), err
		}
		fromItems = found
	}

	ranked := RankStrategies(fromContexts, fromItems)
	summary := fmt.Sprintf("%d strategy(ies): %d from contexts, %d from items", len(ranked), len(fromContexts), len(fromItems))
	return ranked, stepStrategy.record(started, model.StepOK, summary), nil
}

// RankStrategies merges both sources, keeping the first occurrence of an id
// with context-triggered strategies ahead of item-enabled ones, and sorts
// ascending by priority. Strategies without a priority rank as 99.
func RankStrategies(fromContexts, fromItems []model.Strategy) []model.Strategy {
	out := make([]model.Strategy, 0, len(fromContexts)+len(fromItems))
	seen := make(map[string]bool)
	for _, group := range [][]model.Strategy{fromContexts, fromItems} {
		for _, s := range group {
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectivePriority() < out[j].EffectivePriority()
	})
	return out
}
