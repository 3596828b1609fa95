package reasoning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"basegraph.app/reasoner/internal/model"
)

// NextDiscriminator picks the clarifying question that splits items. A link
// is a candidate when its property takes more than one distinct value among
// the items carrying it and its discriminator was not asked yet. The lowest
// priority wins; equal priorities keep link order.
//
// Fewer than two items never need a question.
func NextDiscriminator(items []model.Item, links []model.DiscriminatorLink, asked []string) *model.Discriminator {
	if len(items) <= 1 {
		return nil
	}

	skip := make(map[string]bool, len(asked))
	for _, id := range asked {
		skip[id] = true
	}

	var best *model.Discriminator
	for _, link := range links {
		d := link.Discriminator
		if skip[d.ID] || distinctValues(items, link.PropertyKey) < 2 {
			continue
		}
		if best == nil || d.Priority < best.Priority {
			picked := d
			best = &picked
		}
	}
	return best
}

func distinctValues(items []model.Item, key string) int {
	seen := make(map[string]bool)
	for _, it := range items {
		if v, ok := it.Property(key); ok {
			seen[strings.ToLower(strings.TrimSpace(v.String()))] = true
		}
	}
	return len(seen)
}

// SelectDiscriminator loads the discriminators linked to the valid items'
// property keys and picks the next question.
func SelectDiscriminator(ctx context.Context, env Env, items []model.Item, asked []string) (*model.Discriminator, model.TraceStep, error) {
	started := time.Now()

	if len(items) <= 1 {
		return nil, stepEntropy.record(started, model.StepSkipped, fmt.Sprintf("%d valid item(s), no clarification needed", len(items))), nil
	}

	ctx, cancel := env.bound(ctx)
	defer cancel()

	links, err := env.Graph.DiscriminatorLinks(ctx, model.PropertyKeys(items))
	if err != nil {
		return nil, stepEntropy.record(started, model.StepFailed, "discriminator lookup failed"), err
	}

	d := NextDiscriminator(items, links, asked)
	if d == nil {
		summary := fmt.Sprintf("%d valid items but no unasked discriminating property", len(items))
		return nil, stepEntropy.record(started, model.StepOK, summary), nil
	}
	summary := fmt.Sprintf("%d valid items, asking %s (priority %d): %s", len(items), d.ID, d.Priority, d.Question)
	return d, stepEntropy.record(started, model.StepOK, summary), nil
}
