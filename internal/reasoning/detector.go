package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"basegraph.app/reasoner/internal/model"
	"basegraph.app/reasoner/internal/store"
)

const (
	keywordBaseScore  = 0.80
	keywordMatchBonus = 0.05
)

// VectorOutcome is the result of the nearest-neighbour path. Exactly one of
// Contexts (possibly empty) or Err is meaningful.
type VectorOutcome struct {
	Contexts []model.Context
	Err      error
}

func (o VectorOutcome) OK() bool {
	return o.Err == nil
}

// Detection is the output of the context detection step.
type Detection struct {
	Contexts []model.Context
	Source   model.DetectionSource
	// VectorErr is why the vector path was abandoned, if it was.
	VectorErr error
}

// DetectContexts finds the Contexts relevant to query. The vector path is
// tried first; any failure there (no embedder, embedding error, missing
// index, store error) falls back to keyword matching over all Contexts. An
// error is returned only when the keyword path cannot read the graph either.
func DetectContexts(ctx context.Context, env Env, query string) (Detection, model.TraceStep, error) {
	started := time.Now()
	env = env.withDefaults()

	if strings.TrimSpace(query) == "" {
		return Detection{Contexts: []model.Context{}, Source: model.DetectionNone},
			stepContextDetection.record(started, model.StepSkipped, "empty query, no context detection"), nil
	}

	outcome := vectorSearch(ctx, env, query)
	if outcome.OK() {
		return Detection{Contexts: outcome.Contexts, Source: model.DetectionVector},
			stepContextDetection.record(started, model.StepOK, contextSummary(outcome.Contexts, "vector search")), nil
	}

	slog.WarnContext(ctx, "vector context search failed, falling back to keywords", "error", outcome.Err)

	kwCtx, cancel := env.bound(ctx)
	defer cancel()

	all, err := env.Graph.ListContexts(kwCtx)
	fallback := stepContextDetection
	fallback.operation = "keyword_match"
	if err != nil {
		return Detection{}, fallback.record(started, model.StepFailed, "vector search and keyword fallback both failed"),
			fmt.Errorf("list contexts for keyword fallback: %w", err)
	}

	matched := KeywordMatch(query, all)
	return Detection{Contexts: matched, Source: model.DetectionKeyword, VectorErr: outcome.Err},
		fallback.record(started, model.StepDegraded, contextSummary(matched, "keyword fallback")), nil
}

func vectorSearch(ctx context.Context, env Env, query string) VectorOutcome {
	if env.Embedder == nil {
		return VectorOutcome{Err: fmt.Errorf("%w: no embedding provider", store.ErrVectorIndexUnavailable)}
	}

	ctx, cancel := env.bound(ctx)
	defer cancel()

	vec, err := env.Embedder.Embed(ctx, query)
	if err != nil {
		return VectorOutcome{Err: fmt.Errorf("embed query: %w", err)}
	}

	found, err := env.Graph.SearchContexts(ctx, vec, env.TopK, env.MinScore)
	if err != nil {
		return VectorOutcome{Err: fmt.Errorf("search contexts: %w", err)}
	}

	return VectorOutcome{Contexts: rankContexts(found, env.TopK, env.MinScore)}
}

// rankContexts enforces the top-k contract on whatever the store returned:
// scores at or above minScore, best first, at most k.
func rankContexts(found []model.Context, k int, minScore float64) []model.Context {
	out := make([]model.Context, 0, len(found))
	for _, c := range found {
		if c.Score >= minScore {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// KeywordMatch returns every Context with at least one keyword occurring in
// query, case-insensitively, scored 0.80 + 0.05 per matched keyword and
// ordered by match count.
func KeywordMatch(query string, contexts []model.Context) []model.Context {
	q := strings.ToLower(query)

	type hit struct {
		ctx   model.Context
		count int
	}
	var hits []hit
	for _, c := range contexts {
		seen := make(map[string]bool, len(c.Keywords))
		n := 0
		for _, kw := range c.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" || seen[kw] {
				continue
			}
			seen[kw] = true
			if strings.Contains(q, kw) {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, hit{ctx: c, count: n})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].count > hits[j].count
	})

	out := make([]model.Context, 0, len(hits))
	for _, h := range hits {
		c := h.ctx
		c.Score = keywordBaseScore + keywordMatchBonus*float64(h.count)
		out = append(out, c)
	}
	return out
}

func contextSummary(contexts []model.Context, via string) string {
	if len(contexts) == 0 {
		return fmt.Sprintf("no context detected via %s", via)
	}
	parts := make([]string, 0, len(contexts))
	for _, c := range contexts {
		parts = append(parts, fmt.Sprintf("%s (%.2f)", c.Name, c.Score))
	}
	return fmt.Sprintf("%d context(s) via %s: %s", len(contexts), via, strings.Join(parts, ", "))
}
