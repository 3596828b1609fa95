package reasoning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"basegraph.app/reasoner/internal/model"
)

// RetrievalMode records how the candidate set was obtained.
type RetrievalMode string

const (
	RetrievedByHint     RetrievalMode = "hint"
	RetrievedByQuery    RetrievalMode = "query"
	RetrievedByCategory RetrievalMode = "category"
)

type Retrieval struct {
	Items []model.Item
	Mode  RetrievalMode
}

// RetrieveItems looks items up by the hint if given, else by the raw query.
// When the text lookup finds nothing, the category listing is returned
// instead: the whole catalog (or the requested category) is preferred over
// an empty candidate set.
func RetrieveItems(ctx context.Context, env Env, req Request) (Retrieval, model.TraceStep, error) {
	started := time.Now()

	text, mode := strings.TrimSpace(req.ItemHint), RetrievedByHint
	if text == "" {
		text, mode = strings.TrimSpace(req.Query), RetrievedByQuery
	}

	if text != "" {
		searchCtx, cancel := env.bound(ctx)
		items, err := env.Graph.SearchItems(searchCtx, text)
		cancel()
		if err != nil {
			return Retrieval{}, stepRetrieval.record(started, model.StepFailed, "item search failed"), err
		}
		if len(items) > 0 {
			summary := fmt.Sprintf("%d item(s) matched %s %q", len(items), mode, text)
			return Retrieval{Items: items, Mode: mode}, stepRetrieval.record(started, model.StepOK, summary), nil
		}
	}

	listCtx, cancel := env.bound(ctx)
	defer cancel()

	items, err := env.Graph.ItemsByCategory(listCtx, req.Category)
	listing := stepRetrieval
	listing.operation = "list_by_category"
	if err != nil {
		return Retrieval{}, listing.record(started, model.StepFailed, "category listing failed"), err
	}

	category := req.Category
	if category == "" {
		category = "all categories"
	}
	summary := fmt.Sprintf("%d item(s) listed from %s", len(items), category)
	if text != "" {
		summary = fmt.Sprintf("no item matched %s %q; %s", mode, text, summary)
	}
	return Retrieval{Items: items, Mode: RetrievedByCategory}, listing.record(started, model.StepOK, summary), nil
}
