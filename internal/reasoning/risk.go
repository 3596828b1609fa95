package reasoning

import (
	"context"
	"fmt"
	"time"

	"basegraph.app/reasoner/internal/model"
)

type RiskAssessment struct {
	Risks       []model.Risk
	Mitigations []model.Mitigation
}

// AssessRisks collects the risks generated by the detected contexts and the
// valid items that mitigate them. A risk reached from several contexts is
// reported once, attributed to the first.
func AssessRisks(ctx context.Context, env Env, contextIDs, itemIDs []string) (RiskAssessment, model.TraceStep, error) {
	started := time.Now()
	out := RiskAssessment{Risks: []model.Risk{}, Mitigations: []model.Mitigation{}}

	if len(contextIDs) == 0 {
		return out, stepRisk.record(started, model.StepSkipped, "no contexts, no risks"), nil
	}

	riskCtx, cancel := env.bound(ctx)
	found, err := env.Graph.RisksForContexts(riskCtx, contextIDs)
	cancel()
	if err != nil {
		return RiskAssessment{}, stepRisk.record(started, model.StepFailed, "risk lookup failed"), err
	}

	seen := make(map[string]bool, len(found))
	for _, r := range found {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out.Risks = append(out.Risks, r)
	}

	if len(itemIDs) > 0 && len(out.Risks) > 0 {
		mitCtx, cancel := env.bound(ctx)
		mitigations, err := env.Graph.Mitigations(mitCtx, itemIDs, model.RiskIDs(out.Risks))
		cancel()
		if err != nil {
			return RiskAssessment{}, stepRisk.record(started, model.StepFailed, "mitigation lookup failed"), err
		}
		out.Mitigations = append(out.Mitigations, mitigations...)
	}

	summary := fmt.Sprintf("%d risk(s), %d mitigation(s) among %d valid item(s)", len(out.Risks), len(out.Mitigations), len(itemIDs))
	return out, stepRisk.record(started, model.StepOK, summary), nil
}
