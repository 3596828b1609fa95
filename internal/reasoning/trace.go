package reasoning

import (
	"time"

	"basegraph.app/reasoner/internal/model"
)

type stepInfo struct {
	name      string
	layer     model.GraphLayer
	operation string
}

var (
	stepContextDetection = stepInfo{"context_detection", model.LayerApplication, "vector_search"}
	stepConstraints      = stepInfo{"constraint_resolution", model.LayerApplication, "expand_implies"}
	stepRetrieval        = stepInfo{"item_retrieval", model.LayerInventory, "search_items"}
	stepEvaluation       = stepInfo{"constraint_evaluation", model.LayerEngine, "evaluate_constraints"}
	stepEntropy          = stepInfo{"entropy_reduction", model.LayerReasoning, "select_discriminator"}
	stepRisk             = stepInfo{"risk_assessment", model.LayerApplication, "expand_generates_risk"}
	stepStrategy         = stepInfo{"strategy_activation", model.LayerReasoning, "expand_triggers_strategy"}
	stepAssembly         = stepInfo{"result_assembly", model.LayerEngine, "assemble_result"}
)

// record builds the trace entry of a finished step. The step number is
// assigned when the orchestrator folds the entries.
func (s stepInfo) record(started time.Time, status model.StepStatus, summary string) model.TraceStep {
	return model.TraceStep{
		Name:       s.name,
		Layer:      s.layer,
		Operation:  s.operation,
		Summary:    summary,
		Status:     status,
		StartedAt:  started.UTC(),
		DurationMs: time.Since(started).Milliseconds(),
	}
}

// foldTrace numbers the entries in pipeline order.
func foldTrace(steps ...model.TraceStep) []model.TraceStep {
	out := make([]model.TraceStep, len(steps))
	for i, s := range steps {
		s.Step = i + 1
		out[i] = s
	}
	return out
}
