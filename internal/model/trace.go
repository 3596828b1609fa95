package model

import "time"

// GraphLayer names the logical layer of the knowledge graph a step touches.
type GraphLayer string

const (
	LayerInventory   GraphLayer = "inventory"   // items, properties, categories
	LayerApplication GraphLayer = "application" // contexts, constraints, risks
	LayerReasoning   GraphLayer = "reasoning"   // discriminators, options, strategies
	LayerEngine      GraphLayer = "engine"      // no graph access
)

type StepStatus string

const (
	StepOK       StepStatus = "ok"
	StepDegraded StepStatus = "degraded"
	StepSkipped  StepStatus = "skipped"
	StepFailed   StepStatus = "failed"
)

// TraceStep is one entry of the reasoning trace. StartedAt and DurationMs are
// timing fields; everything else is a function of the inputs and the graph.
type TraceStep struct {
	Step       int        `json:"step"`
	Name       string     `json:"name"`
	Layer      GraphLayer `json:"layer"`
	Operation  string     `json:"operation"`
	Summary    string     `json:"summary"`
	Status     StepStatus `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	DurationMs int64      `json:"duration_ms"`
}
