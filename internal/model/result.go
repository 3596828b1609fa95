package model

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ReasoningResult is the engine's sole output. It is built fresh for every
// invocation and never touched by the engine once returned.
type ReasoningResult struct {
	Query               string
	DetectionSource     DetectionSource
	DetectedContexts    []Context
	ActiveConstraints   []Constraint
	ValidItems          []Item
	RejectedItems       []Rejection
	NeedsClarification  bool
	Discriminator       *Discriminator
	DetectedRisks       []Risk
	Mitigations         []Mitigation
	TriggeredStrategies []Strategy
	Trace               []TraceStep
}

// ResultRecord is the serialized shape of a ReasoningResult. Field names are the
// contract with narration, API and UI layers and must stay stable.
type ResultRecord struct {
	Query               string               `json:"query"`
	DetectionSource     DetectionSource      `json:"detection_source"`
	DetectedContexts    []ContextRecord      `json:"detected_contexts"`
	ActiveConstraints   []ConstraintRecord   `json:"active_constraints"`
	ValidItems          []ItemRecord         `json:"valid_items"`
	RejectedItems       []RejectionRecord    `json:"rejected_items"`
	NeedsClarification  bool                 `json:"needs_clarification"`
	Discriminator       *DiscriminatorRecord `json:"discriminator"`
	DetectedRisks       []Risk               `json:"detected_risks"`
	Mitigations         []Mitigation         `json:"mitigations"`
	TriggeredStrategies []StrategyRecord     `json:"triggered_strategies"`
	ReasoningTrace      []TraceStep          `json:"reasoning_trace"`
}

type ContextRecord struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type ConstraintRecord struct {
	ID            string   `json:"id"`
	TargetKey     string   `json:"target_key"`
	Operator      Operator `json:"operator"`
	RequiredValue Value    `json:"required_value"`
	Severity      Severity `json:"severity"`
	Reason        string   `json:"reason"`
	SourceContext string   `json:"source_context"`
}

type ItemRecord struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Properties map[string]Value `json:"properties"`
}

type ItemRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ViolationRecord struct {
	ConstraintID string   `json:"constraint_id"`
	Severity     Severity `json:"severity"`
	Message      string   `json:"message"`
}

type RejectionRecord struct {
	Item      ItemRef         `json:"item"`
	Violation ViolationRecord `json:"violation"`
}

type DiscriminatorRecord struct {
	ID        string   `json:"id"`
	Question  string   `json:"question"`
	Options   []Option `json:"options"`
	WhyNeeded string   `json:"why_needed"`
}

type StrategyRecord struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Kind        StrategyKind `json:"type"`
	Priority    int          `json:"priority"`
	Description string       `json:"description"`
	TriggeredBy string       `json:"triggered_by"`
}

// Record converts the result into its stable wire shape. Empty collections
// serialize as [] rather than null.
func (r ReasoningResult) Record() ResultRecord {
	rec := ResultRecord{
		Query:               r.Query,
		DetectionSource:     r.DetectionSource,
		DetectedContexts:    make([]ContextRecord, 0, len(r.DetectedContexts)),
		ActiveConstraints:   make([]ConstraintRecord, 0, len(r.ActiveConstraints)),
		ValidItems:          make([]ItemRecord, 0, len(r.ValidItems)),
		RejectedItems:       make([]RejectionRecord, 0, len(r.RejectedItems)),
		NeedsClarification:  r.NeedsClarification,
		DetectedRisks:       make([]Risk, 0, len(r.DetectedRisks)),
		Mitigations:         make([]Mitigation, 0, len(r.Mitigations)),
		TriggeredStrategies: make([]StrategyRecord, 0, len(r.TriggeredStrategies)),
		ReasoningTrace:      make([]TraceStep, 0, len(r.Trace)),
	}
	if rec.DetectionSource == "" {
		rec.DetectionSource = DetectionNone
	}

	for _, c := range r.DetectedContexts {
		rec.DetectedContexts = append(rec.DetectedContexts, ContextRecord{ID: c.ID, Name: c.Name, Score: c.Score})
	}
	for _, c := range r.ActiveConstraints {
		rec.ActiveConstraints = append(rec.ActiveConstraints, ConstraintRecord{
			ID:            c.ID,
			TargetKey:     c.TargetKey,
			Operator:      c.Operator,
			RequiredValue: c.RequiredValue,
			Severity:      c.Severity,
			Reason:        c.Reason,
			SourceContext: c.SourceContext,
		})
	}
	for _, it := range r.ValidItems {
		props := it.Properties
		if props == nil {
			props = map[string]Value{}
		}
		rec.ValidItems = append(rec.ValidItems, ItemRecord{ID: it.ID, Name: it.Name, Properties: props})
	}
	for _, rj := range r.RejectedItems {
		rec.RejectedItems = append(rec.RejectedItems, RejectionRecord{
			Item: ItemRef{ID: rj.Item.ID, Name: rj.Item.Name},
			Violation: ViolationRecord{
				ConstraintID: rj.Violation.Constraint.ID,
				Severity:     rj.Violation.Constraint.Severity,
				Message:      rj.Violation.Message,
			},
		})
	}
	if r.Discriminator != nil {
		opts := r.Discriminator.Options
		if opts == nil {
			opts = []Option{}
		}
		rec.Discriminator = &DiscriminatorRecord{
			ID:        r.Discriminator.ID,
			Question:  r.Discriminator.Question,
			Options:   opts,
			WhyNeeded: r.Discriminator.WhyNeeded,
		}
	}
	rec.DetectedRisks = append(rec.DetectedRisks, r.DetectedRisks...)
	rec.Mitigations = append(rec.Mitigations, r.Mitigations...)
	for _, s := range r.TriggeredStrategies {
		rec.TriggeredStrategies = append(rec.TriggeredStrategies, StrategyRecord{
			ID:          s.ID,
			Name:        s.Name,
			Kind:        s.Kind,
			Priority:    s.EffectivePriority(),
			Description: s.Description,
			TriggeredBy: s.TriggeredBy,
		})
	}
	rec.ReasoningTrace = append(rec.ReasoningTrace, r.Trace...)

	return rec
}

func (r ReasoningResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Record())
}

// ResultSchema returns the JSON Schema of the serialized result.
func ResultSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&ResultRecord{})
	schema.Title = "ReasoningResult"

	// discriminator is null whenever no clarification is needed.
	if disc, ok := schema.Properties.Get("discriminator"); ok {
		schema.Properties.Set("discriminator", &jsonschema.Schema{
			OneOf: []*jsonschema.Schema{disc, {Type: "null"}},
		})
	}
	return schema
}
