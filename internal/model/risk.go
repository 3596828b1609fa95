package model

// Risk is a hazard implied by a Context.
type Risk struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Severity      Severity `json:"severity,omitempty"`
	Description   string   `json:"description,omitempty"`
	Probability   float64  `json:"probability"`
	SourceContext string   `json:"source_context,omitempty"`
}

// Mitigation records that a valid item counters a detected risk.
type Mitigation struct {
	ItemID      string `json:"item_id"`
	ItemName    string `json:"item_name"`
	RiskID      string `json:"risk_id"`
	RiskName    string `json:"risk_name"`
	Description string `json:"description,omitempty"`
}

// RiskIDs returns the ids of the given risks in order.
func RiskIDs(risks []Risk) []string {
	ids := make([]string, 0, len(risks))
	for _, r := range risks {
		ids = append(ids, r.ID)
	}
	return ids
}
