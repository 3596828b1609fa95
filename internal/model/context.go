package model

// Context is a situational facet detected in a query (an environment, an
// application). Contexts are produced per query and never persisted.
type Context struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Score       float64  `json:"score"`
	Keywords    []string `json:"keywords,omitempty"`
}

// DetectionSource records which path produced the detected contexts.
type DetectionSource string

const (
	DetectionVector  DetectionSource = "vector"
	DetectionKeyword DetectionSource = "keyword"
	DetectionNone    DetectionSource = "none"
)

// ContextIDs returns the ids of the given contexts in order.
func ContextIDs(contexts []Context) []string {
	ids := make([]string, 0, len(contexts))
	for _, c := range contexts {
		ids = append(ids, c.ID)
	}
	return ids
}
