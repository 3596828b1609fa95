package model

// Option is one labeled answer to a Discriminator question.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value Value  `json:"value"`
}

// DefaultDiscriminatorPriority applies to discriminators authored without a priority.
const DefaultDiscriminatorPriority = 99

// Discriminator is a clarifying question. Lower priority is asked sooner.
type Discriminator struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Question  string   `json:"question"`
	Priority  int      `json:"priority"`
	Options   []Option `json:"options"`
	WhyNeeded string   `json:"why_needed,omitempty"`
}

// DiscriminatorLink is a "depends-on" edge from an item property key to the
// discriminator that resolves it.
type DiscriminatorLink struct {
	PropertyKey   string        `json:"property_key"`
	Discriminator Discriminator `json:"discriminator"`
}
