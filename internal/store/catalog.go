package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"basegraph.app/reasoner/internal/model"
)

// Catalog is the YAML fixture form of the knowledge graph. Edges are
// written on their source node: items list what they mitigate and enable,
// contexts what they imply, generate and trigger, discriminators the
// property keys they depend on.
type Catalog struct {
	Items          []ItemSpec          `yaml:"items"`
	Contexts       []ContextSpec       `yaml:"contexts"`
	Constraints    []ConstraintSpec    `yaml:"constraints"`
	Risks          []RiskSpec          `yaml:"risks"`
	Discriminators []DiscriminatorSpec `yaml:"discriminators"`
	Strategies     []StrategySpec      `yaml:"strategies"`
}

type ItemSpec struct {
	ID          string                 `yaml:"id"`
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Categories  []string               `yaml:"categories"`
	Properties  map[string]model.Value `yaml:"properties"`
	Mitigates   []MitigatesSpec        `yaml:"mitigates"`
	Enables     []string               `yaml:"enables_strategies"`
}

type MitigatesSpec struct {
	Risk        string `yaml:"risk"`
	Description string `yaml:"description"`
}

type ContextSpec struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Keywords    []string        `yaml:"keywords"`
	Implies     []ImpliesSpec   `yaml:"implies"`
	Generates   []GeneratesSpec `yaml:"generates_risks"`
	Triggers    []string        `yaml:"triggers_strategies"`
}

type ImpliesSpec struct {
	Constraint string `yaml:"constraint"`
	Reason     string `yaml:"reason"`
}

type GeneratesSpec struct {
	Risk        string  `yaml:"risk"`
	Probability float64 `yaml:"probability"`
}

type ConstraintSpec struct {
	ID            string         `yaml:"id"`
	TargetKey     string         `yaml:"target_key"`
	Operator      model.Operator `yaml:"operator"`
	RequiredValue model.Value    `yaml:"required_value"`
	Severity      model.Severity `yaml:"severity"`
}

type RiskSpec struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Severity    model.Severity `yaml:"severity"`
	Description string         `yaml:"description"`
}

type DiscriminatorSpec struct {
	ID        string       `yaml:"id"`
	Name      string       `yaml:"name"`
	Question  string       `yaml:"question"`
	Priority  *int         `yaml:"priority"`
	WhyNeeded string       `yaml:"why_needed"`
	DependsOn []string     `yaml:"depends_on"`
	Options   []OptionSpec `yaml:"options"`
}

type OptionSpec struct {
	ID    string      `yaml:"id"`
	Label string      `yaml:"label"`
	Value model.Value `yaml:"value"`
}

type StrategySpec struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Type        model.StrategyKind `yaml:"type"`
	Priority    *int               `yaml:"priority"`
	Description string             `yaml:"description"`
}

// LoadCatalog reads and validates a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog, rejecting unknown fields and dangling references.
func ParseCatalog(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	return &c, nil
}

// Validate checks id uniqueness per collection and that every edge points at
// a declared node.
func (c *Catalog) Validate() error {
	if _, err := uniqueIDs("item", len(c.Items), func(i int) string { return c.Items[i].ID }); err != nil {
		return err
	}
	if _, err := uniqueIDs("context", len(c.Contexts), func(i int) string { return c.Contexts[i].ID }); err != nil {
		return err
	}
	constraints, err := uniqueIDs("constraint", len(c.Constraints), func(i int) string { return c.Constraints[i].ID })
	if err != nil {
		return err
	}
	risks, err := uniqueIDs("risk", len(c.Risks), func(i int) string { return c.Risks[i].ID })
	if err != nil {
		return err
	}
	if _, err := uniqueIDs("discriminator", len(c.Discriminators), func(i int) string { return c.Discriminators[i].ID }); err != nil {
		return err
	}
	strategies, err := uniqueIDs("strategy", len(c.Strategies), func(i int) string { return c.Strategies[i].ID })
	if err != nil {
		return err
	}

	for _, it := range c.Items {
		for _, m := range it.Mitigates {
			if !risks[m.Risk] {
				return fmt.Errorf("item %s mitigates unknown risk %q", it.ID, m.Risk)
			}
		}
		for _, s := range it.Enables {
			if !strategies[s] {
				return fmt.Errorf("item %s enables unknown strategy %q", it.ID, s)
			}
		}
	}

	for _, ctx := range c.Contexts {
		for _, im := range ctx.Implies {
			if !constraints[im.Constraint] {
				return fmt.Errorf("context %s implies unknown constraint %q", ctx.ID, im.Constraint)
			}
		}
		for _, g := range ctx.Generates {
			if !risks[g.Risk] {
				return fmt.Errorf("context %s generates unknown risk %q", ctx.ID, g.Risk)
			}
		}
		for _, s := range ctx.Triggers {
			if !strategies[s] {
				return fmt.Errorf("context %s triggers unknown strategy %q", ctx.ID, s)
			}
		}
	}

	for _, k := range c.Constraints {
		if k.TargetKey == "" {
			return fmt.Errorf("constraint %s has no target_key", k.ID)
		}
	}

	for _, st := range c.Strategies {
		if st.Type != "" && !st.Type.Known() {
			return fmt.Errorf("strategy %s has unknown type %q", st.ID, st.Type)
		}
	}

	return nil
}

func uniqueIDs(kind string, n int, id func(int) string) (map[string]bool, error) {
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		v := id(i)
		if v == "" {
			return nil, fmt.Errorf("%s #%d has no id", kind, i+1)
		}
		if seen[v] {
			return nil, fmt.Errorf("duplicate %s id %q", kind, v)
		}
		seen[v] = true
	}
	return seen, nil
}
