package arangodb

import (
	"encoding/json"
	"errors"
	"fmt"
)

const GraphName = "knowledge_graph"

// Document collections, grouped by graph layer.
const (
	// Layer 1: inventory
	CollectionItems      = "items"
	CollectionProperties = "properties"
	CollectionCategories = "categories"

	// Layer 2: application
	CollectionContexts    = "contexts"
	CollectionConstraints = "constraints"
	CollectionRisks       = "risks"

	// Layer 3: reasoning
	CollectionDiscriminators = "discriminators"
	CollectionOptions        = "options"
	CollectionStrategies     = "strategies"
)

// Edge collections.
const (
	EdgeHasProperty      = "has_property"
	EdgeInCategory       = "in_category"
	EdgeImplies          = "implies"
	EdgeGeneratesRisk    = "generates_risk"
	EdgeMitigates        = "mitigates"
	EdgeDependsOn        = "depends_on"
	EdgeHasOption        = "has_option"
	EdgeTriggersStrategy = "triggers_strategy"
	EdgeEnablesStrategy  = "enables_strategy"
)

// EdgeDefinition mirrors an edge collection with its allowed endpoints.
type EdgeDefinition struct {
	Collection string
	From       []string
	To         []string
}

var nodeCollections = []string{
	CollectionItems, CollectionProperties, CollectionCategories,
	CollectionContexts, CollectionConstraints, CollectionRisks,
	CollectionDiscriminators, CollectionOptions, CollectionStrategies,
}

var edgeDefinitions = []EdgeDefinition{
	{Collection: EdgeHasProperty, From: []string{CollectionItems}, To: []string{CollectionProperties}},
	{Collection: EdgeInCategory, From: []string{CollectionItems}, To: []string{CollectionCategories}},
	{Collection: EdgeImplies, From: []string{CollectionContexts}, To: []string{CollectionConstraints}},
	{Collection: EdgeGeneratesRisk, From: []string{CollectionContexts}, To: []string{CollectionRisks}},
	{Collection: EdgeMitigates, From: []string{CollectionItems}, To: []string{CollectionRisks}},
	{Collection: EdgeDependsOn, From: []string{CollectionProperties}, To: []string{CollectionDiscriminators}},
	{Collection: EdgeHasOption, From: []string{CollectionDiscriminators}, To: []string{CollectionOptions}},
	{Collection: EdgeTriggersStrategy, From: []string{CollectionContexts}, To: []string{CollectionStrategies}},
	{Collection: EdgeEnablesStrategy, From: []string{CollectionItems}, To: []string{CollectionStrategies}},
}

// NodeCollections lists the document collections of the knowledge graph.
func NodeCollections() []string {
	return append([]string(nil), nodeCollections...)
}

// EdgeDefinitions lists the edge collections of the knowledge graph.
func EdgeDefinitions() []EdgeDefinition {
	return append([]EdgeDefinition(nil), edgeDefinitions...)
}

// Row is one result document of a query, kept raw until the caller decodes it.
type Row json.RawMessage

func (r Row) Decode(v any) error {
	if err := json.Unmarshal(r, v); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}

var (
	ErrStoreUnavailable       = errors.New("graph store unavailable")
	ErrDatabaseNotInitialized = errors.New("database not initialized")
)

// UnavailableError wraps any failure to reach the graph or execute a query.
// It matches ErrStoreUnavailable under errors.Is.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrStoreUnavailable, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrStoreUnavailable
}
