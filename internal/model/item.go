package model

import "sort"

// Item is a candidate catalog entity. Items are read-only to the engine.
type Item struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Properties  map[string]Value `json:"properties"`
	Categories  []string         `json:"categories,omitempty"`
}

// Property looks up a property by key.
func (i Item) Property(key string) (Value, bool) {
	v, ok := i.Properties[key]
	return v, ok
}

// PropertyKeys returns the union of the items' property keys, sorted.
func PropertyKeys(items []Item) []string {
	set := make(map[string]bool)
	for _, it := range items {
		for k := range it.Properties {
			set[k] = true
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ItemIDs returns the ids of the given items in order.
func ItemIDs(items []Item) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}
