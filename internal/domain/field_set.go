package domain

import "sort"

// FieldSet describes which fields, and which of their sub-fields, must be
// materialized. An empty child set means the field is needed as a whole
// without descending into it.
type FieldSet map[string]FieldSet

// Add merges the path into the set.
func (s FieldSet) Add(path []string) {
	if len(path) == 0 {
		return
	}
	child, ok := s[path[0]]
	if !ok || child == nil {
		child = FieldSet{}
		s[path[0]] = child
	}
	child.Add(path[1:])
}

// Merge folds other into s. Sub-field requirements win over "whole field"
// requirements.
func (s FieldSet) Merge(other FieldSet) {
	for name, sub := range other {
		existing, ok := s[name]
		if !ok || existing == nil {
			existing = FieldSet{}
			s[name] = existing
		}
		existing.Merge(sub)
	}
}

// Names returns the field names in sorted order.
func (s FieldSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is required.
func (s FieldSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}
