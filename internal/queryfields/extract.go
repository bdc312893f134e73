// Package queryfields computes which node fields a query needs resolved
// before it can be filtered and sorted.
package queryfields

import "github.com/rpattn/nodequery/internal/domain"

// Extract returns the union of fields referenced by the filter, the sort
// fields, the group paths and the distinct path.
func Extract(args domain.QueryArgs) domain.FieldSet {
	fields := FromFilter(args.Filter)
	if args.Sort != nil {
		for _, path := range args.Sort.Fields {
			fields.Add(domain.SplitPath(path))
		}
	}
	for _, path := range args.Group {
		fields.Add(domain.SplitPath(path))
	}
	if args.Distinct != "" {
		fields.Add(domain.SplitPath(args.Distinct))
	}
	return fields
}

// FromFilter drops operators from a filter and keeps the field tree. Any key
// holding a nested filter is a field, even one named like an operator, which
// is how the filter translator reads it. elemMatch contents are merged into the level where elemMatch appears,
// because they address fields of the enclosing value's elements.
func FromFilter(f domain.Filter) domain.FieldSet {
	fields := domain.FieldSet{}
	for _, entry := range f {
		nested, ok := nestedFilter(entry)
		if !ok {
			continue
		}
		if entry.Key == domain.ElemMatchKey {
			fields.Merge(FromFilter(nested))
			continue
		}
		sub := FromFilter(nested)
		existing, ok := fields[entry.Key]
		if !ok || existing == nil {
			fields[entry.Key] = sub
			continue
		}
		existing.Merge(sub)
	}
	return fields
}

func nestedFilter(entry domain.FilterEntry) (domain.Filter, bool) {
	if nested, ok := entry.Nested(); ok {
		return nested, true
	}
	if m, ok := entry.Value.(map[string]any); ok {
		return domain.FilterFromMap(m), true
	}
	return nil, false
}
