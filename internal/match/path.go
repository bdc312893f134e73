package match

import "github.com/rpattn/nodequery/internal/domain"

// Getter is implemented by documents that serve field values by name.
type Getter interface {
	Get(name string) (any, bool)
}

// lookup reads one field from a document, a nested object or a node.
func lookup(v any, name string) (any, bool) {
	switch doc := v.(type) {
	case Getter:
		return doc.Get(name)
	case map[string]any:
		value, ok := doc[name]
		return value, ok
	}
	return nil, false
}

// ValueAt walks a dotted (or ___ separated) path. Lists met along the way
// are mapped over and flattened, so a path through a list of objects yields
// the list of leaf values.
func ValueAt(v any, path string) (any, bool) {
	return valueAt(v, domain.SplitPath(path))
}

func valueAt(v any, segments []string) (any, bool) {
	if len(segments) == 0 {
		return v, v != nil
	}
	if list, ok := AsList(v); ok {
		var collected []any
		for _, item := range list {
			value, ok := valueAt(item, segments)
			if !ok {
				continue
			}
			if nested, isList := AsList(value); isList {
				collected = append(collected, nested...)
				continue
			}
			collected = append(collected, value)
		}
		if len(collected) == 0 {
			return nil, false
		}
		return collected, true
	}
	next, ok := lookup(v, segments[0])
	if !ok || next == nil {
		return nil, false
	}
	return valueAt(next, segments[1:])
}
