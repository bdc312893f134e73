package filter

import (
	"fmt"

	"github.com/99designs/gqlgen/graphql"
	"github.com/rpattn/nodequery/internal/domain"
)

// Translate turns a filter object into one clause per top-level key,
// in key order. The clauses are meant to be ANDed.
func Translate(f domain.Filter) ([]*Node, error) {
	clauses := make([]*Node, 0, len(f))
	for _, entry := range f {
		clause, err := translateEntry(entry)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

func translateEntry(entry domain.FilterEntry) (*Node, error) {
	nested, isNested := entry.Nested()
	if m, ok := entry.Value.(map[string]any); ok {
		nested, isNested = domain.FilterFromMap(m), true
	}
	if isNested {
		children, err := Translate(nested)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Key, err)
		}
		if entry.Key == domain.ElemMatchKey {
			return &Node{Kind: OpElemMatch, Children: children}, nil
		}
		return &Node{Kind: OpField, Name: entry.Key, Children: children}, nil
	}

	switch entry.Key {
	case "regex":
		pattern, err := CompileRegex(entry.Value)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: OpRegex, Value: entry.Value, Pattern: pattern}, nil
	case "glob":
		pattern, err := CompileGlob(entry.Value)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: OpRegex, Value: entry.Value, Pattern: pattern}, nil
	}

	kind, ok := leafOps[entry.Key]
	if !ok {
		return &Node{Kind: OpUnsupported, Name: OperatorMarker + entry.Key, Value: entry.Value}, nil
	}
	value := entry.Value
	if kind == OpIn || kind == OpNin {
		value = graphql.CoerceList(value)
	}
	return &Node{Kind: kind, Value: value}, nil
}

// Fields returns the top-level field names the clauses constrain.
func Fields(clauses []*Node) []string {
	fields := make([]string, 0, len(clauses))
	for _, clause := range clauses {
		if clause.Kind == OpField {
			fields = append(fields, clause.Name)
		}
	}
	return fields
}
