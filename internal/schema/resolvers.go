package schema

import (
	"context"
	"fmt"

	"github.com/rpattn/nodequery/internal/domain"
	"github.com/rpattn/nodequery/internal/match"
)

// FieldValue reads a stored field from a node or a nested object.
func FieldValue(source any, name string) (any, bool) {
	switch src := source.(type) {
	case *domain.Node:
		return src.Get(name)
	case map[string]any:
		value, ok := src[name]
		return value, ok
	}
	return nil, false
}

// ProxyResolver exposes the stored field from under the resolved field's name.
func ProxyResolver(from string) ResolveFunc {
	return func(ctx context.Context, p ResolveParams) (any, error) {
		value, _ := FieldValue(p.Source, from)
		return value, nil
	}
}

// LinkResolver resolves stored references to nodes. The reference is read
// from the field named from (the resolved field itself when empty) and is
// matched against the by field of the target type (id when empty). A list
// of references resolves to the list of found nodes.
func LinkResolver(from, by string) ResolveFunc {
	return func(ctx context.Context, p ResolveParams) (any, error) {
		sourceField := from
		if sourceField == "" {
			sourceField = p.FieldName
		}
		ref, ok := FieldValue(p.Source, sourceField)
		if !ok || ref == nil {
			return nil, nil
		}
		if p.Nodes == nil {
			return nil, fmt.Errorf("link %s: no node lookup available", p.FieldName)
		}

		refs, isList := match.AsList(ref)

		if by == "" || by == domain.FieldID {
			return linkByID(ctx, p, ref, refs, isList)
		}
		return linkByField(ctx, p, by, ref, refs, isList)
	}
}

func linkByID(ctx context.Context, p ResolveParams, ref any, refs []any, isList bool) (any, error) {
	if !isList {
		id, ok := ref.(string)
		if !ok {
			return nil, fmt.Errorf("link %s: reference must be a string id, got %T", p.FieldName, ref)
		}
		node, err := p.Nodes.Load(ctx, id)
		if err != nil || node == nil {
			return nil, err
		}
		return node, nil
	}

	ids := make([]string, 0, len(refs))
	for _, item := range refs {
		id, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("link %s: reference must be a string id, got %T", p.FieldName, item)
		}
		ids = append(ids, id)
	}
	nodes, err := p.Nodes.LoadMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	linked := make([]any, 0, len(nodes))
	for _, node := range nodes {
		if node != nil {
			linked = append(linked, node)
		}
	}
	return linked, nil
}

func linkByField(ctx context.Context, p ResolveParams, by string, ref any, refs []any, isList bool) (any, error) {
	if p.Field == nil || p.Field.Type.Name == "" {
		return nil, fmt.Errorf("link %s: target type unknown", p.FieldName)
	}
	candidates, err := p.Nodes.ByType(ctx, p.Field.Type.Name)
	if err != nil {
		return nil, err
	}
	find := func(want any) *domain.Node {
		for _, candidate := range candidates {
			if value, ok := candidate.Get(by); ok && match.Equal(value, want) {
				return candidate
			}
		}
		return nil
	}

	if !isList {
		if node := find(ref); node != nil {
			return node, nil
		}
		return nil, nil
	}
	linked := make([]any, 0, len(refs))
	for _, item := range refs {
		if node := find(item); node != nil {
			linked = append(linked, node)
		}
	}
	return linked, nil
}
