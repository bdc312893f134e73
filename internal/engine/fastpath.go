package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/rpattn/nodequery/internal/domain"
	"github.com/rpattn/nodequery/internal/filter"
	"github.com/rpattn/nodequery/internal/resolve"
)

// eqIDFastPath reports the id to look up directly when a first-only query
// filters on nothing but id equality and needs no other field.
func eqIDFastPath(firstOnly bool, fields domain.FieldSet, clauses []*filter.Node) (string, bool) {
	if !firstOnly || len(clauses) != 1 {
		return "", false
	}
	if len(fields) != 1 || len(fields[domain.FieldID]) != 0 {
		return "", false
	}
	if _, ok := fields[domain.FieldID]; !ok {
		return "", false
	}

	clause := clauses[0]
	if clause.Kind != filter.OpField || clause.Name != domain.FieldID || len(clause.Children) != 1 {
		return "", false
	}
	op := clause.Children[0]
	if op.Kind != filter.OpEq {
		return "", false
	}
	id, ok := op.Value.(string)
	return id, ok
}

// runByID serves a first-only id lookup straight from the store.
func (e *Engine) runByID(ctx context.Context, resolver *resolve.Resolver, q Query, id string, fields domain.FieldSet) (Result, error) {
	node, err := e.store.GetNode(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get node %s: %w", id, err)
	}
	if node == nil || !typeAllowed(q, node.Internal.Type) {
		return Result{Nodes: []*domain.Node{}}, nil
	}

	resolved, err := resolver.ResolveNode(ctx, node, node.Internal.Type, fields)
	if err != nil {
		return Result{}, err
	}
	return Result{Nodes: []*domain.Node{resolved}}, nil
}

// resolvesID reports whether typeName computes id with a resolver, in which
// case the stored id cannot answer the lookup.
func (e *Engine) resolvesID(typeName string) bool {
	if e.registry == nil {
		return false
	}
	t, ok := e.registry.Type(typeName)
	if !ok {
		return false
	}
	field, ok := t.Field(domain.FieldID)
	return ok && field.Resolve != nil
}

func typeAllowed(q Query, typeName string) bool {
	if len(q.AllowedTypeNames) == 0 {
		return typeName == q.Type
	}
	return slices.Contains(q.AllowedTypeNames, typeName)
}
