// Package resolve materializes the fields a query needs on each candidate
// node, running schema resolvers where the type declares them.
package resolve

import (
	"context"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/rpattn/nodequery/internal/domain"
	"github.com/rpattn/nodequery/internal/match"
	"github.com/rpattn/nodequery/internal/schema"
)

// DefaultConcurrency bounds how many nodes resolve at the same time.
const DefaultConcurrency = 16

// Middleware wraps the resolver of typeName.fieldName.
type Middleware func(typeName, fieldName string, next schema.ResolveFunc) schema.ResolveFunc

// Options configures a Resolver.
type Options struct {
	Concurrency int
	Middleware  []Middleware
	Tracer      trace.Tracer
}

// Resolver resolves required fields against a schema registry.
type Resolver struct {
	registry    *schema.Registry
	nodes       schema.NodeLookup
	concurrency int
	middleware  []Middleware
	tracer      trace.Tracer
}

// New creates a resolver. nodes is handed to field resolvers so they can
// look up other nodes.
func New(registry *schema.Registry, nodes schema.NodeLookup, opts Options) *Resolver {
	r := &Resolver{
		registry:    registry,
		nodes:       nodes,
		concurrency: opts.Concurrency,
		middleware:  opts.Middleware,
		tracer:      opts.Tracer,
	}
	if r.concurrency <= 0 {
		r.concurrency = DefaultConcurrency
	}
	if r.tracer == nil {
		r.tracer = noop.NewTracerProvider().Tracer("nodequery/resolve")
	}
	return r
}

// ResolveNodes resolves fields on every node concurrently. The result has
// the same length as nodes and out[i] is the snapshot of nodes[i] whatever
// order the resolutions finish in. Any failure fails the whole batch.
func (r *Resolver) ResolveNodes(ctx context.Context, nodes []*domain.Node, typeName string, fields domain.FieldSet) ([]*domain.Node, error) {
	ctx, span := r.tracer.Start(ctx, "nodequery.ResolveNodes", trace.WithAttributes(
		attribute.String("nodequery.type", typeName),
		attribute.Int("nodequery.candidates", len(nodes)),
		attribute.Int("nodequery.fields", len(fields)),
	))
	defer span.End()

	out := make([]*domain.Node, len(nodes))
	if len(fields) == 0 {
		copy(out, nodes)
		return out, nil
	}

	t, _ := r.registry.Type(typeName)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, node := range nodes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resolved, err := r.resolveNode(gctx, node, t, fields)
			if err != nil {
				return err
			}
			out[i] = resolved
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// ResolveNode resolves fields on a single node.
func (r *Resolver) ResolveNode(ctx context.Context, node *domain.Node, typeName string, fields domain.FieldSet) (*domain.Node, error) {
	t, _ := r.registry.Type(typeName)
	return r.resolveNode(ctx, node, t, fields)
}

func (r *Resolver) resolveNode(ctx context.Context, node *domain.Node, t *schema.Type, fields domain.FieldSet) (*domain.Node, error) {
	if node == nil {
		return nil, nil
	}
	if len(fields) == 0 {
		return node, nil
	}
	resolved, err := r.resolveFields(ctx, node, t, fields)
	if err != nil {
		return nil, fmt.Errorf("resolve node %s: %w", node.ID, err)
	}
	return node.WithFields(resolved), nil
}

// resolveFields computes every required field of source. Absent fields map
// to nil.
func (r *Resolver) resolveFields(ctx context.Context, source any, t *schema.Type, fields domain.FieldSet) (map[string]any, error) {
	resolved := make(map[string]any, len(fields))
	_, sourceIsNode := source.(*domain.Node)
	for _, name := range fields.Names() {
		if sourceIsNode && domain.IsReservedField(name) && !hasResolver(t, name) {
			continue
		}
		value, field, err := r.resolveField(ctx, source, t, name)
		if err != nil {
			return nil, err
		}
		if sub := fields[name]; len(sub) > 0 && !isAbsent(value) {
			var nestedType *schema.Type
			if field != nil {
				nestedType, _ = r.registry.Type(field.Type.Name)
			}
			value, err = r.resolveNested(ctx, value, nestedType, sub)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
		if isAbsent(value) {
			value = nil
		}
		resolved[name] = value
	}
	return resolved, nil
}

func (r *Resolver) resolveField(ctx context.Context, source any, t *schema.Type, name string) (any, *schema.Field, error) {
	field, declared := t.Field(name)
	if !declared || field.Resolve == nil {
		value, _ := schema.FieldValue(source, name)
		return value, field, nil
	}

	fn := field.Resolve
	for i := len(r.middleware) - 1; i >= 0; i-- {
		fn = r.middleware[i](t.Name, name, fn)
	}
	value, err := fn(ctx, schema.ResolveParams{
		Source:     source,
		FieldName:  name,
		ParentType: t,
		Field:      field,
		Nodes:      r.nodes,
	})
	if err != nil {
		return nil, field, fmt.Errorf("resolve %s.%s: %w", t.Name, name, err)
	}
	return value, field, nil
}

// resolveNested descends into objects, lists and linked nodes.
func (r *Resolver) resolveNested(ctx context.Context, value any, t *schema.Type, fields domain.FieldSet) (any, error) {
	switch v := value.(type) {
	case *domain.Node:
		nodeType, ok := r.registry.Type(v.Internal.Type)
		if !ok {
			nodeType = t
		}
		return r.resolveNode(ctx, v, nodeType, fields)
	case map[string]any:
		resolved, err := r.resolveFields(ctx, v, t, fields)
		if err != nil {
			return nil, err
		}
		merged := make(map[string]any, len(v)+len(resolved))
		for key, item := range v {
			merged[key] = item
		}
		for key, item := range resolved {
			if item == nil {
				delete(merged, key)
				continue
			}
			merged[key] = item
		}
		return merged, nil
	}
	if list, ok := match.AsList(value); ok {
		items := make([]any, 0, len(list))
		for _, item := range list {
			resolved, err := r.resolveNested(ctx, item, t, fields)
			if err != nil {
				return nil, err
			}
			if !isAbsent(resolved) {
				items = append(items, resolved)
			}
		}
		return items, nil
	}
	return value, nil
}

func hasResolver(t *schema.Type, name string) bool {
	field, ok := t.Field(name)
	return ok && field.Resolve != nil
}

// isAbsent treats nil and typed nil pointers, maps and slices as "no value".
func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
