// Package schema holds the type metadata the resolver consults: declared
// fields per node type, their types and optional resolvers.
package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/rpattn/nodequery/internal/domain"
)

// NodeLookup gives resolvers access to other nodes of the store.
type NodeLookup interface {
	Load(ctx context.Context, id string) (*domain.Node, error)
	LoadMany(ctx context.Context, ids []string) ([]*domain.Node, error)
	ByType(ctx context.Context, typeName string) ([]*domain.Node, error)
}

// ResolveParams is passed to a field resolver.
type ResolveParams struct {
	// Source is the node or nested object owning the field.
	Source     any
	FieldName  string
	ParentType *Type
	Field      *Field
	Args       map[string]any
	Nodes      NodeLookup
}

// ResolveFunc computes a field value. Returning nil means the field is absent.
type ResolveFunc func(ctx context.Context, p ResolveParams) (any, error)

// TypeRef names a field's type.
type TypeRef struct {
	Name string
	List bool
}

// Field describes one declared field.
type Field struct {
	Name    string
	Type    TypeRef
	Resolve ResolveFunc
}

// Type describes one object type.
type Type struct {
	Name   string
	fields []*Field
	index  map[string]*Field
}

// NewType creates a type with the given fields in declaration order.
func NewType(name string, fields ...*Field) *Type {
	t := &Type{Name: name, index: make(map[string]*Field, len(fields))}
	for _, field := range fields {
		t.AddField(field)
	}
	return t
}

// AddField declares a field, replacing any previous field of the same name.
func (t *Type) AddField(field *Field) {
	if t.index == nil {
		t.index = make(map[string]*Field)
	}
	if _, exists := t.index[field.Name]; !exists {
		t.fields = append(t.fields, field)
	} else {
		for i, existing := range t.fields {
			if existing.Name == field.Name {
				t.fields[i] = field
			}
		}
	}
	t.index[field.Name] = field
}

// Field returns the declared field called name.
func (t *Type) Field(name string) (*Field, bool) {
	if t == nil {
		return nil, false
	}
	field, ok := t.index[name]
	return field, ok
}

// Fields returns the declared fields in declaration order.
func (t *Type) Fields() []*Field {
	return append([]*Field(nil), t.fields...)
}

// Registry indexes types by name.
type Registry struct {
	types map[string]*Type
}

// NewRegistry creates a registry of the given types.
func NewRegistry(types ...*Type) *Registry {
	r := &Registry{types: make(map[string]*Type, len(types))}
	for _, t := range types {
		r.types[t.Name] = t
	}
	return r
}

// Type returns the type called name.
func (r *Registry) Type(name string) (*Type, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.types[name]
	return t, ok
}

// TypeNames returns the registered type names in sorted order.
func (r *Registry) TypeNames() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetResolver attaches fn to typeName.fieldName, declaring the field if it
// does not exist yet.
func (r *Registry) SetResolver(typeName, fieldName string, fn ResolveFunc) error {
	t, ok := r.Type(typeName)
	if !ok {
		return fmt.Errorf("unknown type %q", typeName)
	}
	field, ok := t.Field(fieldName)
	if !ok {
		t.AddField(&Field{Name: fieldName, Resolve: fn})
		return nil
	}
	field.Resolve = fn
	return nil
}
